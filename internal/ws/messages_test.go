package ws

import (
	"errors"
	"testing"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"authenticate", `{"type":"authenticate","data":{"token":"abc"}}`, false},
		{"request_match no data", `{"type":"request_match"}`, false},
		{"progress", `{"type":"progress","data":{"sessionId":"1","progress":50,"wpm":60}}`, false},
		{"unknown type", `{"type":"reboot"}`, true},
		{"missing type", `{"data":{}}`, true},
		{"not json", `{nope`, true},
		{"array frame", `[1,2,3]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeEnvelope(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeEnvelopeUnknownTypeError(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"type":"launch_missiles"}`))
	if !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
}

func TestPayloadValidation(t *testing.T) {
	if err := (&AuthPayload{}).Validate(); err == nil {
		t.Error("empty token should fail validation")
	}
	if err := (&AuthPayload{Token: "t"}).Validate(); err != nil {
		t.Errorf("valid auth payload rejected: %v", err)
	}

	if err := (&JoinPayload{}).Validate(); err == nil {
		t.Error("empty sessionId should fail validation")
	}
	if err := (&JoinPayload{SessionID: "1"}).Validate(); err != nil {
		t.Errorf("valid join payload rejected: %v", err)
	}

	if err := (&ProgressPayload{}).Validate(); err == nil {
		t.Error("empty sessionId should fail validation")
	}
	if err := (&ProgressPayload{SessionID: "1", Progress: 50}).Validate(); err != nil {
		t.Errorf("valid progress payload rejected: %v", err)
	}
}
