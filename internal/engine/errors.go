package engine

// Error kinds carried on every error event so clients can react by class
// instead of parsing messages.
const (
	KindAuthFailed        = "auth_failed"
	KindNotAuthenticated  = "not_authenticated"
	KindInvalidPayload    = "invalid_payload"
	KindSessionNotFound   = "session_not_found"
	KindSessionFull       = "session_full"
	KindAlreadyStarted    = "session_already_started"
	KindPaymentUnverified = "payment_not_verified"
	KindLedgerFailure     = "ledger_failure"
	KindInternal          = "internal"
)
