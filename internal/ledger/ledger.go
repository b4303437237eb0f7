package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"
)

// Subset of the tournament contract used by the server.
const contractABI = `[
	{"name":"hasPlayerPaid","type":"function","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"player","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"getGamePool","type":"function","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"declareWinner","type":"function","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"},{"name":"winner","type":"address"}],"outputs":[]}
]`

var ErrNoContract = errors.New("contract address not configured")

// Client talks to the tournament contract: payment verification reads and the
// winner-declaration transaction.
type Client struct {
	eth      *ethclient.Client
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	entryFee string

	// Serializes outgoing transactions so concurrent settlements cannot race
	// on the account nonce.
	txMu sync.Mutex

	// Coalesces concurrent verification reads per (session, address).
	verifies singleflight.Group
}

func Dial(rpcURL, privateKeyHex, contractAddress, entryFee string, chainID int64) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	c := &Client{
		eth:      eth,
		abi:      parsedABI,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		entryFee: entryFee,
	}
	if contractAddress != "" {
		c.contract = common.HexToAddress(contractAddress)
	}
	return c, nil
}

func (c *Client) EntryFee() string { return c.entryFee }

// VerifyPayment reads hasPlayerPaid for the session. Concurrent calls for the
// same (session, address) share a single in-flight read.
func (c *Client) VerifyPayment(ctx context.Context, sessionID, address string) (bool, error) {
	if c.contract == (common.Address{}) {
		log.Println("ledger: contract address not set, skipping payment verification")
		return true, nil
	}

	key := sessionID + ":" + address
	v, err, _ := c.verifies.Do(key, func() (any, error) {
		gameID, ok := new(big.Int).SetString(sessionID, 10)
		if !ok {
			return false, fmt.Errorf("non-numeric session id %q", sessionID)
		}

		data, err := c.abi.Pack("hasPlayerPaid", gameID, common.HexToAddress(address))
		if err != nil {
			return false, fmt.Errorf("pack hasPlayerPaid: %w", err)
		}

		out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
		if err != nil {
			return false, fmt.Errorf("call hasPlayerPaid: %w", err)
		}

		results, err := c.abi.Unpack("hasPlayerPaid", out)
		if err != nil {
			return false, fmt.Errorf("unpack hasPlayerPaid: %w", err)
		}
		paid, _ := results[0].(bool)
		return paid, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// DeclareWinner submits the winner-declaration transaction and waits for it
// to be mined. Returns the transaction hash as the settlement receipt.
func (c *Client) DeclareWinner(ctx context.Context, sessionID, winnerAddress string) (string, error) {
	if c.contract == (common.Address{}) {
		return "", ErrNoContract
	}

	gameID, ok := new(big.Int).SetString(sessionID, 10)
	if !ok {
		return "", fmt.Errorf("non-numeric session id %q", sessionID)
	}

	data, err := c.abi.Pack("declareWinner", gameID, common.HexToAddress(winnerAddress))
	if err != nil {
		return "", fmt.Errorf("pack declareWinner: %w", err)
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &c.contract,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	log.Printf("ledger: declareWinner tx %s for session %s", signed.Hash().Hex(), sessionID)

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return "", fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("declareWinner reverted in tx %s", receipt.TxHash.Hex())
	}
	return receipt.TxHash.Hex(), nil
}

// GamePool reads the accumulated entry fees for a session, in wei.
func (c *Client) GamePool(ctx context.Context, sessionID string) (*big.Int, error) {
	if c.contract == (common.Address{}) {
		return big.NewInt(0), nil
	}

	gameID, ok := new(big.Int).SetString(sessionID, 10)
	if !ok {
		return nil, fmt.Errorf("non-numeric session id %q", sessionID)
	}

	data, err := c.abi.Pack("getGamePool", gameID)
	if err != nil {
		return nil, fmt.Errorf("pack getGamePool: %w", err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getGamePool: %w", err)
	}
	results, err := c.abi.Unpack("getGamePool", out)
	if err != nil {
		return nil, fmt.Errorf("unpack getGamePool: %w", err)
	}
	pool, _ := results[0].(*big.Int)
	return pool, nil
}
