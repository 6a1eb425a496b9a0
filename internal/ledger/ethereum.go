package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrTransactionReverted is returned when the anchoring transaction is mined
// with a failed status.
var ErrTransactionReverted = errors.New("anchor transaction reverted")

// ChainClient is the subset of ethclient.Client used for anchoring.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthereumAnchor stores each commitment as the calldata of a zero-value
// transaction the signer sends to itself. The transaction hash is the ledger
// reference.
type EthereumAnchor struct {
	client      ChainClient
	key         *ecdsa.PrivateKey
	from        common.Address
	pollEvery   time.Duration
	logger      *slog.Logger
	chainMu     sync.Mutex
	chainID     *big.Int

	// nonceMu serialises nonce allocation so concurrent anchors from one
	// account never reuse a nonce.
	nonceMu sync.Mutex
}

type EthereumOption func(*EthereumAnchor)

func WithReceiptPoll(d time.Duration) EthereumOption {
	return func(a *EthereumAnchor) {
		if d > 0 {
			a.pollEvery = d
		}
	}
}

func WithEthereumLogger(logger *slog.Logger) EthereumOption {
	return func(a *EthereumAnchor) { a.logger = logger }
}

// DialEthereum connects to an RPC endpoint and builds an anchor signing with
// privateKeyHex.
func DialEthereum(ctx context.Context, rpcURL, privateKeyHex string, opts ...EthereumOption) (*EthereumAnchor, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	anchor, err := NewEthereumAnchor(client, privateKeyHex, opts...)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return anchor, client, nil
}

func NewEthereumAnchor(client ChainClient, privateKeyHex string, opts ...EthereumOption) (*EthereumAnchor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}
	a := &EthereumAnchor{
		client:    client,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		pollEvery: time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Address is the account that signs anchoring transactions.
func (a *EthereumAnchor) Address() common.Address {
	return a.from
}

// Anchor submits the commitment and blocks until the transaction is mined or
// ctx ends.
func (a *EthereumAnchor) Anchor(ctx context.Context, commitment string) (string, error) {
	data, err := decodeCommitment(commitment)
	if err != nil {
		return "", err
	}

	tx, err := a.submit(ctx, data)
	if err != nil {
		return "", err
	}
	a.logger.DebugContext(ctx, "anchor transaction submitted", "tx_hash", tx.Hash().Hex())

	receipt, err := a.waitMined(ctx, tx.Hash())
	if err != nil {
		return "", err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("%w: %s", ErrTransactionReverted, tx.Hash().Hex())
	}
	return tx.Hash().Hex(), nil
}

func (a *EthereumAnchor) submit(ctx context.Context, data []byte) (*types.Transaction, error) {
	chainID, err := a.loadChainID(ctx)
	if err != nil {
		return nil, err
	}

	tip, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch head: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(baseFee(head), big.NewInt(2)))

	to := a.from
	gas, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: a.from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	a.nonceMu.Lock()
	defer a.nonceMu.Unlock()

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}
	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      data,
	}), types.LatestSignerForChainID(chainID), a.key)
	if err != nil {
		return nil, fmt.Errorf("sign anchor transaction: %w", err)
	}
	if err := a.client.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("send anchor transaction: %w", err)
	}
	return tx, nil
}

func (a *EthereumAnchor) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.pollEvery)
	defer ticker.Stop()

	for {
		receipt, err := a.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("await receipt for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *EthereumAnchor) loadChainID(ctx context.Context) (*big.Int, error) {
	a.chainMu.Lock()
	defer a.chainMu.Unlock()
	if a.chainID != nil {
		return a.chainID, nil
	}
	chainID, err := a.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	a.chainID = chainID
	return chainID, nil
}

func baseFee(head *types.Header) *big.Int {
	if head == nil || head.BaseFee == nil {
		return big.NewInt(0)
	}
	return head.BaseFee
}
