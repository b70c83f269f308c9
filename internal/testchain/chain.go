// Package testchain is an in-memory development chain used by the package
// tests. It runs a small set of protocol contract fakes, implements
// bind.ContractBackend for Go callers and serves the eth and evm JSON-RPC
// namespaces through a go-ethereum rpc.Server.
package testchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// DefaultChainID is the chain id of a local development node.
const DefaultChainID = 31337

var (
	ErrNoContract = errors.New("no contract at address")
	ErrBadNonce   = errors.New("invalid nonce")
)

type snapshot struct {
	id    uint64
	state *state
}

// Chain is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID   *big.Int
	signer    types.Signer
	contracts map[common.Address]contract
	state     *state
	block     uint64

	snapshots    []snapshot
	nextSnapshot uint64

	snapshotErr   error
	rejectReverts bool
	calls         map[string]int

	// version is bumped on every committed state change.
	version uint64
}

func New() *Chain {
	return NewWithChainID(DefaultChainID)
}

func NewWithChainID(chainID int64) *Chain {
	id := big.NewInt(chainID)
	return &Chain{
		chainID:      id,
		signer:       types.LatestSignerForChainID(id),
		contracts:    make(map[common.Address]contract),
		state:        newState(),
		nextSnapshot: 1,
		calls:        make(map[string]int),
	}
}

func (c *Chain) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// ChainIDFunc has the shape identity sources expect.
func (c *Chain) ChainIDFunc(ctx context.Context) (*big.Int, error) {
	return c.ChainID(), nil
}

func (c *Chain) deploy(addr common.Address, impl contract) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[addr] = impl
}

// FailSnapshots makes every evm_snapshot fail with err until reset with nil.
func (c *Chain) FailSnapshots(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotErr = err
}

// RejectReverts makes evm_revert answer false, as a node does for an unknown id.
func (c *Chain) RejectReverts(reject bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectReverts = reject
}

// Calls reports how often an RPC-level method was served.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// BalanceOf reads a token balance directly from the chain state.
func (c *Chain) BalanceOf(token, holder common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.balance(token, holder)
}

// Mint credits holder without going through a transaction.
func (c *Chain) Mint(token, holder common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.mint(token, holder, amount)
	c.version++
}

// Snapshot records the current state and returns its id as a hex quantity.
// Ids start at 0x1 and increase monotonically.
func (c *Chain) Snapshot() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["evm_snapshot"]++
	if c.snapshotErr != nil {
		return "", c.snapshotErr
	}
	id := c.nextSnapshot
	c.nextSnapshot++
	c.snapshots = append(c.snapshots, snapshot{id: id, state: c.state.clone()})
	return "0x" + strconv.FormatUint(id, 16), nil
}

// Revert restores the snapshot with the given id and discards it together
// with every later snapshot. Unknown ids report false.
func (c *Chain) Revert(id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["evm_revert"]++
	if c.rejectReverts {
		return false, nil
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 64)
	if err != nil {
		return false, fmt.Errorf("invalid snapshot id %q", id)
	}
	for i, snap := range c.snapshots {
		if snap.id != n {
			continue
		}
		c.state = snap.state
		c.snapshots = c.snapshots[:i]
		c.version++
		return true, nil
	}
	return false, nil
}

func (c *Chain) exportState() *state {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Chain) importState(st *state) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = st.clone()
	c.version++
}

func (c *Chain) stateVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// execute runs a message against a copy of the state and returns the copy so
// the caller decides whether to commit it.
func (c *Chain) execute(from common.Address, to *common.Address, value *big.Int, input []byte) ([]byte, *state, error) {
	if to == nil {
		return nil, nil, errors.New("contract creation is not supported")
	}
	impl, ok := c.contracts[*to]
	if !ok {
		return nil, nil, fmt.Errorf("%w %s", ErrNoContract, to.Hex())
	}
	if value == nil {
		value = new(big.Int)
	}
	st := c.state.clone()
	out, err := impl.call(st, message{from: from, to: *to, value: value, input: input})
	if err != nil {
		return nil, nil, fmt.Errorf("execution reverted: %w", err)
	}
	return out, st, nil
}

// --- bind.ContractBackend ---

func (c *Chain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contracts[contract]; !ok {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["eth_call"]++
	out, _, err := c.execute(msg.From, msg.To, msg.Value, msg.Data)
	return out, err
}

func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header(), nil
}

func (c *Chain) header() *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(c.block),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		Extra:      []byte{},
	}
}

func (c *Chain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return c.CodeAt(ctx, account, nil)
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.nonces[account], nil
}

func (c *Chain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *Chain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.execute(msg.From, msg.To, msg.Value, msg.Data); err != nil {
		return 0, err
	}
	return 100_000, nil
}

// SendTransaction mines tx immediately. Reverted transactions are rejected
// and leave the state untouched.
func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(c.signer, tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["eth_sendRawTransaction"]++

	if want := c.state.nonces[from]; tx.Nonce() != want {
		return fmt.Errorf("%w: have %d, want %d", ErrBadNonce, tx.Nonce(), want)
	}
	_, st, err := c.execute(from, tx.To(), tx.Value(), tx.Data())
	if err != nil {
		return err
	}
	st.nonces[from]++
	c.state = st
	c.block++
	c.version++
	return nil
}

func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (c *Chain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}
