// Package contracts binds the deployed protocol contracts to Go handles,
// looking addresses up in the deployment address book unless given one.
package contracts

import (
	"context"
	"errors"
	"fmt"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
)

// Kind is the address book name of a contract.
type Kind string

const (
	AddressesProvider           Kind = "LendingPoolAddressesProvider"
	ProviderRegistry            Kind = "LendingPoolAddressesProviderRegistry"
	LendingPool                 Kind = "LendingPool"
	PoolConfigurator            Kind = "LendingPoolConfigurator"
	PriceOracle                 Kind = "PriceOracle"
	ProtocolDataProvider        Kind = "AaveProtocolDataProvider"
	WETHGateway                 Kind = "WETHGateway"
	UniswapLiquiditySwapAdapter Kind = "UniswapLiquiditySwapAdapter"
	UniswapRepayAdapter         Kind = "UniswapRepayAdapter"
	FlashLiquidationAdapter     Kind = "FlashLiquidationAdapter"

	// Tokens are never looked up by name; their addresses come from the resolver.
	MintableERC20     Kind = "MintableERC20"
	WETHMocked        Kind = "WETHMocked"
	AToken            Kind = "AToken"
	StableDebtToken   Kind = "StableDebtToken"
	VariableDebtToken Kind = "VariableDebtToken"
)

var ErrUnknownKind = errors.New("unknown contract kind")

var kindABIs = map[Kind]*gethabi.ABI{
	AddressesProvider:           &abi.AddressesProviderABI,
	ProviderRegistry:            &abi.ProviderRegistryABI,
	LendingPool:                 &abi.LendingPoolABI,
	PoolConfigurator:            &abi.PoolConfiguratorABI,
	PriceOracle:                 &abi.PriceOracleABI,
	ProtocolDataProvider:        &abi.DataProviderABI,
	WETHGateway:                 &abi.WETHGatewayABI,
	UniswapLiquiditySwapAdapter: &abi.UniswapAdapterABI,
	UniswapRepayAdapter:         &abi.UniswapAdapterABI,
	FlashLiquidationAdapter:     &abi.UniswapAdapterABI,
	MintableERC20:               &abi.ERC20ABI,
	WETHMocked:                  &abi.WETHABI,
	AToken:                      &abi.ATokenABI,
	StableDebtToken:             &abi.DebtTokenABI,
	VariableDebtToken:           &abi.DebtTokenABI,
}

// ABI returns the interface of kind, nil if kind is unknown.
func (k Kind) ABI() *gethabi.ABI {
	return kindABIs[k]
}

func (k Kind) IsToken() bool {
	switch k {
	case MintableERC20, WETHMocked, AToken, StableDebtToken, VariableDebtToken:
		return true
	}
	return false
}

// CallError is returned when a call or transaction on a bound contract fails.
type CallError struct {
	Kind    Kind
	Address common.Address
	Method  string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s(%s).%s: %v", e.Kind, e.Address.Hex(), e.Method, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Contract is a handle on one deployed contract.
type Contract struct {
	Kind    Kind
	Address common.Address

	abi   *gethabi.ABI
	bound *bind.BoundContract
}

func newContract(kind Kind, addr common.Address, backend bind.ContractBackend) (*Contract, error) {
	parsed := kind.ABI()
	if parsed == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return &Contract{
		Kind:    kind,
		Address: addr,
		abi:     parsed,
		bound:   bind.NewBoundContract(addr, *parsed, backend, backend, backend),
	}, nil
}

// Call runs a view method at the latest block.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, &CallError{Kind: c.Kind, Address: c.Address, Method: method, Err: err}
	}
	return out, nil
}

// CallAddress runs a view method returning a single address.
func (c *Contract) CallAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	out, err := c.Call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 1 {
		if addr, ok := out[0].(common.Address); ok {
			return addr, nil
		}
	}
	return common.Address{}, &CallError{Kind: c.Kind, Address: c.Address, Method: method, Err: fmt.Errorf("unexpected result %v", out)}
}

// Transact signs and sends a state-changing method call.
func (c *Contract) Transact(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, &CallError{Kind: c.Kind, Address: c.Address, Method: method, Err: err}
	}
	return tx, nil
}

// Getter creates handles for the address book of one network.
type Getter struct {
	backend     bind.ContractBackend
	deployments *Deployments
}

func NewGetter(backend bind.ContractBackend, deployments *Deployments) *Getter {
	return &Getter{backend: backend, deployments: deployments}
}

// Get binds kind at addr, or at its address book entry when addr is omitted.
// An explicit zero address is never bound.
func (g *Getter) Get(kind Kind, addr ...common.Address) (*Contract, error) {
	switch {
	case len(addr) > 1:
		return nil, fmt.Errorf("%s: expected at most one address, got %d", kind, len(addr))
	case len(addr) == 1 && addr[0] == (common.Address{}):
		return nil, fmt.Errorf("%w: %s has zero address", ErrNotDeployed, kind)
	case len(addr) == 1:
		return newContract(kind, addr[0], g.backend)
	case kind.IsToken():
		return nil, fmt.Errorf("%s: token handles need an address", kind)
	}
	if g.deployments == nil {
		return nil, fmt.Errorf("%w: %s, no address book loaded", ErrNotDeployed, kind)
	}
	deployment, err := g.deployments.Lookup(kind)
	if err != nil {
		return nil, err
	}
	return newContract(kind, deployment.Address, g.backend)
}

// Token binds an ERC20-compatible kind at addr.
func (g *Getter) Token(kind Kind, addr common.Address) (*Token, error) {
	if !kind.IsToken() {
		return nil, fmt.Errorf("%s is not a token kind", kind)
	}
	c, err := g.Get(kind, addr)
	if err != nil {
		return nil, err
	}
	return &Token{Contract: c}, nil
}
