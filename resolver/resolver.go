// Package resolver maps the symbolic names the fixture needs to on-chain
// addresses by querying the protocol data-provider contract.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/network"
)

const (
	// defaultRPCTimeout bounds a single eth_call made by the resolver.
	defaultRPCTimeout = 10 * time.Second

	methodAllReserves  = "getAllReservesTokens"
	methodAllATokens   = "getAllATokens"
	methodInstruments  = "getReserveTokensAddresses"
	emptyResponseError = "empty response, is the data provider deployed at this address?"
)

// TokenData is one descriptor returned by the data provider lists.
type TokenData struct {
	Symbol       string
	TokenAddress common.Address
}

// ResolutionError lists every required symbol that could not be resolved to
// exactly one address.
type ResolutionError struct {
	DataProvider common.Address
	Symbols      []Symbol
	Err          error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %d required symbols via data provider %s: %v", len(e.Symbols), e.DataProvider.Hex(), e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCallTimeout overrides the per eth_call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.callTimeout = d
	}
}

// Resolver queries one data-provider contract. Calls are made one at a time.
type Resolver struct {
	caller       ethereum.ContractCaller
	dataProvider common.Address
	selection    network.Selection
	callTimeout  time.Duration
}

// New returns a resolver for the data provider at dataProvider. In fork mode a
// data provider listed in the network parameters takes precedence.
func New(caller ethereum.ContractCaller, selection network.Selection, dataProvider common.Address, opts ...Option) *Resolver {
	if selection.Mode == network.Fork && selection.Params.ProtocolDataProvider != (common.Address{}) {
		dataProvider = selection.Params.ProtocolDataProvider
	}
	r := &Resolver{
		caller:       caller,
		dataProvider: dataProvider,
		selection:    selection,
		callTimeout:  defaultRPCTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DataProvider is the address the resolver queries.
func (r *Resolver) DataProvider() common.Address {
	return r.dataProvider
}

// ResolveReserves maps every base reserve symbol to its address.
func (r *Resolver) ResolveReserves(ctx context.Context) (map[Symbol]common.Address, error) {
	tokens, err := r.tokenList(ctx, methodAllReserves)
	if err != nil {
		return nil, err
	}
	return r.toMap(tokens)
}

// ResolveYieldBearing maps every yield-bearing token symbol to its address.
func (r *Resolver) ResolveYieldBearing(ctx context.Context) (map[Symbol]common.Address, error) {
	tokens, err := r.tokenList(ctx, methodAllATokens)
	if err != nil {
		return nil, err
	}
	return r.toMap(tokens)
}

// Resolve builds the registry of every required symbol. All missing or
// ambiguous symbols are reported together in a *ResolutionError; the registry
// is only returned when it is complete.
func (r *Resolver) Resolve(ctx context.Context) (*Registry, error) {
	yieldBearing, err := r.tokenList(ctx, methodAllATokens)
	if err != nil {
		return nil, err
	}
	reserves, err := r.tokenList(ctx, methodAllReserves)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	var merr *multierror.Error
	var failed []Symbol
	record := func(symbol Symbol, addr common.Address, err error) {
		if err == nil {
			err = registry.add(symbol, addr)
		}
		if err != nil {
			merr = multierror.Append(merr, err)
			failed = append(failed, symbol)
		}
	}

	for _, symbol := range RequiredReserves {
		addr, err := scan(reserves, symbol)
		record(symbol, addr, err)
	}
	for _, symbol := range RequiredYieldBearing {
		addr, err := scan(yieldBearing, symbol)
		record(symbol, addr, err)
	}

	if dai, err := registry.Lookup(DAI); err == nil {
		instruments, err := r.ResolveInstruments(ctx, dai)
		if err != nil {
			return nil, err
		}
		record(VariableDebtDAI, instruments.VariableDebt, nil)
		record(StableDebtDAI, instruments.StableDebt, nil)
	} else {
		for _, symbol := range RequiredDerived {
			record(symbol, common.Address{}, &SymbolError{Symbol: symbol, Err: fmt.Errorf("%w: reserve %s is not resolved", ErrUnknownSymbol, DAI)})
		}
	}

	if merr != nil {
		merr.ErrorFormat = listFormat
		return nil, &ResolutionError{DataProvider: r.dataProvider, Symbols: failed, Err: merr}
	}
	return registry, nil
}

// scan is a linear search for an exact, case-sensitive symbol match.
// Repeated descriptors with the same address count once.
func scan(tokens []TokenData, symbol Symbol) (common.Address, error) {
	var found common.Address
	matches := 0
	for _, token := range tokens {
		if token.Symbol != string(symbol) {
			continue
		}
		if matches > 0 && token.TokenAddress == found {
			continue
		}
		found = token.TokenAddress
		matches++
	}
	switch {
	case matches == 0 || found == (common.Address{}):
		return common.Address{}, &SymbolError{Symbol: symbol, Err: ErrUnknownSymbol}
	case matches > 1:
		return common.Address{}, &SymbolError{Symbol: symbol, Err: ErrAmbiguousSymbol}
	}
	return found, nil
}

func (r *Resolver) toMap(tokens []TokenData) (map[Symbol]common.Address, error) {
	out := make(map[Symbol]common.Address, len(tokens))
	var merr *multierror.Error
	for _, token := range tokens {
		symbol := Symbol(token.Symbol)
		if _, seen := out[symbol]; seen {
			continue
		}
		addr, err := scan(tokens, symbol)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		out[symbol] = addr
	}
	if merr != nil {
		merr.ErrorFormat = listFormat
		return nil, merr
	}
	return out, nil
}

// tokenList fetches one of the symbol+address lists of the data provider.
func (r *Resolver) tokenList(parentCtx context.Context, method string) ([]TokenData, error) {
	ctx, cancel := context.WithTimeout(parentCtx, r.callTimeout)
	defer cancel()

	callData, err := abi.DataProviderABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	response, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.dataProvider, Data: callData}, nil)
	if err != nil {
		return nil, &DependencyError{Dependency: method, Input: r.dataProvider, Err: fmt.Errorf("eth_call for %s failed: %w", method, err)}
	}
	if len(response) == 0 {
		return nil, &DependencyError{Dependency: method, Input: r.dataProvider, Err: errors.New(emptyResponseError)}
	}

	var tokens []TokenData
	if err := abi.DataProviderABI.UnpackIntoInterface(&tokens, method, response); err != nil {
		return nil, &DependencyError{Dependency: method, Input: r.dataProvider, Err: fmt.Errorf("invalid response for %s: %w", method, err)}
	}
	return tokens, nil
}

func listFormat(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}
