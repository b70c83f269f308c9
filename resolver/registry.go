package resolver

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Symbol is a case-sensitive token symbol as reported by the data provider.
type Symbol string

const (
	DAI  Symbol = "DAI"
	USDC Symbol = "USDC"
	AAVE Symbol = "AAVE"
	WETH Symbol = "WETH"

	ADAI  Symbol = "aDAI"
	AUSDC Symbol = "aUSDC"
	AWETH Symbol = "aWETH"

	VariableDebtDAI Symbol = "variableDebtDAI"
	StableDebtDAI   Symbol = "stableDebtDAI"
)

var (
	// RequiredReserves must each match exactly one base reserve.
	RequiredReserves = []Symbol{DAI, USDC, AAVE, WETH}
	// RequiredYieldBearing must each match exactly one yield-bearing token.
	RequiredYieldBearing = []Symbol{ADAI, AUSDC, AWETH}
	// RequiredDerived are read from the DAI reserve's instrument addresses.
	RequiredDerived = []Symbol{VariableDebtDAI, StableDebtDAI}
)

var (
	// ErrUnknownSymbol is returned when a symbol has no address.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrAmbiguousSymbol is returned when a symbol matches more than one address.
	ErrAmbiguousSymbol = errors.New("ambiguous symbol")
	// ErrSymbolExists is returned when registering a symbol twice.
	ErrSymbolExists = errors.New("symbol already registered")
)

// SymbolError ties one of the sentinel errors above to the symbol it concerns.
type SymbolError struct {
	Symbol Symbol
	Err    error
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Symbol, e.Err)
}

func (e *SymbolError) Unwrap() error {
	return e.Err
}

// DependencyError is returned when a data-provider call the resolver relies on fails.
type DependencyError struct {
	// Dependency is the contract method that failed (e.g., "getAllATokens").
	Dependency string
	// Input is the value that was passed to the failing dependency.
	Input any
	// Err is the underlying error returned by the dependency.
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("resolver dependency '%s' failed for input '%v': %v", e.Dependency, e.Input, e.Err)
}

// Unwrap allows the error to be inspected with errors.Is and errors.As.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Entry is a copy of one registry row.
type Entry struct {
	Symbol  Symbol         `json:"symbol"`
	Address common.Address `json:"address"`
}

// Registry maps the closed set of fixture symbols to their resolved addresses.
// It is built once by the resolver and read-only afterwards.
type Registry struct {
	symbols   []Symbol
	addresses []common.Address

	index map[Symbol]int
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[Symbol]int),
	}
}

// NewRegistryFromEntries rebuilds a registry from entries, e.g. from a View.
func NewRegistryFromEntries(entries []Entry) (*Registry, error) {
	registry := &Registry{
		symbols:   make([]Symbol, 0, len(entries)),
		addresses: make([]common.Address, 0, len(entries)),
		index:     make(map[Symbol]int, len(entries)),
	}
	for _, entry := range entries {
		if err := registry.add(entry.Symbol, entry.Address); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *Registry) add(symbol Symbol, addr common.Address) error {
	if _, ok := r.index[symbol]; ok {
		return &SymbolError{Symbol: symbol, Err: ErrSymbolExists}
	}
	if addr == (common.Address{}) {
		return &SymbolError{Symbol: symbol, Err: ErrUnknownSymbol}
	}
	r.symbols = append(r.symbols, symbol)
	r.addresses = append(r.addresses, addr)
	r.index[symbol] = len(r.symbols) - 1
	return nil
}

// Lookup returns the address of symbol or a *SymbolError wrapping ErrUnknownSymbol.
func (r *Registry) Lookup(symbol Symbol) (common.Address, error) {
	i, ok := r.index[symbol]
	if !ok {
		return common.Address{}, &SymbolError{Symbol: symbol, Err: ErrUnknownSymbol}
	}
	return r.addresses[i], nil
}

func (r *Registry) Has(symbol Symbol) bool {
	_, ok := r.index[symbol]
	return ok
}

func (r *Registry) Len() int {
	return len(r.symbols)
}

// View returns the entries in registration order.
func (r *Registry) View() []Entry {
	if len(r.symbols) == 0 {
		return nil
	}
	entries := make([]Entry, len(r.symbols))
	for i := range r.symbols {
		entries[i] = Entry{Symbol: r.symbols[i], Address: r.addresses[i]}
	}
	return entries
}
