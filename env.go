// Package testenv builds the shared fixture for integration tests against a
// deployed lending protocol: signing identities in fixed roles, handles for
// every protocol contract and reserve token, and a snapshot bracket around
// each test suite.
package testenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/contracts"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/identity"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/network"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/resolver"
)

// Logger defines a standard interface for structured, leveled logging,
// compatible with the standard library's slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// IdentitySource enumerates the signing identities of the run in order.
type IdentitySource interface {
	Enumerate(ctx context.Context) ([]identity.Identity, error)
}

type ErrorHandlerFunc func(err error)

// Config holds the dependencies Initialize builds the fixture from.
type Config struct {
	RunName       string
	PrometheusReg prometheus.Registerer
	Selection     network.Selection
	Identities    IdentitySource
	Backend       bind.ContractBackend
	Deployments   *contracts.Deployments
	// CallTimeout bounds each data provider eth_call; zero keeps the resolver default.
	CallTimeout  time.Duration
	ErrorHandler ErrorHandlerFunc
	Logger       Logger
}

// validate checks that all essential fields in the Config are provided.
func (c *Config) validate() error {
	if c.RunName == "" {
		return errors.New("run name is required")
	}
	if c.Selection.Mode == 0 {
		return errors.New("network selection is required")
	}
	if c.Identities == nil {
		return errors.New("identity source is required")
	}
	if c.Backend == nil {
		return errors.New("contract backend is required")
	}
	if c.Deployments == nil {
		return errors.New("deployment address book is required")
	}
	if c.CallTimeout < 0 {
		return errors.New("call timeout cannot be negative")
	}
	return nil
}

// Env is the fixture context shared by every suite of a run. Initialize
// returns it fully populated or not at all.
type Env struct {
	identity.Roles

	// Identities is the full enumerated sequence the roles were assigned from.
	Identities []identity.Identity
	Selection  network.Selection
	Backend    bind.ContractBackend
	Symbols    *resolver.Registry

	Pool                        *contracts.Contract
	Configurator                *contracts.Contract
	Oracle                      *contracts.Contract
	DataProvider                *contracts.Contract
	AddressesProvider           *contracts.Contract
	Registry                    *contracts.Contract
	WETHGateway                 *contracts.Contract
	UniswapLiquiditySwapAdapter *contracts.Contract
	UniswapRepayAdapter         *contracts.Contract
	FlashLiquidationAdapter     *contracts.Contract

	WETH            *contracts.Token
	DAI             *contracts.Token
	USDC            *contracts.Token
	AAVE            *contracts.Token
	ADAI            *contracts.Token
	AUSDC           *contracts.Token
	AWETH           *contracts.Token
	VariableDebtDAI *contracts.Token
	StableDebtDAI   *contracts.Token

	metrics      *Metrics
	logger       Logger
	errorHandler ErrorHandlerFunc
}

// Initialize enumerates identities, assigns roles, binds every protocol
// contract and resolves the required token symbols. Any failure is an
// *InitializationError naming the stage; the process is never exited here.
func Initialize(ctx context.Context, cfg *Config) (*Env, error) {
	if cfg == nil {
		return nil, errors.New("invalid fixture configuration: config is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture configuration: %w", err)
	}

	var logger Logger = log.Root()
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	metrics := NewMetrics(cfg.PrometheusReg, cfg.RunName)

	env := &Env{
		Selection: cfg.Selection,
		Backend:   cfg.Backend,
		metrics:   metrics,
		logger:    logger,
	}
	env.errorHandler = func(err error) {
		errorType := determineErrorType(err)
		logger.Error("fixture error", "run", cfg.RunName, "type", errorType, "error", err)
		metrics.ErrorsTotal.WithLabelValues(errorType).Inc()
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(err)
		}
	}

	start := time.Now()
	fail := func(stage Stage, err error) (*Env, error) {
		initErr := &InitializationError{Stage: stage, Err: err}
		env.errorHandler(initErr)
		return nil, initErr
	}

	logger.Info("initializing fixture", "mode", cfg.Selection.Mode, "network", cfg.Selection.Network)

	ids, err := cfg.Identities.Enumerate(ctx)
	if err != nil {
		return fail(StageIdentities, err)
	}
	metrics.Identities.WithLabelValues().Set(float64(len(ids)))

	roles, err := identity.AssignRoles(ids)
	if err != nil {
		return fail(StageRoles, err)
	}
	env.Roles = roles
	env.Identities = ids
	logger.Debug("roles assigned",
		"deployer", roles.Deployer.Address,
		"emergencyAdmin", roles.EmergencyAdmin.Address,
		"riskAdmin", roles.RiskAdmin.Address,
		"users", len(roles.Users),
	)

	getter := contracts.NewGetter(cfg.Backend, cfg.Deployments)
	if err := env.bindContracts(ctx, getter); err != nil {
		return fail(StageContracts, err)
	}

	var opts []resolver.Option
	if cfg.CallTimeout > 0 {
		opts = append(opts, resolver.WithCallTimeout(cfg.CallTimeout))
	}
	res := resolver.New(cfg.Backend, cfg.Selection, env.DataProvider.Address, opts...)
	symbols, err := res.Resolve(ctx)
	if err != nil {
		return fail(StageResolve, err)
	}
	if err := env.bindTokens(getter, symbols); err != nil {
		return fail(StageResolve, err)
	}
	env.Symbols = symbols
	metrics.ResolvedSymbols.WithLabelValues().Set(float64(symbols.Len()))

	elapsed := time.Since(start)
	metrics.InitializationDur.WithLabelValues().Observe(elapsed.Seconds())
	logger.Info("fixture initialized", "symbols", symbols.Len(), "identities", len(ids), "elapsed", elapsed)
	return env, nil
}

// osExit is replaced in tests.
var osExit = os.Exit

// MustInitialize is Initialize for TestMain: a failed fixture aborts the
// whole run with exit status 1.
func MustInitialize(ctx context.Context, cfg *Config) *Env {
	env, err := Initialize(ctx, cfg)
	if err != nil {
		var logger Logger = log.Root()
		if cfg != nil && cfg.Logger != nil {
			logger = cfg.Logger
		}
		logger.Error("aborting test run", "error", err)
		osExit(1)
		return nil
	}
	return env
}

// bindContracts resolves every protocol contract handle. All failures are
// reported together.
func (e *Env) bindContracts(ctx context.Context, getter *contracts.Getter) error {
	var merr *multierror.Error
	get := func(dst **contracts.Contract, kind contracts.Kind, addr ...common.Address) {
		c, err := getter.Get(kind, addr...)
		if err != nil {
			merr = multierror.Append(merr, err)
			return
		}
		*dst = c
	}

	get(&e.Pool, contracts.LendingPool)
	get(&e.Configurator, contracts.PoolConfigurator)
	get(&e.AddressesProvider, contracts.AddressesProvider)
	get(&e.WETHGateway, contracts.WETHGateway)
	get(&e.UniswapLiquiditySwapAdapter, contracts.UniswapLiquiditySwapAdapter)
	get(&e.UniswapRepayAdapter, contracts.UniswapRepayAdapter)
	get(&e.FlashLiquidationAdapter, contracts.FlashLiquidationAdapter)

	if e.Selection.Mode != network.Fork {
		get(&e.DataProvider, contracts.ProtocolDataProvider)
		get(&e.Registry, contracts.ProviderRegistry)
		get(&e.Oracle, contracts.PriceOracle)
		return merr.ErrorOrNil()
	}

	// A fork reuses the live network's registry and data provider, and asks
	// the addresses provider for its oracle. A missing override keeps the
	// address book entry.
	params := e.Selection.Params
	getOverride := func(dst **contracts.Contract, kind contracts.Kind, addr common.Address) {
		if addr == (common.Address{}) {
			get(dst, kind)
			return
		}
		get(dst, kind, addr)
	}
	getOverride(&e.DataProvider, contracts.ProtocolDataProvider, params.ProtocolDataProvider)
	getOverride(&e.Registry, contracts.ProviderRegistry, params.ProviderRegistry)
	if e.AddressesProvider != nil {
		oracle, err := e.AddressesProvider.CallAddress(ctx, "getPriceOracle")
		switch {
		case err != nil:
			merr = multierror.Append(merr, err)
		case oracle == (common.Address{}):
			merr = multierror.Append(merr, fmt.Errorf("%w: %s from addresses provider", contracts.ErrNotDeployed, contracts.PriceOracle))
		default:
			get(&e.Oracle, contracts.PriceOracle, oracle)
		}
	}
	return merr.ErrorOrNil()
}

// bindTokens binds the token handles to their resolved addresses.
func (e *Env) bindTokens(getter *contracts.Getter, symbols *resolver.Registry) error {
	tokens := []struct {
		dst    **contracts.Token
		kind   contracts.Kind
		symbol resolver.Symbol
	}{
		{&e.WETH, contracts.WETHMocked, resolver.WETH},
		{&e.DAI, contracts.MintableERC20, resolver.DAI},
		{&e.USDC, contracts.MintableERC20, resolver.USDC},
		{&e.AAVE, contracts.MintableERC20, resolver.AAVE},
		{&e.ADAI, contracts.AToken, resolver.ADAI},
		{&e.AUSDC, contracts.AToken, resolver.AUSDC},
		{&e.AWETH, contracts.AToken, resolver.AWETH},
		{&e.VariableDebtDAI, contracts.VariableDebtToken, resolver.VariableDebtDAI},
		{&e.StableDebtDAI, contracts.StableDebtToken, resolver.StableDebtDAI},
	}

	var merr *multierror.Error
	for _, tok := range tokens {
		addr, err := symbols.Lookup(tok.symbol)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		handle, err := getter.Token(tok.kind, addr)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		*tok.dst = handle
	}
	return merr.ErrorOrNil()
}
