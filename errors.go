package testenv

import (
	"errors"
	"fmt"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/contracts"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/identity"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/resolver"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/snapshot"
)

// Stage names the initialization step that failed.
type Stage string

const (
	StageIdentities Stage = "identities"
	StageRoles      Stage = "roles"
	StageContracts  Stage = "contracts"
	StageResolve    Stage = "resolve"
)

// InitializationError is returned by Initialize. No Env exists when it is returned.
type InitializationError struct {
	Stage Stage
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("fixture initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// SuiteError is a failed snapshot bracket around one suite.
type SuiteError struct {
	Suite string
	Phase string // "setup" or "teardown"
	Err   error
}

func (e *SuiteError) Error() string {
	return fmt.Sprintf("suite %q %s: %v", e.Suite, e.Phase, e.Err)
}

func (e *SuiteError) Unwrap() error {
	return e.Err
}

// BaselineLostError is returned for every suite started after a restore
// failed, since the chain is no longer at the state later suites assume.
type BaselineLostError struct {
	// Suite is the suite whose teardown failed.
	Suite string
	Err   error
}

func (e *BaselineLostError) Error() string {
	return fmt.Sprintf("baseline lost after suite %q failed to restore: %v", e.Suite, e.Err)
}

func (e *BaselineLostError) Unwrap() error {
	return e.Err
}

// determineErrorType labels errors for the errors_total metric.
func determineErrorType(err error) string {
	var (
		initErr     *InitializationError
		baselineErr *BaselineLostError
		suiteErr    *SuiteError
		resErr      *resolver.ResolutionError
		depErr      *resolver.DependencyError
		callErr     *contracts.CallError
		opErr       *snapshot.OperationError
		rolesErr    *identity.InsufficientIdentitiesError
	)
	switch {
	case errors.As(err, &baselineErr):
		return "baseline_lost"
	case errors.As(err, &resErr):
		return "resolution"
	case errors.As(err, &depErr):
		return "data_provider"
	case errors.As(err, &rolesErr), errors.Is(err, identity.ErrNoIdentities):
		return "identities"
	case errors.As(err, &callErr), errors.Is(err, contracts.ErrNotDeployed):
		return "contracts"
	case errors.As(err, &opErr):
		return "snapshot"
	case errors.As(err, &suiteErr):
		return "suite"
	case errors.As(err, &initErr):
		return "initialization"
	default:
		return "unknown"
	}
}
