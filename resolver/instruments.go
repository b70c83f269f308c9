package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
)

// Instruments are the protocol tokens issued against one reserve.
type Instruments struct {
	YieldBearing common.Address
	StableDebt   common.Address
	VariableDebt common.Address
}

// getReserveTokensAddresses returns three static addresses.
const instrumentsResponseLength = 3 * 32

// ResolveInstruments reads the yield-bearing and debt token addresses of
// reserve. Zero addresses are returned as-is; Resolve treats them as missing.
func (r *Resolver) ResolveInstruments(parentCtx context.Context, reserve common.Address) (Instruments, error) {
	if reserve == (common.Address{}) {
		return Instruments{}, &DependencyError{Dependency: methodInstruments, Input: reserve, Err: errors.New("reserve address is zero")}
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.callTimeout)
	defer cancel()

	callData, err := abi.DataProviderABI.Pack(methodInstruments, reserve)
	if err != nil {
		return Instruments{}, fmt.Errorf("failed to pack %s: %w", methodInstruments, err)
	}
	response, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.dataProvider, Data: callData}, nil)
	if err != nil {
		return Instruments{}, &DependencyError{Dependency: methodInstruments, Input: reserve, Err: fmt.Errorf("eth_call failed: %w", err)}
	}
	if len(response) != instrumentsResponseLength {
		return Instruments{}, &DependencyError{
			Dependency: methodInstruments,
			Input:      reserve,
			Err:        fmt.Errorf("invalid response length: got %d, want %d", len(response), instrumentsResponseLength),
		}
	}

	var out struct {
		ATokenAddress            common.Address
		StableDebtTokenAddress   common.Address
		VariableDebtTokenAddress common.Address
	}
	if err := abi.DataProviderABI.UnpackIntoInterface(&out, methodInstruments, response); err != nil {
		return Instruments{}, &DependencyError{Dependency: methodInstruments, Input: reserve, Err: err}
	}
	return Instruments{
		YieldBearing: out.ATokenAddress,
		StableDebt:   out.StableDebtTokenAddress,
		VariableDebt: out.VariableDebtTokenAddress,
	}, nil
}
