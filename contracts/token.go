package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Token is an ERC20 handle.
type Token struct {
	*Contract
}

func (t *Token) callBig(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, &CallError{Kind: t.Kind, Address: t.Address, Method: method, Err: fmt.Errorf("unexpected result %T", out[0])}
	}
	return value, nil
}

func (t *Token) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return t.callBig(ctx, "balanceOf", holder)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(ctx, "allowance", owner, spender)
}

func (t *Token) TotalSupply(ctx context.Context) (*big.Int, error) {
	return t.callBig(ctx, "totalSupply")
}

func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := t.Call(ctx, "symbol")
	if err != nil {
		return "", err
	}
	symbol, _ := out[0].(string)
	return symbol, nil
}

func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, _ := out[0].(uint8)
	return decimals, nil
}

func (t *Token) Transfer(opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(opts, "transfer", to, amount)
}

func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(opts, "approve", spender, amount)
}

func (t *Token) TransferFrom(opts *bind.TransactOpts, from, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.Transact(opts, "transferFrom", from, to, amount)
}

// Mint is only available on the mintable test tokens and mocked WETH.
func (t *Token) Mint(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	if t.Kind != MintableERC20 && t.Kind != WETHMocked {
		return nil, fmt.Errorf("%s does not support mint", t.Kind)
	}
	return t.Transact(opts, "mint", amount)
}
