package testchain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// CallArgs is the transaction object of eth_call and eth_estimateGas.
type CallArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (args CallArgs) message() ethereum.CallMsg {
	msg := ethereum.CallMsg{To: args.To}
	if args.From != nil {
		msg.From = *args.From
	}
	if args.Value != nil {
		msg.Value = args.Value.ToInt()
	}
	switch {
	case args.Input != nil:
		msg.Data = *args.Input
	case args.Data != nil:
		msg.Data = *args.Data
	}
	return msg
}

type ethAPI struct {
	chain *Chain
}

func (api *ethAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(api.chain.ChainID())
}

func (api *ethAPI) BlockNumber() hexutil.Uint64 {
	api.chain.mu.Lock()
	defer api.chain.mu.Unlock()
	return hexutil.Uint64(api.chain.block)
}

func (api *ethAPI) GetBlockByNumber(ctx context.Context, number string, fullTx bool) (*types.Header, error) {
	return api.chain.HeaderByNumber(ctx, nil)
}

func (api *ethAPI) Call(ctx context.Context, args CallArgs, blockNrOrHash *string) (hexutil.Bytes, error) {
	return api.chain.CallContract(ctx, args.message(), nil)
}

func (api *ethAPI) EstimateGas(ctx context.Context, args CallArgs, blockNrOrHash *string) (hexutil.Uint64, error) {
	gas, err := api.chain.EstimateGas(ctx, args.message())
	return hexutil.Uint64(gas), err
}

func (api *ethAPI) GetCode(ctx context.Context, addr common.Address, blockNrOrHash *string) (hexutil.Bytes, error) {
	return api.chain.CodeAt(ctx, addr, nil)
}

func (api *ethAPI) GetTransactionCount(ctx context.Context, addr common.Address, blockNrOrHash *string) (hexutil.Uint64, error) {
	nonce, err := api.chain.PendingNonceAt(ctx, addr)
	return hexutil.Uint64(nonce), err
}

func (api *ethAPI) GasPrice(ctx context.Context) (*hexutil.Big, error) {
	price, err := api.chain.SuggestGasPrice(ctx)
	return (*hexutil.Big)(price), err
}

func (api *ethAPI) MaxPriorityFeePerGas(ctx context.Context) (*hexutil.Big, error) {
	tip, err := api.chain.SuggestGasTipCap(ctx)
	return (*hexutil.Big)(tip), err
}

func (api *ethAPI) SendRawTransaction(ctx context.Context, input hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, err
	}
	if err := api.chain.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

// evmAPI is the development-node snapshot namespace.
type evmAPI struct {
	chain *Chain
}

func (api *evmAPI) Snapshot() (string, error) {
	return api.chain.Snapshot()
}

func (api *evmAPI) Revert(id string) (bool, error) {
	return api.chain.Revert(id)
}

func (api *evmAPI) Mine() (string, error) {
	api.chain.mu.Lock()
	defer api.chain.mu.Unlock()
	api.chain.block++
	return "0x0", nil
}

// Server returns a JSON-RPC server for the chain. It also serves HTTP.
func (c *Chain) Server() *rpc.Server {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethAPI{chain: c}); err != nil {
		panic(err)
	}
	if err := srv.RegisterName("evm", &evmAPI{chain: c}); err != nil {
		panic(err)
	}
	return srv
}

// DialInProc returns a client attached to a fresh in-process server.
func (c *Chain) DialInProc() *rpc.Client {
	return rpc.DialInProc(c.Server())
}

// Balance is a helper for callers that only hold a raw RPC client.
func Balance(ctx context.Context, caller ethereum.ContractCaller, token, holder common.Address) (*big.Int, error) {
	input, err := erc20BalanceOf(holder)
	if err != nil {
		return nil, err
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) != 32 {
		return nil, errors.New("unexpected balanceOf response length")
	}
	return new(big.Int).SetBytes(out), nil
}
