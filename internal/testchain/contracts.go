package testchain

import (
	"errors"
	"fmt"
	"math/big"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
)

var (
	errNotAdmin  = errors.New("caller is not the required admin")
	errPaused    = errors.New("pool is paused")
	errReadOnly  = errors.New("contract has no state-changing methods")
	errNoPayable = errors.New("method is not payable")
)

type message struct {
	from  common.Address
	to    common.Address
	value *big.Int
	input []byte
}

type contract interface {
	call(st *state, msg message) ([]byte, error)
}

// decode resolves the method selector and unpacks the arguments.
func decode(parsed *gethabi.ABI, input []byte) (*gethabi.Method, []interface{}, error) {
	if len(input) < 4 {
		return nil, nil, errors.New("missing method selector")
	}
	method, err := parsed.MethodById(input[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("invalid arguments for %s: %w", method.Name, err)
	}
	return method, args, nil
}

// token is an ERC20 with the extensions of the mintable test token, WETH and
// the protocol's yield-bearing and debt tokens, selected by its ABI.
type token struct {
	abi        *gethabi.ABI
	addr       common.Address
	symbol     string
	decimals   uint8
	underlying common.Address
}

func (t *token) call(st *state, msg message) ([]byte, error) {
	method, args, err := decode(t.abi, msg.input)
	if err != nil {
		return nil, err
	}
	if msg.value.Sign() > 0 && !method.IsPayable() {
		return nil, errNoPayable
	}
	switch method.Name {
	case "name", "symbol":
		return method.Outputs.Pack(t.symbol)
	case "decimals":
		return method.Outputs.Pack(t.decimals)
	case "totalSupply":
		return method.Outputs.Pack(st.totalSupply(t.addr))
	case "balanceOf", "scaledBalanceOf":
		return method.Outputs.Pack(st.balance(t.addr, args[0].(common.Address)))
	case "allowance", "borrowAllowance":
		return method.Outputs.Pack(st.allowance(t.addr, args[0].(common.Address), args[1].(common.Address)))
	case "approve":
		st.approve(t.addr, msg.from, args[0].(common.Address), args[1].(*big.Int))
		return method.Outputs.Pack(true)
	case "approveDelegation":
		st.approve(t.addr, msg.from, args[0].(common.Address), args[1].(*big.Int))
		return nil, nil
	case "transfer":
		if err := st.transfer(t.addr, msg.from, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "transferFrom":
		owner, recipient, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		if err := st.spendAllowance(t.addr, owner, msg.from, amount); err != nil {
			return nil, err
		}
		if err := st.transfer(t.addr, owner, recipient, amount); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "mint":
		st.mint(t.addr, msg.from, args[0].(*big.Int))
		return method.Outputs.Pack(true)
	case "deposit":
		st.mint(t.addr, msg.from, msg.value)
		return nil, nil
	case "withdraw":
		return nil, st.burn(t.addr, msg.from, args[0].(*big.Int))
	case "UNDERLYING_ASSET_ADDRESS":
		return method.Outputs.Pack(t.underlying)
	case "RESERVE_TREASURY_ADDRESS":
		return method.Outputs.Pack(common.Address{})
	}
	return nil, fmt.Errorf("token: unsupported method %s", method.Name)
}

// Token is one symbol/address descriptor of the data provider lists.
type Token struct {
	Symbol       string
	TokenAddress common.Address
}

// Instruments are the protocol tokens of one reserve.
type Instruments struct {
	AToken       common.Address
	StableDebt   common.Address
	VariableDebt common.Address
}

type dataProvider struct {
	addressesProvider common.Address
	reserves          []Token
	aTokens           []Token
	instruments       map[common.Address]Instruments
}

func (p *dataProvider) call(st *state, msg message) ([]byte, error) {
	method, args, err := decode(&abi.DataProviderABI, msg.input)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "ADDRESSES_PROVIDER":
		return method.Outputs.Pack(p.addressesProvider)
	case "getAllReservesTokens":
		return method.Outputs.Pack(append([]Token{}, p.reserves...))
	case "getAllATokens":
		return method.Outputs.Pack(append([]Token{}, p.aTokens...))
	case "getReserveTokensAddresses":
		inst := p.instruments[args[0].(common.Address)]
		return method.Outputs.Pack(inst.AToken, inst.StableDebt, inst.VariableDebt)
	}
	return nil, fmt.Errorf("data provider: unsupported method %s", method.Name)
}

// getters answers view methods with fixed addresses keyed by method name.
type getters struct {
	abi    *gethabi.ABI
	values map[string]interface{}
}

func (g *getters) call(st *state, msg message) ([]byte, error) {
	method, _, err := decode(g.abi, msg.input)
	if err != nil {
		return nil, err
	}
	if !method.IsConstant() {
		return nil, errReadOnly
	}
	value, ok := g.values[method.Name]
	if !ok {
		return nil, fmt.Errorf("unsupported method %s", method.Name)
	}
	return method.Outputs.Pack(value)
}

type oracle struct{}

func (oracle) call(st *state, msg message) ([]byte, error) {
	method, args, err := decode(&abi.PriceOracleABI, msg.input)
	if err != nil {
		return nil, err
	}
	asset := args[0].(common.Address)
	switch method.Name {
	case "getAssetPrice":
		price, ok := st.prices[asset]
		if !ok {
			price = new(big.Int)
		}
		return method.Outputs.Pack(price)
	case "setAssetPrice":
		st.prices[asset] = new(big.Int).Set(args[1].(*big.Int))
		return nil, nil
	}
	return nil, fmt.Errorf("oracle: unsupported method %s", method.Name)
}

type lendingPool struct {
	reserves []common.Address
}

func (p *lendingPool) call(st *state, msg message) ([]byte, error) {
	method, args, err := decode(&abi.LendingPoolABI, msg.input)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "getReservesList":
		return method.Outputs.Pack(append([]common.Address{}, p.reserves...))
	case "paused":
		return method.Outputs.Pack(st.paused)
	case "getUserAccountData":
		zero := new(big.Int)
		return method.Outputs.Pack(zero, zero, zero, zero, zero, zero)
	case "deposit":
		if st.paused {
			return nil, errPaused
		}
		asset, amount := args[0].(common.Address), args[1].(*big.Int)
		return nil, st.transfer(asset, msg.from, msg.to, amount)
	}
	return nil, fmt.Errorf("lending pool: unsupported method %s", method.Name)
}

// configurator enforces the role checks of the pool configurator.
type configurator struct {
	poolAdmin      common.Address
	emergencyAdmin common.Address
}

func (c *configurator) call(st *state, msg message) ([]byte, error) {
	method, args, err := decode(&abi.PoolConfiguratorABI, msg.input)
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "setPoolPause":
		if msg.from != c.emergencyAdmin {
			return nil, errNotAdmin
		}
		st.paused = args[0].(bool)
		return nil, nil
	case "freezeReserve", "unfreezeReserve":
		if msg.from != c.poolAdmin {
			return nil, errNotAdmin
		}
		st.frozen[args[0].(common.Address)] = method.Name == "freezeReserve"
		return nil, nil
	}
	return nil, fmt.Errorf("configurator: unsupported method %s", method.Name)
}

func erc20BalanceOf(holder common.Address) ([]byte, error) {
	return abi.ERC20ABI.Pack("balanceOf", holder)
}
