package testchain

import (
	"encoding/json"
	"math/big"
	"os"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/abi"
)

// DefaultReserves are the reserves of the test market.
var DefaultReserves = []string{"DAI", "USDC", "AAVE", "WETH"}

// Market is a lending market deployed on a Chain: every protocol contract the
// fixture resolves plus an underlying, yield-bearing and two debt tokens per
// reserve.
type Market struct {
	chain *Chain
	next  int64

	AddressesProvider       common.Address
	Registry                common.Address
	LendingPool             common.Address
	Configurator            common.Address
	Oracle                  common.Address
	DataProvider            common.Address
	WETHGateway             common.Address
	SwapAdapter             common.Address
	RepayAdapter            common.Address
	FlashLiquidationAdapter common.Address

	// Tokens maps every deployed token symbol to its address.
	Tokens map[string]common.Address

	provider     *dataProvider
	addresses    *getters
	configurator *configurator
}

// NewMarket deploys a market with the given reserves, DefaultReserves if none.
func NewMarket(c *Chain, reserves ...string) *Market {
	if len(reserves) == 0 {
		reserves = DefaultReserves
	}
	m := &Market{
		chain:  c,
		next:   0x1000,
		Tokens: make(map[string]common.Address),
	}

	m.AddressesProvider = m.address()
	m.Registry = m.address()
	m.LendingPool = m.address()
	m.Configurator = m.address()
	m.Oracle = m.address()
	m.DataProvider = m.address()
	m.WETHGateway = m.address()
	m.SwapAdapter = m.address()
	m.RepayAdapter = m.address()
	m.FlashLiquidationAdapter = m.address()

	m.provider = &dataProvider{
		addressesProvider: m.AddressesProvider,
		instruments:       make(map[common.Address]Instruments),
	}
	pool := &lendingPool{}
	for _, symbol := range reserves {
		underlying := m.address()
		tokenABI := &abi.ERC20ABI
		if symbol == "WETH" {
			tokenABI = &abi.WETHABI
		}
		m.deployToken(tokenABI, underlying, symbol, common.Address{})

		inst := Instruments{AToken: m.address(), StableDebt: m.address(), VariableDebt: m.address()}
		m.deployToken(&abi.ATokenABI, inst.AToken, "a"+symbol, underlying)
		m.deployToken(&abi.DebtTokenABI, inst.StableDebt, "stableDebt"+symbol, underlying)
		m.deployToken(&abi.DebtTokenABI, inst.VariableDebt, "variableDebt"+symbol, underlying)

		m.provider.reserves = append(m.provider.reserves, Token{Symbol: symbol, TokenAddress: underlying})
		m.provider.aTokens = append(m.provider.aTokens, Token{Symbol: "a" + symbol, TokenAddress: inst.AToken})
		m.provider.instruments[underlying] = inst
		pool.reserves = append(pool.reserves, underlying)
	}

	m.addresses = &getters{
		abi: &abi.AddressesProviderABI,
		values: map[string]interface{}{
			"getMarketId":                "Aave test market",
			"getLendingPool":             m.LendingPool,
			"getLendingPoolConfigurator": m.Configurator,
			"getPriceOracle":             m.Oracle,
			"getPoolAdmin":               common.Address{},
			"getEmergencyAdmin":          common.Address{},
		},
	}
	m.configurator = &configurator{}

	c.deploy(m.AddressesProvider, m.addresses)
	c.deploy(m.Registry, &getters{abi: &abi.ProviderRegistryABI, values: map[string]interface{}{
		"getAddressesProvidersList": []common.Address{m.AddressesProvider},
	}})
	c.deploy(m.LendingPool, pool)
	c.deploy(m.Configurator, m.configurator)
	c.deploy(m.Oracle, oracle{})
	c.deploy(m.DataProvider, m.provider)
	c.deploy(m.WETHGateway, &getters{abi: &abi.WETHGatewayABI, values: map[string]interface{}{
		"getWETHAddress": m.Tokens["WETH"],
	}})
	for _, adapter := range []common.Address{m.SwapAdapter, m.RepayAdapter, m.FlashLiquidationAdapter} {
		c.deploy(adapter, &getters{abi: &abi.UniswapAdapterABI, values: map[string]interface{}{
			"ADDRESSES_PROVIDER": m.AddressesProvider,
			"UNISWAP_ROUTER":     common.Address{},
			"WETH_ADDRESS":       m.Tokens["WETH"],
			"ORACLE":             m.Oracle,
		}})
	}
	return m
}

func (m *Market) address() common.Address {
	m.next++
	return common.BigToAddress(big.NewInt(m.next))
}

func (m *Market) deployToken(parsed *gethabi.ABI, addr common.Address, symbol string, underlying common.Address) {
	m.chain.deploy(addr, &token{abi: parsed, addr: addr, symbol: symbol, decimals: 18, underlying: underlying})
	m.Tokens[symbol] = addr
}

// SetAdmins configures who the configurator accepts as pool and emergency admin.
func (m *Market) SetAdmins(poolAdmin, emergencyAdmin common.Address) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.configurator.poolAdmin = poolAdmin
	m.configurator.emergencyAdmin = emergencyAdmin
	m.addresses.values["getPoolAdmin"] = poolAdmin
	m.addresses.values["getEmergencyAdmin"] = emergencyAdmin
}

// ReserveList returns a copy of the getAllReservesTokens list.
func (m *Market) ReserveList() []Token {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return append([]Token{}, m.provider.reserves...)
}

// SetReserveList replaces the getAllReservesTokens list.
func (m *Market) SetReserveList(tokens []Token) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.provider.reserves = append([]Token{}, tokens...)
}

// ATokenList returns a copy of the getAllATokens list.
func (m *Market) ATokenList() []Token {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	return append([]Token{}, m.provider.aTokens...)
}

// SetATokenList replaces the getAllATokens list.
func (m *Market) SetATokenList(tokens []Token) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.provider.aTokens = append([]Token{}, tokens...)
}

// SetInstruments overrides getReserveTokensAddresses for one reserve.
func (m *Market) SetInstruments(reserve common.Address, inst Instruments) {
	m.chain.mu.Lock()
	defer m.chain.mu.Unlock()
	m.provider.instruments[reserve] = inst
}

// DeploymentEntry mirrors one network entry of a deployment address book.
type DeploymentEntry struct {
	Address  string `json:"address"`
	Deployer string `json:"deployer"`
}

// Deployments returns the address book a deployment of this market on
// network would have written.
func (m *Market) Deployments(network string, deployer common.Address) map[string]map[string]DeploymentEntry {
	entry := func(addr common.Address) map[string]DeploymentEntry {
		return map[string]DeploymentEntry{network: {Address: addr.Hex(), Deployer: deployer.Hex()}}
	}
	return map[string]map[string]DeploymentEntry{
		"LendingPoolAddressesProvider":         entry(m.AddressesProvider),
		"LendingPoolAddressesProviderRegistry": entry(m.Registry),
		"LendingPool":                          entry(m.LendingPool),
		"LendingPoolConfigurator":              entry(m.Configurator),
		"PriceOracle":                          entry(m.Oracle),
		"AaveProtocolDataProvider":             entry(m.DataProvider),
		"WETHGateway":                          entry(m.WETHGateway),
		"UniswapLiquiditySwapAdapter":          entry(m.SwapAdapter),
		"UniswapRepayAdapter":                  entry(m.RepayAdapter),
		"FlashLiquidationAdapter":              entry(m.FlashLiquidationAdapter),
	}
}

// WriteDeployments writes Deployments as JSON to path.
func (m *Market) WriteDeployments(path, network string, deployer common.Address) error {
	data, err := json.MarshalIndent(m.Deployments(network, deployer), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
