// Package abi holds the parsed contract interfaces of the deployed lending
// protocol that the fixture layer talks to. Only the methods the fixture
// (and the suites built on it) actually call are declared.
package abi

import (
	"fmt"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	DataProviderABI      = mustParse("AaveProtocolDataProvider", dataProviderJSON)
	ERC20ABI             = mustParse("MintableERC20", erc20JSON)
	WETHABI              = mustParse("WETH9Mocked", wethJSON)
	ATokenABI            = mustParse("AToken", aTokenJSON)
	DebtTokenABI         = mustParse("DebtToken", debtTokenJSON)
	LendingPoolABI       = mustParse("LendingPool", lendingPoolJSON)
	PoolConfiguratorABI  = mustParse("PoolConfigurator", poolConfiguratorJSON)
	AddressesProviderABI = mustParse("PoolAddressesProvider", addressesProviderJSON)
	ProviderRegistryABI  = mustParse("PoolAddressesProviderRegistry", providerRegistryJSON)
	PriceOracleABI       = mustParse("PriceOracle", priceOracleJSON)
	WETHGatewayABI       = mustParse("WETHGateway", wethGatewayJSON)
	UniswapAdapterABI    = mustParse("BaseUniswapAdapter", uniswapAdapterJSON)
)

func mustParse(name, definition string) gethabi.ABI {
	parsed, err := gethabi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("abi: failed to parse %s: %v", name, err))
	}
	return parsed
}
