// Package network decides, once per process, which execution backend the
// fixture runs against and carries the mode-specific parameters.
package network

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/config"
)

// Mode is the execution backend of a run.
type Mode uint8

const (
	// Local is a simulated chain with evm_snapshot/evm_revert.
	Local Mode = iota + 1
	// Fork is a simulated chain seeded from a live network.
	Fork
	// Remote is a managed chain exposing head pointers.
	Remote
)

// RemoteNetworkName is the network name that selects remote mode on its own.
const RemoteNetworkName = "tenderly"

var (
	ErrConflictingModes = errors.New("fork and remote modes are mutually exclusive")
	ErrUnknownNetwork   = errors.New("no parameters for forked network")
)

func (m Mode) String() string {
	switch m {
	case Local:
		return "local"
	case Fork:
		return "fork"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// UsesEVMSnapshots reports whether the mode snapshots through the simulated
// chain's native primitives.
func (m Mode) UsesEVMSnapshots() bool {
	return m == Local || m == Fork
}

// Params holds the deployment addresses of a live network that the fork mode
// consults instead of the local address book.
type Params struct {
	ProviderRegistry     common.Address
	ProtocolDataProvider common.Address
}

// DefaultParams is the per-network table of the live deployments.
var DefaultParams = map[string]Params{
	"main": {
		ProviderRegistry:     common.HexToAddress("0x52D306e36E3B6B02c153d0266ff0f85d18BCD413"),
		ProtocolDataProvider: common.HexToAddress("0x057835Ad21a177dbdd3090bB1CAE03EaCF78Fc6d"),
	},
	"kovan": {
		ProviderRegistry:     common.HexToAddress("0x1E40B561EC587036f9789aF83236f057D1ed2A90"),
		ProtocolDataProvider: common.HexToAddress("0x3c73A5E5785cAC854D468F727c606C07488a29D6"),
	},
}

// Selection is the immutable result of Select. It is passed by value to every
// component that behaves differently per mode.
type Selection struct {
	Mode    Mode
	Network string
	Params  Params
}

// Select decides the mode from the settings. table may be nil, in which case
// DefaultParams is used.
func Select(settings *config.Settings, table map[string]Params) (Selection, error) {
	if table == nil {
		table = DefaultParams
	}
	remote := settings.Remote.Enabled || settings.Network == RemoteNetworkName

	switch {
	case settings.Fork != "" && remote:
		return Selection{}, ErrConflictingModes
	case settings.Fork != "":
		params, ok := table[settings.Fork]
		if !ok {
			return Selection{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, settings.Fork)
		}
		if params.ProviderRegistry == (common.Address{}) {
			return Selection{}, fmt.Errorf("network %s has no provider registry address", settings.Fork)
		}
		return Selection{Mode: Fork, Network: settings.Fork, Params: params}, nil
	case remote:
		return Selection{Mode: Remote, Network: RemoteNetworkName}, nil
	default:
		return Selection{Mode: Local, Network: settings.Network}, nil
	}
}

// LoadParams reads a per-network parameter table from a json file of the form
// {"main": {"provider-registry": "0x..", "protocol-data-provider": "0x.."}}
// and merges it over DefaultParams.
func LoadParams(path string) (map[string]Params, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return nil, fmt.Errorf("error loading network parameters %s: %w", path, err)
	}
	raw := make(map[string]map[string]string)
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("error decoding network parameters %s: %w", path, err)
	}

	table := make(map[string]Params, len(DefaultParams)+len(raw))
	for name, params := range DefaultParams {
		table[name] = params
	}
	for name, fields := range raw {
		params := table[name]
		for field, value := range fields {
			if !common.IsHexAddress(value) {
				return nil, fmt.Errorf("network %s: %s is not an address: %q", name, field, value)
			}
			switch field {
			case "provider-registry":
				params.ProviderRegistry = common.HexToAddress(value)
			case "protocol-data-provider":
				params.ProtocolDataProvider = common.HexToAddress(value)
			default:
				return nil, fmt.Errorf("network %s: unknown parameter %s", name, field)
			}
		}
		table[name] = params
	}
	return table, nil
}
