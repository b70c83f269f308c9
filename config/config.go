// Package config loads the fixture settings from command-line flags, the
// environment and an optional JSON file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
)

const DefaultEnvPrefix = "FIXTURE"

type ConfConfig struct {
	File      []string `koanf:"file"`
	EnvPrefix string   `koanf:"env-prefix"`
}

var ConfConfigDefault = ConfConfig{
	File:      nil,
	EnvPrefix: DefaultEnvPrefix,
}

func ConfConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.StringSlice(prefix+".file", ConfConfigDefault.File, "name of configuration file")
	f.String(prefix+".env-prefix", ConfConfigDefault.EnvPrefix, "environment variables with given prefix will be loaded as configuration values")
}

type RPCConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

var RPCConfigDefault = RPCConfig{
	URL:     "http://127.0.0.1:8545",
	Timeout: 0,
}

func RPCConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".url", RPCConfigDefault.URL, "url of the chain node the deployed protocol lives on")
	f.Duration(prefix+".timeout", RPCConfigDefault.Timeout, "timeout for dialing the node (0-disabled)")
}

// WalletConfig lists where signing identities come from. Private keys are
// enumerated first, in the given order, followed by keystore accounts.
type WalletConfig struct {
	PrivateKeys []string `koanf:"private-keys"`
	Pathname    string   `koanf:"pathname"`
	Password    string   `koanf:"password"`
}

var WalletConfigDefault = WalletConfig{
	PrivateKeys: nil,
	Pathname:    "",
	Password:    "",
}

func WalletConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.StringSlice(prefix+".private-keys", WalletConfigDefault.PrivateKeys, "hex encoded private keys of the test accounts, in role order")
	f.String(prefix+".pathname", WalletConfigDefault.Pathname, "keystore directory holding additional test accounts")
	f.String(prefix+".password", WalletConfigDefault.Password, "keystore passphrase")
}

// RemoteConfig configures the managed (Tenderly) network used in remote mode.
type RemoteConfig struct {
	Enabled   bool   `koanf:"enabled"`
	RPCURL    string `koanf:"rpc-url"`
	APIURL    string `koanf:"api-url"`
	AccessKey string `koanf:"access-key"`
	Account   string `koanf:"account"`
	Project   string `koanf:"project"`
	ForkID    string `koanf:"fork-id"`
}

var RemoteConfigDefault = RemoteConfig{
	Enabled: false,
	APIURL:  "https://api.tenderly.co/api/v1",
}

func RemoteConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enabled", RemoteConfigDefault.Enabled, "run against a managed remote network (head pointer snapshots)")
	f.String(prefix+".rpc-url", RemoteConfigDefault.RPCURL, "rpc url of the managed fork")
	f.String(prefix+".api-url", RemoteConfigDefault.APIURL, "base url of the managed network api")
	f.String(prefix+".access-key", RemoteConfigDefault.AccessKey, "access key for the managed network api")
	f.String(prefix+".account", RemoteConfigDefault.Account, "managed network account")
	f.String(prefix+".project", RemoteConfigDefault.Project, "managed network project")
	f.String(prefix+".fork-id", RemoteConfigDefault.ForkID, "managed network fork id")
}

// Settings is the complete process-level configuration. It is read once,
// before any other component is built.
type Settings struct {
	Conf        ConfConfig   `koanf:"conf"`
	Network     string       `koanf:"network"`
	Fork        string       `koanf:"fork"`
	Deployments string       `koanf:"deployments"`
	Networks    string       `koanf:"networks"`
	RPC         RPCConfig    `koanf:"rpc"`
	Wallet      WalletConfig `koanf:"wallet"`
	Remote      RemoteConfig `koanf:"remote"`
}

var SettingsDefault = Settings{
	Conf:        ConfConfigDefault,
	Network:     "hardhat",
	Fork:        "",
	Deployments: "deployed-contracts.json",
	Networks:    "",
	RPC:         RPCConfigDefault,
	Wallet:      WalletConfigDefault,
	Remote:      RemoteConfigDefault,
}

func SettingsAddOptions(f *flag.FlagSet) {
	ConfConfigAddOptions("conf", f)
	f.String("network", SettingsDefault.Network, "name of the network the protocol was deployed to")
	f.String("fork", SettingsDefault.Fork, "name of the live network being forked (enables fork mode)")
	f.String("deployments", SettingsDefault.Deployments, "path to the deployed contracts address book")
	f.String("networks", SettingsDefault.Networks, "path to a json file overriding per-network parameters")
	RPCConfigAddOptions("rpc", f)
	WalletConfigAddOptions("wallet", f)
	RemoteConfigAddOptions("remote", f)
}

func (s *Settings) Validate() error {
	if s.Network == "" && s.Fork == "" {
		return errors.New("either network or fork must be set")
	}
	if s.Remote.Enabled {
		if s.Remote.RPCURL == "" {
			return errors.New("remote mode requires remote.rpc-url")
		}
		if s.Remote.ForkID == "" {
			return errors.New("remote mode requires remote.fork-id")
		}
	} else if s.RPC.URL == "" {
		return errors.New("rpc.url is required")
	}
	if len(s.Wallet.PrivateKeys) == 0 && s.Wallet.Pathname == "" {
		return errors.New("no identity source configured: set wallet.private-keys or wallet.pathname")
	}
	return nil
}

// Parse builds Settings from args, the environment and any configuration
// files named by --conf.file. Explicitly set flags win over the environment,
// which wins over files, which win over defaults.
func Parse(args []string) (*Settings, error) {
	f := flag.NewFlagSet("fixture", flag.ContinueOnError)
	SettingsAddOptions(f)
	if err := f.Parse(args); err != nil {
		return nil, err
	}
	if f.NArg() != 0 {
		return nil, fmt.Errorf("unexpected parameter: %s", f.Arg(0))
	}

	k := koanf.New(".")
	files, err := f.GetStringSlice("conf.file")
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	envPrefix, err := f.GetString("conf.env-prefix")
	if err != nil {
		return nil, err
	}
	if err := loadEnvConfig(k, envPrefix); err != nil {
		return nil, err
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading command line flags: %w", err)
	}

	var settings Settings
	if err := unmarshal(k, &settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture settings: %w", err)
	}
	return &settings, nil
}

// loadEnvConfig maps PREFIX_REMOTE_FORK__ID to remote.fork-id.
func loadEnvConfig(k *koanf.Koanf, prefix string) error {
	if prefix == "" {
		return nil
	}
	lowerPrefix := strings.ToLower(prefix) + "_"
	return k.Load(env.ProviderWithValue(prefix+"_", ".", func(key string, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), lowerPrefix)
		key = strings.ReplaceAll(key, "__", "-")
		key = strings.ReplaceAll(key, "_", ".")
		return key, value
	}), nil)
}

func unmarshal(k *koanf.Koanf, out interface{}) error {
	decoderConfig := mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:  out,
		TagName: "koanf",
	}
	if err := k.UnmarshalWithConf("", out, koanf.UnmarshalConf{DecoderConfig: &decoderConfig}); err != nil {
		return fmt.Errorf("error decoding settings: %w", err)
	}
	return nil
}
