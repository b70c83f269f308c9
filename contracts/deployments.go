package contracts

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
)

var ErrNotDeployed = errors.New("contract is not in the address book")

// Deployment is one address book entry.
type Deployment struct {
	Address  common.Address
	Deployer common.Address
}

type deploymentEntry struct {
	Address  string `koanf:"address"`
	Deployer string `koanf:"deployer"`
}

// Deployments is the address book of one network. The file on disk is keyed
// by contract name and then network name:
//
//	{"LendingPool": {"hardhat": {"address": "0x..", "deployer": "0x.."}}}
type Deployments struct {
	network string
	entries map[Kind]Deployment
}

// NewDeployments builds an in-memory address book.
func NewDeployments(network string, entries map[Kind]Deployment) *Deployments {
	d := &Deployments{network: network, entries: make(map[Kind]Deployment, len(entries))}
	for kind, entry := range entries {
		d.entries[kind] = entry
	}
	return d
}

// LoadDeployments reads the entries of network from the address book at path.
// Contracts deployed only to other networks are skipped.
func LoadDeployments(path, network string) (*Deployments, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return nil, fmt.Errorf("error loading address book %s: %w", path, err)
	}
	raw := make(map[string]map[string]deploymentEntry)
	if err := k.Unmarshal("", &raw); err != nil {
		return nil, fmt.Errorf("error decoding address book %s: %w", path, err)
	}

	d := &Deployments{network: network, entries: make(map[Kind]Deployment)}
	for name, networks := range raw {
		entry, ok := networks[network]
		if !ok {
			continue
		}
		if !common.IsHexAddress(entry.Address) {
			return nil, fmt.Errorf("address book %s: %s on %s has invalid address %q", path, name, network, entry.Address)
		}
		deployment := Deployment{Address: common.HexToAddress(entry.Address)}
		if entry.Deployer != "" {
			if !common.IsHexAddress(entry.Deployer) {
				return nil, fmt.Errorf("address book %s: %s on %s has invalid deployer %q", path, name, network, entry.Deployer)
			}
			deployment.Deployer = common.HexToAddress(entry.Deployer)
		}
		d.entries[Kind(name)] = deployment
	}
	return d, nil
}

func (d *Deployments) Network() string {
	return d.network
}

func (d *Deployments) Len() int {
	return len(d.entries)
}

// Lookup returns the deployment of kind on this network.
func (d *Deployments) Lookup(kind Kind) (Deployment, error) {
	entry, ok := d.entries[kind]
	if !ok || entry.Address == (common.Address{}) {
		return Deployment{}, fmt.Errorf("%w: %s on %s", ErrNotDeployed, kind, d.network)
	}
	return entry, nil
}
