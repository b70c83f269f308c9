// Package identity enumerates the signing identities available to a test
// run and assigns their fixed protocol roles.
package identity

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoIdentities is returned when no source yields a single identity.
var ErrNoIdentities = errors.New("no signing identities available")

// ChainIDFunc returns the chain id signers must bind to. ethclient.Client.ChainID satisfies it.
type ChainIDFunc func(ctx context.Context) (*big.Int, error)

// Identity is a signing capability together with its address.
type Identity struct {
	Address common.Address
	signer  bind.SignerFn
}

func New(address common.Address, signer bind.SignerFn) Identity {
	return Identity{Address: address, signer: signer}
}

// TransactOpts returns fresh transaction options for the identity. Each call
// returns a new value so callers may set Value, GasLimit or Nonce freely.
func (i Identity) TransactOpts(ctx context.Context) *bind.TransactOpts {
	return &bind.TransactOpts{
		From:    i.Address,
		Signer:  i.signer,
		Context: ctx,
	}
}

func (i Identity) CanSign() bool {
	return i.signer != nil
}

// Source yields identities in a stable order.
type Source interface {
	Identities(ctx context.Context) ([]Identity, error)
}

// KeySource derives identities from hex encoded private keys.
type KeySource struct {
	keys    []string
	chainID ChainIDFunc
}

func NewKeySource(hexKeys []string, chainID ChainIDFunc) *KeySource {
	return &KeySource{keys: hexKeys, chainID: chainID}
}

func (s *KeySource) Identities(ctx context.Context) ([]Identity, error) {
	if len(s.keys) == 0 {
		return nil, nil
	}
	chainID, err := s.chainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	ids := make([]Identity, 0, len(s.keys))
	for i, hexKey := range s.keys {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
		if err != nil {
			// The key itself must never reach the error message.
			return nil, fmt.Errorf("private key %d is invalid: %w", i, err)
		}
		id, err := fromKey(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fromKey(key *ecdsa.PrivateKey, chainID *big.Int) (Identity, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return Identity{}, err
	}
	return New(opts.From, opts.Signer), nil
}

// KeystoreSource unlocks every account of a go-ethereum keystore directory.
type KeystoreSource struct {
	dir      string
	password string
	chainID  ChainIDFunc
}

func NewKeystoreSource(dir, password string, chainID ChainIDFunc) *KeystoreSource {
	return &KeystoreSource{dir: dir, password: password, chainID: chainID}
}

func (s *KeystoreSource) Identities(ctx context.Context) ([]Identity, error) {
	chainID, err := s.chainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	ks := keystore.NewKeyStore(s.dir, keystore.LightScryptN, keystore.LightScryptP)
	accounts := ks.Accounts()
	ids := make([]Identity, 0, len(accounts))
	for _, account := range accounts {
		if err := ks.Unlock(account, s.password); err != nil {
			return nil, fmt.Errorf("failed to unlock %s: %w", account.Address.Hex(), err)
		}
		opts, err := bind.NewKeyStoreTransactorWithChainID(ks, account, chainID)
		if err != nil {
			return nil, fmt.Errorf("failed to build signer for %s: %w", account.Address.Hex(), err)
		}
		ids = append(ids, New(opts.From, opts.Signer))
	}
	return ids, nil
}

// Pool concatenates its sources, in order, into the identity sequence of the run.
type Pool struct {
	sources []Source
}

func NewPool(sources ...Source) *Pool {
	return &Pool{sources: sources}
}

// Enumerate returns every identity exactly in the order the sources present them.
func (p *Pool) Enumerate(ctx context.Context) ([]Identity, error) {
	var ids []Identity
	for i, source := range p.sources {
		found, err := source.Identities(ctx)
		if err != nil {
			return nil, fmt.Errorf("identity source %d: %w", i, err)
		}
		ids = append(ids, found...)
	}
	if len(ids) == 0 {
		return nil, ErrNoIdentities
	}
	return ids, nil
}
