package identity

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChainID = big.NewInt(31337)

func fixedChainID(ctx context.Context) (*big.Int, error) {
	return testChainID, nil
}

// generateKeys returns n hex encoded keys and their addresses, in order.
func generateKeys(t *testing.T, n int) ([]string, []common.Address) {
	t.Helper()
	keys := make([]string, n)
	addrs := make([]common.Address, n)
	for i := 0; i < n; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = hexutil.Encode(crypto.FromECDSA(key))
		addrs[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return keys, addrs
}

// staticSource lets tests build sequences of arbitrary length without keys.
type staticSource struct {
	ids []Identity
	err error
}

func (s staticSource) Identities(ctx context.Context) ([]Identity, error) {
	return s.ids, s.err
}

func sequence(n int) []Identity {
	ids := make([]Identity, n)
	for i := range ids {
		ids[i] = New(common.BigToAddress(big.NewInt(int64(i+1))), nil)
	}
	return ids
}

func TestKeySource(t *testing.T) {
	ctx := context.Background()

	t.Run("Preserves key order and signs for the chain", func(t *testing.T) {
		keys, addrs := generateKeys(t, 3)
		ids, err := NewKeySource(keys, fixedChainID).Identities(ctx)
		require.NoError(t, err)
		require.Len(t, ids, 3)
		for i := range ids {
			assert.Equal(t, addrs[i], ids[i].Address)
			assert.True(t, ids[i].CanSign())
		}

		to := addrs[1]
		tx := types.NewTx(&types.LegacyTx{Nonce: 0, To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1)})
		opts := ids[0].TransactOpts(ctx)
		signed, err := opts.Signer(opts.From, tx)
		require.NoError(t, err)
		sender, err := types.Sender(types.LatestSignerForChainID(testChainID), signed)
		require.NoError(t, err)
		assert.Equal(t, addrs[0], sender)
	})

	t.Run("Accepts keys without 0x prefix", func(t *testing.T) {
		keys, addrs := generateKeys(t, 1)
		ids, err := NewKeySource([]string{keys[0][2:]}, fixedChainID).Identities(ctx)
		require.NoError(t, err)
		assert.Equal(t, addrs[0], ids[0].Address)
	})

	t.Run("Invalid key does not leak its value", func(t *testing.T) {
		_, err := NewKeySource([]string{"0xnotakey"}, fixedChainID).Identities(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "private key 0 is invalid")
		assert.NotContains(t, err.Error(), "notakey")
	})

	t.Run("Chain id failure", func(t *testing.T) {
		keys, _ := generateKeys(t, 1)
		source := NewKeySource(keys, func(ctx context.Context) (*big.Int, error) {
			return nil, errors.New("node down")
		})
		_, err := source.Identities(ctx)
		assert.ErrorContains(t, err, "node down")
	})

	t.Run("TransactOpts are independent copies", func(t *testing.T) {
		keys, _ := generateKeys(t, 1)
		ids, err := NewKeySource(keys, fixedChainID).Identities(ctx)
		require.NoError(t, err)
		first := ids[0].TransactOpts(ctx)
		first.Value = big.NewInt(100)
		assert.Nil(t, ids[0].TransactOpts(ctx).Value)
	})
}

func TestKeystoreSource(t *testing.T) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	for i := 0; i < 2; i++ {
		_, err := ks.NewAccount("secret")
		require.NoError(t, err)
	}
	expected := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP).Accounts()
	require.Len(t, expected, 2)

	t.Run("Unlocks accounts in keystore order", func(t *testing.T) {
		ids, err := NewKeystoreSource(dir, "secret", fixedChainID).Identities(context.Background())
		require.NoError(t, err)
		require.Len(t, ids, 2)
		assert.Equal(t, expected[0].Address, ids[0].Address)
		assert.Equal(t, expected[1].Address, ids[1].Address)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, err := NewKeystoreSource(dir, "wrong", fixedChainID).Identities(context.Background())
		assert.ErrorContains(t, err, "failed to unlock")
	})
}

func TestPoolEnumerate(t *testing.T) {
	ctx := context.Background()
	ids := sequence(6)

	testCases := []struct {
		name     string
		sources  []Source
		validate func(t *testing.T, got []Identity, err error)
	}{
		{
			name:    "Happy Path - Sources are concatenated in order",
			sources: []Source{staticSource{ids: ids[:2]}, staticSource{ids: ids[2:]}},
			validate: func(t *testing.T, got []Identity, err error) {
				require.NoError(t, err)
				require.Len(t, got, 6)
				for i := range ids {
					assert.Equal(t, ids[i].Address, got[i].Address)
				}
			},
		},
		{
			name:    "Empty - No identities is fatal",
			sources: []Source{staticSource{}, NewKeySource(nil, fixedChainID)},
			validate: func(t *testing.T, got []Identity, err error) {
				assert.ErrorIs(t, err, ErrNoIdentities)
				assert.Nil(t, got)
			},
		},
		{
			name:    "Error - Source failure names the source",
			sources: []Source{staticSource{ids: ids[:1]}, staticSource{err: errors.New("boom")}},
			validate: func(t *testing.T, got []Identity, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "identity source 1")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewPool(tc.sources...).Enumerate(ctx)
			tc.validate(t, got, err)
		})
	}
}
