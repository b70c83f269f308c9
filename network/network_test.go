package network

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/config"
)

func settingsWith(mutate func(s *config.Settings)) *config.Settings {
	s := config.SettingsDefault
	mutate(&s)
	return &s
}

func TestSelect(t *testing.T) {
	testCases := []struct {
		name     string
		settings *config.Settings
		validate func(t *testing.T, sel Selection, err error)
	}{
		{
			name:     "Local - Defaults",
			settings: settingsWith(func(s *config.Settings) {}),
			validate: func(t *testing.T, sel Selection, err error) {
				require.NoError(t, err)
				assert.Equal(t, Local, sel.Mode)
				assert.Equal(t, "hardhat", sel.Network)
				assert.True(t, sel.Mode.UsesEVMSnapshots())
			},
		},
		{
			name:     "Fork - Registry override from table",
			settings: settingsWith(func(s *config.Settings) { s.Fork = "main" }),
			validate: func(t *testing.T, sel Selection, err error) {
				require.NoError(t, err)
				assert.Equal(t, Fork, sel.Mode)
				assert.Equal(t, "main", sel.Network)
				assert.Equal(t, DefaultParams["main"].ProviderRegistry, sel.Params.ProviderRegistry)
				assert.True(t, sel.Mode.UsesEVMSnapshots())
			},
		},
		{
			name:     "Fork - Unknown network",
			settings: settingsWith(func(s *config.Settings) { s.Fork = "nowhere" }),
			validate: func(t *testing.T, sel Selection, err error) {
				assert.True(t, errors.Is(err, ErrUnknownNetwork))
			},
		},
		{
			name:     "Remote - Enabled flag",
			settings: settingsWith(func(s *config.Settings) { s.Remote.Enabled = true }),
			validate: func(t *testing.T, sel Selection, err error) {
				require.NoError(t, err)
				assert.Equal(t, Remote, sel.Mode)
				assert.False(t, sel.Mode.UsesEVMSnapshots())
			},
		},
		{
			name:     "Remote - Network name",
			settings: settingsWith(func(s *config.Settings) { s.Network = RemoteNetworkName }),
			validate: func(t *testing.T, sel Selection, err error) {
				require.NoError(t, err)
				assert.Equal(t, Remote, sel.Mode)
			},
		},
		{
			name: "Exclusivity - Fork and remote together",
			settings: settingsWith(func(s *config.Settings) {
				s.Fork = "main"
				s.Remote.Enabled = true
			}),
			validate: func(t *testing.T, sel Selection, err error) {
				assert.ErrorIs(t, err, ErrConflictingModes)
				assert.Equal(t, Selection{}, sel)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Select(tc.settings, nil)
			tc.validate(t, sel, err)
		})
	}
}

func TestLoadParams(t *testing.T) {
	registry := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	dataProvider := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	t.Run("Merges over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "networks.json")
		body := `{"polygon":{"provider-registry":"` + registry.Hex() + `","protocol-data-provider":"` + dataProvider.Hex() + `"}}`
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		table, err := LoadParams(path)
		require.NoError(t, err)
		assert.Equal(t, Params{ProviderRegistry: registry, ProtocolDataProvider: dataProvider}, table["polygon"])
		assert.Equal(t, DefaultParams["main"], table["main"])

		sel, err := Select(settingsWith(func(s *config.Settings) { s.Fork = "polygon" }), table)
		require.NoError(t, err)
		assert.Equal(t, registry, sel.Params.ProviderRegistry)
	})

	t.Run("Rejects non-address values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "networks.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"main":{"provider-registry":"nope"}}`), 0o600))
		_, err := LoadParams(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not an address")
	})
}
