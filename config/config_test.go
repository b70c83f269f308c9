package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		env      map[string]string
		file     string
		validate func(t *testing.T, s *Settings, err error)
	}{
		{
			name: "Happy Path - Defaults with keys from flags",
			args: []string{"--wallet.private-keys", "aa,bb,cc,dd"},
			validate: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				assert.Equal(t, "hardhat", s.Network)
				assert.Empty(t, s.Fork)
				assert.Equal(t, RPCConfigDefault.URL, s.RPC.URL)
				assert.Equal(t, []string{"aa", "bb", "cc", "dd"}, s.Wallet.PrivateKeys)
				assert.False(t, s.Remote.Enabled)
			},
		},
		{
			name: "Environment - Fork network and keys",
			env: map[string]string{
				"FIXTURE_FORK":                 "main",
				"FIXTURE_WALLET_PRIVATE__KEYS": "aa,bb",
				"FIXTURE_RPC_TIMEOUT":          "3s",
			},
			validate: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				assert.Equal(t, "main", s.Fork)
				assert.Equal(t, []string{"aa", "bb"}, s.Wallet.PrivateKeys)
				assert.Equal(t, 3*time.Second, s.RPC.Timeout)
			},
		},
		{
			name: "Precedence - Changed flag wins over environment",
			args: []string{"--network", "localhost"},
			env: map[string]string{
				"FIXTURE_NETWORK":              "coverage",
				"FIXTURE_WALLET_PRIVATE__KEYS": "aa",
			},
			validate: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				assert.Equal(t, "localhost", s.Network)
			},
		},
		{
			name: "File - Remote settings loaded from json",
			file: `{"remote":{"enabled":true,"rpc-url":"https://rpc.example/fork/1","fork-id":"1"},"wallet":{"private-keys":["aa"]}}`,
			validate: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				assert.True(t, s.Remote.Enabled)
				assert.Equal(t, "1", s.Remote.ForkID)
				assert.Equal(t, RemoteConfigDefault.APIURL, s.Remote.APIURL)
			},
		},
		{
			name: "Validation - No identity source",
			args: []string{},
			validate: func(t *testing.T, s *Settings, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no identity source")
			},
		},
		{
			name: "Validation - Remote mode without fork id",
			args: []string{"--remote.enabled", "--remote.rpc-url", "https://rpc.example", "--wallet.private-keys", "aa"},
			validate: func(t *testing.T, s *Settings, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "remote.fork-id")
			},
		},
		{
			name: "Error - Positional argument",
			args: []string{"stray"},
			validate: func(t *testing.T, s *Settings, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unexpected parameter")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			args := tc.args
			if tc.file != "" {
				path := filepath.Join(t.TempDir(), "fixture.json")
				require.NoError(t, os.WriteFile(path, []byte(tc.file), 0o600))
				args = append(args, "--conf.file", path)
			}
			s, err := Parse(args)
			tc.validate(t, s, err)
		})
	}
}
