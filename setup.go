package testenv

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/config"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/contracts"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/identity"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/network"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/snapshot"
)

const defaultRunName = "aave"

// Setup builds the fixture for TestMain from command-line style args:
// settings are parsed, the mode selected, the node dialed and the env and
// runner created. The caller closes the runner when the run ends. reg may be
// nil to leave the metrics unregistered.
func Setup(ctx context.Context, args []string, reg prometheus.Registerer) (env *Env, runner *Runner, err error) {
	settings, err := config.Parse(args)
	if err != nil {
		return nil, nil, err
	}

	table := network.DefaultParams
	if settings.Networks != "" {
		if table, err = network.LoadParams(settings.Networks); err != nil {
			return nil, nil, err
		}
	}
	sel, err := network.Select(settings, table)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to select network mode: %w", err)
	}
	logger := log.Root().New("mode", sel.Mode, "network", sel.Network)

	var (
		rpcClient     *rpc.Client
		local, remote snapshot.Backend
	)
	switch sel.Mode {
	case network.Remote:
		tenderly, err := snapshot.NewTenderlyNetwork(snapshot.TenderlyConfig{
			RPCURL:    settings.Remote.RPCURL,
			APIURL:    settings.Remote.APIURL,
			AccessKey: settings.Remote.AccessKey,
			Account:   settings.Remote.Account,
			Project:   settings.Remote.Project,
			ForkID:    settings.Remote.ForkID,
		})
		if err != nil {
			return nil, nil, err
		}
		if rpcClient, err = tenderly.Dial(ctx); err != nil {
			return nil, nil, err
		}
		remote = snapshot.NewHeadBackend(tenderly)
	default:
		dialCtx := ctx
		if settings.RPC.Timeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, settings.RPC.Timeout)
			defer cancel()
		}
		if rpcClient, err = rpc.DialContext(dialCtx, settings.RPC.URL); err != nil {
			return nil, nil, fmt.Errorf("failed to dial %s: %w", settings.RPC.URL, err)
		}
		local = snapshot.NewEVM(rpcClient)
	}
	defer func() {
		if err != nil {
			rpcClient.Close()
		}
	}()
	client := ethclient.NewClient(rpcClient)

	var sources []identity.Source
	if len(settings.Wallet.PrivateKeys) > 0 {
		sources = append(sources, identity.NewKeySource(settings.Wallet.PrivateKeys, client.ChainID))
	}
	if settings.Wallet.Pathname != "" {
		sources = append(sources, identity.NewKeystoreSource(settings.Wallet.Pathname, settings.Wallet.Password, client.ChainID))
	}

	deployments, err := contracts.LoadDeployments(settings.Deployments, settings.Network)
	if err != nil {
		return nil, nil, err
	}
	manager, err := snapshot.NewManager(sel, local, remote)
	if err != nil {
		return nil, nil, err
	}

	env, err = Initialize(ctx, &Config{
		RunName:       defaultRunName,
		PrometheusReg: reg,
		Selection:     sel,
		Identities:    identity.NewPool(sources...),
		Backend:       client,
		Deployments:   deployments,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	runner, err = NewRunner(env, manager)
	if err != nil {
		return nil, nil, err
	}
	runner.closers = append(runner.closers, rpcClient.Close)
	return env, runner, nil
}
