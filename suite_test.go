package testenv

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/network"
	"github.com/Synthetic-NFT/Synthetic-NFT-aave/snapshot"
)

// newRunner initializes an env over f and brackets suites with evm snapshots
// taken through the chain's RPC server.
func newRunner(t *testing.T, f *fixture) (*Env, *Runner) {
	t.Helper()
	env, err := Initialize(context.Background(), f.config())
	require.NoError(t, err)

	client := f.chain.DialInProc()
	t.Cleanup(client.Close)
	manager, err := snapshot.NewManager(env.Selection, snapshot.NewEVM(client), nil)
	require.NoError(t, err)

	runner, err := NewRunner(env, manager)
	require.NoError(t, err)
	return env, runner
}

func TestMakeSuiteIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)
	env, runner := newRunner(t, f)
	alice, bob := env.Users[0], env.Users[1]
	f.chain.Mint(env.DAI.Address, alice.Address, big.NewInt(1_000))

	passed := runner.MakeSuite(t, "Suite A moves funds", func(t *testing.T, env *Env) {
		_, err := env.DAI.Transfer(alice.TransactOpts(ctx), bob.Address, big.NewInt(250))
		require.NoError(t, err)

		t.Run("Nested subtests run before the restore", func(t *testing.T) {
			balance, err := env.DAI.BalanceOf(ctx, bob.Address)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(250), balance)
		})
	})
	require.True(t, passed)

	passed = runner.MakeSuite(t, "Suite B starts from the baseline", func(t *testing.T, env *Env) {
		balance, err := env.DAI.BalanceOf(ctx, alice.Address)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1_000), balance)
		balance, err = env.DAI.BalanceOf(ctx, bob.Address)
		require.NoError(t, err)
		assert.Zero(t, balance.Sign())

		// Nonces are part of the restored state too.
		_, err = env.DAI.Transfer(alice.TransactOpts(ctx), bob.Address, big.NewInt(1))
		require.NoError(t, err)
	})
	require.True(t, passed)

	assert.Equal(t, 2, f.chain.Calls("evm_snapshot"))
	assert.Equal(t, 2, f.chain.Calls("evm_revert"))
	assert.Equal(t, big.NewInt(1_000), f.chain.BalanceOf(env.DAI.Address, alice.Address))
	assert.NoError(t, runner.Err())
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.SuitesTotal.WithLabelValues("passed")))
}

func TestRunnerBaselineLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	env, runner := newRunner(t, f)

	h, err := runner.Begin(ctx, "first")
	require.NoError(t, err)

	f.chain.RejectReverts(true)
	err = runner.End(ctx, "first", h)
	f.chain.RejectReverts(false)

	var suiteErr *SuiteError
	require.ErrorAs(t, err, &suiteErr)
	assert.Equal(t, "first", suiteErr.Suite)
	assert.Equal(t, phaseTeardown, suiteErr.Phase)
	assert.ErrorIs(t, err, snapshot.ErrRevertRejected)

	t.Run("Every later suite is refused", func(t *testing.T) {
		for _, name := range []string{"second", "third"} {
			_, err := runner.Begin(ctx, name)
			var lost *BaselineLostError
			require.ErrorAs(t, err, &lost)
			assert.Equal(t, "first", lost.Suite, "the error names the suite that lost the baseline")
		}
		assert.Equal(t, 1, f.chain.Calls("evm_snapshot"), "no snapshot is taken once the baseline is lost")
	})

	var lost *BaselineLostError
	require.ErrorAs(t, runner.Err(), &lost)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.BaselineLost.WithLabelValues()))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SnapshotsTotal.WithLabelValues("restore", "local", "error")))
}

// baselineLostChildEnv makes TestMakeSuiteBaselineLost run its suites in a
// child process, where their failures cannot fail the parent run.
const baselineLostChildEnv = "TESTENV_BASELINE_LOST_CHILD"

func TestMakeSuiteBaselineLost(t *testing.T) {
	if os.Getenv(baselineLostChildEnv) == "1" {
		f := newFixture(t, 4)
		env, runner := newRunner(t, f)
		f.chain.RejectReverts(true)

		first := runner.MakeSuite(t, "first", func(t *testing.T, env *Env) {})
		second := runner.MakeSuite(t, "second", func(t *testing.T, env *Env) {
			fmt.Println("second body ran")
		})
		var lost *BaselineLostError
		fmt.Printf("first=%t second=%t lost=%t failed=%v aborted=%v\n",
			first, second, errors.As(runner.Err(), &lost),
			testutil.ToFloat64(env.metrics.SuitesTotal.WithLabelValues("failed")),
			testutil.ToFloat64(env.metrics.SuitesTotal.WithLabelValues("aborted")),
		)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestMakeSuiteBaselineLost$", "-test.v")
	cmd.Env = append(os.Environ(), baselineLostChildEnv+"=1")
	out, err := cmd.CombinedOutput()
	output := string(out)

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, output)
	assert.NotZero(t, exitErr.ExitCode())
	assert.Contains(t, output, "first=false second=false lost=true failed=1 aborted=1")
	assert.Contains(t, output, "--- FAIL: TestMakeSuiteBaselineLost/first")
	assert.Contains(t, output, "--- FAIL: TestMakeSuiteBaselineLost/second")
	assert.Contains(t, output, `baseline lost after suite "first"`)
	assert.NotContains(t, output, "second body ran")
}

func TestRunnerCreateFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	_, runner := newRunner(t, f)

	f.chain.FailSnapshots(errors.New("snapshots disabled"))
	_, err := runner.Begin(ctx, "setup fails")
	var suiteErr *SuiteError
	require.ErrorAs(t, err, &suiteErr)
	assert.Equal(t, phaseSetup, suiteErr.Phase)
	assert.ErrorContains(t, err, "snapshots disabled")
	assert.NoError(t, runner.Err(), "a failed snapshot does not touch the baseline")

	f.chain.FailSnapshots(nil)
	h, err := runner.Begin(ctx, "setup works again")
	require.NoError(t, err)
	assert.NoError(t, runner.End(ctx, "setup works again", h))
}

func TestRunnerRejectsInvalidHandle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 4)
	_, runner := newRunner(t, f)

	err := runner.End(ctx, "never began", snapshot.Handle{})
	assert.ErrorIs(t, err, snapshot.ErrInvalidHandle)
	assert.Error(t, runner.Err())
}

func TestNewRunner(t *testing.T) {
	f := newFixture(t, 4)
	env, err := Initialize(context.Background(), f.config())
	require.NoError(t, err)
	client := f.chain.DialInProc()
	defer client.Close()

	local, err := snapshot.NewManager(env.Selection, snapshot.NewEVM(client), nil)
	require.NoError(t, err)
	remote, err := snapshot.NewManager(network.Selection{Mode: network.Remote, Network: network.RemoteNetworkName}, nil, snapshot.NewEVM(client))
	require.NoError(t, err)

	testCases := []struct {
		name    string
		env     *Env
		manager *snapshot.Manager
		errMsg  string
	}{
		{name: "Happy Path", env: env, manager: local},
		{name: "Missing env", manager: local, errMsg: "initialized env"},
		{name: "Missing manager", env: env, errMsg: "snapshot manager"},
		{name: "Manager in another mode", env: env, manager: remote, errMsg: "remote mode"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner, err := NewRunner(tc.env, tc.manager)
			if tc.errMsg != "" {
				assert.ErrorContains(t, err, tc.errMsg)
				assert.Nil(t, runner)
				return
			}
			require.NoError(t, err)
			assert.Same(t, env, runner.Env())
		})
	}
}

type transferSuite struct {
	Suite
	amount *big.Int
}

func (s *transferSuite) TestTransfer() {
	ctx := context.Background()
	env := s.Env()
	alice, bob := env.Users[0], env.Users[1]

	_, err := env.DAI.Transfer(alice.TransactOpts(ctx), bob.Address, s.amount)
	s.Require().NoError(err)
	balance, err := env.DAI.BalanceOf(ctx, bob.Address)
	s.Require().NoError(err)
	s.Equal(s.amount, balance)
}

func TestTestifySuiteIsolation(t *testing.T) {
	f := newFixture(t, 5)
	env, runner := newRunner(t, f)
	alice, bob := env.Users[0].Address, env.Users[1].Address
	f.chain.Mint(env.DAI.Address, alice, big.NewInt(1_000))

	suite.Run(t, &transferSuite{Suite: Suite{Runner: runner}, amount: big.NewInt(400)})

	assert.Equal(t, big.NewInt(1_000), f.chain.BalanceOf(env.DAI.Address, alice))
	assert.Zero(t, f.chain.BalanceOf(env.DAI.Address, bob).Sign())
	assert.Equal(t, 1, f.chain.Calls("evm_snapshot"))
	assert.Equal(t, 1, f.chain.Calls("evm_revert"))
}
