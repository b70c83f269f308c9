package testenv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Synthetic-NFT/Synthetic-NFT-aave/snapshot"
)

const (
	phaseSetup    = "setup"
	phaseTeardown = "teardown"
)

// Runner brackets test suites with a snapshot taken before the suite body
// and restored after it, so every suite starts from the same chain state.
// Once a restore fails that state is gone and every later suite is refused.
type Runner struct {
	env       *Env
	snapshots *snapshot.Manager

	mu      sync.Mutex
	lost    *BaselineLostError
	closers []func()
}

func NewRunner(env *Env, snapshots *snapshot.Manager) (*Runner, error) {
	if env == nil {
		return nil, errors.New("runner needs an initialized env")
	}
	if snapshots == nil {
		return nil, errors.New("runner needs a snapshot manager")
	}
	if snapshots.Mode() != env.Selection.Mode {
		return nil, fmt.Errorf("snapshot manager runs in %s mode, env in %s mode", snapshots.Mode(), env.Selection.Mode)
	}
	return &Runner{env: env, snapshots: snapshots}, nil
}

func (r *Runner) Env() *Env {
	return r.env
}

// Err returns the *BaselineLostError once a restore has failed, nil before.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lost == nil {
		return nil
	}
	return r.lost
}

// Close releases the connections Setup opened.
func (r *Runner) Close() {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Begin takes the snapshot suite name will be restored to.
func (r *Runner) Begin(ctx context.Context, name string) (snapshot.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lost != nil {
		r.env.errorHandler(r.lost)
		return snapshot.Handle{}, r.lost
	}

	start := time.Now()
	h, err := r.snapshots.Create(ctx)
	r.observe("create", start, err)
	if err != nil {
		suiteErr := &SuiteError{Suite: name, Phase: phaseSetup, Err: err}
		r.env.errorHandler(suiteErr)
		return snapshot.Handle{}, suiteErr
	}
	r.env.logger.Debug("suite snapshot taken", "suite", name, "handle", h)
	return h, nil
}

// End restores h. A failure marks the baseline lost for the rest of the run.
func (r *Runner) End(ctx context.Context, name string, h snapshot.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	err := r.snapshots.Restore(ctx, h)
	r.observe("restore", start, err)
	if err != nil {
		if r.lost == nil {
			r.lost = &BaselineLostError{Suite: name, Err: err}
			r.env.metrics.BaselineLost.WithLabelValues().Set(1)
		}
		suiteErr := &SuiteError{Suite: name, Phase: phaseTeardown, Err: err}
		r.env.errorHandler(suiteErr)
		return suiteErr
	}
	r.env.logger.Debug("suite snapshot restored", "suite", name, "handle", h)
	return nil
}

func (r *Runner) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.env.metrics.SnapshotDur.WithLabelValues(op).Observe(time.Since(start).Seconds())
	r.env.metrics.SnapshotsTotal.WithLabelValues(op, r.snapshots.Mode().String(), result).Inc()
}

// MakeSuite runs body as subtest name between a snapshot and its restore.
// The restore runs in t.Cleanup, after every nested subtest of body. It
// reports whether the suite passed, as t.Run does.
func (r *Runner) MakeSuite(t *testing.T, name string, body func(t *testing.T, env *Env)) bool {
	t.Helper()
	return t.Run(name, func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()

		h, err := r.Begin(ctx, name)
		if err != nil {
			r.env.metrics.SuitesTotal.WithLabelValues("aborted").Inc()
			t.Fatal(err)
		}
		t.Cleanup(func() {
			if err := r.End(ctx, name, h); err != nil {
				t.Error(err)
			}
			result := "passed"
			if t.Failed() {
				result = "failed"
			}
			r.env.metrics.SuitesTotal.WithLabelValues(result).Inc()
			r.env.metrics.SuiteDur.WithLabelValues().Observe(time.Since(start).Seconds())
		})

		body(t, r.env)
	})
}

// Suite brackets a testify suite with the runner's snapshot. Embed it and
// set Runner before calling suite.Run; a suite that defines its own
// SetupSuite or TearDownSuite must call these.
type Suite struct {
	suite.Suite
	Runner *Runner

	handle snapshot.Handle
}

func (s *Suite) Env() *Env {
	return s.Runner.Env()
}

func (s *Suite) SetupSuite() {
	s.Require().NotNil(s.Runner, "testenv.Suite needs a Runner")
	h, err := s.Runner.Begin(context.Background(), s.T().Name())
	s.Require().NoError(err)
	s.handle = h
}

func (s *Suite) TearDownSuite() {
	if s.handle.IsZero() {
		return
	}
	h := s.handle
	s.handle = snapshot.Handle{}
	s.NoError(s.Runner.End(context.Background(), s.T().Name(), h))
}
