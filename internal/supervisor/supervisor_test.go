package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reports struct {
	mu   sync.Mutex
	errs []error
}

func (r *reports) Report(_ context.Context, err error, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *reports) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func waitDone(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func collector(got chan<- any) module.LogicFactory {
	return func() module.LogicHandler {
		return module.LogicFunc(func(ctx context.Context, actions <-chan any, _ module.Accessor) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case a, ok := <-actions:
					if !ok {
						return nil
					}
					got <- a
				}
			}
		})
	}
}

func TestSupervisor_DeliversInOrder(t *testing.T) {
	s := New(&reports{}, nil)
	got := make(chan any, 10)
	require.NoError(t, s.Spawn(context.Background(), "a", collector(got), nil))
	defer s.Shutdown(context.Background())

	for i := 0; i < 5; i++ {
		s.Deliver("a", i)
	}
	for want := 0; want < 5; want++ {
		select {
		case v := <-got:
			assert.Equal(t, want, v)
		case <-time.After(2 * time.Second):
			t.Fatal("action not delivered")
		}
	}
	assert.Equal(t, Running, s.Status("a"))
}

func TestSupervisor_FailureIsIsolated(t *testing.T) {
	// --- Arrange ---
	rep := &reports{}
	s := New(rep, nil)
	boom := errors.New("boom")
	require.NoError(t, s.Spawn(context.Background(), "broken", func() module.LogicHandler {
		return module.LogicFunc(func(ctx context.Context, actions <-chan any, _ module.Accessor) error {
			<-actions
			return boom
		})
	}, nil))
	got := make(chan any, 1)
	require.NoError(t, s.Spawn(context.Background(), "healthy", collector(got), nil))

	// --- Act ---
	s.Deliver("broken", "trigger")
	waitDone(t, s.Done("broken"))
	s.Deliver("healthy", "still here")

	// --- Assert ---
	assert.Equal(t, Failed, s.Status("broken"))
	var failure *storeerrors.LogicHandlerFailure
	require.ErrorAs(t, s.Err("broken"), &failure)
	assert.ErrorIs(t, failure, boom)
	assert.Equal(t, 1, rep.count())

	select {
	case v := <-got:
		assert.Equal(t, "still here", v)
	case <-time.After(2 * time.Second):
		t.Fatal("healthy task stopped receiving")
	}
	assert.Equal(t, Running, s.Status("healthy"))
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, Stopped, s.Status("healthy"))
}

func TestSupervisor_PanicBecomesFailure(t *testing.T) {
	s := New(&reports{}, nil)
	require.NoError(t, s.Spawn(context.Background(), "p", func() module.LogicHandler {
		return module.LogicFunc(func(context.Context, <-chan any, module.Accessor) error {
			panic("kaboom")
		})
	}, nil))

	waitDone(t, s.Done("p"))
	var panicErr *storeerrors.PanicError
	require.ErrorAs(t, s.Err("p"), &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

func TestSupervisor_RestartLimit(t *testing.T) {
	var created atomic.Int32
	rep := &reports{}
	s := New(rep, nil, WithRestartLimit(2))
	require.NoError(t, s.Spawn(context.Background(), "flaky", func() module.LogicHandler {
		created.Add(1)
		return module.LogicFunc(func(context.Context, <-chan any, module.Accessor) error {
			return errors.New("flake")
		})
	}, nil))

	waitDone(t, s.Done("flaky"))
	assert.Equal(t, int32(3), created.Load())
	assert.Equal(t, 3, rep.count())
	assert.Equal(t, Failed, s.Status("flaky"))
}

func TestSupervisor_RestartKeepsQueuedActions(t *testing.T) {
	// --- Arrange ---
	got := make(chan any, 8)
	s := New(&reports{}, nil, WithRestartLimit(1))
	require.NoError(t, s.Spawn(context.Background(), "flaky", func() module.LogicHandler {
		return module.LogicFunc(func(ctx context.Context, actions <-chan any, _ module.Accessor) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case a, ok := <-actions:
					if !ok {
						return nil
					}
					if a == "boom" {
						return errors.New("boom")
					}
					got <- a
				}
			}
		})
	}, nil))
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	// --- Act ---
	s.Deliver("flaky", "boom")
	s.Deliver("flaky", "after-1")
	s.Deliver("flaky", "after-2")

	// --- Assert ---
	var received []any
	for len(received) < 2 {
		select {
		case a := <-got:
			received = append(received, a)
		case <-time.After(2 * time.Second):
			t.Fatalf("restarted handler received only %v", received)
		}
	}
	assert.Equal(t, []any{"after-1", "after-2"}, received)
	assert.Equal(t, Running, s.Status("flaky"))
}

func TestSupervisor_ShutdownCancelsAndRejects(t *testing.T) {
	s := New(&reports{}, nil)
	require.NoError(t, s.Spawn(context.Background(), "a", func() module.LogicHandler {
		return module.LogicFunc(func(ctx context.Context, _ <-chan any, _ module.Accessor) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}, nil))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Equal(t, Stopped, s.Status("a"))
	assert.NoError(t, s.Err("a"), "cancellation is not a failure")

	err := s.Spawn(context.Background(), "b", collector(make(chan any)), nil)
	assert.ErrorIs(t, err, storeerrors.ErrStoreShutdown)
	assert.Equal(t, Unknown, s.Status("b"))
	s.Deliver("b", "ignored")
}

func TestSupervisor_ShutdownHonoursDeadline(t *testing.T) {
	s := New(&reports{}, nil)
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, s.Spawn(context.Background(), "stubborn", func() module.LogicHandler {
		return module.LogicFunc(func(context.Context, <-chan any, module.Accessor) error {
			<-release
			return nil
		})
	}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
}

func TestSupervisor_DuplicateSpawn(t *testing.T) {
	s := New(&reports{}, nil)
	defer s.Shutdown(context.Background())
	require.NoError(t, s.Spawn(context.Background(), "a", collector(make(chan any)), nil))
	var dup *storeerrors.DuplicateModuleError
	assert.ErrorAs(t, s.Spawn(context.Background(), "a", collector(make(chan any)), nil), &dup)
	assert.Equal(t, "running", s.Status("a").String())
}
