package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/inmemorybackend"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/specialistvlad/burststate/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterAction interface{ isCounter() }
type increment struct{}

func (increment) isCounter() {}

type flagAction interface{ isFlag() }
type toggle struct{}

func (toggle) isFlag() {}

type pingAction interface{ isPing() }
type ping struct{ N int }

func (ping) isPing() {}

func counterModule() *module.Definition {
	return module.New("counter", 0, func(s int, a counterAction) (int, error) {
		return s + 1, nil
	}, module.WithTypes(module.Family[counterAction](codec.V[increment]("counter.Increment"))))
}

func flagModule() *module.Definition {
	return module.New("flag", false, func(s bool, a flagAction) (bool, error) {
		return !s, nil
	}, module.WithTypes(module.Family[flagAction](codec.V[toggle]("flag.Toggle"))))
}

func newStore(t *testing.T, opts Options, defs ...*module.Definition) *Store {
	t.Helper()
	reg := registry.New()
	for _, d := range defs {
		reg.RegisterModule(d)
	}
	opts.Registry = reg
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	s, err := New(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func dispatchAll(t *testing.T, s *Store, actions ...any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var pending []module.Completion
	for _, a := range actions {
		c, err := s.Dispatch(ctx, a)
		require.NoError(t, err)
		pending = append(pending, c)
	}
	for _, c := range pending {
		require.NoError(t, c.Wait(ctx))
	}
}

func TestStore_CounterFlagScenario(t *testing.T) {
	// --- Arrange ---
	backend := inmemorybackend.New()
	s := newStore(t, Options{Backend: backend}, counterModule(), flagModule())

	// --- Act ---
	dispatchAll(t, s, increment{}, increment{}, toggle{}, increment{})

	// --- Assert ---
	counter, err := module.StateOf[int](s)
	require.NoError(t, err)
	flag, err := module.StateOf[bool](s)
	require.NoError(t, err)
	assert.Equal(t, 3, counter)
	assert.True(t, flag)

	require.NoError(t, s.Save(context.Background()))
	restored := newStore(t, Options{Backend: backend, RestoreOnStart: true}, counterModule(), flagModule())
	got, err := restored.State("counter")
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	got, err = restored.State("flag")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestStore_SnapshotNeverSeesHalfARestore(t *testing.T) {
	// --- Arrange ---
	s := newStore(t, Options{}, counterModule(), flagModule())
	docs := []string{
		`{"version":1,"modules":{"counter":"0","flag":"false"}}`,
		`{"version":1,"modules":{"counter":"3","flag":"true"}}`,
	}
	ctx := context.Background()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, err := s.RestoreText(ctx, docs[i%2])
			assert.NoError(t, err)
		}
	}()

	// --- Act ---
	mixed := 0
	for i := 0; i < 2000; i++ {
		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		c, _ := snap.Get("counter")
		f, _ := snap.Get("flag")
		if (c == "3") != (f == "true") {
			mixed++
		}
	}
	close(stop)
	wg.Wait()

	// --- Assert ---
	assert.Zero(t, mixed, "snapshots mixing a restored and an unrestored module")
}

func TestStore_SnapshotRestoreText(t *testing.T) {
	// --- Arrange ---
	s := newStore(t, Options{}, counterModule(), flagModule())
	dispatchAll(t, s, increment{}, toggle{})
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	dispatchAll(t, s, increment{}, increment{}, toggle{})

	// --- Act ---
	outcome, err := s.RestoreText(context.Background(), snap.String())

	// --- Assert ---
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"counter", "flag"}, outcome.Restored)
	counter, _ := s.State("counter")
	flag, _ := s.State("flag")
	assert.Equal(t, 1, counter)
	assert.Equal(t, true, flag)
}

func TestStore_ConcurrentDispatchFoldsPerModule(t *testing.T) {
	// --- Arrange ---
	s := newStore(t, Options{Workers: 8}, counterModule(), flagModule())
	const goroutines, perGoroutine = 8, 50

	// --- Act ---
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c, err := s.Dispatch(context.Background(), increment{})
				if !assert.NoError(t, err) {
					return
				}
				assert.NoError(t, c.Wait(context.Background()))
			}
		}()
	}
	wg.Wait()

	// --- Assert ---
	counter, err := s.State("counter")
	require.NoError(t, err)
	assert.Equal(t, goroutines*perGoroutine, counter)
}

func TestStore_ObserveEmitsCurrentThenChanges(t *testing.T) {
	// --- Arrange ---
	s := newStore(t, Options{}, counterModule())
	sub, err := module.Observe[int](s)
	require.NoError(t, err)
	defer sub.Close()

	// --- Act ---
	dispatchAll(t, s, increment{}, increment{})

	// --- Assert ---
	var values []any
	for len(values) < 3 {
		select {
		case c := <-sub.C():
			values = append(values, c.Value)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", values)
		}
	}
	assert.Equal(t, []any{0, 1, 2}, values)
}

func TestStore_LogicDispatchesToOtherModules(t *testing.T) {
	// --- Arrange ---
	pinger := module.New("pinger", 0, func(s int, a pingAction) (int, error) {
		return s + a.(ping).N, nil
	}, module.WithLogic(module.HandleActions(func(ctx context.Context, p ping, acc module.Accessor) error {
		_, err := acc.Dispatch(ctx, toggle{})
		return err
	})))
	s := newStore(t, Options{}, pinger, flagModule())

	// --- Act ---
	dispatchAll(t, s, ping{N: 2})

	// --- Assert ---
	require.Eventually(t, func() bool {
		v, _ := s.State("flag")
		return v == true
	}, 2*time.Second, 5*time.Millisecond)
	v, _ := s.State("pinger")
	assert.Equal(t, 2, v)
}

func TestStore_LogicFailureIsIsolated(t *testing.T) {
	// --- Arrange ---
	boom := errors.New("boom")
	var reported []error
	var mu sync.Mutex
	reporter := storeerrors.ReporterFunc(func(_ context.Context, err error, _ ...any) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	})
	doomed := module.New("doomed", 0, func(s int, a pingAction) (int, error) {
		return s, nil
	}, module.WithLogic(func() module.LogicHandler {
		return module.LogicFunc(func(context.Context, <-chan any, module.Accessor) error { return boom })
	}))
	s := newStore(t, Options{Reporter: reporter}, doomed, counterModule())

	// --- Act ---
	select {
	case <-s.LogicDone("doomed"):
	case <-time.After(2 * time.Second):
		t.Fatal("logic task did not end")
	}
	dispatchAll(t, s, increment{}, ping{N: 1})

	// --- Assert ---
	assert.Equal(t, supervisor.Failed, s.LogicStatus("doomed"))
	assert.ErrorIs(t, s.LogicErr("doomed"), boom)
	counter, _ := s.State("counter")
	assert.Equal(t, 1, counter)
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reported)
	var failure *storeerrors.LogicHandlerFailure
	assert.ErrorAs(t, reported[0], &failure)
}

func TestStore_DispatchAfterShutdown(t *testing.T) {
	// --- Arrange ---
	s := newStore(t, Options{}, counterModule())
	dispatchAll(t, s, increment{})

	// --- Act ---
	require.NoError(t, s.Shutdown(context.Background()))
	_, err := s.Dispatch(context.Background(), increment{})

	// --- Assert ---
	assert.ErrorIs(t, err, storeerrors.ErrStoreShutdown)
	assert.NoError(t, s.Shutdown(context.Background()))
	v, err := s.State("counter")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestStore_UnknownActionIsRejected(t *testing.T) {
	s := newStore(t, Options{}, counterModule())

	_, err := s.Dispatch(context.Background(), toggle{})

	var unknown *storeerrors.UnknownActionError
	assert.ErrorAs(t, err, &unknown)
}

func TestStore_ExportStateAndInspection(t *testing.T) {
	// --- Arrange ---
	rec := &inspect.Recorder{}
	s := newStore(t, Options{Sinks: []inspect.Sink{rec}}, counterModule(), flagModule())

	// --- Act ---
	dispatchAll(t, s, increment{}, toggle{})
	exports, err := s.ExportState()

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []inspect.StateExport{
		{Module: "counter", State: "1"},
		{Module: "flag", State: "true"},
	}, exports)

	require.NoError(t, s.Shutdown(context.Background()))
	events := rec.Events()
	require.Len(t, events, 2)
	types := []string{events[0].Type, events[1].Type}
	assert.ElementsMatch(t, []string{"counter.Increment", "flag.Toggle"}, types)
}

func TestStore_ActionCodecRoundTrip(t *testing.T) {
	s := newStore(t, Options{}, counterModule())

	text, err := s.EncodeAction(increment{})
	require.NoError(t, err)
	action, err := s.DecodeAction(text)

	require.NoError(t, err)
	assert.Equal(t, increment{}, action)
}

func TestStore_AccessorIsRestricted(t *testing.T) {
	s := newStore(t, Options{}, counterModule())

	_, isStore := s.Accessor().(*Store)

	assert.False(t, isStore)
	id, ok := s.Accessor().Lookup(counterModule().StateType)
	assert.True(t, ok)
	assert.Equal(t, "counter", id)
}

func TestStore_PersistenceWithoutBackend(t *testing.T) {
	s := newStore(t, Options{}, counterModule())

	ok, err := s.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	var storageErr *storeerrors.StorageError
	assert.ErrorAs(t, s.Save(context.Background()), &storageErr)
}

func TestNew_RejectsDuplicateModules(t *testing.T) {
	reg := registry.New()
	reg.RegisterModule(counterModule())
	reg.RegisterModule(counterModule())

	_, err := New(context.Background(), Options{Registry: reg})

	var dup *storeerrors.DuplicateModuleError
	assert.ErrorAs(t, err, &dup)
}
