package persist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/inmemorybackend"
	"github.com/specialistvlad/burststate/internal/module"
	"github.com/specialistvlad/burststate/internal/registry"
	"github.com/specialistvlad/burststate/internal/statestore"
	"github.com/specialistvlad/burststate/internal/storeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pet interface{ sound() string }

type dog struct {
	Name string `json:"name"`
}

func (dog) sound() string { return "woof" }

type cat struct{}

func (cat) sound() string { return "meow" }

type petAction interface{ isPet() }

type adopt struct{ Pet pet }

func (adopt) isPet() {}

type countAction interface{ isCount() }

type bump struct{}

func (bump) isCount() {}

type recorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *recorder) Report(_ context.Context, err error, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

type pauseCounter struct{ pauses, resumes int }

func (p *pauseCounter) Pause() func() {
	p.pauses++
	return func() { p.resumes++ }
}

type fixture struct {
	bridge  *Bridge
	states  *statestore.Store
	backend *inmemorybackend.Backend
	reports *recorder
	pauser  *pauseCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New()
	reg.RegisterModule(module.New("count", 0, func(s int, _ countAction) (int, error) { return s + 1, nil }))
	reg.RegisterModule(module.New("pets", []pet(nil), func(s []pet, a petAction) ([]pet, error) {
		return append(s, a.(adopt).Pet), nil
	}, module.WithTypes(module.Family[pet](codec.V[dog]("pets.Dog")))))
	catalog, err := reg.Build(context.Background())
	require.NoError(t, err)

	states, err := statestore.New(statestore.Seed{ID: "count", Value: 0}, statestore.Seed{ID: "pets", Value: []pet(nil)})
	require.NoError(t, err)

	f := &fixture{
		states:  states,
		backend: inmemorybackend.New(),
		reports: &recorder{},
		pauser:  &pauseCounter{},
	}
	f.bridge = NewBridge(Options{
		Catalog:  catalog,
		States:   states,
		Backend:  f.backend,
		Reporter: f.reports,
		Pauser:   f.pauser,
	})
	return f
}

func TestBridge_SaveRestoreRoundTrip(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.states.Set("count", 7))
	require.NoError(t, f.states.Set("pets", []pet{dog{Name: "rex"}}))

	exists, err := f.bridge.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	// --- Act ---
	require.NoError(t, f.bridge.Save(ctx))
	require.NoError(t, f.states.Set("count", 0))
	require.NoError(t, f.states.Set("pets", []pet(nil)))
	out, err := f.bridge.Restore(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, []string{"count", "pets"}, out.Restored)
	assert.Equal(t, map[string]any{"count": 7, "pets": []pet{dog{Name: "rex"}}}, f.states.Snapshot())
	assert.Equal(t, 1, f.pauser.pauses)
	assert.Equal(t, 1, f.pauser.resumes)

	saved, _, _ := f.backend.Load(ctx)
	assert.Equal(t, `{"version":1,"modules":{"count":"7","pets":"[{\"@type\":\"pets.Dog\",\"value\":{\"name\":\"rex\"}}]"}}`, saved)
}

func TestBridge_RestoreDegradesPerModule(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.states.Set("count", 3))
	require.NoError(t, f.states.Set("pets", []pet{dog{Name: "old"}}))

	text := `{"version":1,"modules":{"ghost":"1","pets":"[{\"@type\":\"pets.Cat\",\"value\":{}}]"}}`
	out, err := f.bridge.RestoreText(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, []string{"ghost"}, out.Dropped)
	assert.Equal(t, []string{"count"}, out.Missing)
	assert.Equal(t, []string{"pets"}, out.Defaulted)
	assert.Empty(t, out.Restored)
	assert.Equal(t, map[string]any{"count": 0, "pets": []pet(nil)}, f.states.Snapshot())

	require.Len(t, f.reports.errs, 1)
	var unreg *storeerrors.UnregisteredTypeError
	assert.ErrorAs(t, f.reports.errs[0], &unreg)
}

func TestBridge_MalformedSnapshotChangesNothing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.states.Set("count", 5))

	for _, text := range []string{`not json`, `{"version":2,"modules":{}}`, `{"version":1,"modules":[]}`} {
		_, err := f.bridge.RestoreText(context.Background(), text)
		assert.Error(t, err, text)
	}
	v, _ := f.states.Get("count")
	assert.Equal(t, 5, v)
	assert.Zero(t, f.pauser.pauses)
}

func TestBridge_CaptureOmitsUnencodableModule(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.states.Set("pets", []pet{cat{}}))

	snap, err := f.bridge.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, snap.IDs())
	require.Len(t, f.reports.errs, 1)
	var unreg *storeerrors.UnregisteredTypeError
	assert.ErrorAs(t, f.reports.errs[0], &unreg)
}

type brokenBackend struct{}

var errDisk = errors.New("disk on fire")

func (brokenBackend) Save(context.Context, string) error         { return errDisk }
func (brokenBackend) Load(context.Context) (string, bool, error) { return "", false, errDisk }
func (brokenBackend) Has(context.Context) (bool, error)          { return false, errDisk }

func TestBridge_StorageErrors(t *testing.T) {
	f := newFixture(t)
	f.bridge.backend = brokenBackend{}
	require.NoError(t, f.states.Set("count", 9))
	ctx := context.Background()

	var storageErr *storeerrors.StorageError
	err := f.bridge.Save(ctx)
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "save", storageErr.Op)
	assert.ErrorIs(t, err, errDisk)

	_, err = f.bridge.Restore(ctx)
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "load", storageErr.Op)

	_, err = f.bridge.Exists(ctx)
	require.ErrorAs(t, err, &storageErr)

	v, _ := f.states.Get("count")
	assert.Equal(t, 9, v, "state is untouched by storage failures")
}

func TestBridge_RestoreWithoutSavedSnapshot(t *testing.T) {
	f := newFixture(t)
	out, err := f.bridge.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Zero(t, f.pauser.pauses)
}

func TestSnapshot_PreservesOrder(t *testing.T) {
	s := NewSnapshot()
	s.Put("zeta", "1")
	s.Put("alpha", "2")
	s.Put("zeta", "3")

	text := s.String()
	assert.Equal(t, `{"version":1,"modules":{"zeta":"3","alpha":"2"}}`, text)

	back, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, back.IDs())
	v, ok := back.Get("zeta")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}
