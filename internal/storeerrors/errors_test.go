package storeerrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy_UnwrapAndAs(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("dispatch: %w", &ReducerFailure{Module: "counter", Action: "counter.Increment", Err: cause})

	var failure *ReducerFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "counter", failure.Module)
	assert.ErrorIs(t, err, cause)

	storage := &StorageError{Op: "save", Err: cause}
	assert.ErrorIs(t, storage, cause)
	assert.Contains(t, storage.Error(), "storage save failed")
}

func TestEnvelope_Categories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category goerrors.Category
		code     int
		textCode string
	}{
		{"shutdown", fmt.Errorf("x: %w", ErrStoreShutdown), goerrors.CategoryOperation, http.StatusServiceUnavailable, TextCodeShutdown},
		{"duplicate", &DuplicateModuleError{ID: "a"}, goerrors.CategoryConflict, http.StatusConflict, TextCodeDuplicateModule},
		{"collision", &TypeCollisionError{Name: "n", Type: "t"}, goerrors.CategoryConflict, http.StatusConflict, TextCodeTypeCollision},
		{"unknown module", &UnknownModuleError{ID: "a"}, goerrors.CategoryNotFound, http.StatusNotFound, TextCodeUnknownModule},
		{"unregistered", &UnregisteredTypeError{Type: "x"}, goerrors.CategoryBadInput, http.StatusBadRequest, TextCodeUnregisteredType},
		{"reducer", &ReducerFailure{Module: "a", Err: errors.New("x")}, goerrors.CategoryOperation, http.StatusUnprocessableEntity, TextCodeReducerFailure},
		{"storage", &StorageError{Op: "load", Err: errors.New("x")}, goerrors.CategoryExternal, http.StatusBadGateway, TextCodeStorage},
		{"plain", errors.New("x"), goerrors.CategoryInternal, http.StatusInternalServerError, TextCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := Envelope(tc.err)
			require.NotNil(t, env)
			assert.Equal(t, tc.category, env.Category)
			assert.Equal(t, tc.code, env.Code)
			assert.Equal(t, tc.textCode, env.TextCode)
		})
	}
	assert.Nil(t, Envelope(nil))
}

func TestLogReporter_WritesTextCode(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	r.Report(context.Background(), &LogicHandlerFailure{Module: "fetch", Err: errors.New("dial")}, "module", "fetch")

	out := buf.String()
	assert.Contains(t, out, "text_code="+TextCodeLogicFailure)
	assert.Contains(t, out, "module=fetch")
}

func TestMulti_SkipsNil(t *testing.T) {
	var calls int
	r := Multi(nil, ReporterFunc(func(context.Context, error, ...any) { calls++ }))
	r.Report(context.Background(), errors.New("x"))
	assert.Equal(t, 1, calls)
}
