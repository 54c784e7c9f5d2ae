package inspect_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/specialistvlad/burststate/internal/codec"
	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signal interface{ isSignal() }

type ping struct {
	N int `json:"n"`
}

func (ping) isSignal() {}

func newCodec(t *testing.T) *codec.Codec {
	t.Helper()
	r := codec.NewRegistry()
	require.NoError(t, codec.RegisterFamily[signal](r, codec.V[ping]("sig.Ping")))
	return r.Compose()
}

func TestTap_DeliversInOrderToEverySink(t *testing.T) {
	// --- Arrange ---
	rec := &inspect.Recorder{}
	buf := &testutil.SafeBuffer{}
	logSink := inspect.LogSink{Logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	tap := inspect.NewTap(newCodec(t), nil, rec)
	tap.AddSink(logSink)
	tap.Start(context.Background())
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	// --- Act ---
	tap.Publish(inspect.Record{Module: "pinger", Action: ping{N: 1}, At: at, Outcome: inspect.Reduced})
	tap.Publish(inspect.Record{Module: "pinger", Action: ping{N: 2}, At: at})
	tap.Publish(inspect.Record{Module: "misc", Action: map[string]any{"k": "v"}, At: at, Outcome: inspect.Reduced})
	tap.Close()

	// --- Assert ---
	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, "sig.Ping", events[0].Type)
	assert.Equal(t, `{"@type":"sig.Ping","value":{"n":1}}`, events[0].Payload)
	assert.Equal(t, at, events[0].Timestamp)
	assert.Equal(t, inspect.Reduced, events[1].Outcome, "outcome defaults to reduced")
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.Equal(t, "map[string]interface {}", events[2].Type)
	assert.Contains(t, events[2].Payload, `"@any"`)
	assert.Contains(t, buf.String(), "type=sig.Ping")
	assert.Contains(t, buf.String(), "outcome=reduced")
}

func TestTap_CarriesFailureOutcomes(t *testing.T) {
	rec := &inspect.Recorder{}
	tap := inspect.NewTap(newCodec(t), nil, rec)
	tap.Start(context.Background())

	tap.Publish(inspect.Record{Module: "pinger", Action: ping{N: 1}, Outcome: inspect.Failed, Err: errors.New("refused")})
	tap.Publish(inspect.Record{Module: "pinger", Action: ping{N: 2}, Outcome: inspect.Dropped})
	tap.Close()

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, inspect.Failed, events[0].Outcome)
	assert.Equal(t, "refused", events[0].Error)
	assert.Equal(t, inspect.Dropped, events[1].Outcome)
	assert.Empty(t, events[1].Error)
}

func TestTap_EncodeFailureIsReportedAndSkipped(t *testing.T) {
	var reported []error
	rec := &inspect.Recorder{}
	r := codec.NewRegistry()
	require.NoError(t, codec.RegisterFamily[signal](r, codec.V[ping](""), codec.V[measure]("")))
	tap := inspect.NewTap(r.Compose(), reporterFunc(func(err error) { reported = append(reported, err) }), rec)
	tap.Start(context.Background())

	tap.Publish(inspect.Record{Module: "m", Action: measure{V: math.NaN()}, At: time.Now()})
	tap.Publish(inspect.Record{Module: "m", Action: ping{N: 1}, At: time.Now()})
	tap.Close()

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, uint64(1), rec.Events()[0].Seq)
	require.Len(t, reported, 1)
	assert.ErrorContains(t, reported[0], "unsupported float value")
}

type measure struct{ V float64 }

func (measure) isSignal() {}

type reporterFunc func(err error)

func (f reporterFunc) Report(_ context.Context, err error, _ ...any) { f(err) }
