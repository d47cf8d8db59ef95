package persist

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func sampleState() model.State {
	s := model.NewState(model.DefaultSettings())
	s.Logs = []model.LogEntry{{
		ID:        "l1",
		Timestamp: 1700000000000,
		Level:     model.LevelWarn,
		Message:   "disk almost full",
		Args:      []model.Value{model.NumberValue(93), model.UndefinedValue()},
		Context:   model.ContextPage,
		SessionID: "tab-1",
	}}
	s.Stats.Logs = model.CategoryStats{Received: 1, Stored: 1}
	return s
}

type recordedSave struct {
	err  error
	size int
}

type saveRecorderStub struct{ results []recordedSave }

func (r *saveRecorderStub) SaveResult(err error, _ float64, size int) {
	r.results = append(r.results, recordedSave{err: err, size: size})
}

func TestSaverRoundTrip(t *testing.T) {
	kv := NewMemoryKV()
	rec := &saveRecorderStub{}
	state := sampleState()
	saver := NewSaver(kv, "", newCodec(t), func() model.State { return state }, rec)

	require.NoError(t, saver.Save(context.Background()))
	assert.Equal(t, model.DefaultStateKey, saver.Key())

	raw, ok, err := kv.Get(context.Background(), model.DefaultStateKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(raw, zstdMagic))

	loaded, found, err := saver.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, loaded.Logs, 1)
	assert.Equal(t, "disk almost full", loaded.Logs[0].Message)
	assert.Equal(t, model.KindString, loaded.Logs[0].Args[1].Kind)
	assert.Equal(t, state.Settings, loaded.Settings)

	require.Len(t, rec.results, 1)
	assert.NoError(t, rec.results[0].err)
	assert.Equal(t, len(raw), rec.results[0].size)
}

func TestSaverWritesEmptiedStateWhenPersistenceOff(t *testing.T) {
	kv := NewMemoryKV()
	state := sampleState()
	state.Settings.PersistState = false
	state.Settings.MaxLogs = 42
	saver := NewSaver(kv, "k", newCodec(t), func() model.State { return state }, nil)

	require.NoError(t, saver.Save(context.Background()))
	loaded, found, err := saver.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, loaded.Logs)
	assert.Zero(t, loaded.Stats.Logs.Received)
	assert.Equal(t, 42, loaded.Settings.MaxLogs)
}

func TestSaverLoadMissingKey(t *testing.T) {
	saver := NewSaver(NewMemoryKV(), "k", newCodec(t), nil, nil)
	_, found, err := saver.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSaverClear(t *testing.T) {
	kv := NewMemoryKV()
	state := sampleState()
	saver := NewSaver(kv, "k", newCodec(t), func() model.State { return state }, nil)
	ctx := context.Background()

	require.NoError(t, saver.Save(ctx))
	require.NoError(t, saver.Clear(ctx))
	_, found, err := saver.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, saver.Clear(ctx), "clearing a missing key")
}

func TestCodecAcceptsPlainJSON(t *testing.T) {
	c := newCodec(t)
	state, err := c.Decode([]byte(`{"logs":[{"id":"x","level":"info","message":"m","args":[],"context":"page","sessionId":"s","timestamp":1}],"isRecording":true}`))
	require.NoError(t, err)
	require.Len(t, state.Logs, 1)
	assert.Equal(t, model.LevelInfo, state.Logs[0].Level)

	_, err = c.Decode([]byte("garbage"))
	assert.Error(t, err)
}
