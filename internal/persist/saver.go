package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// KV is the durable key-value store snapshots are written to.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SaveRecorder observes save outcomes.
type SaveRecorder interface {
	SaveResult(err error, seconds float64, size int)
}

// Saver writes and reads the state snapshot under one key.
type Saver struct {
	kv       KV
	key      string
	codec    *Codec
	snapshot func() model.State
	recorder SaveRecorder
}

// NewSaver creates a saver. snapshot must return a deep copy of the current
// state; it is called once per save. rec may be nil.
func NewSaver(kv KV, key string, codec *Codec, snapshot func() model.State, rec SaveRecorder) *Saver {
	if key == "" {
		key = model.DefaultStateKey
	}
	return &Saver{kv: kv, key: key, codec: codec, snapshot: snapshot, recorder: rec}
}

// Key returns the storage key.
func (s *Saver) Key() string { return s.key }

// Save writes the current state. With persistState off, an emptied state
// that keeps only the settings is written instead.
func (s *Saver) Save(ctx context.Context) (err error) {
	start := time.Now()
	size := 0
	defer func() {
		if s.recorder != nil {
			s.recorder.SaveResult(err, time.Since(start).Seconds(), size)
		}
	}()

	state := s.snapshot()
	if !state.Settings.PersistState {
		state = state.Emptied()
	}

	payload, err := s.codec.Encode(state)
	if err != nil {
		return err
	}
	size = len(payload)
	if err := s.kv.Set(ctx, s.key, payload); err != nil {
		return fmt.Errorf("persist: save %q: %w", s.key, err)
	}
	return nil
}

// Load reads the stored state. found is false when nothing was saved yet.
func (s *Saver) Load(ctx context.Context) (state model.State, found bool, err error) {
	payload, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return model.State{}, false, fmt.Errorf("persist: load %q: %w", s.key, err)
	}
	if !ok || len(payload) == 0 {
		return model.State{}, false, nil
	}
	state, err = s.codec.Decode(payload)
	if err != nil {
		return model.State{}, false, err
	}
	return state, true, nil
}

// Clear deletes the stored snapshot. Clearing a key that was never saved is
// not an error.
func (s *Saver) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("persist: clear %q: %w", s.key, err)
	}
	return nil
}
