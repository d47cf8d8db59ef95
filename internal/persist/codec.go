package persist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Codec encodes state snapshots as zstd-compressed JSON. Plain JSON
// payloads are still accepted on decode.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates a codec.
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("persist: zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("persist: zstd reader: %w", err)
	}
	return &Codec{encoder: enc, decoder: dec}, nil
}

// Encode serializes state.
func (c *Codec) Encode(state model.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("persist: encode state: %w", err)
	}
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

// Decode restores a state written by Encode.
func (c *Codec) Decode(payload []byte) (model.State, error) {
	data := payload
	if bytes.HasPrefix(payload, zstdMagic) {
		var err error
		data, err = c.decoder.DecodeAll(payload, nil)
		if err != nil {
			return model.State{}, fmt.Errorf("persist: decompress state: %w", err)
		}
	}

	var state model.State
	if err := json.Unmarshal(data, &state); err != nil {
		return model.State{}, fmt.Errorf("persist: decode state: %w", err)
	}
	return state, nil
}

// Close releases the decoder's goroutines.
func (c *Codec) Close() {
	c.decoder.Close()
	_ = c.encoder.Close()
}
