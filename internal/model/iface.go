package model

import "context"

// StateReader is the read contract exposed to UI-facing surfaces.
type StateReader interface {
	Snapshot(sessionID string) State
	Stats() Stats
	Settings() Settings
}

// Dispatcher accepts encoded envelopes from transports.
type Dispatcher interface {
	HandleRaw(ctx context.Context, data []byte, originSessionID string) Response
}

// Response is returned to the caller of an envelope.
type Response struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Processed int    `json:"processed,omitempty"`
	State     *State `json:"state,omitempty"`
	Recording *bool  `json:"isRecording,omitempty"`
}
