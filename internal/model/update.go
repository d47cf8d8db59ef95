package model

// UpdateType tags a change notification sent to inspector UIs.
type UpdateType string

const (
	UpdateLogAdded         UpdateType = "LOG_ADDED"
	UpdateNetworkAdded     UpdateType = "NETWORK_ADDED"
	UpdateLogsCleared      UpdateType = "LOGS_CLEARED"
	UpdateNetworkCleared   UpdateType = "NETWORK_CLEARED"
	UpdateSettingsUpdated  UpdateType = "SETTINGS_UPDATED"
	UpdateRecordingToggled UpdateType = "RECORDING_TOGGLED"
)

// Notification is one broadcast state change.
type Notification struct {
	Type      UpdateType `json:"type"`
	Payload   any        `json:"payload,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// ClearedPayload describes the scope of a clear notification.
type ClearedPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Removed   int    `json:"removed"`
}
