package model

// IngestEnvelope carries one raw envelope line with transport metadata.
// It is the contract between line-oriented sources (TCP, stdin) and the engine.
type IngestEnvelope struct {
	Source string
	Line   string
	// Closed marks the end of Source; no further lines follow and Line is empty.
	Closed bool
}

// MessageType is the discriminator of an inbound envelope.
type MessageType string

const (
	MessageBatch             MessageType = "batch"
	MessageConsoleLog        MessageType = "console-log"
	MessageNetworkRequest    MessageType = "network-request"
	MessageGetState          MessageType = "get-state"
	MessageClearLogs         MessageType = "clear-logs"
	MessageClearNetwork      MessageType = "clear-network"
	MessageToggleRecording   MessageType = "toggle-recording"
	MessageUpdateSettings    MessageType = "update-settings"
	MessageNavigationStarted MessageType = "navigation-started"
	MessageSessionEnded      MessageType = "session-ended"
	MessageClearAll          MessageType = "clear-all"
)

// Envelope is a decoded inbound message. Which payload field is set
// depends on Type.
type Envelope struct {
	Type      MessageType
	SessionID string
	// Target is the session a get-state, clear-*, navigation-started or
	// session-ended message applies to, taken from its payload.
	Target string

	Batch     []Envelope
	Log       *LogPayload
	Network   *NetworkPayload
	Settings  *SettingsPatch
	Recording *bool // toggle-recording target; nil flips
}

// LogPayload is a console call as reported by a capture agent. Args hold
// arbitrary runtime values and are sanitized by the engine.
type LogPayload struct {
	ID        string
	Timestamp int64
	Level     string
	Message   *string
	Args      []any
	Source    *SourceLocation
	Context   string
	SessionID string
}

// NetworkPayload is a request as reported by a capture agent.
type NetworkPayload struct {
	ID              string
	Timestamp       int64
	URL             string
	Method          string
	Status          *int
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     *string
	ResponseBody    *string
	Duration        *float64
	SessionID       string
}
