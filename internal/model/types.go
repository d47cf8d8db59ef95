package model

// Level is the normalized console level of a LogEntry.
type Level string

// Known console levels. Anything else normalizes to LevelLog.
const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
	LevelUI    Level = "ui"
	LevelDB    Level = "db"
	LevelAPI   Level = "api"

	DefaultLevel = LevelLog
)

// KnownLevels lists every level a stored LogEntry may carry.
var KnownLevels = []Level{
	LevelLog, LevelInfo, LevelWarn, LevelError, LevelDebug, LevelTrace, LevelUI, LevelDB, LevelAPI,
}

// IsKnown reports whether l is part of the known level set.
func (l Level) IsKnown() bool {
	for _, k := range KnownLevels {
		if k == l {
			return true
		}
	}
	return false
}

// Context identifies which side of the monitored page produced a log.
type Context string

const (
	ContextPage      Context = "page"
	ContextExtension Context = "extension"
)

// Category names a retention category.
type Category string

const (
	CategoryLogs    Category = "logs"
	CategoryNetwork Category = "network"
)

// SourceLocation is where a console call originated.
type SourceLocation struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
	Raw    string `json:"raw,omitempty"` // unparsed source string as reported by the agent
}

// LogEntry is one captured console call after sanitization.
type LogEntry struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Args      []Value         `json:"args"`
	Source    *SourceLocation `json:"source,omitempty"`
	Context   Context         `json:"context"`
	SessionID string          `json:"sessionId"`
}

// NetworkRequest is one captured request/response pair.
type NetworkRequest struct {
	ID              string            `json:"id"`
	Timestamp       int64             `json:"timestamp"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Status          *int              `json:"status,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	RequestBody     *string           `json:"requestBody,omitempty"`
	ResponseBody    *string           `json:"responseBody,omitempty"`
	Duration        *float64          `json:"duration,omitempty"` // milliseconds
	SessionID       string            `json:"sessionId"`
}

// Clone returns a deep copy of e.
func (e LogEntry) Clone() LogEntry {
	out := e
	if e.Args != nil {
		out.Args = make([]Value, len(e.Args))
		for i, v := range e.Args {
			out.Args[i] = v.Clone()
		}
	}
	if e.Source != nil {
		src := *e.Source
		out.Source = &src
	}
	return out
}

// Clone returns a deep copy of r.
func (r NetworkRequest) Clone() NetworkRequest {
	out := r
	if r.Status != nil {
		v := *r.Status
		out.Status = &v
	}
	if r.Duration != nil {
		v := *r.Duration
		out.Duration = &v
	}
	if r.RequestBody != nil {
		v := *r.RequestBody
		out.RequestBody = &v
	}
	if r.ResponseBody != nil {
		v := *r.ResponseBody
		out.ResponseBody = &v
	}
	out.RequestHeaders = cloneHeaders(r.RequestHeaders)
	out.ResponseHeaders = cloneHeaders(r.ResponseHeaders)
	return out
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
