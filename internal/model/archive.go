package model

// ArchivedLog is the summarized projection of a LogEntry evicted from the
// active buffer. Arguments are not kept.
type ArchivedLog struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Level      Level  `json:"level"`
	Message    string `json:"message"`
	SessionID  string `json:"sessionId"`
	SourceFile string `json:"sourceFile,omitempty"`
	ArgCount   int    `json:"argCount"`
	ArchivedAt int64  `json:"archivedAt"`
}

// ArchivedNetworkRequest is the summarized projection of an evicted
// NetworkRequest. Headers and bodies are not kept.
type ArchivedNetworkRequest struct {
	ID         string   `json:"id"`
	Timestamp  int64    `json:"timestamp"`
	URL        string   `json:"url"`
	Method     string   `json:"method"`
	Status     *int     `json:"status,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	SessionID  string   `json:"sessionId"`
	ArchivedAt int64    `json:"archivedAt"`
}

// Archives holds both archive categories.
type Archives struct {
	Logs            []ArchivedLog            `json:"logs"`
	NetworkRequests []ArchivedNetworkRequest `json:"networkRequests"`
}

// SummarizeLog projects e into its archived form.
func SummarizeLog(e LogEntry, archivedAt int64) ArchivedLog {
	a := ArchivedLog{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Level:      e.Level,
		Message:    e.Message,
		SessionID:  e.SessionID,
		ArgCount:   len(e.Args),
		ArchivedAt: archivedAt,
	}
	if e.Source != nil {
		a.SourceFile = e.Source.File
	}
	return a
}

// SummarizeNetwork projects r into its archived form.
func SummarizeNetwork(r NetworkRequest, archivedAt int64) ArchivedNetworkRequest {
	c := r.Clone()
	return ArchivedNetworkRequest{
		ID:         c.ID,
		Timestamp:  c.Timestamp,
		URL:        c.URL,
		Method:     c.Method,
		Status:     c.Status,
		Duration:   c.Duration,
		SessionID:  c.SessionID,
		ArchivedAt: archivedAt,
	}
}

// Clone returns a copy that does not share the optional fields.
func (a ArchivedNetworkRequest) Clone() ArchivedNetworkRequest {
	out := a
	if a.Status != nil {
		status := *a.Status
		out.Status = &status
	}
	if a.Duration != nil {
		d := *a.Duration
		out.Duration = &d
	}
	return out
}
