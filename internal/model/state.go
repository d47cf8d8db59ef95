package model

// State is the aggregate the inspector UI reads. Values handed out by the
// engine are always deep copies.
type State struct {
	Logs            []LogEntry       `json:"logs"`
	NetworkRequests []NetworkRequest `json:"networkRequests"`
	IsRecording     bool             `json:"isRecording"`
	Settings        Settings         `json:"settings"`
	Stats           Stats            `json:"stats"`
	Archives        Archives         `json:"archives"`
}

// NewState returns an empty, recording state with the given settings.
func NewState(settings Settings) State {
	return State{
		Logs:            []LogEntry{},
		NetworkRequests: []NetworkRequest{},
		IsRecording:     true,
		Settings:        settings.Clone(),
		Archives: Archives{
			Logs:            []ArchivedLog{},
			NetworkRequests: []ArchivedNetworkRequest{},
		},
	}
}

// Emptied keeps the settings and recording flag and drops every captured
// item and counter. It is what gets persisted when persistState is off.
func (s State) Emptied() State {
	out := NewState(s.Settings)
	out.IsRecording = s.IsRecording
	return out
}

// ForSession returns a copy of s restricted to one session. An empty id
// returns everything.
func (s State) ForSession(sessionID string) State {
	if sessionID == "" {
		return s
	}
	out := s
	out.Logs = filterSlice(s.Logs, func(e LogEntry) bool { return e.SessionID == sessionID })
	out.NetworkRequests = filterSlice(s.NetworkRequests, func(r NetworkRequest) bool { return r.SessionID == sessionID })
	out.Archives = Archives{
		Logs:            filterSlice(s.Archives.Logs, func(a ArchivedLog) bool { return a.SessionID == sessionID }),
		NetworkRequests: filterSlice(s.Archives.NetworkRequests, func(a ArchivedNetworkRequest) bool { return a.SessionID == sessionID }),
	}
	return out
}

func filterSlice[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
