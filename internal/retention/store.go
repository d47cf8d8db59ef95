package retention

import (
	"time"

	"github.com/tinytelemetry/pageinspect/internal/model"
)

// Removed counts what a clear took out of each buffer.
type Removed struct {
	Logs            int `json:"logs"`
	NetworkRequests int `json:"networkRequests"`
	ArchivedLogs    int `json:"archivedLogs"`
	ArchivedNetwork int `json:"archivedNetwork"`
}

// Total sums all counts.
func (r Removed) Total() int {
	return r.Logs + r.NetworkRequests + r.ArchivedLogs + r.ArchivedNetwork
}

// Store holds the active log and network buffers and their archives.
// Items evicted from an active buffer are summarized into its archive,
// which rotates against its own limit. Store is not safe for concurrent use.
type Store struct {
	logs            *Buffer[model.LogEntry]
	network         *Buffer[model.NetworkRequest]
	archivedLogs    *Buffer[model.ArchivedLog]
	archivedNetwork *Buffer[model.ArchivedNetworkRequest]
	now             func() time.Time
}

// NewStore creates a store sized by settings. now stamps archive entries;
// nil uses time.Now.
func NewStore(settings model.Settings, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	s := settings.Clamped()
	archivedLogs, archivedNetwork := s.ArchiveLimits()
	return &Store{
		logs:            NewBuffer[model.LogEntry](s.MaxLogs),
		network:         NewBuffer[model.NetworkRequest](s.MaxNetworkRequests),
		archivedLogs:    NewBuffer[model.ArchivedLog](archivedLogs),
		archivedNetwork: NewBuffer[model.ArchivedNetworkRequest](archivedNetwork),
		now:             now,
	}
}

// AddLog stores e and returns how many logs were evicted to make room.
func (s *Store) AddLog(e model.LogEntry) int {
	evicted := s.logs.Push(e)
	s.archiveLogs(evicted)
	return len(evicted)
}

// AddNetwork stores r and returns how many requests were evicted.
func (s *Store) AddNetwork(r model.NetworkRequest) int {
	evicted := s.network.Push(r)
	s.archiveNetwork(evicted)
	return len(evicted)
}

// ApplyLimits resizes every buffer to settings. Shrinking an active buffer
// archives its overflow; a disabled archive is emptied.
func (s *Store) ApplyLimits(settings model.Settings) (logsEvicted, networkEvicted int) {
	c := settings.Clamped()
	archivedLogs, archivedNetwork := c.ArchiveLimits()
	s.archivedLogs.SetLimit(archivedLogs)
	s.archivedNetwork.SetLimit(archivedNetwork)

	evictedLogs := s.logs.SetLimit(c.MaxLogs)
	s.archiveLogs(evictedLogs)
	evictedNetwork := s.network.SetLimit(c.MaxNetworkRequests)
	s.archiveNetwork(evictedNetwork)
	return len(evictedLogs), len(evictedNetwork)
}

func (s *Store) archiveLogs(evicted []model.LogEntry) {
	if len(evicted) == 0 || s.archivedLogs.Limit() == 0 {
		return
	}
	at := s.now().UnixMilli()
	for _, e := range evicted {
		s.archivedLogs.Push(model.SummarizeLog(e, at))
	}
}

func (s *Store) archiveNetwork(evicted []model.NetworkRequest) {
	if len(evicted) == 0 || s.archivedNetwork.Limit() == 0 {
		return
	}
	at := s.now().UnixMilli()
	for _, r := range evicted {
		s.archivedNetwork.Push(model.SummarizeNetwork(r, at))
	}
}

// Logs returns deep copies of the active logs, oldest first.
func (s *Store) Logs() []model.LogEntry {
	items := s.logs.Items()
	for i := range items {
		items[i] = items[i].Clone()
	}
	return items
}

// NetworkRequests returns deep copies of the active requests, oldest first.
func (s *Store) NetworkRequests() []model.NetworkRequest {
	items := s.network.Items()
	for i := range items {
		items[i] = items[i].Clone()
	}
	return items
}

// Archives returns copies of both archives.
func (s *Store) Archives() model.Archives {
	network := s.archivedNetwork.Items()
	for i := range network {
		network[i] = network[i].Clone()
	}
	return model.Archives{
		Logs:            s.archivedLogs.Items(),
		NetworkRequests: network,
	}
}

// Len reports how many active logs and requests are held.
func (s *Store) Len() (logs, network int) {
	return s.logs.Len(), s.network.Len()
}

// ArchiveLen reports how many archived logs and requests are held.
func (s *Store) ArchiveLen() (logs, network int) {
	return s.archivedLogs.Len(), s.archivedNetwork.Len()
}

// ClearLogs removes active and archived logs, for one session or, with an
// empty id, all of them.
func (s *Store) ClearLogs(sessionID string) Removed {
	if sessionID == "" {
		return Removed{Logs: s.logs.Reset(), ArchivedLogs: s.archivedLogs.Reset()}
	}
	return Removed{
		Logs:         s.logs.RemoveFunc(func(e model.LogEntry) bool { return e.SessionID == sessionID }),
		ArchivedLogs: s.archivedLogs.RemoveFunc(func(a model.ArchivedLog) bool { return a.SessionID == sessionID }),
	}
}

// ClearNetwork removes active and archived requests, for one session or
// all of them.
func (s *Store) ClearNetwork(sessionID string) Removed {
	if sessionID == "" {
		return Removed{NetworkRequests: s.network.Reset(), ArchivedNetwork: s.archivedNetwork.Reset()}
	}
	return Removed{
		NetworkRequests: s.network.RemoveFunc(func(r model.NetworkRequest) bool { return r.SessionID == sessionID }),
		ArchivedNetwork: s.archivedNetwork.RemoveFunc(func(a model.ArchivedNetworkRequest) bool { return a.SessionID == sessionID }),
	}
}

// ClearSession removes everything belonging to sessionID. An empty id
// removes nothing.
func (s *Store) ClearSession(sessionID string) Removed {
	if sessionID == "" {
		return Removed{}
	}
	logs := s.ClearLogs(sessionID)
	network := s.ClearNetwork(sessionID)
	return Removed{
		Logs:            logs.Logs,
		ArchivedLogs:    logs.ArchivedLogs,
		NetworkRequests: network.NetworkRequests,
		ArchivedNetwork: network.ArchivedNetwork,
	}
}

// Reset clears every buffer.
func (s *Store) Reset() Removed {
	logs := s.ClearLogs("")
	network := s.ClearNetwork("")
	return Removed{
		Logs:            logs.Logs,
		ArchivedLogs:    logs.ArchivedLogs,
		NetworkRequests: network.NetworkRequests,
		ArchivedNetwork: network.ArchivedNetwork,
	}
}

// Load replaces all buffers with the contents of a rehydrated state and
// applies the current limits. Overflow from the active buffers is archived.
func (s *Store) Load(state model.State) {
	s.archivedLogs.Load(state.Archives.Logs)
	s.archivedNetwork.Load(state.Archives.NetworkRequests)
	s.archiveLogs(s.logs.Load(state.Logs))
	s.archiveNetwork(s.network.Load(state.NetworkRequests))
}
