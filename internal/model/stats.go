package model

// Filter rejection reasons, used as keys of CategoryStats.FilterReasons.
const (
	ReasonLevel   = "level"
	ReasonSource  = "source"
	ReasonContent = "content"
)

// CategoryStats counts ingestion outcomes for one category.
type CategoryStats struct {
	Received        int64            `json:"received"`
	Stored          int64            `json:"stored"`
	DroppedByFilter int64            `json:"droppedByFilter"`
	DroppedByLimit  int64            `json:"droppedByLimit"`
	FilterReasons   map[string]int64 `json:"filterReasons,omitempty"`
}

// Balanced reports whether received == stored + droppedByFilter + droppedByLimit.
func (c CategoryStats) Balanced() bool {
	return c.Received == c.Stored+c.DroppedByFilter+c.DroppedByLimit
}

// Clone returns a copy that does not share the reasons map.
func (c CategoryStats) Clone() CategoryStats {
	out := c
	if c.FilterReasons != nil {
		out.FilterReasons = make(map[string]int64, len(c.FilterReasons))
		for k, v := range c.FilterReasons {
			out.FilterReasons[k] = v
		}
	}
	return out
}

// Stats groups per-category counters for the process lifetime.
type Stats struct {
	Logs    CategoryStats `json:"logs"`
	Network CategoryStats `json:"network"`
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	return Stats{Logs: s.Logs.Clone(), Network: s.Network.Clone()}
}
