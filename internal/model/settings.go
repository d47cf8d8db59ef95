package model

// Settings is the user-editable capture configuration.
type Settings struct {
	CaptureConsole             bool     `json:"captureConsole" mapstructure:"capture-console" yaml:"capture-console"`
	CaptureNetwork             bool     `json:"captureNetwork" mapstructure:"capture-network" yaml:"capture-network"`
	NetworkMonitoring          bool     `json:"networkMonitoring" mapstructure:"network-monitoring" yaml:"network-monitoring"`
	PersistState               bool     `json:"persistState" mapstructure:"persist-state" yaml:"persist-state"`
	MaxLogs                    int      `json:"maxLogs" mapstructure:"max-logs" yaml:"max-logs"`
	MaxNetworkRequests         int      `json:"maxNetworkRequests" mapstructure:"max-network-requests" yaml:"max-network-requests"`
	AllowedLogLevels           []string `json:"allowedLogLevels,omitempty" mapstructure:"allowed-log-levels" yaml:"allowed-log-levels,omitempty"`
	ContentFilter              string   `json:"contentFilter,omitempty" mapstructure:"content-filter" yaml:"content-filter,omitempty"`
	SourceFilter               string   `json:"sourceFilter,omitempty" mapstructure:"source-filter" yaml:"source-filter,omitempty"`
	// MaxMessageChars bounds a log message in runes. Zero keeps none; the
	// truncation suffix is all that remains of a non-empty message.
	MaxMessageChars            int      `json:"maxMessageChars" mapstructure:"max-message-chars" yaml:"max-message-chars"`
	MaxArgChars                int      `json:"maxArgChars" mapstructure:"max-arg-chars" yaml:"max-arg-chars"`
	MaxArgs                    int      `json:"maxArgs" mapstructure:"max-args" yaml:"max-args"`
	ArchiveEnabled             bool     `json:"archiveEnabled" mapstructure:"archive-enabled" yaml:"archive-enabled"`
	MaxArchivedLogs            int      `json:"maxArchivedLogs" mapstructure:"max-archived-logs" yaml:"max-archived-logs"`
	MaxArchivedNetworkRequests int      `json:"maxArchivedNetworkRequests" mapstructure:"max-archived-network-requests" yaml:"max-archived-network-requests"`
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		CaptureConsole:             true,
		CaptureNetwork:             true,
		NetworkMonitoring:          true,
		PersistState:               true,
		MaxLogs:                    DefaultMaxLogs,
		MaxNetworkRequests:         DefaultMaxNetworkRequests,
		MaxMessageChars:            DefaultMaxMessageChars,
		MaxArgChars:                DefaultMaxArgChars,
		MaxArgs:                    DefaultMaxArgs,
		ArchiveEnabled:             true,
		MaxArchivedLogs:            DefaultMaxArchivedLogs,
		MaxArchivedNetworkRequests: DefaultMaxArchivedNetworkRequests,
	}
}

// Clone returns a copy of s that does not share the level slice.
func (s Settings) Clone() Settings {
	out := s
	if s.AllowedLogLevels != nil {
		out.AllowedLogLevels = append([]string(nil), s.AllowedLogLevels...)
	}
	return out
}

// Clamped returns s with negative limits raised to zero.
func (s Settings) Clamped() Settings {
	for _, p := range []*int{
		&s.MaxLogs, &s.MaxNetworkRequests, &s.MaxMessageChars, &s.MaxArgChars,
		&s.MaxArgs, &s.MaxArchivedLogs, &s.MaxArchivedNetworkRequests,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	return s
}

// ArchiveLimits returns the effective archive caps; a disabled archive holds nothing.
func (s Settings) ArchiveLimits() (logs, network int) {
	if !s.ArchiveEnabled {
		return 0, 0
	}
	return s.MaxArchivedLogs, s.MaxArchivedNetworkRequests
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	CaptureConsole             *bool     `json:"captureConsole,omitempty"`
	CaptureNetwork             *bool     `json:"captureNetwork,omitempty"`
	NetworkMonitoring          *bool     `json:"networkMonitoring,omitempty"`
	PersistState               *bool     `json:"persistState,omitempty"`
	MaxLogs                    *int      `json:"maxLogs,omitempty"`
	MaxNetworkRequests         *int      `json:"maxNetworkRequests,omitempty"`
	AllowedLogLevels           *[]string `json:"allowedLogLevels,omitempty"`
	ContentFilter              *string   `json:"contentFilter,omitempty"`
	SourceFilter               *string   `json:"sourceFilter,omitempty"`
	MaxMessageChars            *int      `json:"maxMessageChars,omitempty"`
	MaxArgChars                *int      `json:"maxArgChars,omitempty"`
	MaxArgs                    *int      `json:"maxArgs,omitempty"`
	ArchiveEnabled             *bool     `json:"archiveEnabled,omitempty"`
	MaxArchivedLogs            *int      `json:"maxArchivedLogs,omitempty"`
	MaxArchivedNetworkRequests *int      `json:"maxArchivedNetworkRequests,omitempty"`
}

// Apply returns s with every non-nil field of p written over it.
func (p SettingsPatch) Apply(s Settings) Settings {
	out := s.Clone()
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&out.CaptureConsole, p.CaptureConsole)
	setBool(&out.CaptureNetwork, p.CaptureNetwork)
	setBool(&out.NetworkMonitoring, p.NetworkMonitoring)
	setBool(&out.PersistState, p.PersistState)
	setBool(&out.ArchiveEnabled, p.ArchiveEnabled)
	setInt(&out.MaxLogs, p.MaxLogs)
	setInt(&out.MaxNetworkRequests, p.MaxNetworkRequests)
	setInt(&out.MaxMessageChars, p.MaxMessageChars)
	setInt(&out.MaxArgChars, p.MaxArgChars)
	setInt(&out.MaxArgs, p.MaxArgs)
	setInt(&out.MaxArchivedLogs, p.MaxArchivedLogs)
	setInt(&out.MaxArchivedNetworkRequests, p.MaxArchivedNetworkRequests)
	if p.AllowedLogLevels != nil {
		out.AllowedLogLevels = append([]string(nil), (*p.AllowedLogLevels)...)
	}
	if p.ContentFilter != nil {
		out.ContentFilter = *p.ContentFilter
	}
	if p.SourceFilter != nil {
		out.SourceFilter = *p.SourceFilter
	}
	return out.Clamped()
}
