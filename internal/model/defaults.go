package model

import "time"

// Shared defaults used by the engine and the daemon.
const (
	DefaultMaxLogs                    = 1000
	DefaultMaxNetworkRequests         = 500
	DefaultMaxMessageChars            = 10000
	DefaultMaxArgChars                = 2000
	DefaultMaxArgs                    = 20
	DefaultMaxArchivedLogs            = 500
	DefaultMaxArchivedNetworkRequests = 200

	DefaultSaveDebounce = 1500 * time.Millisecond
	DefaultStateKey     = "pageinspect:state"
)
