package server

import "time"

const (
	// DefaultTickInterval is the physics period.
	DefaultTickInterval = 16 * time.Millisecond
	// DefaultPruneInterval is how often closed connections are swept.
	DefaultPruneInterval = time.Second

	eventQueueSize = 256
)
