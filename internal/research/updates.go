package research

// UpdateKind distinguishes the messages a Job publishes on its Updates channel.
type UpdateKind int

const (
	// UpdateProgress carries a fresh merged snapshot.
	UpdateProgress UpdateKind = iota
	// UpdateSource announces one newly discovered source.
	UpdateSource
	// UpdateTerminal is the final message: the job reached a terminal status.
	UpdateTerminal
)

// Update is one progress message published to the job's consumer.
type Update struct {
	Kind     UpdateKind
	Status   Status
	Progress Snapshot
	Source   *Source
	Err      error
}
