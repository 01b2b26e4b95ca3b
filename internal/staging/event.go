package staging

// EventKind classifies a notification produced during a mirror walk.
type EventKind string

const (
	EventUploaded   EventKind = "uploaded"
	EventDownloaded EventKind = "downloaded"
	EventExcluded   EventKind = "excluded"
	EventChdir      EventKind = "chdir"
	EventRemoved    EventKind = "removed"
	EventOK         EventKind = "ok"
)

// Event is one leveled notification emitted while mirroring. Level 0 is the
// terminal result, level 1 is per-item progress, level 2 is diagnostic detail.
type Event struct {
	Level   int
	Kind    EventKind
	Name    string
	Pair    *LocationPair // set on chdir events
	DryRun  bool
	Summary *Summary // set on the terminal ok event only
}

// Notify consumes events during a transfer. A nil Notify discards them.
type Notify func(Event)

func (n Notify) emit(ev Event) {
	if n != nil {
		n(ev)
	}
}
