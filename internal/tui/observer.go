package tui

// VersionObserver adapts scheduler notifications to a channel for Bubble Tea.
type VersionObserver struct {
	ch chan int
}

// NewVersionObserver creates a new channel-based observer.
func NewVersionObserver() *VersionObserver {
	return &VersionObserver{ch: make(chan int, 1)}
}

// OnNewer sends the version to the channel (non-blocking if full).
func (o *VersionObserver) OnNewer(version int) {
	select {
	case o.ch <- version:
	default: // a reload is already pending
	}
}

// Versions returns the receiving side of the channel
func (o *VersionObserver) Versions() <-chan int {
	return o.ch
}
