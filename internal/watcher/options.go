package watcher

import (
	"path/filepath"
	"time"
)

// DefaultSettleDelay is how long a file must stay unchanged before an event fires.
const DefaultSettleDelay = 250 * time.Millisecond

// Options configures the file watcher behavior.
type Options struct {
	SettleDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
}

// sameFile reports whether an event path names the watched file.
func sameFile(eventPath, target string) bool {
	return filepath.Clean(eventPath) == target
}
