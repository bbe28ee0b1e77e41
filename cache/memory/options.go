package memory

import "time"

const (
	DefaultMaxEntries = 1000
	DefaultTTL        = time.Hour
)

// Options controls capacity and expiry of the in-memory store.
type Options struct {
	MaxEntries int
	TTL        time.Duration
	// Now overrides the clock; tests use it to step past expiry.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
