package fusion

import "time"

type Options struct {
	Clock func() time.Time

	// Access restricts resolvers, nil lets anyone fill.
	Access Access
}

func DefaultOptions() Options {
	return Options{Clock: time.Now}
}

func (opts Options) WithClock(clock func() time.Time) Options {
	opts.Clock = clock
	return opts
}

func (opts Options) WithAccess(access Access) Options {
	opts.Access = access
	return opts
}
