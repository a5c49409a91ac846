package internal

import "time"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config          *Config
	shutdownTimeout time.Duration
	listingThrottle time.Duration
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithShutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal. The default is 10s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *application) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// WithListingThrottle sets the minimum gap between listing.updated events
// sent to browsers. The default is 2s.
func WithListingThrottle(d time.Duration) Option {
	return func(a *application) {
		if d > 0 {
			a.listingThrottle = d
		}
	}
}
