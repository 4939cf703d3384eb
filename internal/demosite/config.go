package demosite

// Config holds configuration for the demo site.
type Config struct {
	// Port is the port on which the demo site listens.
	Port int

	// InitialVersion is the site version served at start (default: 1).
	InitialVersion int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVersion: VersionBroken,
	}
}
