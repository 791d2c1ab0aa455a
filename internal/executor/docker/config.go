package docker

import "time"

// Config controls the sandbox containers.
type Config struct {
	// Image must contain the puffing binary on its PATH.
	Image       string
	MemoryLimit int64   // bytes
	CPULimit    float64 // cores, converted to NanoCPUs
	PoolSize    int     // pre-warmed containers kept ready

	// Grace is added to the request timeout for the outer deadline: the
	// in-container harness enforces the real budget and reports TimeoutError
	// itself; the outer deadline only catches a wedged container.
	Grace time.Duration

	// MaxOutputBytes is passed to the in-container harness. Captured stdout
	// is capped at six times this (every byte may be escaped as \u00XX in
	// the JSON result) plus a margin for the envelope.
	MaxOutputBytes int

	// MaxDepth is passed to the in-container harness. <= 0 keeps the
	// interpreter default.
	MaxDepth int
}

func DefaultConfig() Config {
	return Config{
		Image:          "puffing-runner:latest",
		MemoryLimit:    128 * 1024 * 1024,
		CPULimit:       0.5,
		PoolSize:       3,
		Grace:          2 * time.Second,
		MaxOutputBytes: 1 << 20,
	}
}

func (c Config) stdoutLimit() int {
	if c.MaxOutputBytes <= 0 {
		return 0
	}
	return 6*c.MaxOutputBytes + 64*1024
}
