package config

// DefaultTimeoutMs matches the HTTP client default of 100 seconds.
const DefaultTimeoutMs = 100000

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeoutMs,
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Output:          "console",
		Parallel:        BoolPtr(false),
		Concurrency:     5,
		FailFast:        BoolPtr(false),
		StrictAll:       BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}
