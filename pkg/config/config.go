// Package config loads runtime configuration from the environment.
package config

import "os"

// Config holds everything the CLI and the public API need to build a
// Boundary: where policies live, where the node key is (if persisted),
// and how the policy cache and remote backend are reached.
type Config struct {
	PolicyDir         string
	NodeKeyPath       string
	NodeKeyPassphrase string
	PolicyCacheDSN    string
	RedisURL          string
	BackendEndpoint   string
	BackendAPIKey     string
	ContextLocalDir   string
}

// Load reads configuration from the environment, applying the same
// defaults documented for the CLI and public API.
func Load() *Config {
	policyDir := os.Getenv("INVARIANT_POLICY_DIR")
	if policyDir == "" {
		policyDir = "./policies"
	}

	return &Config{
		PolicyDir:         policyDir,
		NodeKeyPath:       os.Getenv("INVARIANT_NODE_KEY"),
		NodeKeyPassphrase: os.Getenv("INVARIANT_NODE_KEY_PASSPHRASE"),
		PolicyCacheDSN:    os.Getenv("INVARIANT_POLICY_CACHE_DSN"),
		RedisURL:          os.Getenv("INVARIANT_REDIS_URL"),
		BackendEndpoint:   os.Getenv("INVARIANT_BACKEND_ENDPOINT"),
		BackendAPIKey:     os.Getenv("INVARIANT_BACKEND_API_KEY"),
		ContextLocalDir:   os.Getenv("CONTEXT_LOCAL_DIR"),
	}
}
