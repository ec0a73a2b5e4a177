package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment is an explicit snapshot of process environment values relevant
// to a build. It is loaded once at process start and passed into components
// that need it; library code never reads ambient globals.
type Environment struct {
	Values map[string]string
}

// LoadEnvironment loads .env and .env.local (first readable file wins,
// existing process variables are never overridden) and snapshots the process
// environment.
func LoadEnvironment() *Environment {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Failed to load env file", "file", name, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", name)
		break
	}

	values := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			values[kv[:i]] = kv[i+1:]
		}
	}
	return &Environment{Values: values}
}

// Get returns the value for key, or the empty string.
func (e *Environment) Get(key string) string {
	if e == nil {
		return ""
	}
	return e.Values[key]
}

// GetDefault returns the value for key, or def when unset or empty.
func (e *Environment) GetDefault(key, def string) string {
	if v := e.Get(key); v != "" {
		return v
	}
	return def
}
