package flagx

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvString returns the value of the named environment variable, or def when
// the variable is unset or empty.
func EnvString(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

// EnvDuration parses the named environment variable with time.ParseDuration.
// Unset or empty returns def; a malformed value panics, matching the strict
// treatment of malformed JSON config files.
func EnvDuration(name string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(fmt.Sprintf("invalid duration in %s: %v", name, err))
	}
	return d
}

// EnvBool parses the named environment variable with strconv.ParseBool.
// Unset or empty returns def; a malformed value panics.
func EnvBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("invalid bool in %s: %v", name, err))
	}
	return b
}

// EnvInt parses the named environment variable as a base-10 integer.
// Unset or empty returns def; a malformed value panics.
func EnvInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int in %s: %v", name, err))
	}
	return n
}
