// Package build provides unified build environment configuration for the
// toolchain subprocesses the arena spawns. Worker processes must not inherit
// the caller's full environment: they get an allowlisted base plus whatever
// the sandbox policy explicitly grants.
//
// All components that run go build/test should use GetBuildEnv or
// GetSandboxEnv so environment handling stays in one place.
package build

import (
	"os"
	"path/filepath"
	"strings"

	"gauntlet/internal/logging"
)

// GetBuildEnv returns the environment for go build/test commands: the
// essential Go variables plus any explicitly allowed extras.
func GetBuildEnv(allowedExtra []string) []string {
	env := getBaseGoEnv()

	for _, key := range allowedExtra {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
			logging.BuildDebug("Added allowlisted env: %s", key)
		}
	}

	logging.BuildDebug("Build environment has %d vars", len(env))
	return env
}

// GetSandboxEnv returns the environment for arena worker processes.
// On top of the build env it disables cgo, forbids module downloads
// (arena modules are self-contained), and applies the memory limit.
func GetSandboxEnv(allowedExtra []string, memLimit string) []string {
	env := GetBuildEnv(allowedExtra)

	env = setEnvKey(env, "CGO_ENABLED", "0")
	env = setEnvKey(env, "GOPROXY", "off")
	env = setEnvKey(env, "GOFLAGS", "-mod=mod")
	if memLimit != "" {
		env = setEnvKey(env, "GOMEMLIMIT", memLimit)
	}

	return env
}

// getBaseGoEnv returns essential Go environment variables.
func getBaseGoEnv() []string {
	env := []string{}

	// Always include PATH for finding the go binary
	if path := os.Getenv("PATH"); path != "" {
		env = append(env, "PATH="+path)
	}

	essentialVars := []string{
		"GOPATH",
		"GOROOT",
		"GOCACHE",
		"GOMODCACHE",
		"HOME",         // Required on Unix
		"USERPROFILE",  // Required on Windows
		"LOCALAPPDATA", // Required for GOCACHE default on Windows
		"TEMP",         // Required for go build temp files
		"TMP",
		"TMPDIR",
	}

	for _, key := range essentialVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}

	// Go refuses to build without a cache directory.
	if !hasEnvKey(env, "GOCACHE") {
		gocache := deriveGOCACHE()
		if gocache != "" {
			env = append(env, "GOCACHE="+gocache)
			logging.BuildDebug("Derived GOCACHE: %s", gocache)
		}
	}

	return env
}

// deriveGOCACHE determines a sensible GOCACHE path when not explicitly set.
// This prevents "GOCACHE is not defined" errors in subprocess builds.
func deriveGOCACHE() string {
	if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
		return filepath.Join(localAppData, "go-build")
	}

	if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
		return filepath.Join(userProfile, ".cache", "go-build")
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", "go-build")
	}

	if tmp := os.Getenv("TEMP"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}
	if tmp := os.Getenv("TMP"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		return filepath.Join(tmp, "go-build")
	}

	return ""
}

// hasEnvKey checks if an environment key is already set.
func hasEnvKey(env []string, key string) bool {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

// setEnvKey sets or updates an environment variable.
func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

// MergeEnv merges additional environment variables into base env.
// Later values override earlier ones.
func MergeEnv(base []string, additional ...string) []string {
	result := make([]string, len(base))
	copy(result, base)

	for _, add := range additional {
		parts := strings.SplitN(add, "=", 2)
		if len(parts) == 2 {
			result = setEnvKey(result, parts[0], parts[1])
		}
	}

	return result
}
