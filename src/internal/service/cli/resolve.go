package cli

import (
	"os"
	"os/exec"
)

// Resolve picks a binary path: environment override, then PATH lookup, then fallback.
func Resolve(envKey, name, fallback string) string {
	if p := os.Getenv(envKey); p != "" {
		return p
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return fallback
}

// HomeDir is the working directory for every CLI invocation, so the bridge's
// own working directory is never exposed to the tool.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
