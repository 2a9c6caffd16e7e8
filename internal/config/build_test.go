package config

import "testing"

// TestNewBuildInfoDefaults verifies that NewBuildInfo returns the linker-injected
// default values when ldflags have not been set (i.e., during normal test runs).
func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()

	if info.Version != "dev" {
		t.Errorf("NewBuildInfo().Version = %q, want %q", info.Version, "dev")
	}
	if info.Commit != "none" {
		t.Errorf("NewBuildInfo().Commit = %q, want %q", info.Commit, "none")
	}
	if info.BuildTime != "unknown" {
		t.Errorf("NewBuildInfo().BuildTime = %q, want %q", info.BuildTime, "unknown")
	}
}
