package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

// TestAddShortcut tests the add shortcut command
func TestAddShortcut(t *testing.T) {
	cmd := newAddShortcut()
	if cmd == nil {
		t.Fatal("newAddShortcut() returned nil")
	}

	if cmd.Use != "add" {
		t.Errorf("Expected Use='add', got '%s'", cmd.Use)
	}

	if cmd.RunE == nil {
		t.Error("RunE function is nil")
	}

	for _, name := range []string{"type", "provider", "option", "name", "target", "source", "skip-test", "save-credentials"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("--%s flag not found", name)
		}
	}
}

// TestLsShortcut tests the ls shortcut command
func TestLsShortcut(t *testing.T) {
	cmd := newLsShortcut()
	if cmd.Use != "ls" {
		t.Errorf("Expected Use='ls', got '%s'", cmd.Use)
	}
	if cmd.Flags().Lookup("json") == nil {
		t.Error("--json flag not found")
	}
}

// TestAddShortcuts tests that shortcuts are registered
func TestAddShortcuts(t *testing.T) {
	rootCmd := &cobra.Command{Use: "test"}
	AddShortcuts(rootCmd)

	found := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"add", "ls"} {
		if !found[name] {
			t.Errorf("Shortcut '%s' not registered", name)
		}
	}
}
