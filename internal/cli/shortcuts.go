// Package cli provides command shortcuts for common operations.
package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds shortcut commands to the root command.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newAddShortcut())
	rootCmd.AddCommand(newLsShortcut())
}

// newAddShortcut creates the 'add' shortcut command.
// Shortcut for: storage add
func newAddShortcut() *cobra.Command {
	cmd := newStorageAddCmd()
	cmd.Short = "Add a storage (shortcut for 'storage add')"
	return cmd
}

// newLsShortcut creates the 'ls' shortcut command.
// Shortcut for: storage list
func newLsShortcut() *cobra.Command {
	cmd := newStorageListCmd()
	cmd.Use = "ls"
	cmd.Short = "List storages (shortcut for 'storage list')"
	return cmd
}
