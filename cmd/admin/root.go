package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	exitFailure      = 1
	exitCommandError = 2
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	DataDir string
	WorldID string
	Format  string // "json" | "text"
}

var validFormats = []string{"text", "json"}

// commandError carries the process exit code for a failed command.
type commandError struct {
	Code    int
	Message string
	Err     error
}

func (e *commandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *commandError) Unwrap() error { return e.Err }

func wrapCommandError(message string, err error) *commandError {
	return &commandError{Code: exitCommandError, Message: message, Err: err}
}

func exitCode(err error) int {
	var ce *commandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return exitFailure
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Inspect machinecraft world data",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DataDir, "data", "./data", "runtime data directory")
	cmd.PersistentFlags().StringVar(&opts.WorldID, "world", "world_1", "world id")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newMachinesCommand(opts))
	cmd.AddCommand(newSnapshotCommand(opts))
	return cmd
}

func (o *rootOptions) worldDir() string {
	return filepath.Join(o.DataDir, "worlds", o.WorldID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
