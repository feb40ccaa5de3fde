package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// emit writes v as JSON under --json and hands stdout to render otherwise.
func emit(cmd *cobra.Command, ctx *commandContext, v any, render func(out io.Writer)) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, v)
	}
	render(cmd.OutOrStdout())
	return nil
}
