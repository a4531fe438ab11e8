package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <document>...",
	Short: "Check documents against the operator library",
	Long: `Imports every document against the library and reports unresolved
references, rejected connections and lint warnings such as unreachable
operators, unresolved generics and outputs that are never written.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		styled := !asJSON && tui.IsTerminal(os.Stdout)
		ok, err := runValidate(cmd.Context(), cmd.OutOrStdout(), ws, args, asJSON, styled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print issues as JSON")
}

// runValidate reports on each document and tells whether all of them are
// free of errors. Warnings do not fail validation.
func runValidate(ctx context.Context, w io.Writer, ws *loom.Workspace, paths []string, asJSON, styled bool) (bool, error) {
	render := tui.NewRenderer(styled)
	report := make(map[string][]domain.Issue, len(paths))
	ok := true

	for _, path := range paths {
		doc, err := readDocument(path)
		if err != nil {
			return false, err
		}
		issues, err := ws.Validate(ctx, doc)
		if err != nil {
			return false, err
		}
		for _, issue := range issues {
			if issue.Severity == domain.SeverityError {
				ok = false
			}
		}

		if asJSON {
			if issues == nil {
				issues = []domain.Issue{}
			}
			report[path] = issues
			continue
		}
		out, err := render(tui.IssuesMarkdown(path, issues))
		if err != nil {
			return false, err
		}
		fmt.Fprint(w, out)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return false, err
		}
	}
	return ok, nil
}
