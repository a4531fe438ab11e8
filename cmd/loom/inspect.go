package main

import (
	"fmt"
	"io"
	"os"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/aretw0/loom/pkg/document"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <document> [port]",
	Short: "Describe the live ports of a blueprint",
	Long: `Builds the document and prints each port's declared and connected type,
generic binding, stream depth and connections. Without a port path the
blueprint's own in and out ports are described.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		blueprint, _ := cmd.Flags().GetString("blueprint")
		port := ""
		if len(args) > 1 {
			port = args[1]
		}

		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		return runInspect(cmd.OutOrStdout(), ws, args[0], blueprint, port, tui.IsTerminal(os.Stdout))
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("blueprint", "b", "", "Blueprint to inspect (default: the first one)")
}

func runInspect(w io.Writer, ws *loom.Workspace, path, blueprint, port string, styled bool) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	g, err := ws.Build(doc)
	if err != nil {
		return fmt.Errorf("document does not import cleanly, run validate: %w", err)
	}
	bp, err := pickBlueprint(g, doc, blueprint)
	if err != nil {
		return err
	}

	var paths []string
	if port != "" {
		paths = []string{port}
	} else {
		for _, p := range bp.Ports() {
			paths = append(paths, bp.Rel(p))
		}
	}

	render := tui.NewRenderer(styled)
	for _, rel := range paths {
		p, err := document.ResolvePort(bp, rel, false)
		if err != nil {
			return err
		}
		out, err := render(tui.PortMarkdown(loom.Describe(bp, p)))
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
	}
	return nil
}
