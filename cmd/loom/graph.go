package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/presentation/graph"
	"github.com/aretw0/loom/pkg/document"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <document>",
	Short: "Export a blueprint as a Mermaid diagram",
	Long: `Builds the document and outputs a Mermaid flowchart (graph LR) of one
blueprint: operators as nodes, connections as labeled edges. Operators with
validation issues are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blueprint, _ := cmd.Flags().GetString("blueprint")

		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		return runGraph(cmd.Context(), cmd.OutOrStdout(), ws, args[0], blueprint)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("blueprint", "b", "", "Blueprint to draw (default: the first one)")
}

func runGraph(ctx context.Context, w io.Writer, ws *loom.Workspace, path, blueprint string) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	issues, err := ws.Validate(ctx, doc)
	if err != nil {
		return err
	}

	// A partially imported graph still shows what resolved.
	g, _ := ws.Build(doc)
	refreshed := document.Refresh(g, doc)

	name := blueprint
	if name == "" && len(refreshed.Blueprints) > 0 {
		name = refreshed.Blueprints[0].Name
	}
	bp, ok := refreshed.Blueprint(name)
	if !ok {
		return fmt.Errorf("blueprint %q not found", name)
	}

	fmt.Fprint(w, graph.GenerateMermaid(*bp, graph.OverlayFromIssues(name, issues)))
	return nil
}
