package main

import (
	"fmt"
	"os"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <document> <from> <to>",
	Short: "Tell whether two ports may be connected",
	Long: `Runs the connection checker on two blueprint-relative port paths, e.g.
"in.text" and "upper.in.value". With --apply the connection is made and the
document file is rewritten.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		blueprint, _ := cmd.Flags().GetString("blueprint")
		expand, _ := cmd.Flags().GetBool("expand")
		apply, _ := cmd.Flags().GetBool("apply")

		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		req := domain.ConnectionRequest{Blueprint: blueprint, From: args[1], To: args[2], Expand: expand}
		out := tui.NewOutput(cmd.OutOrStdout(), tui.IsTerminal(os.Stdout))
		res, err := runCheck(out, ws, args[0], req, apply)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return fmt.Errorf("connection rejected: %s", res.Reason)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringP("blueprint", "b", "", "Blueprint holding both ports (default: the first one)")
	checkCmd.Flags().Bool("expand", false, "Allow generic ports to expand into a new child")
	checkCmd.Flags().Bool("apply", false, "Make the connection and rewrite the document")
}

func runCheck(w *termenv.Output, ws *loom.Workspace, path string, req domain.ConnectionRequest, apply bool) (domain.CheckResult, error) {
	doc, err := readDocument(path)
	if err != nil {
		return domain.CheckResult{}, err
	}
	g, err := ws.Build(doc)
	if err != nil {
		return domain.CheckResult{}, fmt.Errorf("document does not import cleanly, run validate: %w", err)
	}
	bp, err := pickBlueprint(g, doc, req.Blueprint)
	if err != nil {
		return domain.CheckResult{}, err
	}
	src, err := document.ResolvePort(bp, req.From, req.Expand)
	if err != nil {
		return domain.CheckResult{}, err
	}
	dst, err := document.ResolvePort(bp, req.To, req.Expand)
	if err != nil {
		return domain.CheckResult{}, err
	}

	res := domain.CheckResult{Allowed: true}
	if err := g.Checker().Check(src, dst, req.Expand); err != nil {
		res = domain.CheckResult{Reason: string(flow.RejectionReason(err)), Message: err.Error()}
	}

	fmt.Fprintf(w, "%s -> %s: %s\n", req.From, req.To, tui.Status(w, res.Allowed, res.Reason))
	if !res.Allowed {
		fmt.Fprintf(w, "  %s\n", res.Message)
		return res, nil
	}

	if apply {
		if err := src.Connect(dst, req.Expand); err != nil {
			return domain.CheckResult{}, err
		}
		if err := writeDocument(path, document.Refresh(g, doc)); err != nil {
			return domain.CheckResult{}, err
		}
		fmt.Fprintf(w, "  connected, %s updated\n", path)
	}
	return res, nil
}
