package main

import (
	"fmt"
	"os"

	"github.com/aretw0/loom/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List the operator definitions in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		render := tui.NewRenderer(tui.IsTerminal(os.Stdout))
		out, err := render(tui.DefinitionsMarkdown(ws.Definitions(cmd.Context())))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
}
