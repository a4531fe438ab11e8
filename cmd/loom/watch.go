package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [document]...",
	Short: "Reload the library on change and re-validate documents",
	Long: `Watches the operator library. Each time it changes, prints which
definitions were added, removed or changed and validates the given
documents again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, done, err := openWorkspace(nil)
		if err != nil {
			return err
		}
		defer done()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		changes, cancel := ws.Subscribe()
		defer cancel()
		if err := ws.Watch(ctx); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Watching %s (%d definitions). Press Ctrl+C to stop.\n", cfg.Library, ws.Registry().Len())
		revalidate(ctx, w, ws, args)
		return runWatch(ctx, w, ws, changes, args)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// runWatch reports library changes until ctx ends or changes is closed.
func runWatch(ctx context.Context, w io.Writer, ws *loom.Workspace, changes <-chan domain.Change, paths []string) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			if c.Library == nil {
				continue
			}
			fmt.Fprintln(w, describeLibraryDiff(*c.Library))
			revalidate(ctx, w, ws, paths)
		}
	}
}

func revalidate(ctx context.Context, w io.Writer, ws *loom.Workspace, paths []string) {
	if len(paths) == 0 {
		return
	}
	if _, err := runValidate(ctx, w, ws, paths, false, false); err != nil {
		logger.Error("Validation failed", "err", err)
	}
}

func describeLibraryDiff(d domain.LibraryDiff) string {
	var parts []string
	if len(d.Added) > 0 {
		parts = append(parts, "added "+strings.Join(d.Added, ", "))
	}
	if len(d.Removed) > 0 {
		parts = append(parts, "removed "+strings.Join(d.Removed, ", "))
	}
	if len(d.Changed) > 0 {
		parts = append(parts, "changed "+strings.Join(d.Changed, ", "))
	}
	if len(parts) == 0 {
		return "Library reloaded"
	}
	return "Library reloaded: " + strings.Join(parts, "; ")
}
