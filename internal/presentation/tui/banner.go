package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal. Styled output is
// only worth producing when it is.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewOutput wraps w, dropping colors unless styled.
func NewOutput(w io.Writer, styled bool) *termenv.Output {
	if !styled {
		return termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
	}
	return termenv.NewOutput(w)
}

// PrintBanner outputs the Loom ASCII art banner.
func PrintBanner(out *termenv.Output) {
	lines := []struct {
		text  string
		color string
	}{
		{" _", "#2dd4bf"},
		{"| | ___   ___  _ __ ___", "#22d3ee"},
		{"| |/ _ \\ / _ \\| '_ ` _ \\", "#38bdf8"},
		{"| | (_) | (_) | | | | | |", "#60a5fa"},
		{"|_|\\___/ \\___/|_| |_| |_|", "#818cf8"},
	}

	fmt.Fprintln(out)
	for _, l := range lines {
		fmt.Fprintln(out, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(out)
}

// Status renders a check verdict, green when allowed and red otherwise.
func Status(out *termenv.Output, allowed bool, reason string) string {
	if allowed {
		return out.String("✔ allowed").Foreground(out.Color("#22c55e")).Bold().String()
	}
	label := "✘ rejected"
	if reason != "" {
		label += " (" + reason + ")"
	}
	return out.String(label).Foreground(out.Color("#ef4444")).Bold().String()
}
