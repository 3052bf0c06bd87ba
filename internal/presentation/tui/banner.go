package tui

import (
	"fmt"
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// PrintBanner writes the Opera banner to stderr, but only when stderr is
// a terminal. A GUI driving the engine never sees it.
func PrintBanner(version string) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	WriteBanner(os.Stderr, termenv.NewOutput(os.Stderr).ColorProfile(), version)
}

// WriteBanner renders the banner with the given color profile.
func WriteBanner(w io.Writer, p termenv.Profile, version string) {
	// Indigo to rose, one step per line.
	lines := []struct {
		text  string
		color string
	}{
		{"   ___                       ", "#818cf8"},
		{"  / _ \\ _ __   ___ _ __ __ _ ", "#a78bfa"},
		{" | | | | '_ \\ / _ \\ '__/ _` |", "#c084fc"},
		{" | |_| | |_) |  __/ | | (_| |", "#e879f9"},
		{"  \\___/| .__/ \\___|_|  \\__,_|", "#f472b6"},
		{"       |_|                   ", "#fb7185"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	if version != "" {
		fmt.Fprintln(w, p.String("  UCI engine "+version).Faint())
	}
	fmt.Fprintln(w)
}
