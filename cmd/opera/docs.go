package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/opera/internal/presentation/tui"
)

var docsCmd = &cobra.Command{
	Use:   "docs [topic]",
	Short: "Show the protocol reference",
	Long:  "Renders an embedded reference page. Topics: protocol (default), options, lifecycle.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := "protocol"
		if len(args) == 1 {
			topic = args[0]
		}
		md, err := tui.Document(topic)
		if err != nil {
			return err
		}

		raw, _ := cmd.Flags().GetBool("raw")
		width := 80
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		} else {
			raw = raw || !term.IsTerminal(int(os.Stdout.Fd()))
		}
		if raw {
			_, err = fmt.Fprint(cmd.OutOrStdout(), md)
			return err
		}

		render, err := tui.NewRenderer(width)
		if err != nil {
			return err
		}
		out, err := render(md)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
