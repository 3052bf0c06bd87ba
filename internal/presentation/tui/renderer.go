package tui

import (
	"embed"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/opera/internal/presentation/graph"
)

//go:embed docs/*.md
var docs embed.FS

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background; width wraps the output.
func NewRenderer(width int) (func(string) (string, error), error) {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}, nil
}

// Topics lists the embedded reference pages.
func Topics() []string {
	entries, _ := docs.ReadDir("docs")
	topics := make([]string, 0, len(entries))
	for _, e := range entries {
		topics = append(topics, strings.TrimSuffix(e.Name(), ".md"))
	}
	return topics
}

// Document returns the markdown source of a reference page. The
// "lifecycle" page embeds the generated state diagram.
func Document(topic string) (string, error) {
	data, err := docs.ReadFile("docs/" + topic + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown topic %q (available: %s)", topic, strings.Join(Topics(), ", "))
	}
	md := string(data)
	if topic == "lifecycle" {
		md = strings.Replace(md, "{{diagram}}", "```mermaid\n"+graph.GenerateMermaid(graph.Lifecycle, nil)+"```", 1)
	}
	return md, nil
}
