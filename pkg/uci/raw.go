package uci

// RawCommand is a tokenized line. Name and Args are substrings of Line, so
// tokenizing copies no text. Go strings are immutable, which makes the views
// safe to keep after the next line is read.
type RawCommand struct {
	Line           string
	Name           string
	Args           []string
	OriginalLength int

	spans [][2]int
}

// Tokenize splits line on spaces and tabs.
func Tokenize(line string) (RawCommand, error) {
	raw := RawCommand{Line: line, OriginalLength: len(line)}

	start := -1
	for i := 0; i <= len(line); i++ {
		sep := i == len(line) || line[i] == ' ' || line[i] == '\t'
		switch {
		case sep && start >= 0:
			if raw.Name == "" {
				raw.Name = line[start:i]
			} else {
				raw.Args = append(raw.Args, line[start:i])
				raw.spans = append(raw.spans, [2]int{start, i})
			}
			start = -1
		case !sep && start < 0:
			start = i
		}
	}

	if raw.Name == "" {
		return RawCommand{}, invalid(ErrEmptyCommand, "command", "", "empty command")
	}
	return raw, nil
}

// Span returns the text covering Args[i:j] with its original separators.
// On a sanitized line this equals the arguments joined by single spaces.
func (r RawCommand) Span(i, j int) string {
	if i < 0 || j > len(r.spans) || i >= j {
		return ""
	}
	return r.Line[r.spans[i][0]:r.spans[j-1][1]]
}
