package uci

import "strings"

// Move is a move in long algebraic notation ("e2e4", "e7e8q"). From and To
// alias the input line when parsed from lowercase text.
type Move struct {
	From      string
	To        string
	Promotion byte // 0 when absent, otherwise one of q r b n
}

// ParseMove parses a 4 or 5 character move. Squares and promotion letters
// are case-insensitive; the result is lowercase.
func ParseMove(s string) (Move, error) {
	if err := validateMove("move", s); err != nil {
		return Move{}, err
	}
	if hasUpper(s) {
		s = strings.ToLower(s)
	}
	m := Move{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		m.Promotion = s[4]
	}
	return m, nil
}

// MustParseMove is ParseMove for literals known to be valid.
func MustParseMove(s string) Move {
	m, err := ParseMove(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the move in UCI notation.
func (m Move) String() string {
	if m.Promotion == 0 {
		return m.From + m.To
	}
	return m.From + m.To + string(m.Promotion)
}

// IsZero reports whether m is the zero Move.
func (m Move) IsZero() bool {
	return m.From == "" && m.To == ""
}

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			return true
		}
	}
	return false
}
