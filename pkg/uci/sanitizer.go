package uci

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInputTooLarge      = errors.New("input exceeds maximum allowed size")
	ErrNullByte           = errors.New("input contains null bytes")
	ErrInvalidCharacters  = errors.New("input contains only invalid characters")
	ErrEmptyCommand       = errors.New("empty command")
	ErrTooManyTokens      = errors.New("too many tokens")
	ErrResourceExhaustion = errors.New("resource exhaustion pattern")
	ErrInvalidFEN         = errors.New("invalid FEN")
	ErrInvalidMove        = errors.New("invalid move")
	ErrTooManyMoves       = errors.New("too many moves")
	ErrInvalidOption      = errors.New("invalid option")
)

// ValidationError names the field that failed and why.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s '%s': %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// maxEchoedValue bounds how much of an offending value is echoed back.
const maxEchoedValue = 32

func invalid(sentinel error, field, value, format string, args ...any) *ValidationError {
	if len(value) > maxEchoedValue {
		value = value[:maxEchoedValue] + "..."
	}
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
		Err:    sentinel,
	}
}

// Sanitizer cleans and validates untrusted protocol input. It holds no
// mutable state and is safe for concurrent use.
type Sanitizer struct {
	limits InputLimits
}

// NewSanitizer creates a sanitizer. Zero limit fields take their defaults.
func NewSanitizer(limits InputLimits) *Sanitizer {
	return &Sanitizer{limits: limits.withDefaults()}
}

// Limits returns the effective limits.
func (s *Sanitizer) Limits() InputLimits {
	return s.limits
}

// Sanitize rejects NUL bytes and oversized lines, drops every byte that is
// not printable ASCII, space or tab, and collapses whitespace runs into a
// single space. A blank line sanitizes to "".
func (s *Sanitizer) Sanitize(input string) (string, error) {
	out, _, err := s.sanitize(input)
	return out, err
}

// sanitize also reports whether a new string had to be built.
func (s *Sanitizer) sanitize(input string) (string, bool, error) {
	if len(input) > s.limits.MaxCommandLength {
		return "", false, invalid(ErrInputTooLarge, "command", "",
			"too long: %d bytes (max %d)", len(input), s.limits.MaxCommandLength)
	}
	if strings.IndexByte(input, 0) >= 0 {
		return "", false, invalid(ErrNullByte, "command", "", "contains null bytes")
	}

	if isNormalized(input) {
		return input, false, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			pendingSpace = b.Len() > 0
		case c > ' ' && c < 0x7f:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c)
		}
	}

	out := b.String()
	if out == "" && strings.TrimSpace(input) != "" {
		return "", true, invalid(ErrInvalidCharacters, "command", "", "contains only invalid characters")
	}
	return out, true, nil
}

// isNormalized reports whether input is already printable ASCII separated
// by single spaces, so the sanitizer can return it without copying.
func isNormalized(input string) bool {
	if input == "" {
		return true
	}
	if input[0] == ' ' || input[len(input)-1] == ' ' {
		return false
	}
	prevSpace := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == ' ' {
			if prevSpace {
				return false
			}
			prevSpace = true
			continue
		}
		if c <= ' ' || c >= 0x7f {
			return false
		}
		prevSpace = false
	}
	return true
}

// ValidateCommandStructure enforces length and token ceilings on a sanitized line.
func (s *Sanitizer) ValidateCommandStructure(command string) error {
	if len(command) > s.limits.MaxCommandLength {
		return invalid(ErrInputTooLarge, "command", "",
			"too long: %d bytes (max %d)", len(command), s.limits.MaxCommandLength)
	}
	tokens := countTokens(command)
	if tokens > s.limits.MaxTokensPerCommand {
		return invalid(ErrTooManyTokens, "command", "",
			"too many tokens: %d (max %d)", tokens, s.limits.MaxTokensPerCommand)
	}
	if tokens == 0 {
		return invalid(ErrEmptyCommand, "command", "", "empty command")
	}
	return nil
}

// CheckResourceExhaustion flags lines built to waste parser effort: a single
// character making up over a quarter of the line (and more than 100 times),
// or tokens averaging under two bytes.
func (s *Sanitizer) CheckResourceExhaustion(input string) error {
	var counts [256]int
	for i := 0; i < len(input); i++ {
		counts[input[i]]++
	}
	maxCount := len(input) / 4
	for c, n := range counts {
		if n > maxCount && n > 100 {
			return invalid(ErrResourceExhaustion, "command", "",
				"excessive repetition of character %q (%d)", rune(c), n)
		}
	}

	tokens := countTokens(input)
	if tokens > 0 && len(input)/tokens < 2 {
		return invalid(ErrResourceExhaustion, "command", "", "suspiciously dense token structure")
	}
	return nil
}

func countTokens(s string) int {
	n := 0
	inToken := false
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			inToken = false
			continue
		}
		if !inToken {
			n++
			inToken = true
		}
	}
	return n
}

const (
	fenPieceChars = "KQRBNPkqrbnp"
	fenRankChars  = "12345678" + fenPieceChars
)

// ValidateFEN checks the six FEN fields. It does not check that the
// position is reachable or legal; the engine core does that.
func (s *Sanitizer) ValidateFEN(fen string) error {
	if len(fen) > s.limits.MaxFENLength {
		return invalid(ErrInvalidFEN, "fen", "", "too long: %d bytes (max %d)", len(fen), s.limits.MaxFENLength)
	}
	for i := 0; i < len(fen); i++ {
		c := fen[i]
		if !isAlnum(c) && c != ' ' && c != '/' && c != '-' {
			return invalid(ErrInvalidFEN, "fen", "", "invalid character %q", rune(c))
		}
	}

	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return invalid(ErrInvalidFEN, "fen", "", "expected 6 fields, got %d", len(fields))
	}

	if err := validateBoard(fields[0]); err != nil {
		return err
	}
	if fields[1] != "w" && fields[1] != "b" {
		return invalid(ErrInvalidFEN, "fen.active_color", fields[1], "must be 'w' or 'b'")
	}
	if err := validateCastling(fields[2]); err != nil {
		return err
	}
	if err := validateEnPassant(fields[3]); err != nil {
		return err
	}

	halfmove, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return invalid(ErrInvalidFEN, "fen.halfmove_clock", fields[4], "not an unsigned number")
	}
	if halfmove > 150 {
		return invalid(ErrInvalidFEN, "fen.halfmove_clock", fields[4], "exceeds 150")
	}

	fullmove, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return invalid(ErrInvalidFEN, "fen.fullmove_number", fields[5], "not an unsigned number")
	}
	if fullmove == 0 {
		return invalid(ErrInvalidFEN, "fen.fullmove_number", fields[5], "must be at least 1")
	}
	if fullmove > 10000 {
		return invalid(ErrInvalidFEN, "fen.fullmove_number", fields[5], "exceeds 10000")
	}
	return nil
}

func validateBoard(board string) error {
	ranks := strings.Split(board, "/")
	if len(ranks) != 8 {
		return invalid(ErrInvalidFEN, "fen.board", "", "expected 8 ranks, got %d", len(ranks))
	}
	for i, rank := range ranks {
		field := fmt.Sprintf("fen.board.rank%d", 8-i)
		if rank == "" {
			return invalid(ErrInvalidFEN, field, "", "empty rank")
		}
		files := 0
		for j := 0; j < len(rank); j++ {
			c := rank[j]
			if strings.IndexByte(fenRankChars, c) < 0 {
				return invalid(ErrInvalidFEN, field, rank, "invalid character %q", rune(c))
			}
			if c >= '1' && c <= '8' {
				files += int(c - '0')
			} else {
				files++
			}
		}
		if files != 8 {
			return invalid(ErrInvalidFEN, field, rank, "describes %d files, want 8", files)
		}
	}
	return nil
}

func validateCastling(castling string) error {
	if castling == "-" {
		return nil
	}
	for i := 0; i < len(castling); i++ {
		if strings.IndexByte("KQkq", castling[i]) < 0 {
			return invalid(ErrInvalidFEN, "fen.castling", castling, "must be '-' or a subset of KQkq")
		}
	}
	return nil
}

func validateEnPassant(ep string) error {
	if ep == "-" {
		return nil
	}
	if len(ep) != 2 || !isFile(ep[0]) || !isRank(ep[1]) {
		return invalid(ErrInvalidFEN, "fen.en_passant", ep, "must be '-' or a square")
	}
	return nil
}

// ValidateMove checks one move token in long algebraic notation.
func (s *Sanitizer) ValidateMove(move string) error {
	return validateMove("move", move)
}

func validateMove(field, move string) error {
	if len(move) < 4 || len(move) > 5 {
		return invalid(ErrInvalidMove, field, move, "must be 4 or 5 characters")
	}
	if !isFile(move[0]) || !isRank(move[1]) {
		return invalid(ErrInvalidMove, field, move, "invalid source square")
	}
	if !isFile(move[2]) || !isRank(move[3]) {
		return invalid(ErrInvalidMove, field, move, "invalid target square")
	}
	if len(move) == 5 && !isPromotion(move[4]) {
		return invalid(ErrInvalidMove, field, move, "invalid promotion piece %q", rune(move[4]))
	}
	return nil
}

// ValidateMoveList checks the number of moves, their combined length, and each move.
func (s *Sanitizer) ValidateMoveList(moves []string) error {
	if len(moves) > s.limits.MaxMovesPerCommand {
		return invalid(ErrTooManyMoves, "moves", "",
			"too many moves: %d (max %d)", len(moves), s.limits.MaxMovesPerCommand)
	}
	total := 0
	for _, m := range moves {
		total += len(m) + 1
	}
	if total > 0 {
		total--
	}
	if total > s.limits.MaxMoveListLength {
		return invalid(ErrTooManyMoves, "moves", "",
			"move list too long: %d bytes (max %d)", total, s.limits.MaxMoveListLength)
	}
	for i, m := range moves {
		if err := validateMove(fmt.Sprintf("moves[%d]", i+1), m); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOption checks a setoption name/value pair.
func (s *Sanitizer) ValidateOption(name, value string) error {
	if name == "" {
		return invalid(ErrInvalidOption, "option.name", "", "must not be empty")
	}
	if len(name) > s.limits.MaxOptionNameLength {
		return invalid(ErrInvalidOption, "option.name", name,
			"too long: %d bytes (max %d)", len(name), s.limits.MaxOptionNameLength)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !isAlnum(c) && c != ' ' && c != '_' {
			return invalid(ErrInvalidOption, "option.name", name, "invalid character %q", rune(c))
		}
	}
	if len(value) > s.limits.MaxOptionValueLength {
		return invalid(ErrInvalidOption, "option.value", "",
			"too long: %d bytes (max %d)", len(value), s.limits.MaxOptionValueLength)
	}
	return nil
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isFile(c byte) bool {
	return (c >= 'a' && c <= 'h') || (c >= 'A' && c <= 'H')
}

func isRank(c byte) bool {
	return c >= '1' && c <= '8'
}

func isPromotion(c byte) bool {
	return strings.IndexByte("qrbnQRBN", c) >= 0
}
