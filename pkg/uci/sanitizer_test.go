package uci

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func requireValidation(t *testing.T, err error, sentinel error, field string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
	assert.Equal(t, field, ve.Field)
}

func TestSanitize_SizeLimit(t *testing.T) {
	limit := 4096
	s := NewSanitizer(DefaultInputLimits())

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Sanitize(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				requireValidation(t, err, ErrInputTooLarge, "command")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitize_Cleaning(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "go movetime 1000", "go movetime 1000"},
		{"Collapse Spaces", "  go   depth  5 ", "go depth 5"},
		{"Tabs", "go\tdepth\t5", "go depth 5"},
		{"ANSI Code", "go\x1b[31m depth", "go[31m depth"},
		{"Bell", "isready\x07", "isready"},
		{"Carriage Return", "uci\r", "uci"},
		{"Non ASCII", "caf\xc3\xa9 uci", "caf uci"},
		{"Blank", "   ", ""},
		{"Empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sanitize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitize_Rejects(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	_, err := s.Sanitize("go\x00depth")
	requireValidation(t, err, ErrNullByte, "command")

	_, err = s.Sanitize("\x01\x02\x03")
	requireValidation(t, err, ErrInvalidCharacters, "command")
}

func TestSanitize_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")
	s := NewSanitizer(DefaultInputLimits())

	_, err := s.Sanitize("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = s.Sanitize("12345")
	assert.NoError(t, err)
}

func TestValidateCommandStructure(t *testing.T) {
	s := NewSanitizer(InputLimits{MaxTokensPerCommand: 3})

	assert.NoError(t, s.ValidateCommandStructure("go depth 5"))
	requireValidation(t, s.ValidateCommandStructure("go depth 5 nodes"), ErrTooManyTokens, "command")
	requireValidation(t, s.ValidateCommandStructure(""), ErrEmptyCommand, "command")
}

func TestCheckResourceExhaustion(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Normal", "go wtime 300000 btime 300000", false},
		{"Short Repetition", strings.Repeat("a", 90), false},
		{"Long Repetition", strings.Repeat("a", 200), true},
		{"Dense Tokens", "a b c d e f", true},
		{"Single Short Token", "go", false},
		{"Long Move List", "position startpos moves " + strings.Repeat("e2e4 e7e5 g1f3 b8c6 f1b5 a7a6 ", 10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.CheckResourceExhaustion(strings.TrimSpace(tt.input))
			if tt.wantErr {
				requireValidation(t, err, ErrResourceExhaustion, "command")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFEN(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	tests := []struct {
		name  string
		fen   string
		field string
	}{
		{"Start Position", startFEN, ""},
		{"After e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", ""},
		{"No Castling", "8/8/8/4k3/8/8/8/4K3 w - - 150 10000", ""},
		{"Five Fields", "8/8/8/4k3/8/8/8/4K3 w - - 0", "fen"},
		{"Bad Character", "8/8/8/4k3/8/8/8/4K3 w - - 0 1!", "fen"},
		{"Seven Ranks", "8/8/8/4k3/8/8/4K3 w - - 0 1", "fen.board"},
		{"Short Rank", "rnbqkbnr/ppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", "fen.board.rank7"},
		{"Bad Piece", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNX w KQkq - 0 1", "fen.board.rank1"},
		{"Bad Color", "8/8/8/4k3/8/8/8/4K3 x - - 0 1", "fen.active_color"},
		{"Bad Castling", "8/8/8/4k3/8/8/8/4K3 w KQxq - 0 1", "fen.castling"},
		{"Bad En Passant", "8/8/8/4k3/8/8/8/4K3 w - e9 0 1", "fen.en_passant"},
		{"Halfmove Too Large", "8/8/8/4k3/8/8/8/4K3 w - - 151 1", "fen.halfmove_clock"},
		{"Halfmove Not Number", "8/8/8/4k3/8/8/8/4K3 w - - x 1", "fen.halfmove_clock"},
		{"Fullmove Zero", "8/8/8/4k3/8/8/8/4K3 w - - 0 0", "fen.fullmove_number"},
		{"Fullmove Too Large", "8/8/8/4k3/8/8/8/4K3 w - - 0 10001", "fen.fullmove_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.ValidateFEN(tt.fen)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			requireValidation(t, err, ErrInvalidFEN, tt.field)
		})
	}
}

func TestValidateMove(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	valid := []string{"e2e4", "e7e8q", "a7a8N", "E2E4", "h1a8"}
	for _, m := range valid {
		assert.NoError(t, s.ValidateMove(m), m)
	}

	invalid := []string{"e2e", "e2e4e5", "i2e4", "e9e4", "e2i4", "e2e0", "e7e8k", ""}
	for _, m := range invalid {
		requireValidation(t, s.ValidateMove(m), ErrInvalidMove, "move")
	}
}

func TestValidateMoveList(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	assert.NoError(t, s.ValidateMoveList([]string{"e2e4", "e7e5", "g1f3"}))
	assert.NoError(t, s.ValidateMoveList(nil))

	requireValidation(t, s.ValidateMoveList([]string{"e2e4", "e7e9"}), ErrInvalidMove, "moves[2]")

	many := make([]string, 1000)
	for i := range many {
		many[i] = "e2e4"
	}
	requireValidation(t, s.ValidateMoveList(many), ErrTooManyMoves, "moves")
}

func TestValidateOption(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	assert.NoError(t, s.ValidateOption("Hash", "64"))
	assert.NoError(t, s.ValidateOption("UCI_AnalyseMode", "true"))
	assert.NoError(t, s.ValidateOption("Clear Hash", ""))

	requireValidation(t, s.ValidateOption("", "1"), ErrInvalidOption, "option.name")
	requireValidation(t, s.ValidateOption("Hash!", "1"), ErrInvalidOption, "option.name")
	requireValidation(t, s.ValidateOption(strings.Repeat("n", 65), "1"), ErrInvalidOption, "option.name")
	requireValidation(t, s.ValidateOption("Path", strings.Repeat("v", 257)), ErrInvalidOption, "option.value")
}

func TestScenarioD_OversizedInputs(t *testing.T) {
	s := NewSanitizer(DefaultInputLimits())

	_, err := s.Sanitize(strings.Repeat("a", 5000))
	requireValidation(t, err, ErrInputTooLarge, "command")

	moves := make([]string, 1000)
	for i := range moves {
		moves[i] = "g1f3"
	}
	requireValidation(t, s.ValidateMoveList(moves), ErrTooManyMoves, "moves")
}
