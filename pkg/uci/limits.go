package uci

import (
	"os"
	"strconv"
)

var (
	// DefaultMaxCommandLength is the line ceiling in bytes.
	DefaultMaxCommandLength = 4096
	// EnvMaxInputSize is the environment variable that overrides DefaultMaxCommandLength.
	EnvMaxInputSize = "OPERA_MAX_INPUT_SIZE"
)

// InputLimits bounds every piece of untrusted input the parser accepts.
type InputLimits struct {
	MaxCommandLength     int `yaml:"max_command_length" mapstructure:"max_command_length"`
	MaxFENLength         int `yaml:"max_fen_length" mapstructure:"max_fen_length"`
	MaxMoveListLength    int `yaml:"max_move_list_length" mapstructure:"max_move_list_length"`
	MaxOptionNameLength  int `yaml:"max_option_name_length" mapstructure:"max_option_name_length"`
	MaxOptionValueLength int `yaml:"max_option_value_length" mapstructure:"max_option_value_length"`
	MaxMovesPerCommand   int `yaml:"max_moves_per_command" mapstructure:"max_moves_per_command"`
	MaxTokensPerCommand  int `yaml:"max_tokens_per_command" mapstructure:"max_tokens_per_command"`
}

// DefaultInputLimits returns the standard limits, honoring EnvMaxInputSize.
func DefaultInputLimits() InputLimits {
	return InputLimits{
		MaxCommandLength:     maxCommandLength(),
		MaxFENLength:         256,
		MaxMoveListLength:    2048,
		MaxOptionNameLength:  64,
		MaxOptionValueLength: 256,
		MaxMovesPerCommand:   512,
		MaxTokensPerCommand:  1024,
	}
}

// withDefaults fills zero fields so a partially specified config stays safe.
func (l InputLimits) withDefaults() InputLimits {
	d := DefaultInputLimits()
	if l.MaxCommandLength <= 0 {
		l.MaxCommandLength = d.MaxCommandLength
	}
	if l.MaxFENLength <= 0 {
		l.MaxFENLength = d.MaxFENLength
	}
	if l.MaxMoveListLength <= 0 {
		l.MaxMoveListLength = d.MaxMoveListLength
	}
	if l.MaxOptionNameLength <= 0 {
		l.MaxOptionNameLength = d.MaxOptionNameLength
	}
	if l.MaxOptionValueLength <= 0 {
		l.MaxOptionValueLength = d.MaxOptionValueLength
	}
	if l.MaxMovesPerCommand <= 0 {
		l.MaxMovesPerCommand = d.MaxMovesPerCommand
	}
	if l.MaxTokensPerCommand <= 0 {
		l.MaxTokensPerCommand = d.MaxTokensPerCommand
	}
	return l
}

func maxCommandLength() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxCommandLength
}
