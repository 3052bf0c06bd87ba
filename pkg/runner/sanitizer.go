package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize bounds one raw line, newline excluded.
	DefaultMaxInputSize = 8192
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "OPERA_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput trims the line terminator, enforces the size limit and
// validates UTF-8. Control characters are left for the protocol sanitizer,
// which rejects them with a typed error instead of silently dropping them.
func SanitizeInput(input string) (string, error) {
	input = strings.TrimRight(input, "\r\n")

	// We explicitly reject rather than truncate so a cut line is never
	// mistaken for a shorter valid command.
	limit := getMaxInputSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	return input, nil
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
