/*
Package uci implements the text side of the Universal Chess Interface.

Untrusted input flows through three stages:

  - Sanitizer: rejects NUL bytes and oversized lines, strips non-printable
    bytes, collapses whitespace and flags resource-exhaustion patterns.
    Dedicated validators cover FEN strings, moves, move lists and options.
  - Tokenize: splits a sanitized line into a RawCommand whose tokens are
    substrings of the line.
  - Parser: turns a RawCommand into one of the eleven Command types.

Outbound messages implement Response and render without a trailing newline.
*/
package uci
