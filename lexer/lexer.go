// Package lexer implements Glass's byte-level scanner.
//
// Glass source is an untranslated byte stream — there is no character
// encoding to decode and no keyword table to consult. The scanner's
// job is limited to tracking position (for diagnostics), skipping
// whitespace and block comments, and handing bytes to package parser
// one at a time. Parsing and codegen happen directly against this
// scanner; Glass has no separate tokenizing pass and no AST (see
// package parser).
package lexer

import "github.com/glasslang/glass/bytecode"

// Lexer scans one source file's raw bytes, tracking 1-based line and
// column numbers as it goes.
type Lexer struct {
	file  string
	input []byte
	pos   int
	line  int
	col   int
}

// New returns a Lexer over input, attributing every position it
// reports to file.
func New(file string, input []byte) *Lexer {
	return &Lexer{file: file, input: input, line: 1, col: 1}
}

// File returns the name this lexer attributes its positions to.
func (l *Lexer) File() string { return l.file }

// AtEOF reports whether the scanner has consumed every byte.
func (l *Lexer) AtEOF() bool { return l.pos >= len(l.input) }

// Pos returns the position of the next unread byte.
func (l *Lexer) Pos() bytecode.Position { return bytecode.Position{Line: l.line, Col: l.col} }

// Peek returns the next unread byte without consuming it. ok is false
// at EOF.
func (l *Lexer) Peek() (b byte, ok bool) {
	if l.AtEOF() {
		return 0, false
	}
	return l.input[l.pos], true
}

// PeekAt returns the byte offset bytes ahead of the current position
// without consuming anything. ok is false if that offset is past EOF.
func (l *Lexer) PeekAt(offset int) (b byte, ok bool) {
	i := l.pos + offset
	if i < 0 || i >= len(l.input) {
		return 0, false
	}
	return l.input[i], true
}

// Next consumes and returns the next byte, advancing line/column
// tracking. ok is false at EOF.
func (l *Lexer) Next() (b byte, ok bool) {
	if l.AtEOF() {
		return 0, false
	}
	b = l.input[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b, true
}

// SkipWhitespaceAndComments advances past runs of whitespace and
// '...'-delimited block comments. A comment left unterminated at EOF
// is simply consumed to the end of input; the caller's subsequent
// attempt to read the token it was hoping for then fails with
// whatever "unended" error fits that context (an unended comment by
// itself is not one of Glass's named parse errors).
func (l *Lexer) SkipWhitespaceAndComments() {
	for {
		b, ok := l.Peek()
		if !ok {
			return
		}
		switch {
		case isWhitespace(b):
			l.Next()
		case b == '\'':
			l.Next()
			for {
				c, ok := l.Next()
				if !ok {
					return
				}
				if c == '\'' {
					break
				}
			}
		default:
			return
		}
	}
}

func isWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// IsAlpha reports whether b is an ASCII letter, valid as a bare
// one-character name or as the first character of a parenthesized
// identifier.
func IsAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// IsIdentByte reports whether b may appear after the first character
// of a parenthesized identifier.
func IsIdentByte(b byte) bool {
	return IsAlpha(b) || b == '_' || (b >= '0' && b <= '9')
}

// IsDigit reports whether b is an ASCII decimal digit.
func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
