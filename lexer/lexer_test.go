package lexer

import "testing"

func TestNextAndPeekTrackPosition(t *testing.T) {
	l := New("f.glass", []byte("ab\nc"))

	tests := []struct {
		wantByte byte
		wantLine int
		wantCol  int
	}{
		{'a', 1, 1},
		{'b', 1, 2},
		{'\n', 1, 3},
		{'c', 2, 1},
	}

	for i, tt := range tests {
		pos := l.Pos()
		if pos.Line != tt.wantLine || pos.Col != tt.wantCol {
			t.Fatalf("case %d: pos = %d:%d, want %d:%d", i, pos.Line, pos.Col, tt.wantLine, tt.wantCol)
		}
		b, ok := l.Next()
		if !ok || b != tt.wantByte {
			t.Fatalf("case %d: Next() = %q,%v, want %q,true", i, b, ok, tt.wantByte)
		}
	}

	if !l.AtEOF() {
		t.Fatal("expected AtEOF after consuming all input")
	}
	if _, ok := l.Next(); ok {
		t.Fatal("Next() at EOF should report ok=false")
	}
}

func TestSkipWhitespaceAndComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  byte
	}{
		{"leading spaces", "   x", 'x'},
		{"block comment", "'this is skipped'x", 'x'},
		{"mixed", " 'c1' \n 'c2' x", 'x'},
		{"unterminated comment consumes to EOF", "'never closes", 0},
	}

	for _, tt := range tests {
		l := New("f.glass", []byte(tt.input))
		l.SkipWhitespaceAndComments()
		b, ok := l.Peek()
		if tt.want == 0 {
			if ok {
				t.Errorf("%s: expected EOF, got %q", tt.name, b)
			}
			continue
		}
		if !ok || b != tt.want {
			t.Errorf("%s: Peek() = %q,%v, want %q,true", tt.name, b, ok, tt.want)
		}
	}
}

func TestIsAlphaIsDigitIsIdentByte(t *testing.T) {
	if !IsAlpha('a') || !IsAlpha('Z') || IsAlpha('_') || IsAlpha('5') {
		t.Error("IsAlpha misclassified a byte")
	}
	if !IsDigit('0') || !IsDigit('9') || IsDigit('a') {
		t.Error("IsDigit misclassified a byte")
	}
	if !IsIdentByte('_') || !IsIdentByte('a') || !IsIdentByte('9') || IsIdentByte('$') {
		t.Error("IsIdentByte misclassified a byte")
	}
}

func TestFileIsAttributedToEveryPosition(t *testing.T) {
	l := New("main.glass", []byte("{M[m]}"))
	if l.File() != "main.glass" {
		t.Fatalf("File() = %q, want main.glass", l.File())
	}
	for !l.AtEOF() {
		if _, ok := l.Next(); !ok {
			break
		}
		if l.File() != "main.glass" {
			t.Fatalf("File() changed mid-scan to %q", l.File())
		}
	}
}
