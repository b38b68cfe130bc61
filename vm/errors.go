package vm

import (
	"fmt"
	"strings"

	"github.com/glasslang/glass/bytecode"
)

// Tag names one of Glass's runtime-error conditions. Execution aborts
// on the first one encountered.
type Tag string

const (
	ErrEmptyStack   Tag = "EmptyStack"
	ErrUnsetName    Tag = "UnsetName"
	ErrWrongType    Tag = "WrongType"
	ErrInvalidIndex Tag = "InvalidIndex"
	ErrOutputError  Tag = "OutputError"
)

// TraceFrame is one resolved line of a traceback: the file and
// position an instruction offset was compiled from.
type TraceFrame struct {
	File string
	Pos  bytecode.Position
}

// RuntimeError reports why execution aborted and the call stack that
// was live at the time, innermost frame last.
type RuntimeError struct {
	Tag   Tag
	Trace []TraceFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Tag))
	for _, f := range e.Trace {
		fmt.Fprintf(&b, "\nIn file %s on line %d, column %d", f.File, f.Pos.Line, f.Pos.Col)
	}
	return b.String()
}
