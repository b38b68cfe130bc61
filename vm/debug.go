package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/glasslang/glass/bytecode"
	"github.com/glasslang/glass/object"
)

// DebugSession wraps a VM for single-opcode stepping, for use by an
// interactive stepper (see package debugger). It discards output and
// reads no input, since the stepper is a static inspection tool rather
// than a full program run.
type DebugSession struct {
	vm *VM
}

// NewDebugSession prepares prog for step-by-step execution.
func NewDebugSession(prog *bytecode.Program) *DebugSession {
	return &DebugSession{vm: New(prog, strings.NewReader(""), io.Discard)}
}

// Step executes the single opcode at the current instruction pointer.
// done reports whether the program halted (an empty call stack hit
// Return); err is the RuntimeError, if any, converted to the error
// interface.
func (d *DebugSession) Step() (done bool, err error) {
	halted, rerr := d.vm.stepOnce()
	if rerr != nil {
		return false, rerr
	}
	return halted, nil
}

// Depth returns the current call-stack depth (0 at top level).
func (d *DebugSession) Depth() int { return len(d.vm.frames) }

// NextInstruction disassembles the single instruction about to run.
func (d *DebugSession) NextInstruction() string {
	ins := d.vm.Program.Instructions
	i := d.vm.index
	if i >= len(ins) {
		return "<end of program>"
	}
	op := bytecode.Opcode(ins[i])
	switch bytecode.Width(op) {
	case 1:
		return fmt.Sprintf("%04d %s %d", i, op, ins[i+1])
	case 2:
		return fmt.Sprintf("%04d %s %d", i, op, bytecode.ReadUint16(ins, i+1))
	default:
		return fmt.Sprintf("%04d %s", i, op)
	}
}

// StackString renders the value stack, bottom first.
func (d *DebugSession) StackString() string {
	if len(d.vm.stack) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(d.vm.stack))
	for i, v := range d.vm.stack {
		parts[i] = d.describe(v)
	}
	return strings.Join(parts, ", ")
}

// LocalsString renders the active call frame's bound locals.
func (d *DebugSession) LocalsString() string {
	if len(d.vm.locals) == 0 {
		return "(none)"
	}
	var parts []string
	for id, v := range d.vm.locals {
		name := "_?"
		if int(id) < len(d.vm.Program.LocalNames) {
			name = "_" + d.vm.Program.LocalNames[id]
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, d.describe(v)))
	}
	return strings.Join(parts, ", ")
}

func (d *DebugSession) describe(v object.Value) string {
	if v.Kind == object.KindString && v.Int < len(d.vm.Strings) {
		return fmt.Sprintf("%q", d.vm.Strings[v.Int])
	}
	return v.String()
}
