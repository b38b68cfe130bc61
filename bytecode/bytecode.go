// Package bytecode defines the compiled representation of a Glass
// program: the instruction stream, its constant pools, its class
// table, and the side tables that let a runtime error be traced back
// to a source file, line and column.
//
// Glass has no intermediate AST (see package parser): the parser emits
// instructions into a Program as it reads source bytes, so this
// package's job is purely to describe the shape of that output and to
// provide the encode/decode helpers the parser and the vm package
// share.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode identifies a single VM operation. Opcodes are one byte.
type Opcode byte

// Instruction opcodes.
//
// Operand widths are fixed per opcode (see Widths) so the dispatch
// loop never needs to branch to find out how far to advance the
// instruction pointer.
const (
	// OpPop discards the top of the value stack.
	OpPop Opcode = iota

	// OpReturn pops the current call frame, or halts the program if
	// the call stack is empty.
	OpReturn

	// OpLoad resolves the name token on top of the stack against its
	// scope (global, member or local) and replaces it with the bound
	// value.
	OpLoad

	// OpStore pops a value and a name token and binds the value to
	// the name in the scope the token names.
	OpStore

	// OpStoreKeep behaves like OpStore but pushes the stored value
	// back afterward.
	OpStoreKeep

	// OpCall pops a Function value and enters it: the current frame
	// (caller instance, return offset, locals) is pushed and
	// execution resumes at the function's entry offset.
	OpCall

	// OpLoadFrom pops a member-name token and a target name token,
	// resolves the target, and looks up the member name on it:
	// pushes either the member's value or, failing that, a bound
	// Function for a method of that name.
	OpLoadFrom

	// OpPushSelf pushes an Instance value for the currently executing
	// object.
	OpPushSelf

	// OpInstantiate pops a Class value and appends a new,
	// un-constructed Instance of it, pushing the new instance's
	// index.
	OpInstantiate

	// OpConstruct pops an Instance and, if its class declares a
	// constructor, enters it as if by OpCall; otherwise it is a
	// no-op.
	OpConstruct

	// OpDuplicate pushes a copy of the stack element N slots below
	// the top (0 duplicates the top itself).
	//
	// Operand: [n:1]
	OpDuplicate

	// OpPushNumber pushes a float constant from the number pool.
	//
	// Operand: [pool_index:2]
	OpPushNumber

	// OpPushString pushes a string constant from the string pool.
	//
	// Operand: [pool_index:2]
	OpPushString

	// OpPushGlobal pushes a GlobalName token.
	//
	// Operand: [name_id:2]
	OpPushGlobal

	// OpPushMember pushes a MemberName token.
	//
	// Operand: [name_id:2]
	OpPushMember

	// OpPushLocal pushes a LocalName token.
	//
	// Operand: [name_id:2]
	OpPushLocal

	// OpJumpIf pops the top of the stack and, if it is truthy,
	// subtracts the operand from the instruction pointer (a backward
	// branch, used at the end of a loop body).
	//
	// Operand: [offset:2]
	OpJumpIf

	// OpJumpIfNot pops the top of the stack and, if it is falsy, adds
	// the operand to the instruction pointer (a forward branch, used
	// at the start of a loop body).
	//
	// Operand: [offset:2]
	OpJumpIfNot

	// Built-in opcodes. Each is the entire body of one method on one
	// of the built-in classes (A, I, O, S, V); see package builtins.

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpFloor
	OpEqual
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpLessEqual
	OpGreaterEqual

	OpInputChar
	OpInputLine
	OpInputEof

	OpOutputString
	OpOutputNumber

	OpConcat
	OpStringSplit
	OpStringEqual
	OpIndex
	OpLength
	OpNumToString
	OpStringToNum
	OpStringReplace

	OpVarNew
	OpVarDelete
)

// names gives each opcode a disassembly mnemonic.
var names = map[Opcode]string{
	OpPop:           "Pop",
	OpReturn:        "Return",
	OpLoad:          "Load",
	OpStore:         "Store",
	OpStoreKeep:     "StoreKeep",
	OpCall:          "Call",
	OpLoadFrom:      "LoadFrom",
	OpPushSelf:      "PushSelf",
	OpInstantiate:   "Instantiate",
	OpConstruct:     "Construct",
	OpDuplicate:     "Duplicate",
	OpPushNumber:    "PushNumber",
	OpPushString:    "PushString",
	OpPushGlobal:    "PushGlobal",
	OpPushMember:    "PushMember",
	OpPushLocal:     "PushLocal",
	OpJumpIf:        "JumpIf",
	OpJumpIfNot:     "JumpIfNot",
	OpAdd:           "Add",
	OpSubtract:      "Subtract",
	OpMultiply:      "Multiply",
	OpDivide:        "Divide",
	OpModulo:        "Modulo",
	OpFloor:         "Floor",
	OpEqual:         "Equal",
	OpNotEqual:      "NotEqual",
	OpLessThan:      "LessThan",
	OpGreaterThan:   "GreaterThan",
	OpLessEqual:     "LessEqual",
	OpGreaterEqual:  "GreaterEqual",
	OpInputChar:     "InputChar",
	OpInputLine:     "InputLine",
	OpInputEof:      "InputEof",
	OpOutputString:  "OutputString",
	OpOutputNumber:  "OutputNumber",
	OpConcat:        "Concat",
	OpStringSplit:   "StringSplit",
	OpStringEqual:   "StringEqual",
	OpIndex:         "Index",
	OpLength:        "Length",
	OpNumToString:   "NumToString",
	OpStringToNum:   "StringToNum",
	OpStringReplace: "StringReplace",
	OpVarNew:        "VarNew",
	OpVarDelete:     "VarDelete",
}

// String returns the disassembly mnemonic for op, or a placeholder for
// an unrecognized byte.
func (op Opcode) String() string {
	if name, ok := names[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// widths gives the operand width in bytes for opcodes that carry one;
// opcodes absent from this map take no operand.
var widths = map[Opcode]int{
	OpDuplicate:  1,
	OpPushNumber: 2,
	OpPushString: 2,
	OpPushGlobal: 2,
	OpPushMember: 2,
	OpPushLocal:  2,
	OpJumpIf:     2,
	OpJumpIfNot:  2,
}

// Width returns the number of operand bytes that follow op in an
// instruction stream.
func Width(op Opcode) int {
	return widths[op]
}

// Instructions is a compiled instruction stream: one byte of opcode
// followed by that opcode's (possibly zero-length) operand.
type Instructions []byte

// Emit appends one instruction to ins and returns the offset it was
// written at.
func Emit(ins Instructions, op Opcode, operand int) (Instructions, int) {
	pos := len(ins)
	ins = append(ins, byte(op))
	switch Width(op) {
	case 1:
		ins = append(ins, byte(operand))
	case 2:
		ins = append(ins, 0, 0)
		binary.BigEndian.PutUint16(ins[pos+1:], uint16(operand))
	}
	return ins, pos
}

// PatchUint16 overwrites the 2-byte operand starting at offset with
// value. Used for loop backpatching and jump target fixups.
func PatchUint16(ins Instructions, offset int, value uint16) {
	binary.BigEndian.PutUint16(ins[offset:], value)
}

// ReadUint16 decodes a big-endian 16-bit operand at offset.
func ReadUint16(ins Instructions, offset int) uint16 {
	return binary.BigEndian.Uint16(ins[offset:])
}

// String disassembles ins into one mnemonic line per instruction,
// prefixed by its offset. Used by the debugger and by tests that want
// a readable dump of a compiled program.
func (ins Instructions) String() string {
	var out strings.Builder
	i := 0
	for i < len(ins) {
		op := Opcode(ins[i])
		w := Width(op)
		switch w {
		case 0:
			fmt.Fprintf(&out, "%04d %s\n", i, op)
		case 1:
			fmt.Fprintf(&out, "%04d %s %d\n", i, op, ins[i+1])
		case 2:
			fmt.Fprintf(&out, "%04d %s %d\n", i, op, ReadUint16(ins, i+1))
		}
		i += 1 + w
	}
	return out.String()
}

// ClassDefinition maps a class's member-name ids to the instruction
// offset of the corresponding method body. A class whose constructor
// (source name "c__") was declared carries its offset separately so
// the vm can find it without a name lookup.
type ClassDefinition struct {
	// Name is the class's source name, kept for diagnostics and
	// disassembly.
	Name string

	// Methods maps a member-name id to the instruction offset of that
	// method's body.
	Methods map[uint16]int

	// Constructor is the instruction offset of the "c__" method, or
	// -1 if the class declares none.
	Constructor int
}

// NewClassDefinition returns an empty class definition with no
// constructor.
func NewClassDefinition(name string) *ClassDefinition {
	return &ClassDefinition{Name: name, Methods: make(map[uint16]int), Constructor: -1}
}

// HasConstructor reports whether the class declared a "c__" method.
func (c *ClassDefinition) HasConstructor() bool {
	return c.Constructor >= 0
}

// Position is a source location, one line and column. Positions read
// from source files are 1-based; the synthetic "<builtin>" location of
// the built-in classes is line 0, column 0.
type Position struct {
	Line int
	Col  int
}

// FileMark records the instruction offset at which a new source file
// began (multi-file programs are concatenated into a single
// instruction stream by package parser).
type FileMark struct {
	Offset int
	File   string
}

// PositionMark records the instruction offset at which the source
// position last changed. Both FileMark and PositionMark tables are
// append-only and sorted by Offset, so a traceback resolves a frame's
// instruction index to a file/position pair by predecessor search
// (see Program.Locate).
type PositionMark struct {
	Offset   int
	Position Position
}

// Program is a fully compiled Glass program: one instruction stream
// with two constant pools, a class table, and the side tables needed
// to print a traceback.
type Program struct {
	Instructions Instructions

	// Numbers is the number constant pool. Numbers are not
	// deduplicated: every number literal gets its own pool slot.
	Numbers []float64

	// Strings is the string constant pool. Strings are deduplicated
	// by content.
	Strings []string

	// Classes is the class table, in declaration order. ClassIDs
	// (global-name ids) index into ClassNames to find a class's slot
	// in Classes.
	Classes []*ClassDefinition

	// ClassNames maps a class's global-name id to its index in
	// Classes.
	ClassNames map[uint16]int

	// GlobalNames, MemberNames and LocalNames are the parser's intern
	// tables, kept on the compiled program mainly for diagnostics and
	// disassembly; the vm only needs the numeric ids baked into the
	// instruction stream.
	GlobalNames []string
	MemberNames []string
	LocalNames  []string

	// MainClass and MainFunc are the global-name id of class M and
	// the member-name id of its method m.
	MainClass uint16
	MainFunc  uint16

	Files     []FileMark
	Positions []PositionMark
}

// NewProgram returns an empty program ready for the parser to emit
// into.
func NewProgram() *Program {
	return &Program{
		ClassNames: make(map[uint16]int),
	}
}

// Locate resolves an instruction offset to the file and position it
// was compiled from, by finding the last mark at or before offset.
func (p *Program) Locate(offset int) (file string, pos Position) {
	file = "<unknown>"
	for _, m := range p.Files {
		if m.Offset > offset {
			break
		}
		file = m.File
	}
	for _, m := range p.Positions {
		if m.Offset > offset {
			break
		}
		pos = m.Position
	}
	return file, pos
}

// ClassByGlobalID returns the class definition registered under
// globalID, or nil if none is.
func (p *Program) ClassByGlobalID(globalID uint16) *ClassDefinition {
	idx, ok := p.ClassNames[globalID]
	if !ok {
		return nil
	}
	return p.Classes[idx]
}
