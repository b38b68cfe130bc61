// Package vm implements Glass's stack-machine interpreter: the opcode
// dispatch loop over a compiled bytecode.Program, the value stack, the
// call stack of frames, the append-only instance heap and runtime
// string vector, and the globals and locals maps (see package
// bytecode for the program shape and package object for the value
// representation).
package vm

import (
	"bufio"
	"io"
	"math"
	"strconv"

	"github.com/glasslang/glass/bytecode"
	"github.com/glasslang/glass/object"
)

// VM holds all mutable state for one program execution. A VM runs
// exactly one program to completion or failure; it is not reusable.
type VM struct {
	Program *bytecode.Program

	Instances []*object.HeapInstance
	Strings   []string
	Globals   map[uint16]object.Value

	stack   []object.Value
	frames  []Frame
	locals  map[uint16]object.Value
	curObj  int
	index   int
	nextVar uint16

	stdin  *bufio.Reader
	stdout io.Writer
}

// New prepares a VM to run prog, reading stdin from r and writing
// OutputString/OutputNumber to w.
func New(prog *bytecode.Program, r io.Reader, w io.Writer) *VM {
	vm := &VM{
		Program: prog,
		Globals: make(map[uint16]object.Value, len(prog.Classes)),
		locals:  make(map[uint16]object.Value),
		stdin:   bufio.NewReader(r),
		stdout:  w,
		nextVar: 0xFFFF,
	}

	vm.Strings = make([]string, len(prog.Strings))
	copy(vm.Strings, prog.Strings)

	for globalID, slot := range prog.ClassNames {
		vm.Globals[globalID] = object.Class(slot)
	}

	mainSlot := prog.ClassNames[prog.MainClass]
	vm.Instances = append(vm.Instances, object.NewInstance(uint16(mainSlot)))
	vm.curObj = 0
	vm.index = prog.Classes[mainSlot].Methods[prog.MainFunc]

	return vm
}

// Run executes the program from class M's method m to completion.
func (vm *VM) Run() error {
	if err := vm.run(); err != nil {
		return err
	}
	return nil
}

func (vm *VM) run() *RuntimeError {
	for {
		halted, err := vm.stepOnce()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// stepOnce executes exactly one opcode at the current instruction
// pointer. halted reports whether that opcode was a top-level Return
// (an empty call stack), which ends the program; err is a RuntimeError
// if the opcode failed. Shared by Run and the debugger's single-step
// mode (see DebugSession).
func (vm *VM) stepOnce() (bool, *RuntimeError) {
	ins := vm.Program.Instructions
	op := bytecode.Opcode(ins[vm.index])

	switch op {
	case bytecode.OpPop:
		if _, err := vm.pop(); err != nil {
			return false, err
		}

	case bytecode.OpReturn:
		if len(vm.frames) == 0 {
			return true, nil
		}
		f := vm.frames[len(vm.frames)-1]
		vm.frames = vm.frames[:len(vm.frames)-1]
		vm.curObj = f.CallerInstance
		vm.index = f.ReturnOffset
		vm.locals = f.Locals

	case bytecode.OpLoad:
		if err := vm.execLoad(); err != nil {
			return false, err
		}

	case bytecode.OpStore:
		if err := vm.execStore(false); err != nil {
			return false, err
		}

	case bytecode.OpStoreKeep:
		if err := vm.execStore(true); err != nil {
			return false, err
		}

	case bytecode.OpCall:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != object.KindFunction {
			return false, vm.err(ErrWrongType)
		}
		vm.frames = append(vm.frames, Frame{CallerInstance: vm.curObj, ReturnOffset: vm.index, Locals: vm.locals})
		vm.curObj = v.Int
		vm.locals = make(map[uint16]object.Value)
		vm.index = v.Offset
		return false, nil

	case bytecode.OpLoadFrom:
		if err := vm.execLoadFrom(); err != nil {
			return false, err
		}

	case bytecode.OpPushSelf:
		vm.push(object.Instance(vm.curObj))

	case bytecode.OpInstantiate:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != object.KindClass {
			return false, vm.err(ErrWrongType)
		}
		inst := object.NewInstance(uint16(v.Int))
		vm.Instances = append(vm.Instances, inst)
		vm.push(object.Instance(len(vm.Instances) - 1))

	case bytecode.OpConstruct:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != object.KindInstance {
			return false, vm.err(ErrWrongType)
		}
		inst := vm.Instances[v.Int]
		class := vm.Program.Classes[inst.Class]
		if class.HasConstructor() {
			vm.frames = append(vm.frames, Frame{CallerInstance: vm.curObj, ReturnOffset: vm.index, Locals: vm.locals})
			vm.curObj = v.Int
			vm.locals = make(map[uint16]object.Value)
			vm.index = class.Constructor
			return false, nil
		}

	case bytecode.OpDuplicate:
		n := int(ins[vm.index+1])
		if n >= len(vm.stack) {
			return false, vm.err(ErrEmptyStack)
		}
		vm.push(vm.stack[len(vm.stack)-1-n])
		vm.index++

	case bytecode.OpPushNumber:
		idx := bytecode.ReadUint16(ins, vm.index+1)
		vm.push(object.Number(vm.Program.Numbers[idx]))
		vm.index += 2

	case bytecode.OpPushString:
		idx := bytecode.ReadUint16(ins, vm.index+1)
		vm.push(object.String(int(idx)))
		vm.index += 2

	case bytecode.OpPushGlobal:
		id := bytecode.ReadUint16(ins, vm.index+1)
		vm.push(object.GlobalName(id))
		vm.index += 2

	case bytecode.OpPushMember:
		id := bytecode.ReadUint16(ins, vm.index+1)
		vm.push(object.MemberName(id))
		vm.index += 2

	case bytecode.OpPushLocal:
		id := bytecode.ReadUint16(ins, vm.index+1)
		vm.push(object.LocalName(id))
		vm.index += 2

	case bytecode.OpJumpIf:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		amount := bytecode.ReadUint16(ins, vm.index+1)
		vm.index += 2
		if vm.truthy(v) {
			vm.index -= int(amount)
		}

	case bytecode.OpJumpIfNot:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		amount := bytecode.ReadUint16(ins, vm.index+1)
		vm.index += 2
		if !vm.truthy(v) {
			vm.index += int(amount)
		}

	case bytecode.OpAdd:
		if err := vm.binaryNumber(func(a, b float64) float64 { return a + b }); err != nil {
			return false, err
		}
	case bytecode.OpSubtract:
		if err := vm.binaryNumber(func(a, b float64) float64 { return a - b }); err != nil {
			return false, err
		}
	case bytecode.OpMultiply:
		if err := vm.binaryNumber(func(a, b float64) float64 { return a * b }); err != nil {
			return false, err
		}
	case bytecode.OpDivide:
		if err := vm.binaryNumber(func(a, b float64) float64 { return a / b }); err != nil {
			return false, err
		}
	case bytecode.OpModulo:
		if err := vm.binaryNumber(math.Mod); err != nil {
			return false, err
		}
	case bytecode.OpFloor:
		a, err := vm.popNumber()
		if err != nil {
			return false, err
		}
		vm.push(object.Number(math.Floor(a)))
	case bytecode.OpEqual:
		if err := vm.binaryCompare(func(a, b float64) bool { return a == b }); err != nil {
			return false, err
		}
	case bytecode.OpNotEqual:
		if err := vm.binaryCompare(func(a, b float64) bool { return a != b }); err != nil {
			return false, err
		}
	case bytecode.OpLessThan:
		if err := vm.binaryCompare(func(a, b float64) bool { return a < b }); err != nil {
			return false, err
		}
	case bytecode.OpGreaterThan:
		if err := vm.binaryCompare(func(a, b float64) bool { return a > b }); err != nil {
			return false, err
		}
	case bytecode.OpLessEqual:
		if err := vm.binaryCompare(func(a, b float64) bool { return a <= b }); err != nil {
			return false, err
		}
	case bytecode.OpGreaterEqual:
		if err := vm.binaryCompare(func(a, b float64) bool { return a >= b }); err != nil {
			return false, err
		}

	case bytecode.OpInputChar:
		if err := vm.execInputChar(); err != nil {
			return false, err
		}
	case bytecode.OpInputLine:
		if err := vm.execInputLine(); err != nil {
			return false, err
		}
	case bytecode.OpInputEof:
		vm.push(object.Number(boolNum(vm.stdinAtEOF())))

	case bytecode.OpOutputString:
		if err := vm.execOutputString(); err != nil {
			return false, err
		}
	case bytecode.OpOutputNumber:
		if err := vm.execOutputNumber(); err != nil {
			return false, err
		}

	case bytecode.OpConcat:
		b, err := vm.popString()
		if err != nil {
			return false, err
		}
		a, err := vm.popString()
		if err != nil {
			return false, err
		}
		vm.push(vm.newString(a + b))

	case bytecode.OpStringSplit:
		if err := vm.execStringSplit(); err != nil {
			return false, err
		}

	case bytecode.OpStringEqual:
		b, err := vm.popString()
		if err != nil {
			return false, err
		}
		a, err := vm.popString()
		if err != nil {
			return false, err
		}
		vm.push(object.Number(boolNum(a == b)))

	case bytecode.OpIndex:
		if err := vm.execIndex(); err != nil {
			return false, err
		}

	case bytecode.OpLength:
		s, err := vm.popString()
		if err != nil {
			return false, err
		}
		vm.push(object.Number(float64(len(s))))

	case bytecode.OpNumToString:
		if err := vm.execNumToString(); err != nil {
			return false, err
		}

	case bytecode.OpStringToNum:
		if err := vm.execStringToNum(); err != nil {
			return false, err
		}

	case bytecode.OpStringReplace:
		if err := vm.execStringReplace(); err != nil {
			return false, err
		}

	case bytecode.OpVarNew:
		if err := vm.execVarNew(); err != nil {
			return false, err
		}

	case bytecode.OpVarDelete:
		v, err := vm.pop()
		if err != nil {
			return false, err
		}
		if v.Kind != object.KindLocalName {
			return false, vm.err(ErrWrongType)
		}
		delete(vm.locals, v.NameID())

	default:
		return false, vm.err(ErrWrongType)
	}

	vm.index++
	return false, nil
}

func (vm *VM) push(v object.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() (object.Value, *RuntimeError) {
	if len(vm.stack) == 0 {
		return object.Value{}, vm.err(ErrEmptyStack)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) popNumber() (float64, *RuntimeError) {
	v, err := vm.pop()
	if err != nil {
		return 0, err
	}
	if v.Kind != object.KindNumber {
		return 0, vm.err(ErrWrongType)
	}
	return v.Num, nil
}

func (vm *VM) popString() (string, *RuntimeError) {
	v, err := vm.pop()
	if err != nil {
		return "", err
	}
	if v.Kind != object.KindString {
		return "", vm.err(ErrWrongType)
	}
	return vm.Strings[v.Int], nil
}

func (vm *VM) newString(s string) object.Value {
	vm.Strings = append(vm.Strings, s)
	return object.String(len(vm.Strings) - 1)
}

func (vm *VM) truthy(v object.Value) bool {
	switch v.Kind {
	case object.KindNumber:
		return v.Num != 0
	case object.KindString:
		return object.TruthyString(vm.Strings[v.Int])
	default:
		return false
	}
}

func (vm *VM) binaryNumber(f func(a, b float64) float64) *RuntimeError {
	b, err := vm.popNumber()
	if err != nil {
		return err
	}
	a, err := vm.popNumber()
	if err != nil {
		return err
	}
	vm.push(object.Number(f(a, b)))
	return nil
}

func (vm *VM) binaryCompare(f func(a, b float64) bool) *RuntimeError {
	b, err := vm.popNumber()
	if err != nil {
		return err
	}
	a, err := vm.popNumber()
	if err != nil {
		return err
	}
	vm.push(object.Number(boolNum(f(a, b))))
	return nil
}

func (vm *VM) execLoad() *RuntimeError {
	name, err := vm.pop()
	if err != nil {
		return err
	}
	v, ok := vm.resolve(name)
	if !ok {
		if !name.IsName() {
			return vm.err(ErrWrongType)
		}
		return vm.err(ErrUnsetName)
	}
	vm.push(v)
	return nil
}

// resolve looks a name token up in the scope it names. ok is false
// both when name is not a name token and when the name is unbound;
// callers distinguish the two with IsName.
func (vm *VM) resolve(name object.Value) (object.Value, bool) {
	switch name.Kind {
	case object.KindGlobalName:
		v, ok := vm.Globals[name.NameID()]
		return v, ok
	case object.KindLocalName:
		v, ok := vm.locals[name.NameID()]
		return v, ok
	case object.KindMemberName:
		v, ok := vm.Instances[vm.curObj].Members[name.NameID()]
		return v, ok
	default:
		return object.Value{}, false
	}
}

func (vm *VM) execStore(keep bool) *RuntimeError {
	value, err := vm.pop()
	if err != nil {
		return err
	}
	name, err := vm.pop()
	if err != nil {
		return err
	}
	switch name.Kind {
	case object.KindGlobalName:
		vm.Globals[name.NameID()] = value
	case object.KindLocalName:
		vm.locals[name.NameID()] = value
	case object.KindMemberName:
		vm.Instances[vm.curObj].Members[name.NameID()] = value
	default:
		return vm.err(ErrWrongType)
	}
	if keep {
		vm.push(value)
	}
	return nil
}

func (vm *VM) execLoadFrom() *RuntimeError {
	member, err := vm.pop()
	if err != nil {
		return err
	}
	if member.Kind != object.KindMemberName {
		return vm.err(ErrWrongType)
	}

	target, err := vm.pop()
	if err != nil {
		return err
	}
	resolved, ok := vm.resolve(target)
	if !ok {
		if !target.IsName() {
			return vm.err(ErrWrongType)
		}
		return vm.err(ErrUnsetName)
	}
	if resolved.Kind != object.KindInstance {
		return vm.err(ErrWrongType)
	}

	inst := vm.Instances[resolved.Int]
	if v, ok := inst.Members[member.NameID()]; ok {
		vm.push(v)
		return nil
	}
	class := vm.Program.Classes[inst.Class]
	if offset, ok := class.Methods[member.NameID()]; ok {
		vm.push(object.Function(resolved.Int, offset))
		return nil
	}
	return vm.err(ErrUnsetName)
}

func (vm *VM) execInputChar() *RuntimeError {
	b, err := vm.stdin.ReadByte()
	if err != nil {
		vm.push(vm.newString("\x00"))
		return nil
	}
	vm.push(vm.newString(string([]byte{b})))
	return nil
}

func (vm *VM) execInputLine() *RuntimeError {
	line, err := vm.stdin.ReadString('\n')
	if err != nil && len(line) == 0 {
		vm.push(vm.newString(""))
		return nil
	}
	vm.push(vm.newString(line))
	return nil
}

func (vm *VM) stdinAtEOF() bool {
	_, err := vm.stdin.Peek(1)
	return err != nil
}

func (vm *VM) execOutputString() *RuntimeError {
	s, err := vm.popString()
	if err != nil {
		return err
	}
	if _, werr := io.WriteString(vm.stdout, s); werr != nil {
		return vm.err(ErrOutputError)
	}
	return nil
}

func (vm *VM) execOutputNumber() *RuntimeError {
	n, err := vm.popNumber()
	if err != nil {
		return err
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	if _, werr := io.WriteString(vm.stdout, s); werr != nil {
		return vm.err(ErrOutputError)
	}
	return nil
}

func (vm *VM) execIndex() *RuntimeError {
	n, err := vm.popNumber()
	if err != nil {
		return err
	}
	s, err := vm.popString()
	if err != nil {
		return err
	}
	i, ok := indexOf(n, len(s))
	if !ok {
		return vm.err(ErrInvalidIndex)
	}
	vm.push(vm.newString(string(s[i])))
	return nil
}

func (vm *VM) execStringSplit() *RuntimeError {
	n, err := vm.popNumber()
	if err != nil {
		return err
	}
	s, err := vm.popString()
	if err != nil {
		return err
	}
	i, ok := splitPoint(n, len(s))
	if !ok {
		return vm.err(ErrInvalidIndex)
	}
	vm.push(vm.newString(s[:i]))
	vm.push(vm.newString(s[i:]))
	return nil
}

func (vm *VM) execStringReplace() *RuntimeError {
	repl, err := vm.popString()
	if err != nil {
		return err
	}
	if len(repl) != 1 {
		return vm.err(ErrWrongType)
	}
	n, err := vm.popNumber()
	if err != nil {
		return err
	}
	s, err := vm.popString()
	if err != nil {
		return err
	}
	i, ok := indexOf(n, len(s))
	if !ok {
		return vm.err(ErrInvalidIndex)
	}
	out := []byte(s)
	out[i] = repl[0]
	vm.push(vm.newString(string(out)))
	return nil
}

func (vm *VM) execNumToString() *RuntimeError {
	n, err := vm.popNumber()
	if err != nil {
		return err
	}
	if n != math.Floor(n) || n < 0 || n > 255 {
		return vm.err(ErrWrongType)
	}
	vm.push(vm.newString(string([]byte{byte(n)})))
	return nil
}

func (vm *VM) execStringToNum() *RuntimeError {
	s, err := vm.popString()
	if err != nil {
		return err
	}
	if len(s) != 1 {
		return vm.err(ErrWrongType)
	}
	vm.push(object.Number(float64(s[0])))
	return nil
}

func (vm *VM) execVarNew() *RuntimeError {
	v, err := vm.pop()
	if err != nil {
		return err
	}
	if v.Kind != object.KindLocalName {
		return vm.err(ErrWrongType)
	}
	id := vm.nextVar
	vm.nextVar--
	vm.push(object.LocalName(id))
	return nil
}

func (vm *VM) err(tag Tag) *RuntimeError {
	offsets := make([]int, 0, len(vm.frames)+1)
	for _, f := range vm.frames {
		offsets = append(offsets, f.ReturnOffset)
	}
	offsets = append(offsets, vm.index)

	trace := make([]TraceFrame, len(offsets))
	for i, off := range offsets {
		file, pos := vm.Program.Locate(off)
		trace[i] = TraceFrame{File: file, Pos: pos}
	}
	return &RuntimeError{Tag: tag, Trace: trace}
}

func indexOf(n float64, length int) (int, bool) {
	if n != math.Floor(n) || n < 0 {
		return 0, false
	}
	i := int(n)
	if i >= length {
		return 0, false
	}
	return i, true
}

func splitPoint(n float64, length int) (int, bool) {
	if n != math.Floor(n) || n < 0 {
		return 0, false
	}
	i := int(n)
	if i > length {
		return 0, false
	}
	return i, true
}

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
