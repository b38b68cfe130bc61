package bytecode

import "testing"

func TestEmitAndReadUint16(t *testing.T) {
	var ins Instructions
	var pos int
	ins, pos = Emit(ins, OpPushNumber, 0x1234)
	if pos != 0 {
		t.Fatalf("pos = %d, want 0", pos)
	}
	if len(ins) != 3 {
		t.Fatalf("len(ins) = %d, want 3", len(ins))
	}
	if Opcode(ins[0]) != OpPushNumber {
		t.Fatalf("ins[0] = %s, want PushNumber", Opcode(ins[0]))
	}
	if got := ReadUint16(ins, 1); got != 0x1234 {
		t.Fatalf("ReadUint16 = %#x, want 0x1234", got)
	}
}

func TestEmitNoOperand(t *testing.T) {
	var ins Instructions
	ins, _ = Emit(ins, OpPop, 0)
	if len(ins) != 1 {
		t.Fatalf("len(ins) = %d, want 1", len(ins))
	}
}

func TestEmitOneByteOperand(t *testing.T) {
	var ins Instructions
	ins, _ = Emit(ins, OpDuplicate, 7)
	if len(ins) != 2 || ins[1] != 7 {
		t.Fatalf("ins = %v, want [Duplicate, 7]", []byte(ins))
	}
}

func TestPatchUint16(t *testing.T) {
	var ins Instructions
	ins, pos := Emit(ins, OpJumpIfNot, 0)
	PatchUint16(ins, pos+1, 99)
	if got := ReadUint16(ins, pos+1); got != 99 {
		t.Fatalf("ReadUint16 after patch = %d, want 99", got)
	}
}

func TestInstructionsString(t *testing.T) {
	var ins Instructions
	ins, _ = Emit(ins, OpPop, 0)
	ins, _ = Emit(ins, OpDuplicate, 2)
	ins, _ = Emit(ins, OpPushNumber, 5)

	got := ins.String()
	want := "0000 Pop\n0001 Duplicate 2\n0003 PushNumber 5\n"
	if got != want {
		t.Fatalf("String() =\n%s\nwant:\n%s", got, want)
	}
}

func TestClassDefinitionConstructor(t *testing.T) {
	c := NewClassDefinition("A")
	if c.HasConstructor() {
		t.Fatal("fresh class should have no constructor")
	}
	c.Constructor = 10
	if !c.HasConstructor() {
		t.Fatal("class with Constructor >= 0 should report HasConstructor")
	}
}

func TestProgramLocate(t *testing.T) {
	p := NewProgram()
	p.Files = []FileMark{{Offset: 0, File: "a.glass"}, {Offset: 10, File: "b.glass"}}
	p.Positions = []PositionMark{
		{Offset: 0, Position: Position{Line: 1, Col: 1}},
		{Offset: 5, Position: Position{Line: 2, Col: 1}},
		{Offset: 10, Position: Position{Line: 1, Col: 1}},
	}

	tests := []struct {
		offset   int
		wantFile string
		wantPos  Position
	}{
		{0, "a.glass", Position{Line: 1, Col: 1}},
		{7, "a.glass", Position{Line: 2, Col: 1}},
		{12, "b.glass", Position{Line: 1, Col: 1}},
	}

	for _, tt := range tests {
		file, pos := p.Locate(tt.offset)
		if file != tt.wantFile || pos != tt.wantPos {
			t.Errorf("Locate(%d) = %s,%v, want %s,%v", tt.offset, file, pos, tt.wantFile, tt.wantPos)
		}
	}
}

func TestClassByGlobalID(t *testing.T) {
	p := NewProgram()
	c := NewClassDefinition("A")
	p.Classes = append(p.Classes, c)
	p.ClassNames[3] = 0

	if got := p.ClassByGlobalID(3); got != c {
		t.Fatal("ClassByGlobalID did not return the registered class")
	}
	if got := p.ClassByGlobalID(99); got != nil {
		t.Fatal("ClassByGlobalID should return nil for an unknown id")
	}
}
