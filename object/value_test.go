package object

import "testing"

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"zero number is falsy", Number(0), false},
		{"nonzero number is truthy", Number(-1), true},
		{"instance is always falsy", Instance(0), false},
		{"class is always falsy", Class(0), false},
		{"name token is always falsy", GlobalName(1), false},
		{"function is always falsy", Function(0, 0), false},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Errorf("%s: Truthy() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTruthyString(t *testing.T) {
	if TruthyString("") {
		t.Error("empty string should be falsy")
	}
	if !TruthyString("a") {
		t.Error("nonempty string should be truthy")
	}
}

func TestIsNameAndNameID(t *testing.T) {
	tests := []Value{GlobalName(7), MemberName(7), LocalName(7)}
	for _, v := range tests {
		if !v.IsName() {
			t.Errorf("%v: expected IsName() true", v)
		}
		if v.NameID() != 7 {
			t.Errorf("%v: NameID() = %d, want 7", v, v.NameID())
		}
	}

	if Number(1).IsName() {
		t.Error("a number value should not be a name token")
	}
}

func TestNewInstance(t *testing.T) {
	inst := NewInstance(4)
	if inst.Class != 4 {
		t.Errorf("Class = %d, want 4", inst.Class)
	}
	if inst.Members == nil {
		t.Fatal("Members map should be initialized")
	}
	inst.Members[1] = Number(9)
	if got := inst.Members[1]; got.Num != 9 {
		t.Errorf("Members[1] = %v, want Number(9)", got)
	}
}
