package builtins

import (
	"errors"
	"testing"
)

type fakeEmitter struct {
	defined []string
	methods map[string][]Method
	fail    string
}

func (f *fakeEmitter) DefineBuiltinClass(name string, methods []Method) error {
	if name == f.fail {
		return errors.New("boom")
	}
	f.defined = append(f.defined, name)
	if f.methods == nil {
		f.methods = make(map[string][]Method)
	}
	f.methods[name] = methods
	return nil
}

func TestInstallOrderAndCoverage(t *testing.T) {
	f := &fakeEmitter{}
	if err := Install(f); err != nil {
		t.Fatalf("Install: %v", err)
	}

	wantOrder := []string{"A", "I", "O", "S", "V"}
	if len(f.defined) != len(wantOrder) {
		t.Fatalf("defined %v, want %v", f.defined, wantOrder)
	}
	for i, name := range wantOrder {
		if f.defined[i] != name {
			t.Errorf("defined[%d] = %s, want %s", i, f.defined[i], name)
		}
	}

	if len(f.methods["A"]) == 0 {
		t.Error("class A should declare at least one method")
	}
	if len(f.methods["S"]) == 0 {
		t.Error("class S should declare at least one method")
	}
}

func TestInstallStopsOnFirstError(t *testing.T) {
	f := &fakeEmitter{fail: "I"}
	if err := Install(f); err == nil {
		t.Fatal("expected Install to propagate the emitter's error")
	}
	if len(f.defined) != 1 || f.defined[0] != "A" {
		t.Fatalf("defined = %v, want [A] (stop before I)", f.defined)
	}
}
