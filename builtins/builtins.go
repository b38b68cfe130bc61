// Package builtins supplies the table of built-in classes A, I, O, S
// and V: ordinary classes whose method bodies are a single built-in
// opcode followed by Return. Installing them before any user class is
// parsed means they occupy the first entries of the global and member
// name tables (see package parser, which drives Install through the
// Emitter interface to avoid importing this package back).
package builtins

import "github.com/glasslang/glass/bytecode"

// Method names one built-in class method and the opcode its body
// compiles to.
type Method struct {
	Name string
	Op   bytecode.Opcode
}

// Emitter is the subset of the parser's code generator that installing
// the built-in classes needs.
type Emitter interface {
	// DefineBuiltinClass registers className with one method per
	// entry in methods, each compiled to Op followed by Return.
	DefineBuiltinClass(className string, methods []Method) error
}

type class struct {
	name    string
	methods []Method
}

// classes lists the built-in classes in installation order. I and V
// round out the original language's A/O/S trio with input and
// variable-lifetime operations.
var classes = []class{
	{
		name: "A",
		methods: []Method{
			{"a", bytecode.OpAdd},
			{"s", bytecode.OpSubtract},
			{"m", bytecode.OpMultiply},
			{"d", bytecode.OpDivide},
			{"mod", bytecode.OpModulo},
			{"f", bytecode.OpFloor},
			{"e", bytecode.OpEqual},
			{"ne", bytecode.OpNotEqual},
			{"lt", bytecode.OpLessThan},
			{"gt", bytecode.OpGreaterThan},
			{"le", bytecode.OpLessEqual},
			{"ge", bytecode.OpGreaterEqual},
		},
	},
	{
		name: "I",
		methods: []Method{
			{"c", bytecode.OpInputChar},
			{"l", bytecode.OpInputLine},
			{"e", bytecode.OpInputEof},
		},
	},
	{
		name: "O",
		methods: []Method{
			{"o", bytecode.OpOutputString},
			{"on", bytecode.OpOutputNumber},
		},
	},
	{
		name: "S",
		methods: []Method{
			{"a", bytecode.OpConcat},
			{"d", bytecode.OpStringSplit},
			{"e", bytecode.OpStringEqual},
			{"i", bytecode.OpIndex},
			{"l", bytecode.OpLength},
			{"ns", bytecode.OpNumToString},
			{"sn", bytecode.OpStringToNum},
			{"si", bytecode.OpStringReplace},
		},
	},
	{
		name: "V",
		methods: []Method{
			{"n", bytecode.OpVarNew},
			{"d", bytecode.OpVarDelete},
		},
	},
}

// Install defines every built-in class on g, in a fixed order so the
// id each method and class name is assigned is deterministic across
// runs.
func Install(g Emitter) error {
	for _, c := range classes {
		if err := g.DefineBuiltinClass(c.name, c.methods); err != nil {
			return err
		}
	}
	return nil
}
