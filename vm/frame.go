package vm

import "github.com/glasslang/glass/object"

// Frame is one saved call: the instance a method was entered from, the
// instruction offset of the Call or Construct that entered it (used
// both to resume execution and, on error, to resolve a traceback
// line), and the locals map that was live before the call.
type Frame struct {
	CallerInstance int
	ReturnOffset   int
	Locals         map[uint16]object.Value
}
