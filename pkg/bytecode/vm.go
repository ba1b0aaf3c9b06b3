package bytecode

import (
	"fmt"

	"github.com/rill-lang/rill/vm"
)

// ---------------------------------------------------------------------------
// VM: stack-based bytecode interpreter
// ---------------------------------------------------------------------------

// Execution limits. These are part of the execution contract, not tunables:
// exceeding a limit is a runtime error, never silent growth.
const (
	// StackSize is the value stack capacity in slots.
	StackSize = 2048

	// GlobalsSize bounds top-level bindings; OpSetGlobal carries a 16-bit
	// operand.
	GlobalsSize = 65536

	// MaxFrames is the call depth limit.
	MaxFrames = 1024
)

// VM executes compiled bytecode. Execution is single-threaded and
// synchronous; the VM owns its state exclusively for the duration of Run.
type VM struct {
	constants []vm.Object
	globals   []vm.Object

	stack []vm.Object
	sp    int // next free slot; stack[sp-1] is TOS

	frames      []*Frame
	framesIndex int
}

// NewVM creates a VM for the given bytecode with a fresh globals slab.
func NewVM(bytecode *Bytecode) *VM {
	return NewVMWithGlobals(bytecode, make([]vm.Object, GlobalsSize))
}

// NewVMWithGlobals creates a VM sharing an externally owned globals
// slab. The REPL and the eval service reuse one slab across runs so
// top-level bindings persist.
func NewVMWithGlobals(bytecode *Bytecode, globals []vm.Object) *VM {
	// The program's top-level instructions run as a synthetic main
	// closure in the bottom frame.
	mainFn := &vm.CompiledFunction{Instructions: bytecode.Instructions}
	mainClosure := &vm.Closure{Fn: mainFn}

	frames := make([]*Frame, MaxFrames)
	frames[0] = NewFrame(mainClosure, 0)

	return &VM{
		constants:   bytecode.Constants,
		globals:     globals,
		stack:       make([]vm.Object, StackSize),
		frames:      frames,
		framesIndex: 1,
	}
}

// LastPopped returns the most recently popped stack element. Pops only
// decrement sp, so the slot stays valid until overwritten; the REPL reads
// the program's final value here after Run returns.
func (m *VM) LastPopped() vm.Object {
	if m.stack[m.sp] == nil {
		// Nothing was ever popped (an empty program).
		return vm.Null
	}
	return m.stack[m.sp]
}

func (m *VM) currentFrame() *Frame {
	return m.frames[m.framesIndex-1]
}

func (m *VM) pushFrame(f *Frame) error {
	if m.framesIndex >= MaxFrames {
		return fmt.Errorf("frame stack overflow")
	}
	m.frames[m.framesIndex] = f
	m.framesIndex++
	return nil
}

func (m *VM) popFrame() *Frame {
	m.framesIndex--
	return m.frames[m.framesIndex]
}

func (m *VM) push(obj vm.Object) error {
	if m.sp >= StackSize {
		return fmt.Errorf("stack overflow")
	}
	m.stack[m.sp] = obj
	m.sp++
	return nil
}

func (m *VM) pop() vm.Object {
	obj := m.stack[m.sp-1]
	m.sp--
	return obj
}

// Run executes the loaded program to completion. A runtime error aborts
// the run; the VM makes no attempt at recovery.
func (m *VM) Run() error {
	var ip int
	var ins Instructions
	var op Opcode

	for m.currentFrame().ip < len(m.currentFrame().Instructions())-1 {
		m.currentFrame().ip++

		ip = m.currentFrame().ip
		ins = m.currentFrame().Instructions()
		op = Opcode(ins[ip])

		switch op {
		case OpConstant:
			constIndex := ReadUint16(ins[ip+1:])
			m.currentFrame().ip += 2
			if err := m.push(m.constants[constIndex]); err != nil {
				return err
			}

		case OpPop:
			m.pop()

		case OpTrue:
			if err := m.push(vm.True); err != nil {
				return err
			}

		case OpFalse:
			if err := m.push(vm.False); err != nil {
				return err
			}

		case OpNull:
			if err := m.push(vm.Null); err != nil {
				return err
			}

		case OpAdd, OpSub, OpMul, OpDiv:
			if err := m.executeBinaryOperation(op); err != nil {
				return err
			}

		case OpEqual, OpNotEqual, OpGreaterThan:
			if err := m.executeComparison(op); err != nil {
				return err
			}

		case OpMinus:
			operand := m.pop()
			integer, ok := operand.(*vm.Integer)
			if !ok {
				return fmt.Errorf("unsupported type for negation: %s", operand.Kind())
			}
			if err := m.push(&vm.Integer{Value: -integer.Value}); err != nil {
				return err
			}

		case OpBang:
			operand := m.pop()
			if err := m.push(vm.BoolValue(!vm.IsTruthy(operand))); err != nil {
				return err
			}

		case OpJump:
			target := int(ReadUint16(ins[ip+1:]))
			m.currentFrame().ip = target - 1

		case OpJumpNotTruthy:
			target := int(ReadUint16(ins[ip+1:]))
			m.currentFrame().ip += 2
			condition := m.pop()
			if !vm.IsTruthy(condition) {
				m.currentFrame().ip = target - 1
			}

		case OpSetGlobal:
			globalIndex := ReadUint16(ins[ip+1:])
			m.currentFrame().ip += 2
			m.globals[globalIndex] = m.pop()

		case OpGetGlobal:
			globalIndex := ReadUint16(ins[ip+1:])
			m.currentFrame().ip += 2
			if err := m.push(m.globals[globalIndex]); err != nil {
				return err
			}

		case OpSetLocal:
			localIndex := ReadUint8(ins[ip+1:])
			m.currentFrame().ip++
			m.stack[m.currentFrame().basePointer+int(localIndex)] = m.pop()

		case OpGetLocal:
			localIndex := ReadUint8(ins[ip+1:])
			m.currentFrame().ip++
			if err := m.push(m.stack[m.currentFrame().basePointer+int(localIndex)]); err != nil {
				return err
			}

		case OpGetBuiltin:
			builtinIndex := ReadUint8(ins[ip+1:])
			m.currentFrame().ip++
			if int(builtinIndex) >= len(vm.Builtins) {
				return fmt.Errorf("undefined builtin %d", builtinIndex)
			}
			if err := m.push(vm.Builtins[builtinIndex]); err != nil {
				return err
			}

		case OpGetFree:
			freeIndex := ReadUint8(ins[ip+1:])
			m.currentFrame().ip++
			if err := m.push(m.currentFrame().cl.Free[freeIndex]); err != nil {
				return err
			}

		case OpCurrentClosure:
			if err := m.push(m.currentFrame().cl); err != nil {
				return err
			}

		case OpArray:
			numElements := int(ReadUint16(ins[ip+1:]))
			m.currentFrame().ip += 2

			array := m.buildArray(m.sp-numElements, m.sp)
			m.sp -= numElements
			if err := m.push(array); err != nil {
				return err
			}

		case OpHash:
			numElements := int(ReadUint16(ins[ip+1:]))
			m.currentFrame().ip += 2

			hash, err := m.buildHash(m.sp-numElements, m.sp)
			if err != nil {
				return err
			}
			m.sp -= numElements
			if err := m.push(hash); err != nil {
				return err
			}

		case OpIndex:
			index := m.pop()
			left := m.pop()
			if err := m.executeIndexExpression(left, index); err != nil {
				return err
			}

		case OpClosure:
			constIndex := ReadUint16(ins[ip+1:])
			numFree := ReadUint8(ins[ip+3:])
			m.currentFrame().ip += 3
			if err := m.pushClosure(int(constIndex), int(numFree)); err != nil {
				return err
			}

		case OpCall:
			numArgs := ReadUint8(ins[ip+1:])
			m.currentFrame().ip++
			if err := m.executeCall(int(numArgs)); err != nil {
				return err
			}

		case OpReturnValue:
			returnValue := m.pop()

			frame := m.popFrame()
			// Dropping to basePointer-1 discards the callee, the
			// arguments and the local slots in one move.
			m.sp = frame.basePointer - 1

			if err := m.push(returnValue); err != nil {
				return err
			}

		case OpReturn:
			frame := m.popFrame()
			m.sp = frame.basePointer - 1

			if err := m.push(vm.Null); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unknown opcode %d", op)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (m *VM) executeBinaryOperation(op Opcode) error {
	right := m.pop()
	left := m.pop()

	switch {
	case left.Kind() == vm.KindInteger && right.Kind() == vm.KindInteger:
		return m.executeBinaryIntegerOperation(op, left.(*vm.Integer), right.(*vm.Integer))

	case left.Kind() == vm.KindString && right.Kind() == vm.KindString:
		if op != OpAdd {
			return fmt.Errorf("unknown string operator: %s", op)
		}
		return m.push(&vm.String{Value: left.(*vm.String).Value + right.(*vm.String).Value})

	default:
		return fmt.Errorf("unsupported types for binary operation: %s %s",
			left.Kind(), right.Kind())
	}
}

// executeBinaryIntegerOperation performs 64-bit two's-complement
// arithmetic; overflow wraps.
func (m *VM) executeBinaryIntegerOperation(op Opcode, left, right *vm.Integer) error {
	var result int64

	switch op {
	case OpAdd:
		result = left.Value + right.Value
	case OpSub:
		result = left.Value - right.Value
	case OpMul:
		result = left.Value * right.Value
	case OpDiv:
		if right.Value == 0 {
			return fmt.Errorf("division by zero")
		}
		result = left.Value / right.Value
	default:
		return fmt.Errorf("unknown integer operator: %s", op)
	}

	return m.push(&vm.Integer{Value: result})
}

func (m *VM) executeComparison(op Opcode) error {
	right := m.pop()
	left := m.pop()

	if left.Kind() == vm.KindInteger && right.Kind() == vm.KindInteger {
		l := left.(*vm.Integer).Value
		r := right.(*vm.Integer).Value
		switch op {
		case OpEqual:
			return m.push(vm.BoolValue(l == r))
		case OpNotEqual:
			return m.push(vm.BoolValue(l != r))
		case OpGreaterThan:
			return m.push(vm.BoolValue(l > r))
		}
	}

	switch op {
	case OpEqual:
		// Identity comparison; the boolean and null singletons make this
		// correct for those kinds.
		return m.push(vm.BoolValue(left == right))
	case OpNotEqual:
		return m.push(vm.BoolValue(left != right))
	default:
		return fmt.Errorf("unsupported types for comparison: %s %s",
			left.Kind(), right.Kind())
	}
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// buildArray collects stack[start:end] into an Array, preserving order.
func (m *VM) buildArray(start, end int) vm.Object {
	elements := make([]vm.Object, end-start)
	copy(elements, m.stack[start:end])
	return &vm.Array{Elements: elements}
}

// buildHash consumes key,value pairs from stack[start:end].
func (m *VM) buildHash(start, end int) (vm.Object, error) {
	entries := make(map[vm.HashKey]vm.HashEntry, (end-start)/2)

	for i := start; i < end; i += 2 {
		key := m.stack[i]
		value := m.stack[i+1]

		hashable, ok := key.(vm.Hashable)
		if !ok {
			return nil, fmt.Errorf("unusable as hash key: %s", key.Kind())
		}
		entries[hashable.HashKey()] = vm.HashEntry{Key: key, Value: value}
	}

	return &vm.Hash{Entries: entries}, nil
}

func (m *VM) executeIndexExpression(left, index vm.Object) error {
	switch {
	case left.Kind() == vm.KindArray && index.Kind() == vm.KindInteger:
		arr := left.(*vm.Array)
		i := index.(*vm.Integer).Value
		if i < 0 || i >= int64(len(arr.Elements)) {
			return m.push(vm.Null)
		}
		return m.push(arr.Elements[i])

	case left.Kind() == vm.KindHash:
		hash := left.(*vm.Hash)
		key, ok := index.(vm.Hashable)
		if !ok {
			return fmt.Errorf("unusable as hash key: %s", index.Kind())
		}
		entry, ok := hash.Entries[key.HashKey()]
		if !ok {
			return m.push(vm.Null)
		}
		return m.push(entry.Value)

	default:
		return fmt.Errorf("index operator not supported: %s", left.Kind())
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// pushClosure wraps the function constant at constIndex with numFree
// captured values popped from the stack, preserving their stack order.
func (m *VM) pushClosure(constIndex, numFree int) error {
	constant := m.constants[constIndex]
	fn, ok := constant.(*vm.CompiledFunction)
	if !ok {
		return fmt.Errorf("not a function: %+v", constant)
	}

	free := make([]vm.Object, numFree)
	copy(free, m.stack[m.sp-numFree:m.sp])
	m.sp -= numFree

	return m.push(&vm.Closure{Fn: fn, Free: free})
}

func (m *VM) executeCall(numArgs int) error {
	callee := m.stack[m.sp-1-numArgs]

	switch callee := callee.(type) {
	case *vm.Closure:
		return m.callClosure(callee, numArgs)
	case *vm.Builtin:
		return m.callBuiltin(callee, numArgs)
	default:
		return fmt.Errorf("calling non-function and non-builtin")
	}
}

// callClosure pushes a frame whose locals begin at the first argument
// slot; sp advances past the reserved local slots.
func (m *VM) callClosure(cl *vm.Closure, numArgs int) error {
	if numArgs != cl.Fn.NumParameters {
		return fmt.Errorf("wrong number of arguments: want=%d, got=%d",
			cl.Fn.NumParameters, numArgs)
	}

	frame := NewFrame(cl, m.sp-numArgs)
	if frame.basePointer+cl.Fn.NumLocals > StackSize {
		return fmt.Errorf("stack overflow")
	}
	if err := m.pushFrame(frame); err != nil {
		return err
	}
	m.sp = frame.basePointer + cl.Fn.NumLocals

	return nil
}

// callBuiltin invokes a native function on a slice of the stack; an Error
// result is promoted to a runtime error.
func (m *VM) callBuiltin(builtin *vm.Builtin, numArgs int) error {
	args := m.stack[m.sp-numArgs : m.sp]

	result := builtin.Fn(args...)
	if err, ok := result.(*vm.Error); ok {
		return fmt.Errorf("%s", err.Message)
	}

	m.sp = m.sp - numArgs - 1
	if result == nil {
		result = vm.Null
	}
	return m.push(result)
}
