package vm

import (
	"fmt"
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// Builtin registry
// ---------------------------------------------------------------------------

// PutsWriter receives the output of puts. The REPL and the eval service
// redirect it; tests capture it.
var PutsWriter io.Writer = os.Stdout

// Builtins is the ordered builtin registry. An entry's position is its
// index: the compiler resolves builtin names to positions and the VM
// fetches by position, so the order is part of the bytecode contract.
var Builtins = []*Builtin{
	{
		Name: "len",
		Fn: func(args ...Object) Object {
			if len(args) != 1 {
				return Errorf("wrong number of arguments. got=%d, want=1", len(args))
			}
			switch arg := args[0].(type) {
			case *String:
				return &Integer{Value: int64(len(arg.Value))}
			case *Array:
				return &Integer{Value: int64(len(arg.Elements))}
			default:
				return Errorf("argument to 'len' not supported, got %s", args[0].Kind())
			}
		},
	},
	{
		Name: "first",
		Fn: func(args ...Object) Object {
			if len(args) != 1 {
				return Errorf("wrong number of arguments. got=%d, want=1", len(args))
			}
			arr, ok := args[0].(*Array)
			if !ok {
				return Errorf("argument to 'first' must be ARRAY, got %s", args[0].Kind())
			}
			if len(arr.Elements) == 0 {
				return Null
			}
			return arr.Elements[0]
		},
	},
	{
		Name: "last",
		Fn: func(args ...Object) Object {
			if len(args) != 1 {
				return Errorf("wrong number of arguments. got=%d, want=1", len(args))
			}
			arr, ok := args[0].(*Array)
			if !ok {
				return Errorf("argument to 'last' must be ARRAY, got %s", args[0].Kind())
			}
			if len(arr.Elements) == 0 {
				return Null
			}
			return arr.Elements[len(arr.Elements)-1]
		},
	},
	{
		Name: "rest",
		Fn: func(args ...Object) Object {
			if len(args) != 1 {
				return Errorf("wrong number of arguments. got=%d, want=1", len(args))
			}
			arr, ok := args[0].(*Array)
			if !ok {
				return Errorf("argument to 'rest' must be ARRAY, got %s", args[0].Kind())
			}
			if len(arr.Elements) == 0 {
				return Null
			}
			rest := make([]Object, len(arr.Elements)-1)
			copy(rest, arr.Elements[1:])
			return &Array{Elements: rest}
		},
	},
	{
		Name: "push",
		Fn: func(args ...Object) Object {
			if len(args) != 2 {
				return Errorf("wrong number of arguments. got=%d, want=2", len(args))
			}
			arr, ok := args[0].(*Array)
			if !ok {
				return Errorf("argument to 'push' must be ARRAY, got %s", args[0].Kind())
			}
			// Non-mutating: the source array is unchanged.
			elems := make([]Object, len(arr.Elements)+1)
			copy(elems, arr.Elements)
			elems[len(arr.Elements)] = args[1]
			return &Array{Elements: elems}
		},
	},
	{
		Name: "puts",
		Fn: func(args ...Object) Object {
			for _, arg := range args {
				fmt.Fprintln(PutsWriter, arg.Inspect())
			}
			return Null
		},
	},
}

// LookupBuiltin returns the builtin with the given name, or nil.
func LookupBuiltin(name string) *Builtin {
	for _, b := range Builtins {
		if b.Name == name {
			return b
		}
	}
	return nil
}
