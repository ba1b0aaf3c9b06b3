// Package bytecode provides Rill's bytecode engine: a single-pass compiler
// from the front end's AST to a flat instruction stream, and a stack-based
// virtual machine that executes it.
//
// The bytecode format is designed for:
//   - Compact representation (1-4 bytes per instruction)
//   - Fast decoding (fixed-width operands determined solely by the opcode,
//     big-endian)
//   - Deterministic output (the same program always compiles to the same
//     bytes; hash literals are key-sorted)
//
// The system consists of:
//
//   - Opcodes: the closed instruction set with a per-opcode definition
//     table driving encoding, decoding and disassembly
//
//   - SymbolTable: nested scope resolution classifying every identifier as
//     global, local, builtin or free, and synthesising the capture list
//     for each function literal
//
//   - Compiler: lowers the AST scope by scope, back-patching jump targets
//     and emitting a Closure-wrapping sequence for each function literal
//
//   - VM: a value stack of 2048 slots, a frame stack of 1024 activation
//     records, and a dispatch loop implementing the operational semantics
//     of every opcode
//
// Closures capture free variables by value at closure-creation time; the
// captured values travel with the Closure object. Recursion is wired
// through OpCurrentClosure rather than capture, so a function named by an
// enclosing let can call itself without the binding existing yet.
//
// The package shares its object model with the tree-walking reference
// interpreter in the vm package; both engines agree on every terminating
// program.
package bytecode
