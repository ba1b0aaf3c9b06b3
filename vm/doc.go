// Package vm implements the Rill runtime object model and the
// tree-walking reference interpreter.
//
// This package contains:
//   - Tagged runtime values (Integer, Boolean, Null, String, Array, Hash,
//     Error, CompiledFunction, Closure, Builtin)
//   - Hash keys with per-kind salting
//   - The ordered builtin registry shared by both execution engines
//   - Environment chains and the direct AST evaluator
//
// The evaluator defines the language's reference semantics; the bytecode
// engine in pkg/bytecode is validated against it.
package vm
