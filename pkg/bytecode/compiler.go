package bytecode

import (
	"fmt"
	"sort"

	"github.com/rill-lang/rill/compiler"
	"github.com/rill-lang/rill/vm"
)

// ---------------------------------------------------------------------------
// Compiler: single-pass AST lowering
// ---------------------------------------------------------------------------

// Bytecode is the compiler's output: a flat instruction stream plus the
// constants pool its OpConstant operands index into. It is passed by
// reference in-process and never persisted.
type Bytecode struct {
	Instructions Instructions
	Constants    []vm.Object
}

// EmittedInstruction remembers an emitted opcode and its byte offset so
// the compiler can rewrite or remove it while still in the same scope.
type EmittedInstruction struct {
	Opcode   Opcode
	Position int
}

// CompilationScope owns the growing instruction buffer of one function
// body (or the program top level) and tracks the last two emitted
// instructions.
type CompilationScope struct {
	instructions        Instructions
	lastInstruction     EmittedInstruction
	previousInstruction EmittedInstruction
}

// Compiler lowers a parsed program to bytecode. Compilation scopes and
// symbol tables are pushed and popped 1:1 around each function literal.
type Compiler struct {
	constants   []vm.Object
	symbolTable *SymbolTable

	scopes     []CompilationScope
	scopeIndex int
}

// NewCompiler creates a compiler with a fresh global symbol table pre-loaded with
// the builtin registry.
func NewCompiler() *Compiler {
	symbolTable := NewSymbolTable()
	for i, builtin := range vm.Builtins {
		symbolTable.DefineBuiltin(i, builtin.Name)
	}
	return NewCompilerWithState(symbolTable, []vm.Object{})
}

// NewCompilerWithState creates a compiler that continues using an existing global
// symbol table and constants pool. The REPL and the eval service thread
// the same state through successive inputs so bindings persist.
func NewCompilerWithState(symbolTable *SymbolTable, constants []vm.Object) *Compiler {
	mainScope := CompilationScope{instructions: Instructions{}}
	return &Compiler{
		constants:   constants,
		symbolTable: symbolTable,
		scopes:      []CompilationScope{mainScope},
	}
}

// Compile lowers node, appending to the current scope. The first error
// aborts compilation.
func (c *Compiler) Compile(node compiler.Node) error {
	switch node := node.(type) {
	case *compiler.Program:
		for _, stmt := range node.Statements {
			if err := c.Compile(stmt); err != nil {
				return err
			}
		}

	case *compiler.BlockStatement:
		for _, stmt := range node.Statements {
			if err := c.Compile(stmt); err != nil {
				return err
			}
		}

	case *compiler.ExpressionStatement:
		if err := c.Compile(node.Expression); err != nil {
			return err
		}
		// Statements are value-neutral: discard the result. The VM keeps
		// the popped slot intact, which is how the top-level final value
		// stays recoverable.
		c.emit(OpPop)

	case *compiler.LetStatement:
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		symbol := c.symbolTable.Define(node.Name.Value)
		if symbol.Scope == GlobalScope {
			c.emit(OpSetGlobal, symbol.Index)
		} else {
			c.emit(OpSetLocal, symbol.Index)
		}

	case *compiler.ReturnStatement:
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		c.emit(OpReturnValue)

	case *compiler.IntegerLiteral:
		c.emit(OpConstant, c.addConstant(&vm.Integer{Value: node.Value}))

	case *compiler.StringLiteral:
		c.emit(OpConstant, c.addConstant(&vm.String{Value: node.Value}))

	case *compiler.BooleanLiteral:
		if node.Value {
			c.emit(OpTrue)
		} else {
			c.emit(OpFalse)
		}

	case *compiler.NullLiteral:
		c.emit(OpNull)

	case *compiler.PrefixExpression:
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		switch node.Operator {
		case "!":
			c.emit(OpBang)
		case "-":
			c.emit(OpMinus)
		default:
			return fmt.Errorf("unknown operator %s", node.Operator)
		}

	case *compiler.InfixExpression:
		return c.compileInfix(node)

	case *compiler.IfExpression:
		return c.compileIf(node)

	case *compiler.Identifier:
		symbol, ok := c.symbolTable.Resolve(node.Value)
		if !ok {
			return fmt.Errorf("undefined variable %s", node.Value)
		}
		c.loadSymbol(symbol)

	case *compiler.ArrayLiteral:
		for _, el := range node.Elements {
			if err := c.Compile(el); err != nil {
				return err
			}
		}
		c.emit(OpArray, len(node.Elements))

	case *compiler.HashLiteral:
		return c.compileHash(node)

	case *compiler.IndexExpression:
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Index); err != nil {
			return err
		}
		c.emit(OpIndex)

	case *compiler.FunctionLiteral:
		return c.compileFunction(node)

	case *compiler.CallExpression:
		if err := c.Compile(node.Function); err != nil {
			return err
		}
		for _, arg := range node.Arguments {
			if err := c.Compile(arg); err != nil {
				return err
			}
		}
		c.emit(OpCall, len(node.Arguments))
	}

	return nil
}

// Bytecode returns the compiled program: the top-level scope's
// instructions and the constants pool.
func (c *Compiler) Bytecode() *Bytecode {
	return &Bytecode{
		Instructions: c.currentInstructions(),
		Constants:    c.constants,
	}
}

// SymbolTable exposes the active symbol table; the REPL keeps the global
// table across inputs and tooling inspects it for completion.
func (c *Compiler) SymbolTable() *SymbolTable {
	return c.symbolTable
}

// ---------------------------------------------------------------------------
// Expression forms
// ---------------------------------------------------------------------------

func (c *Compiler) compileInfix(node *compiler.InfixExpression) error {
	// There is no OpLessThan: a < b compiles as b > a.
	if node.Operator == "<" {
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		c.emit(OpGreaterThan)
		return nil
	}

	if err := c.Compile(node.Left); err != nil {
		return err
	}
	if err := c.Compile(node.Right); err != nil {
		return err
	}

	switch node.Operator {
	case "+":
		c.emit(OpAdd)
	case "-":
		c.emit(OpSub)
	case "*":
		c.emit(OpMul)
	case "/":
		c.emit(OpDiv)
	case ">":
		c.emit(OpGreaterThan)
	case "==":
		c.emit(OpEqual)
	case "!=":
		c.emit(OpNotEqual)
	default:
		return fmt.Errorf("unknown operator %s", node.Operator)
	}
	return nil
}

// compileIf lowers an if expression so that exactly one value is left on
// the stack whichever branch runs. A missing alternative contributes
// OpNull. Both jump operands are emitted as placeholders and back-patched
// once the target offsets are known.
func (c *Compiler) compileIf(node *compiler.IfExpression) error {
	if err := c.Compile(node.Condition); err != nil {
		return err
	}

	jumpNotTruthyPos := c.emit(OpJumpNotTruthy, 0xFFFF)

	if err := c.Compile(node.Consequence); err != nil {
		return err
	}
	if c.lastInstructionIs(OpPop) {
		// The branch yields a value, not a statement.
		c.removeLastPop()
	}

	jumpPos := c.emit(OpJump, 0xFFFF)
	c.changeOperand(jumpNotTruthyPos, len(c.currentInstructions()))

	if node.Alternative == nil {
		c.emit(OpNull)
	} else {
		if err := c.Compile(node.Alternative); err != nil {
			return err
		}
		if c.lastInstructionIs(OpPop) {
			c.removeLastPop()
		}
	}

	c.changeOperand(jumpPos, len(c.currentInstructions()))
	return nil
}

// compileHash sorts the pairs by the key expression's source form so
// compilation is deterministic. Hash iteration order is not observable in
// the language, so this has no semantic effect.
func (c *Compiler) compileHash(node *compiler.HashLiteral) error {
	pairs := make([]compiler.HashPair, len(node.Pairs))
	copy(pairs, node.Pairs)
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Key.String() < pairs[j].Key.String()
	})

	for _, pair := range pairs {
		if err := c.Compile(pair.Key); err != nil {
			return err
		}
		if err := c.Compile(pair.Value); err != nil {
			return err
		}
	}

	c.emit(OpHash, len(pairs)*2)
	return nil
}

func (c *Compiler) compileFunction(node *compiler.FunctionLiteral) error {
	c.enterScope()

	if node.Name != "" {
		// A body reference to the function's own name compiles to
		// OpCurrentClosure; no capture is needed for recursion.
		c.symbolTable.DefineFunctionName(node.Name)
	}
	for _, param := range node.Parameters {
		c.symbolTable.Define(param.Value)
	}

	if err := c.Compile(node.Body); err != nil {
		c.leaveScope()
		return err
	}

	// An implicit final expression becomes the return value; an empty or
	// statement-terminated body returns null.
	if c.lastInstructionIs(OpPop) {
		c.replaceLastPopWithReturn()
	}
	if !c.lastInstructionIs(OpReturnValue) {
		c.emit(OpReturn)
	}

	freeSymbols := c.symbolTable.FreeSymbols
	numLocals := c.symbolTable.NumDefinitions()
	instructions := c.leaveScope()

	// Load the captured values in the outer scope; OpClosure pops them
	// into the closure's free list in the same order.
	for _, sym := range freeSymbols {
		c.loadSymbol(sym)
	}

	compiledFn := &vm.CompiledFunction{
		Instructions:  instructions,
		NumLocals:     numLocals,
		NumParameters: len(node.Parameters),
	}
	c.emit(OpClosure, c.addConstant(compiledFn), len(freeSymbols))
	return nil
}

func (c *Compiler) loadSymbol(s Symbol) {
	switch s.Scope {
	case GlobalScope:
		c.emit(OpGetGlobal, s.Index)
	case LocalScope:
		c.emit(OpGetLocal, s.Index)
	case BuiltinScope:
		c.emit(OpGetBuiltin, s.Index)
	case FreeScope:
		c.emit(OpGetFree, s.Index)
	case FunctionScope:
		c.emit(OpCurrentClosure)
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// addConstant appends obj to the constants pool and returns its index.
func (c *Compiler) addConstant(obj vm.Object) int {
	c.constants = append(c.constants, obj)
	return len(c.constants) - 1
}

// emit encodes an instruction into the current scope and returns its byte
// offset.
func (c *Compiler) emit(op Opcode, operands ...int) int {
	ins := Make(op, operands...)
	pos := len(c.currentInstructions())
	c.scopes[c.scopeIndex].instructions = append(c.currentInstructions(), ins...)

	c.scopes[c.scopeIndex].previousInstruction = c.scopes[c.scopeIndex].lastInstruction
	c.scopes[c.scopeIndex].lastInstruction = EmittedInstruction{Opcode: op, Position: pos}

	return pos
}

func (c *Compiler) currentInstructions() Instructions {
	return c.scopes[c.scopeIndex].instructions
}

func (c *Compiler) lastInstructionIs(op Opcode) bool {
	if len(c.currentInstructions()) == 0 {
		return false
	}
	return c.scopes[c.scopeIndex].lastInstruction.Opcode == op
}

// removeLastPop truncates the last emitted instruction (an OpPop).
func (c *Compiler) removeLastPop() {
	last := c.scopes[c.scopeIndex].lastInstruction
	c.scopes[c.scopeIndex].instructions = c.currentInstructions()[:last.Position]
	c.scopes[c.scopeIndex].lastInstruction = c.scopes[c.scopeIndex].previousInstruction
}

// replaceInstruction overwrites encoded bytes in place. The replacement
// must have the same width as the original.
func (c *Compiler) replaceInstruction(pos int, newInstruction []byte) {
	ins := c.currentInstructions()
	copy(ins[pos:pos+len(newInstruction)], newInstruction)
}

// changeOperand back-patches the operand of the instruction at pos,
// keeping the opcode. Operand widths are fixed per opcode, so the
// re-encoded instruction occupies exactly the original bytes.
func (c *Compiler) changeOperand(pos int, operand int) {
	op := Opcode(c.currentInstructions()[pos])
	c.replaceInstruction(pos, Make(op, operand))
}

// replaceLastPopWithReturn rewrites a trailing OpPop into OpReturnValue,
// turning a function body's final expression into its return value.
func (c *Compiler) replaceLastPopWithReturn() {
	lastPos := c.scopes[c.scopeIndex].lastInstruction.Position
	c.replaceInstruction(lastPos, Make(OpReturnValue))
	c.scopes[c.scopeIndex].lastInstruction.Opcode = OpReturnValue
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

// enterScope pushes a fresh compilation scope and an enclosed symbol
// table. Every enterScope is matched by exactly one leaveScope.
func (c *Compiler) enterScope() {
	c.scopes = append(c.scopes, CompilationScope{instructions: Instructions{}})
	c.scopeIndex++
	c.symbolTable = NewEnclosedSymbolTable(c.symbolTable)
}

// leaveScope pops the current compilation scope and symbol table,
// returning the scope's finished instructions.
func (c *Compiler) leaveScope() Instructions {
	instructions := c.currentInstructions()

	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--
	c.symbolTable = c.symbolTable.Outer

	return instructions
}
