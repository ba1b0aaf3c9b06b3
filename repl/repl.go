// Package repl implements the interactive read-eval-print loop.
//
// The loop shares one constants pool, one globals slab and one global
// symbol table across inputs, so bindings from earlier lines stay visible
// and closures compiled earlier observe later rebindings.
package repl

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/rill-lang/rill/compiler"
	"github.com/rill-lang/rill/config"
	"github.com/rill-lang/rill/pkg/bytecode"
	"github.com/rill-lang/rill/vm"
)

// Engine selects the execution path for REPL inputs.
type Engine string

const (
	EngineVM   Engine = "vm"   // compile + bytecode VM (default)
	EngineEval Engine = "eval" // tree-walking reference interpreter
)

// Session holds the state threaded through successive inputs.
type Session struct {
	constants   []vm.Object
	globals     []vm.Object
	symbolTable *bytecode.SymbolTable
	env         *vm.Environment

	engine        Engine
	showBytecode  bool
	showAST       bool
	out           io.Writer
	errColor      *color.Color
	noticeColor   *color.Color
}

// NewSession creates a fresh REPL session with the builtin registry bound.
func NewSession(out io.Writer, useColor bool) *Session {
	symbolTable := bytecode.NewSymbolTable()
	for i, b := range vm.Builtins {
		symbolTable.DefineBuiltin(i, b.Name)
	}

	errColor := color.New(color.FgRed)
	noticeColor := color.New(color.FgCyan)
	if !useColor {
		errColor.DisableColor()
		noticeColor.DisableColor()
	}

	return &Session{
		constants:   []vm.Object{},
		globals:     make([]vm.Object, bytecode.GlobalsSize),
		symbolTable: symbolTable,
		env:         vm.NewEnvironment(),
		engine:      EngineVM,
		out:         out,
		errColor:    errColor,
		noticeColor: noticeColor,
	}
}

// Eval runs one input through the session's engine and returns the final
// value's display form. Parse, compile and runtime failures come back as
// errors; the session state survives them.
func (s *Session) Eval(input string) (string, error) {
	program, err := compiler.Parse(input)
	if err != nil {
		return "", err
	}

	if s.showAST {
		fmt.Fprintln(s.out, program.String())
	}

	if s.engine == EngineEval {
		result := vm.Eval(program, s.env)
		if vmErr, ok := result.(*vm.Error); ok {
			return "", fmt.Errorf("%s", vmErr.Message)
		}
		return result.Inspect(), nil
	}

	c := bytecode.NewCompilerWithState(s.symbolTable, s.constants)
	if err := c.Compile(program); err != nil {
		return "", err
	}
	bc := c.Bytecode()
	s.constants = bc.Constants

	if s.showBytecode {
		fmt.Fprint(s.out, bc.Instructions.Disassemble())
	}

	machine := bytecode.NewVMWithGlobals(bc, s.globals)
	if err := machine.Run(); err != nil {
		return "", err
	}
	return machine.LastPopped().Inspect(), nil
}

// Run drives the interactive loop until EOF or :quit.
func Run(cfg *config.Config) error {
	session := NewSession(color.Output, cfg.REPL.Color)

	history, err := OpenHistory(cfg.REPL.History)
	if err != nil {
		session.noticeColor.Fprintf(color.Output,
			"history unavailable (%v); continuing without persistence\n", err)
		history = nil
	}
	defer history.Close()

	rl, err := readline.New(cfg.REPL.Prompt)
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	// Preload this session's editor history from the store.
	if recent, err := history.Recent(200); err == nil {
		for _, input := range recent {
			rl.SaveHistory(input)
		}
	}

	fmt.Println("Rill REPL (type ':quit' to exit, ':help' for commands)")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := session.command(line); quit {
				break
			}
			continue
		}

		rl.SaveHistory(line)
		if err := history.Append(line); err != nil {
			session.noticeColor.Fprintf(color.Output, "history write failed: %v\n", err)
		}

		result, err := session.Eval(line)
		if err != nil {
			session.errColor.Fprintln(color.Output, err.Error())
			continue
		}
		fmt.Println(result)
	}

	return nil
}

// command handles a ':' meta-command, returning true to quit.
func (s *Session) command(cmd string) bool {
	switch {
	case cmd == ":quit" || cmd == ":q":
		return true

	case cmd == ":help" || cmd == ":h":
		fmt.Fprintln(s.out, "REPL commands:")
		fmt.Fprintln(s.out, "  :help, :h        Show this help")
		fmt.Fprintln(s.out, "  :bytecode        Toggle disassembly of each input")
		fmt.Fprintln(s.out, "  :ast             Toggle AST dump of each input")
		fmt.Fprintln(s.out, "  :engine vm|eval  Switch execution engine")
		fmt.Fprintln(s.out, "  :quit, :q        Exit")

	case cmd == ":bytecode":
		s.showBytecode = !s.showBytecode
		fmt.Fprintf(s.out, "bytecode dump: %t\n", s.showBytecode)

	case cmd == ":ast":
		s.showAST = !s.showAST
		fmt.Fprintf(s.out, "ast dump: %t\n", s.showAST)

	case strings.HasPrefix(cmd, ":engine"):
		arg := strings.TrimSpace(strings.TrimPrefix(cmd, ":engine"))
		switch Engine(arg) {
		case EngineVM, EngineEval:
			s.engine = Engine(arg)
			fmt.Fprintf(s.out, "engine: %s\n", arg)
		default:
			fmt.Fprintf(s.out, "unknown engine %q (use vm or eval)\n", arg)
		}

	default:
		fmt.Fprintf(s.out, "unknown command %s (try :help)\n", cmd)
	}
	return false
}
