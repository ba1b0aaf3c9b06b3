// Rill CLI - run programs, start the REPL, or serve the eval/LSP services.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rill-lang/rill/compiler"
	"github.com/rill-lang/rill/config"
	"github.com/rill-lang/rill/pkg/bytecode"
	"github.com/rill-lang/rill/repl"
	"github.com/rill-lang/rill/server"
	"github.com/rill-lang/rill/vm"
)

const versionStr = "0.1.0"

var (
	engine        = flag.String("engine", "vm", "execution engine: vm (bytecode) or eval (interpreter)")
	serveMode     = flag.Bool("serve", false, "start the eval service")
	lspMode       = flag.Bool("lsp", false, "start the LSP server on stdio")
	addr          = flag.String("addr", "", "eval service address (overrides rill.toml)")
	debugAST      = flag.Bool("debug-ast", false, "print the parsed AST before running")
	debugBytecode = flag.Bool("debug-bytecode", false, "print disassembled bytecode before running")
	version       = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rill [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Rill program, or starts the REPL when no file is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  rill                   # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  rill prog.rl           # Run a program\n")
		fmt.Fprintf(os.Stderr, "  rill --engine eval prog.rl\n")
		fmt.Fprintf(os.Stderr, "  rill --serve           # Eval service on the configured address\n")
		fmt.Fprintf(os.Stderr, "  rill --lsp             # Language server on stdio\n")
	}

	flag.Parse()

	if *version {
		fmt.Printf("rill version %s\n", versionStr)
		return
	}

	cfg, err := config.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	switch {
	case *lspMode:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "LSP server error: %v\n", err)
			os.Exit(1)
		}

	case *serveMode:
		srv := server.NewEvalServer()
		if _, err := srv.Listen(cfg.Server.Addr); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s: %v\n", cfg.Server.Addr, err)
			os.Exit(1)
		}
		if err := srv.Serve(); err != nil {
			fmt.Fprintf(os.Stderr, "Eval service error: %v\n", err)
			os.Exit(1)
		}

	case flag.NArg() > 0:
		runFile(flag.Arg(0))

	default:
		if err := repl.Run(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "REPL error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runFile executes a program file and prints nothing but its puts output;
// errors go to stderr with a non-zero exit.
func runFile(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	program, err := compiler.Parse(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if *debugAST {
		fmt.Println(program.String())
	}

	if *engine == "eval" {
		result := vm.Eval(program, vm.NewEnvironment())
		if errObj, ok := result.(*vm.Error); ok {
			fmt.Fprintf(os.Stderr, "%s\n", errObj.Message)
			os.Exit(1)
		}
		return
	}

	c := bytecode.NewCompiler()
	if err := c.Compile(program); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	bc := c.Bytecode()

	if *debugBytecode {
		fmt.Print(bc.Instructions.Disassemble())
	}

	machine := bytecode.NewVM(bc)
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
