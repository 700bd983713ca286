package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

func showUsage() {
	fmt.Fprintf(os.Stderr, `Kal - A small expression language compiled to LLVM IR

Usage:
    kal [command] [arguments]

Commands:
    repl            Read units from standard input (default)
    run <file>      Compile and execute a .kal file
    eval <code>     Evaluate inline Kal code
    check <file>    Parse, translate and verify a .kal file without running it
    emit <file>     Print the LLVM IR of every unit in a .kal file
    help            Show this help message

Examples:
    kal
    kal run examples/fib.kal
    kal eval 'def sq(x) { x * x } sq(4)'
    kal check -v myfile.kal

Environment:
    KAL_PROMPT, KAL_VERBOSE, KAL_DUMP_IR, KAL_MAX_CALL_DEPTH, KAL_MAX_STEPS

Use "kal <command> -h" for more information about a command.
`)
}

func replCommand(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	config := ConfigFromEnv()
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "Log every unit")
	fs.BoolVar(&config.DumpIR, "ir", config.DumpIR, "Log generated IR")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kal repl [-v] [-ir]\n")
		fmt.Fprintf(os.Stderr, "Read and evaluate units from standard input\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	session := NewSession(config, os.Stdout, os.Stderr)
	if err := session.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr)
}

func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	config := ConfigFromEnv()
	config.Prompt = ""
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "Log every unit")
	fs.BoolVar(&config.DumpIR, "ir", config.DumpIR, "Log generated IR")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kal run [-v] [-ir] <file>\n")
		fmt.Fprintf(os.Stderr, "Compile and execute a .kal file\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		os.Exit(1)
	}

	session := runFile(fs.Arg(0), config)
	if session.Errors.HasErrors() {
		os.Exit(1)
	}
}

func evalCommand(args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	config := ConfigFromEnv()
	config.Prompt = ""
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "Log every unit")
	fs.BoolVar(&config.DumpIR, "ir", config.DumpIR, "Log generated IR")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kal eval [-v] [-ir] <code>\n")
		fmt.Fprintf(os.Stderr, "Evaluate inline Kal code\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one code argument\n")
		fs.Usage()
		os.Exit(1)
	}

	session := NewSession(config, os.Stdout, os.Stderr)
	if err := session.Run(strings.NewReader(fs.Arg(0))); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
	if session.Errors.HasErrors() {
		os.Exit(1)
	}
}

func checkCommand(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	config := ConfigFromEnv()
	config.Prompt = ""
	config.Execute = false
	fs.BoolVar(&config.Verbose, "v", config.Verbose, "Log every unit and its AST")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kal check [-v] <file>\n")
		fmt.Fprintf(os.Stderr, "Parse, translate and verify a .kal file\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		os.Exit(1)
	}

	filename := fs.Arg(0)
	session := runFile(filename, config)
	if session.Errors.HasErrors() {
		fmt.Printf("Errors in %s:\n%s\n", filename, session.Errors.String())
		os.Exit(1)
	}
	fmt.Print(checkSummary(filename, session, config.Verbose))
}

// checkSummary reports a clean check. Verbose output lists every function
// known to the session, one per line.
func checkSummary(filename string, session *Session, verbose bool) string {
	registry := session.Registry()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: no errors found (%d functions)\n", filename, registry.Len())
	if verbose {
		for _, name := range registry.Names() {
			proto, _ := registry.Lookup(name)
			fmt.Fprintf(&sb, "  %s\n", PrototypeSExpr(proto))
		}
	}
	return sb.String()
}

func emitCommand(args []string) {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	config := ConfigFromEnv()
	config.Prompt = ""
	config.Execute = false
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kal emit <file>\n")
		fmt.Fprintf(os.Stderr, "Print the LLVM IR of every unit in a .kal file\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: expected exactly one file argument\n")
		fs.Usage()
		os.Exit(1)
	}

	session := runFile(fs.Arg(0), config)
	for i, m := range session.Modules() {
		if i > 0 {
			fmt.Println()
		}
		fmt.Print(m)
	}
	if session.Errors.HasErrors() {
		os.Exit(1)
	}
}

// runFile runs a whole source file as one session.
func runFile(filename string, config Config) *Session {
	if config.Verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s...\n", filename)
	}

	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file %s: %v\n", filename, err)
		os.Exit(1)
	}
	defer f.Close()

	session := NewSession(config, os.Stdout, os.Stderr)
	if err := session.Run(f); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file %s: %v\n", filename, err)
		os.Exit(1)
	}
	return session
}

func main() {
	if len(os.Args) < 2 {
		replCommand(nil)
		return
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "repl":
		replCommand(args)
	case "run":
		runCommand(args)
	case "eval":
		evalCommand(args)
	case "check":
		checkCommand(args)
	case "emit":
		emitCommand(args)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		showUsage()
		os.Exit(1)
	}
}
