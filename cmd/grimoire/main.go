// cmd/grimoire/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"grimoire/internal/bytecode"
	"grimoire/internal/compiler"
	"grimoire/internal/engine"
	"grimoire/internal/hostbridge"
	"grimoire/internal/parser"
	"grimoire/internal/store"
	"grimoire/internal/vm"
)

const version = "0.1.0"

// commandAliases mirrors the single-letter shortcuts a frequent user
// reaches for.
var commandAliases = map[string]string{
	"r": "run",
	"b": "build",
	"c": "check",
	"s": "serve",
}

// instructionBudget bounds one run_to_syscall_or_n call so a runaway
// script can't hang the CLI forever on a host-syscall stub loop.
const instructionBudget = 1_000_000

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("grimoire %s\n", version)
	case "run":
		if len(args) < 2 {
			log.Fatal("run requires a source file")
		}
		runFile(args[1])
	case "check":
		if len(args) < 2 {
			log.Fatal("check requires a source file")
		}
		checkFile(args[1])
	case "build":
		if len(args) < 2 {
			log.Fatal("build requires a source file")
		}
		buildFile(args[1:])
	case "serve":
		addr := ":4646"
		if len(args) > 1 {
			addr = args[1]
		}
		serve(addr)
	default:
		suggestCommand(cmd)
	}
}

func readSource(filename string) string {
	src, err := os.ReadFile(filename)
	if err != nil {
		log.Fatalf("could not read %s: %v", filename, err)
	}
	return string(src)
}

// runFile compiles and drives a script to completion. PrintChar output is
// written by the VM itself; every other host syscall is stubbed with a zero
// return value (the CLI has no game host behind it).
func runFile(filename string) {
	eng := engine.New()
	res := eng.Compile(readSource(filename))
	if res.Error != "success" {
		fmt.Fprintf(os.Stderr, "compile error: %s\n", res.Error)
		os.Exit(1)
	}
	defer eng.Free(res)

	for {
		_, status := eng.RunToSyscallOrN(res.ID, instructionBudget)
		switch status {
		case vm.StatusTrap:
			fmt.Fprintln(os.Stderr, "runtime trap")
			os.Exit(1)
		case vm.StatusBudgetExhausted:
			fmt.Fprintln(os.Stderr, "instruction budget exhausted")
			os.Exit(1)
		case int(bytecode.SyscallHalt):
			return
		case int(bytecode.SyscallException):
			fmt.Fprintln(os.Stderr, "program raised an exception")
			os.Exit(1)
		case int(bytecode.SyscallPrintChar):
			// The VM has already popped the character and written it to
			// standard output; nothing is left for the host to do.
		default:
			// Host-defined syscall (GetMana, SpawnEffect, PlayerLocation, ...)
			// with no game host attached: push a zero result and resume.
			eng.PushInt(res.ID, 0)
		}
	}
}

func checkFile(filename string) {
	eng := engine.New()
	res := eng.Compile(readSource(filename))
	if res.Error != "success" {
		fmt.Fprintf(os.Stderr, "%s: %s\n", filename, res.Error)
		os.Exit(1)
	}
	eng.Free(res)
	fmt.Printf("%s: compiles cleanly\n", filename)
}

// buildFile compiles a script and persists its bytecode image under the
// given program name in a sqlite-backed store file, so it can be reloaded
// by internal/store without recompiling (spec.md's registry itself stays
// purely in-memory; this is the optional durable store SPEC_FULL.md adds
// on top of it).
func buildFile(args []string) {
	filename := args[0]
	dbFile := strings.TrimSuffix(filename, ".gr") + ".db"
	programName := strings.TrimSuffix(filepathBase(filename), ".gr")
	for i := 1; i < len(args)-1; i++ {
		if args[i] == "-o" || args[i] == "--output" {
			dbFile = args[i+1]
		}
	}

	stmts, err := parser.Parse(readSource(filename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
		os.Exit(1)
	}
	program, err := compiler.Compile(stmts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compile error: %v\n", err)
		os.Exit(1)
	}

	st := store.NewProgramStore()
	if err := st.Connect("build", "sqlite", dbFile); err != nil {
		log.Fatalf("build: %v", err)
	}
	defer st.Close("build")

	if err := st.SaveProgram("build", programName, program); err != nil {
		log.Fatalf("build: %v", err)
	}
	fmt.Printf("%s: compiled %d instructions, saved as %q in %s\n", filename, len(program.Code), programName, dbFile)
}

func filepathBase(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func serve(addr string) {
	srv := hostbridge.NewServer(nil)
	fmt.Printf("grimoire hostbridge listening on %s\n", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("hostbridge: %v", err)
	}
}

func showUsage() {
	fmt.Println("Grimoire - typed stack-language compiler and VM")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  grimoire run <file.gr>       Compile and run a script        (alias: r)")
	fmt.Println("  grimoire check <file.gr>     Compile without running         (alias: c)")
	fmt.Println("  grimoire build <file.gr>     Compile to a bytecode image     (alias: b)")
	fmt.Println("  grimoire serve [addr]        Start the hostbridge WebSocket server (alias: s)")
	fmt.Println()
	fmt.Println("  grimoire help                Show this message")
	fmt.Println("  grimoire version             Show version")
}

func suggestCommand(cmd string) {
	fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", cmd)
	fmt.Fprintln(os.Stderr, "Run 'grimoire help' to see all available commands")
	os.Exit(1)
}

func isValidRune(r rune) bool {
	return r >= 0 && r <= 0x10FFFF && !(r >= 0xD800 && r <= 0xDFFF)
}
