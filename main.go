// ./main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/reagentworks/reagent/cmd"
	"github.com/reagentworks/reagent/internal/observability"
)

const panicLogFile = "panic.log"

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	// Interrupt signals cancel the context so in-flight queries stop
	// gracefully instead of being killed mid-step.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// With arguments, execute the command directly and exit.
	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
			} else {
				osExit(1)
			}
		}
		return
	}

	runInteractive(ctx)
}

// runInteractive is the line-at-a-time shell used when reagent starts
// without arguments.
func runInteractive(ctx context.Context) {
	fmt.Printf("reagent v%s interactive shell. Type 'exit' to quit.\n", cmd.Version)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("reagent > ")
		if !scanner.Scan() {
			break // EOF (Ctrl+D)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		executeInteractiveCommand(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}

	fmt.Println("Exiting reagent.")
}

// executeInteractiveCommand parses and runs one shell line.
func executeInteractiveCommand(ctx context.Context, line string) {
	// A fresh command instance per line keeps flag state from leaking
	// between invocations.
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))

	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Error: Command panicked: %v\n", r)
			}
		}()
		// Errors are already logged by Execute's path; the shell keeps
		// running either way.
		_ = rootCmd.ExecuteContext(ctx)
	}()
}

// handlePanic writes a crash report to panic.log before exiting, so a
// non-interactive failure leaves something to debug from.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}

	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "Fatal error. Details logged to %s\n", panicLogFile)
	osExit(1)
}
