package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mabhi256/jdiag-vm/internal/launch"
	"github.com/mabhi256/jdiag-vm/internal/vm"
	"github.com/mabhi256/jdiag-vm/utils"
	"github.com/spf13/cobra"
)

var (
	runClasspath []string
	runMaxMemory string
	runVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run <main-class> [args...]",
	Short: "Run a Java main class",
	Long: `Run resolves <main-class> off the given classpath, runs its
static void main(String[]) method, and prints anything written through
tempPrint. An uncaught Java exception's class and captured stack trace are
reported on stderr and the process exits non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMain,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runClasspath, "classpath", "c", []string{"."},
		"directories to resolve class files against, checked in order")
	runCmd.Flags().StringVar(&runMaxMemory, "max-memory", "64M",
		"heap size, e.g. 16M, 256M, 1G")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false,
		"log every class load, <clinit>, and native call")
	runCmd.ValidArgsFunction = utils.CompleteFilesByExtension([]string{".class"}, false)
	rootCmd.AddCommand(runCmd)
}

func runMain(cmd *cobra.Command, args []string) error {
	for _, root := range runClasspath {
		if err := launch.ValidateRoot(root); err != nil {
			return err
		}
	}

	maxMemory, err := utils.ParseMemorySize(runMaxMemory)
	if err != nil {
		return fmt.Errorf("--max-memory: %w", err)
	}

	level := slog.LevelWarn
	if runVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	resolver := launch.NewDirClasspath(runClasspath...)
	machine := vm.NewVm(uint32(maxMemory.Bytes()), resolver, logger)
	stack := machine.AllocateCallStack()

	mainClassName := launch.MainClassName(args[0])
	class, method, failed := machine.ResolveClassMethod(stack, mainClassName, "main", "([Ljava/lang/String;)V")
	if failed != nil {
		return reportFailure(machine, failed)
	}
	if !method.IsStatic {
		return fmt.Errorf("%s.main([Ljava/lang/String;)V must be static", mainClassName)
	}

	argsRef, failed := machine.NewStringArray(stack, args[1:])
	if failed != nil {
		return reportFailure(machine, failed)
	}

	start := time.Now()
	_, failed = machine.Invoke(stack, class, method, nil, []vm.Value{vm.ObjectValue(argsRef)})
	elapsed := time.Since(start)

	for _, p := range machine.Printed {
		fmt.Println(formatPrintedValue(p))
	}
	if runVerbose {
		logger.Debug("main returned", "elapsed", utils.FormatDuration(elapsed), "heapUsed", machine.HeapUsed())
	}
	if failed != nil {
		return reportFailure(machine, failed)
	}
	return nil
}

func formatPrintedValue(v vm.Value) string {
	switch v.Kind {
	case vm.VInt:
		return fmt.Sprintf("%d", v.Int)
	case vm.VLong:
		return fmt.Sprintf("%d", v.Long)
	case vm.VFloat:
		return fmt.Sprintf("%g", v.Float)
	case vm.VDouble:
		return fmt.Sprintf("%g", v.Double)
	case vm.VNull:
		return "null"
	default:
		return fmt.Sprintf("<object %d>", v.Ref)
	}
}

// reportFailure prints an internal VM error or an uncaught Java exception
// (with its captured stack trace, spec.md §4.6) and turns it into the
// process's non-zero exit.
func reportFailure(machine *vm.Vm, failed vm.MethodCallFailed) error {
	switch f := failed.(type) {
	case *vm.ExceptionThrown:
		return reportUncaughtException(machine, f)
	default:
		return fmt.Errorf("vm error: %w", f)
	}
}

func reportUncaughtException(machine *vm.Vm, thrown *vm.ExceptionThrown) error {
	classId := machine.ClassIdOf(thrown.Exception)
	class, vmErr := machine.GetClassById(classId)
	name := "unknown"
	if vmErr == nil {
		name = class.Name
	}
	fmt.Fprintf(os.Stderr, "Uncaught exception: %s\n", name)
	if trace, ok := machine.GetStackTrace(thrown.Exception); ok {
		for _, el := range trace {
			if el.HasLine {
				fmt.Fprintf(os.Stderr, "\tat %s.%s(%s:%d)\n", el.ClassName, el.MethodName, el.SourceFile, el.Line)
			} else {
				fmt.Fprintf(os.Stderr, "\tat %s.%s(%s)\n", el.ClassName, el.MethodName, el.SourceFile)
			}
		}
	}
	return fmt.Errorf("uncaught %s", name)
}
