package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/mabhi256/jdiag-vm/internal/inspect"
	"github.com/mabhi256/jdiag-vm/internal/launch"
	"github.com/mabhi256/jdiag-vm/internal/vm"
	"github.com/mabhi256/jdiag-vm/utils"
	"github.com/spf13/cobra"
)

var (
	inspectClasspath []string
	inspectMaxMemory string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <main-class> [args...]",
	Short: "Run a Java main class under a live TUI",
	Long: `Inspect runs <main-class> the same way run does, but under a
bubbletea TUI showing the tempPrint log, the live call-frame stack, and a
heap-usage sparkline sampled as the interpreter executes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringSliceVarP(&inspectClasspath, "classpath", "c", []string{"."},
		"directories to resolve class files against, checked in order")
	inspectCmd.Flags().StringVar(&inspectMaxMemory, "max-memory", "64M",
		"heap size, e.g. 16M, 256M, 1G")
	inspectCmd.ValidArgsFunction = utils.CompleteFilesByExtension([]string{".class"}, false)
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	for _, root := range inspectClasspath {
		if err := launch.ValidateRoot(root); err != nil {
			return err
		}
	}
	maxMemory, err := utils.ParseMemorySize(inspectMaxMemory)
	if err != nil {
		return fmt.Errorf("--max-memory: %w", err)
	}

	// The interpreter runs on its own goroutine while the TUI owns the alt
	// screen, so its diagnostics would only interleave with that output; the
	// handler's level sits above Error, so nothing is logged, and the
	// sparkline/frame-stack panes show progress instead.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	resolver := launch.NewDirClasspath(inspectClasspath...)
	machine := vm.NewVm(uint32(maxMemory.Bytes()), resolver, logger)
	stack := machine.AllocateCallStack()

	mainClassName := launch.MainClassName(args[0])
	class, method, failed := machine.ResolveClassMethod(stack, mainClassName, "main", "([Ljava/lang/String;)V")
	if failed != nil {
		return reportFailure(machine, failed)
	}

	argsRef, failed := machine.NewStringArray(stack, args[1:])
	if failed != nil {
		return reportFailure(machine, failed)
	}

	runner := inspect.NewRunner(machine, stack)
	model := inspect.NewModel(runner)
	program := tea.NewProgram(model, tea.WithAltScreen())

	// The VM executes on its own goroutine (runner.Run drives it to
	// completion via the StepHook-sampling Runner) while the tea.Program
	// owns the terminal's event loop on this one. The TUI quits by itself once
	// the Runner reports Done, whether main succeeded or failed; quitting the
	// TUI first does not stop the VM. Wait returns after both goroutines end,
	// with the first error either of them returned.
	group, _ := errgroup.WithContext(context.Background())
	group.Go(func() error {
		return runner.Run(class, method, []vm.Value{vm.ObjectValue(argsRef)})
	})
	group.Go(func() error {
		_, err := program.Run()
		return err
	})

	return group.Wait()
}
