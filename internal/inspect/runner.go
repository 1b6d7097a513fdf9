// Package inspect drives the bytecode interpreter under vm.Vm.StepHook and
// exposes a thread-safe snapshot of its progress for a bubbletea view to
// poll, backing the "inspect" subcommand (SPEC_FULL.md's DOMAIN STACK
// section).
package inspect

import (
	"fmt"
	"sync"

	"github.com/mabhi256/jdiag-vm/internal/classfile"
	"github.com/mabhi256/jdiag-vm/internal/vm"
)

// sparkHistory is how many recent heap-usage samples the sparkline keeps;
// one screen's worth at typical terminal widths.
const sparkHistory = 120

// Snapshot is a point-in-time copy of the running VM's visible state, safe
// to read from the TUI goroutine while Runner.Run mutates the live state
// from its own goroutine.
type Snapshot struct {
	Steps      uint64
	HeapUsed   uint32
	HeapMax    uint32
	HeapSpark  []float64
	FrameStack []string
	Printed    []string
	Done       bool
	Err        error
}

// Runner owns one Vm and the call stack main() runs on, sampling its state
// every step through vm.Vm.StepHook.
type Runner struct {
	machine *vm.Vm
	stack   *vm.CallStack

	mu    sync.Mutex
	steps uint64
	spark []float64
	done  bool
	err   error
}

func NewRunner(machine *vm.Vm, stack *vm.CallStack) *Runner {
	r := &Runner{machine: machine, stack: stack}
	machine.StepHook = r.onStep
	return r
}

func (r *Runner) onStep(stack *vm.CallStack, frame *vm.CallFrame, insn classfile.Instruction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
	if r.steps%64 == 0 {
		used := float64(r.machine.HeapUsed())
		r.spark = append(r.spark, used)
		if len(r.spark) > sparkHistory {
			r.spark = r.spark[len(r.spark)-sparkHistory:]
		}
	}
}

// Run invokes class.method(args) to completion and records the outcome.
// Intended to be launched on its own goroutine (cmd/inspect.go runs it
// under an errgroup alongside the tea.Program event loop).
func (r *Runner) Run(class *vm.Class, method *classfile.Method, args []vm.Value) error {
	_, failed := r.machine.Invoke(r.stack, class, method, nil, args)
	r.mu.Lock()
	r.done = true
	if failed != nil {
		r.err = fmt.Errorf("%v", failed)
	}
	r.mu.Unlock()
	if failed != nil {
		return r.err
	}
	return nil
}

// Snapshot copies out the current state for rendering. FrameStack and
// Printed are rebuilt fresh each call since they reflect live VM state
// (the call stack's frames, the Printed debug sink) that Run's goroutine
// keeps mutating concurrently.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := make([]string, 0, r.stack.Depth())
	for _, el := range r.stack.StackTraceElements() {
		if el.HasLine {
			frames = append(frames, fmt.Sprintf("%s.%s (%s:%d)", el.ClassName, el.MethodName, el.SourceFile, el.Line))
		} else {
			frames = append(frames, fmt.Sprintf("%s.%s", el.ClassName, el.MethodName))
		}
	}

	printed := make([]string, len(r.machine.Printed))
	for i, v := range r.machine.Printed {
		printed[i] = formatValue(v)
	}

	spark := make([]float64, len(r.spark))
	copy(spark, r.spark)

	return Snapshot{
		Steps:      r.steps,
		HeapUsed:   r.machine.HeapUsed(),
		HeapMax:    r.machine.HeapMax(),
		HeapSpark:  spark,
		FrameStack: frames,
		Printed:    printed,
		Done:       r.done,
		Err:        r.err,
	}
}

func formatValue(v vm.Value) string {
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
