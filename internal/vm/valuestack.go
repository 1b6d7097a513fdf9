package vm

// ValueStack is a method's operand stack, bounded by max_stack (spec.md
// §3). The backing slice is pre-allocated to its capacity and never
// reallocated past it, so pointers handed out by Slots() (used for GC
// rooting) stay valid for the stack's whole lifetime — the same contract
// _examples/original_source/vm/src/value_stack.rs relies on via
// Vec::with_capacity.
type ValueStack struct {
	values []Value
}

func NewValueStack(maxSize int) *ValueStack {
	return &ValueStack{values: make([]Value, 0, maxSize)}
}

func (s *ValueStack) Len() int { return len(s.values) }

func (s *ValueStack) Push(v Value) error {
	if len(s.values) >= cap(s.values) {
		return newVmErr(ValidationException, "operand stack overflow")
	}
	s.values = append(s.values, v)
	return nil
}

func (s *ValueStack) Pop() (Value, error) {
	if len(s.values) == 0 {
		return Value{}, newVmErr(ValidationException, "cannot pop from empty operand stack")
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

// Pop2 pops a single long/double (which already occupies two logical
// slots) or else pops and discards a second single-width value underneath
// it, matching _examples/original_source/vm/src/value_stack.rs's pop2.
func (s *ValueStack) Pop2() (Value, error) {
	v, err := s.Pop()
	if err != nil {
		return Value{}, err
	}
	if v.IsCategory2() {
		return v, nil
	}
	if _, err := s.Pop(); err != nil {
		return Value{}, err
	}
	return v, nil
}

func (s *ValueStack) Truncate(n int) {
	s.values = s.values[:n]
}

func (s *ValueStack) Get(i int) Value { return s.values[i] }

// Slots exposes pointers to every live slot, for the collector to walk as
// GC roots (spec.md §4.4, §9 "GC roots across frames").
func (s *ValueStack) Slots() []*Value {
	ptrs := make([]*Value, len(s.values))
	for i := range s.values {
		ptrs[i] = &s.values[i]
	}
	return ptrs
}

func (s *ValueStack) Dup() error {
	if len(s.values) == 0 {
		return newVmErr(ValidationException, "cannot dup empty stack")
	}
	return s.Push(s.values[len(s.values)-1])
}

func (s *ValueStack) DupX1() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	s.Push(v2)
	return s.Push(v1)
}

func (s *ValueStack) DupX2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	s.Push(v3)
	s.Push(v2)
	return s.Push(v1)
}

func (s *ValueStack) Dup2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v2)
	return s.Push(v1)
}

func (s *ValueStack) Dup2X1() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v3)
	s.Push(v2)
	return s.Push(v1)
}

func (s *ValueStack) Dup2X2() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	v3, err := s.Pop()
	if err != nil {
		return err
	}
	v4, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v2)
	s.Push(v1)
	s.Push(v4)
	s.Push(v3)
	s.Push(v2)
	return s.Push(v1)
}

func (s *ValueStack) Swap() error {
	v1, err := s.Pop()
	if err != nil {
		return err
	}
	v2, err := s.Pop()
	if err != nil {
		return err
	}
	s.Push(v1)
	return s.Push(v2)
}
