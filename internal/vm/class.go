package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

// ClassId is a process-wide, monotonically increasing identifier assigned
// when a class is registered (spec.md §3).
type ClassId uint32

// Class is the resolved, immutable-after-registration class definition
// spec.md §3 describes: name, constant pool, access flags, resolved
// superclass/interfaces, field/method tables, and the field-slot layout
// invariants `first_field_index = superclass.num_total_fields` (0 for a
// root class) and `num_total_fields = first_field_index + len(own fields)`.
type Class struct {
	Id         ClassId
	Name       string
	SourceFile string
	Constants  *classfile.ConstantPool
	Flags      classfile.AccessFlags
	Superclass *Class // nil only for java/lang/Object
	Interfaces []*Class
	Fields     []*classfile.Field // fields declared directly on this class
	Methods    []*classfile.Method

	FirstFieldIndex int
	NumTotalFields  int
}

func (c *Class) IsInterface() bool { return c.Flags.Has(classfile.AccInterface) }

// IsSubclassOf reports whether c <: other: equal, c's superclass is a
// subclass of other, or any of c's interfaces is (spec.md §3, §8).
func (c *Class) IsSubclassOf(other *Class) bool {
	if c == other || c.Id == other.Id {
		return true
	}
	if c.Superclass != nil && c.Superclass.IsSubclassOf(other) {
		return true
	}
	for _, iface := range c.Interfaces {
		if iface.IsSubclassOf(other) {
			return true
		}
	}
	return false
}

// FindMethod walks c and its superclasses (never interfaces — spec.md §4.5
// names this explicitly for invokevirtual/invokeinterface resolution) for a
// method with the given name and descriptor.
func (c *Class) FindMethod(name, descriptor string) (*classfile.Method, *Class) {
	for cur := c; cur != nil; cur = cur.Superclass {
		for _, m := range cur.Methods {
			if m.Name == name && m.Descriptor == descriptor {
				return m, cur
			}
		}
	}
	return nil, nil
}

// FindField resolves a field by name against c's runtime class, walking
// superclasses, and returns the field plus its global slot index. This is
// always invoked against the receiver's actual class, never the
// constant-pool's statically declared class, per spec.md §9's Open Question
// resolution and the matching behaviour in
// _examples/original_source/vm/src/call_frame.rs's execute_getfield/
// execute_putfield (which resolve via vm.get_class_by_id(object_ref.class_id)).
func (c *Class) FindField(name string) (*classfile.Field, int) {
	for cur := c; cur != nil; cur = cur.Superclass {
		for i, f := range cur.Fields {
			if f.Name == name {
				return f, cur.FirstFieldIndex + i
			}
		}
	}
	return nil, -1
}

// FieldAtIndex returns the field declared at global slot index, searching
// from c down to roots. Only tests asserting field-slot inheritance ordering
// (spec.md §8) call it; the GC enumerates slots through AllFields.
func (c *Class) FieldAtIndex(index int) (*classfile.Field, bool) {
	for cur := c; cur != nil; cur = cur.Superclass {
		if index >= cur.FirstFieldIndex {
			local := index - cur.FirstFieldIndex
			if local < len(cur.Fields) {
				return cur.Fields[local], true
			}
			return nil, false
		}
	}
	return nil, false
}

// AllFields returns every field this class has, ancestors first, matching
// global slot order.
func (c *Class) AllFields() []*classfile.Field {
	var ancestor []*classfile.Field
	if c.Superclass != nil {
		ancestor = c.Superclass.AllFields()
	}
	return append(ancestor, c.Fields...)
}
