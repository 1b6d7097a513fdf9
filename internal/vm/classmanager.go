package vm

import "github.com/mabhi256/jdiag-vm/internal/classfile"

// ClassResolver is the external classpath capability the class manager
// consumes (spec.md §6): given a binary class name (`a/b/C`), return its
// class-file bytes, or false if no such class exists. The embedder composes
// directories and archives behind this single method; the core never does
// its own file or archive I/O.
type ClassResolver interface {
	Resolve(className string) ([]byte, bool)
}

// ClassManager interns classes by id and by name and loads them on demand
// through a ClassResolver (spec.md §4.2). It mirrors the registry shape of
// the teacher's internal/heap/registry/classes.go (parallel maps plus
// insertion-order bookkeeping) and the recursive resolution algorithm of
// _examples/original_source/vm/src/class_manager.rs.
type ClassManager struct {
	resolver  ClassResolver
	byId      map[ClassId]*Class
	byName    map[string]*Class
	resolving map[string]bool // re-entrancy guard: names currently being loaded
	nextId    ClassId
}

func NewClassManager(resolver ClassResolver) *ClassManager {
	return &ClassManager{
		resolver:  resolver,
		byId:      make(map[ClassId]*Class),
		byName:    make(map[string]*Class),
		resolving: make(map[string]bool),
		nextId:    1,
	}
}

func (m *ClassManager) ById(id ClassId) (*Class, bool) {
	c, ok := m.byId[id]
	return c, ok
}

func (m *ClassManager) ByName(name string) (*Class, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// GetOrResolve is idempotent: repeated calls for the same name within one
// ClassManager return the same *Class. newlyInitialized lists every class
// that was freshly loaded as part of satisfying this call — the requested
// class itself plus any ancestors that had not been loaded yet — in
// root-first order, so the caller (Vm.getOrResolveClass) can run <clinit>
// on each exactly once, superclasses before subclasses.
func (m *ClassManager) GetOrResolve(name string) (class *Class, newlyInitialized []*Class, err *VmError) {
	if c, ok := m.byName[name]; ok {
		return c, nil, nil
	}
	var toInit []*Class
	c, err := m.resolveAndLoad(name, &toInit)
	if err != nil {
		return nil, nil, err
	}
	return c, toInit, nil
}

func (m *ClassManager) resolveAndLoad(name string, toInit *[]*Class) (*Class, *VmError) {
	if c, ok := m.byName[name]; ok {
		return c, nil
	}
	if m.resolving[name] {
		// JVMS forbids a genuine superclass/interface cycle; if one shows up
		// anyway (malformed input) we refuse to loop forever.
		return nil, newVmErr(ValidationException, "cyclic class resolution involving %s", name)
	}
	m.resolving[name] = true
	defer delete(m.resolving, name)

	data, ok := m.resolver.Resolve(name)
	if !ok {
		return nil, newVmErr(ClassNotFoundException, "%s", name)
	}
	cf, readErr := classfile.Read(data)
	if readErr != nil {
		return nil, wrapVmErr(ClassLoadingError, readErr, "decoding %s", name)
	}
	if cf.Name != name {
		return nil, newVmErr(ClassLoadingError, "resolver returned class %q for requested name %q", cf.Name, name)
	}

	var superclass *Class
	if cf.SuperClassName != "" {
		var err *VmError
		superclass, err = m.resolveAndLoad(cf.SuperClassName, toInit)
		if err != nil {
			return nil, err
		}
	}

	interfaces := make([]*Class, 0, len(cf.InterfaceNames))
	for _, ifaceName := range cf.InterfaceNames {
		iface, err := m.resolveAndLoad(ifaceName, toInit)
		if err != nil {
			return nil, err
		}
		interfaces = append(interfaces, iface)
	}

	numSuperclassFields := 0
	if superclass != nil {
		numSuperclassFields = superclass.NumTotalFields
	}

	class := &Class{
		Id:              m.nextId,
		Name:            cf.Name,
		SourceFile:      cf.SourceFile,
		Constants:       cf.Constants,
		Flags:           cf.Flags,
		Superclass:      superclass,
		Interfaces:      interfaces,
		Fields:          cf.Fields,
		Methods:         cf.Methods,
		FirstFieldIndex: numSuperclassFields,
		NumTotalFields:  numSuperclassFields + len(cf.Fields),
	}
	m.nextId++
	m.byId[class.Id] = class
	m.byName[class.Name] = class
	*toInit = append(*toInit, class)
	return class, nil
}
