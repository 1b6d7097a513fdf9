// Package launch wires the embedder-facing surface spec.md §6 describes
// (a ClassResolver plus main-method invocation) into something a CLI can
// drive: a directory-backed classpath (DirClasspath), dotted-to-binary main
// class names (MainClassName) and a classpath-root check (ValidateRoot).
package launch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirClasspath resolves class names against one or more directory roots,
// the simplest ClassResolver an embedder can compose (spec.md §6): each
// root is tried in order, first match wins, mirroring how `java -cp
// dir1:dir2` walks a classpath.
type DirClasspath struct {
	Roots []string
}

func NewDirClasspath(roots ...string) *DirClasspath {
	return &DirClasspath{Roots: roots}
}

// Resolve implements vm.ClassResolver.
func (c *DirClasspath) Resolve(className string) ([]byte, bool) {
	rel := filepath.FromSlash(className) + ".class"
	for _, root := range c.Roots {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err == nil {
			return data, true
		}
	}
	return nil, false
}

// MainClassName converts a dotted or slash-separated class name as typed on
// a command line (`com.example.Main` or `com/example/Main`) into the
// internal binary name the class file itself and the constant pool use
// (spec.md §2: "binary class names use '/' as the package separator").
func MainClassName(arg string) string {
	return strings.ReplaceAll(arg, ".", "/")
}

// ValidateRoot rejects an obviously-wrong classpath entry early, before the
// VM ever asks to resolve a class against it.
func ValidateRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("classpath entry %q: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("classpath entry %q is not a directory", root)
	}
	return nil
}
