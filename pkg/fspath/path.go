// Package fspath implements the path type shared by every MeshFS
// component. Paths are immutable sequences of components delimited by
// forward slashes; the colon is reserved for application use and never
// appears inside a component.
package fspath

import (
	"fmt"
	"strings"
)

// Separator delimits path components in the string form.
const Separator = "/"

// Path is an immutable filesystem path. The zero value is the root
// directory. Copying a Path is cheap; the component slice is never
// mutated after construction.
type Path struct {
	components []string
}

// Root returns the path of the root directory.
func Root() Path {
	return Path{}
}

// Join appends a single component to an existing path.
//
// The component must be non-empty and must not contain the separator
// or a colon.
func Join(parent Path, component string) (Path, error) {
	if err := checkComponent(component); err != nil {
		return Path{}, err
	}

	components := make([]string, 0, len(parent.components)+1)
	components = append(components, parent.components...)
	components = append(components, component)
	return Path{components: components}, nil
}

// Parse builds a path from its string form.
//
// The string must begin with a forward slash. Empty components are
// dropped, so "/a//b" and "/a/b/" both parse to "/a/b". A colon
// anywhere in the string is rejected.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, fmt.Errorf("empty path string: %w", ErrInvalidPath)
	}
	if !strings.HasPrefix(s, Separator) {
		return Path{}, fmt.Errorf("path %q does not begin with %q: %w", s, Separator, ErrInvalidPath)
	}
	if strings.Contains(s, ":") {
		return Path{}, fmt.Errorf("path %q contains a colon: %w", s, ErrInvalidPath)
	}

	var components []string
	for _, c := range strings.Split(s, Separator) {
		if c == "" {
			continue
		}
		components = append(components, c)
	}
	return Path{components: components}, nil
}

// MustParse is Parse for path literals known to be valid. It panics on
// error and is intended for tests and fixed configuration values.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Components returns the path components in root-to-leaf order. The
// returned slice must not be modified.
func (p Path) Components() []string {
	return p.components
}

// IsRoot reports whether the path is the root directory.
func (p Path) IsRoot() bool {
	return len(p.components) == 0
}

// Parent returns the path with the last component removed. It fails on
// the root path, which has no parent.
func (p Path) Parent() (Path, error) {
	if p.IsRoot() {
		return Path{}, fmt.Errorf("root has no parent: %w", ErrInvalidPath)
	}
	return Path{components: p.components[:len(p.components)-1]}, nil
}

// Last returns the final component of the path. It fails on the root
// path, which has no components.
func (p Path) Last() (string, error) {
	if p.IsRoot() {
		return "", fmt.Errorf("root has no last component: %w", ErrInvalidPath)
	}
	return p.components[len(p.components)-1], nil
}

// IsSubpath reports whether other is a prefix of p. Every path is a
// subpath of itself, and every path is a subpath of the root.
func (p Path) IsSubpath(other Path) bool {
	if len(other.components) > len(p.components) {
		return false
	}
	for i, c := range other.components {
		if p.components[i] != c {
			return false
		}
	}
	return true
}

// Equal reports whether two paths have the same components.
func (p Path) Equal(other Path) bool {
	if len(p.components) != len(other.components) {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}

// Compare defines the total order used whenever several paths must be
// locked together. An ancestor always precedes its descendants;
// otherwise paths are ordered by the first differing component.
// Acquiring locks in increasing order keeps concurrent operations free
// of lock cycles.
func (p Path) Compare(other Path) int {
	n := min(len(p.components), len(other.components))
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.components[i], other.components[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(p.components) < len(other.components):
		return -1
	case len(p.components) > len(other.components):
		return 1
	default:
		return 0
	}
}

// String renders the path in its parseable form. The root directory is
// a single forward slash.
func (p Path) String() string {
	if p.IsRoot() {
		return Separator
	}
	return Separator + strings.Join(p.components, Separator)
}

func checkComponent(component string) error {
	if component == "" {
		return fmt.Errorf("empty path component: %w", ErrInvalidPath)
	}
	if strings.ContainsAny(component, Separator+":") {
		return fmt.Errorf("component %q contains a reserved character: %w", component, ErrInvalidPath)
	}
	return nil
}
