package rpc

import "fmt"

// Method describes one operation of a remote interface: its name and
// the declared parameter types, in declaration order. The type
// descriptors disambiguate methods on the wire and are checked against
// each incoming request.
type Method struct {
	Name       string
	ParamTypes []string
}

// Interface describes a remote interface. Skeletons serve it, stubs
// call it; both sides must be constructed from the same description.
type Interface struct {
	Name    string
	Methods []Method
}

// Lookup returns the declared method with the given name.
func (i Interface) Lookup(name string) (Method, bool) {
	for _, m := range i.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

// Validate checks that the description is usable as a remote contract:
// a non-empty interface name, at least one method, and no duplicate
// method names. Skeleton and stub construction fail deterministically
// on a description that does not pass.
func (i Interface) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("remote interface has no name: %w", ErrInvalidArgument)
	}
	if len(i.Methods) == 0 {
		return fmt.Errorf("remote interface %s declares no methods: %w", i.Name, ErrInvalidArgument)
	}

	seen := make(map[string]bool, len(i.Methods))
	for _, m := range i.Methods {
		if m.Name == "" {
			return fmt.Errorf("remote interface %s declares an unnamed method: %w", i.Name, ErrInvalidArgument)
		}
		if seen[m.Name] {
			return fmt.Errorf("remote interface %s declares %s twice: %w", i.Name, m.Name, ErrInvalidArgument)
		}
		seen[m.Name] = true
	}
	return nil
}

func sameTypes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
