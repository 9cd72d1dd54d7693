package interpreter

import "fmt"

// Env is an insertion-ordered binding table. A Let evaluates in a copy of
// its enclosing Env, so bindings and removals never leak outward.
type Env struct {
	names []string
	vals  map[string]Result
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{vals: make(map[string]Result)}
}

// Insert binds name. Rebinding shadows the earlier value.
func (e *Env) Insert(name string, r Result) {
	if _, ok := e.vals[name]; !ok {
		e.names = append(e.names, name)
	}
	e.vals[name] = r
}

// Get looks name up without consuming it.
func (e *Env) Get(name string) (Result, error) {
	r, ok := e.vals[name]
	if !ok {
		return nil, envVarNotFound(name)
	}
	return r, nil
}

// Remove looks name up and unbinds it.
func (e *Env) Remove(name string) (Result, error) {
	r, ok := e.vals[name]
	if !ok {
		return nil, envVarNotFound(name)
	}
	delete(e.vals, name)
	for i, n := range e.names {
		if n == name {
			e.names = append(e.names[:i:i], e.names[i+1:]...)
			break
		}
	}
	return r, nil
}

// Names returns the bound names in insertion order.
func (e *Env) Names() []string {
	return append([]string(nil), e.names...)
}

// Clone returns a copy sharing no state with e.
func (e *Env) Clone() *Env {
	out := &Env{names: e.Names(), vals: make(map[string]Result, len(e.vals))}
	for k, v := range e.vals {
		out.vals[k] = v
	}
	return out
}

func envVarNotFound(name string) error {
	return &Error{Kind: ErrEnvVarNotFound, Message: fmt.Sprintf("binding %q not found", name)}
}
