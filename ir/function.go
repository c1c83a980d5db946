package ir

import (
	"fmt"
	"sync"
)

// FunctionType is the signature of an internal (runtime helper)
// function reachable from internal_call nodes.
type FunctionType struct {
	Ret  ValueType
	Args []ValueType
}

// InternalFunction is a resolved, named runtime helper.
type InternalFunction struct {
	Name string
	Type FunctionType
}

// FunctionProvider creates an InternalFunction for a name the resolver
// hasn't seen yet. It returns ok=false for a name it doesn't know,
// which the resolver turns into a sticky failure.
type FunctionProvider interface {
	Create(name string) (*InternalFunction, bool)
}

type cacheEntry struct {
	fn  *InternalFunction
	err error
}

// FunctionResolver is the lazy, memoizing internal-function table: the
// first Resolve for a name consults the provider and caches whatever
// it returns, success or failure, so every later call for that name is
// free and returns exactly the same outcome (a failure is sticky).
type FunctionResolver struct {
	mu       sync.Mutex
	cache    map[string]cacheEntry
	provider FunctionProvider
}

func NewFunctionResolver(provider FunctionProvider) *FunctionResolver {
	return &FunctionResolver{cache: make(map[string]cacheEntry), provider: provider}
}

// Resolve looks up name, consulting the provider at most once per name
// for the lifetime of this resolver.
func (r *FunctionResolver) Resolve(name string) (*InternalFunction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.cache[name]; ok {
		return e.fn, e.err
	}

	fn, ok := r.provider.Create(name)
	var entry cacheEntry
	if ok {
		entry = cacheEntry{fn: fn}
	} else {
		entry = cacheEntry{err: fmt.Errorf("ir: unresolved internal function %q", name)}
	}
	r.cache[name] = entry
	return entry.fn, entry.err
}
