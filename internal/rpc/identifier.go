package rpc

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Side names one end of the connection.
type Side int

const (
	// SideMain is the UI host that owns authoritative document and editor state.
	SideMain Side = iota + 1
	// SideExtension is the isolated runtime that hosts extension code.
	SideExtension
)

// String returns "main" or "extension".
func (s Side) String() string {
	switch s {
	case SideMain:
		return "main"
	case SideExtension:
		return "extension"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// MethodKind controls how the receiving side dispatches a method.
type MethodKind int

const (
	// KindRequest methods run concurrently; they may await remote calls themselves.
	KindRequest MethodKind = iota
	// KindEvent methods are state-sync events; they run one at a time in
	// arrival order and must not await remote calls.
	KindEvent
)

// MethodSpec declares one remotely invocable method.
type MethodSpec struct {
	Name string
	Kind MethodKind
}

// Request declares a concurrently dispatched method.
func Request(name string) MethodSpec {
	return MethodSpec{Name: name, Kind: KindRequest}
}

// Event declares an ordered, state-sync method.
func Event(name string) MethodSpec {
	return MethodSpec{Name: name, Kind: KindEvent}
}

// RemotePrefix marks method names that cross the boundary.
const RemotePrefix = "$"

// Identifier binds a logical service name to the side that implements it,
// together with the closed set of methods the other side may invoke.
type Identifier struct {
	name    string
	side    Side
	methods map[string]MethodSpec
}

// Name returns the identifier name, e.g. "ExtHostCommands".
func (id *Identifier) Name() string { return id.name }

// Side returns the side that implements the identifier.
func (id *Identifier) Side() Side { return id.side }

// Method looks up a declared method.
func (id *Identifier) Method(name string) (MethodSpec, bool) {
	m, ok := id.methods[name]
	return m, ok
}

// Methods returns the declared method names, sorted.
func (id *Identifier) Methods() []string {
	names := make([]string, 0, len(id.methods))
	for name := range id.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (id *Identifier) String() string {
	return id.name
}

// Namespace is the set of identifiers one side implements. Identifiers are
// declared exactly once, normally from package-level var blocks.
type Namespace struct {
	side Side

	mu  sync.Mutex
	ids map[string]*Identifier
}

// NewNamespace creates the namespace for identifiers implemented by side.
func NewNamespace(side Side) *Namespace {
	return &Namespace{side: side, ids: make(map[string]*Identifier)}
}

// Declare registers a new identifier. Declaring a name twice, or a method
// without the remote prefix, panics.
func (ns *Namespace) Declare(name string, methods ...MethodSpec) *Identifier {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	if _, dup := ns.ids[name]; dup {
		panic(fmt.Sprintf("rpc: identifier %q declared twice", name))
	}

	id := &Identifier{name: name, side: ns.side, methods: make(map[string]MethodSpec, len(methods))}
	for _, m := range methods {
		if !strings.HasPrefix(m.Name, RemotePrefix) {
			panic(fmt.Sprintf("rpc: method %s.%s lacks the %q prefix", name, m.Name, RemotePrefix))
		}
		if _, dup := id.methods[m.Name]; dup {
			panic(fmt.Sprintf("rpc: method %s.%s declared twice", name, m.Name))
		}
		id.methods[m.Name] = m
	}

	ns.ids[name] = id
	return id
}

// Lookup returns the identifier declared under name.
func (ns *Namespace) Lookup(name string) (*Identifier, bool) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	id, ok := ns.ids[name]
	return id, ok
}

// Identifiers returns every declared identifier, sorted by name.
func (ns *Namespace) Identifiers() []*Identifier {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	out := make([]*Identifier, 0, len(ns.ids))
	for _, id := range ns.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func wireMethod(id *Identifier, method string) string {
	return id.name + "." + method
}

func splitWireMethod(wire string) (identifier, method string, ok bool) {
	i := strings.LastIndex(wire, "."+RemotePrefix)
	if i <= 0 {
		return "", "", false
	}
	return wire[:i], wire[i+1:], true
}
