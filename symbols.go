package main

import (
	"sort"

	"github.com/llir/llvm/ir"
)

// SymbolEnv maps variable names to their storage slots within the function
// being translated. There is one flat namespace per function: a variable
// defined inside a loop or branch stays visible for the rest of the function.
type SymbolEnv struct {
	slots map[string]*ir.InstAlloca
}

func NewSymbolEnv() *SymbolEnv {
	return &SymbolEnv{slots: make(map[string]*ir.InstAlloca)}
}

// Reset forgets every binding. Called at the entry of each function.
func (env *SymbolEnv) Reset() {
	clear(env.slots)
}

// Bind points name at slot. A slot it shadows is left allocated.
func (env *SymbolEnv) Bind(name string, slot *ir.InstAlloca) {
	env.slots[name] = slot
}

// Lookup returns the slot bound to name, or nil.
func (env *SymbolEnv) Lookup(name string) *ir.InstAlloca {
	return env.slots[name]
}

// PrototypeRegistry remembers the signature of every def and extern seen in a
// session so later units can call them.
type PrototypeRegistry struct {
	protos map[string]*Prototype
}

func NewPrototypeRegistry() *PrototypeRegistry {
	return &PrototypeRegistry{protos: make(map[string]*Prototype)}
}

// Register records proto, replacing any earlier prototype of the same name.
func (r *PrototypeRegistry) Register(proto *Prototype) {
	r.protos[proto.Name] = proto
}

func (r *PrototypeRegistry) Lookup(name string) (*Prototype, bool) {
	proto, ok := r.protos[name]
	return proto, ok
}

func (r *PrototypeRegistry) Len() int {
	return len(r.protos)
}

// Names returns the registered function names in sorted order.
func (r *PrototypeRegistry) Names() []string {
	names := make([]string, 0, len(r.protos))
	for name := range r.protos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
