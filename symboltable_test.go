package main

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/nalgeon/be"
)

func TestSymbolEnvBindAndLookup(t *testing.T) {
	env := NewSymbolEnv()
	be.True(t, env.Lookup("x") == nil)

	x := ir.NewAlloca(types.Double)
	env.Bind("x", x)
	be.True(t, env.Lookup("x") == x)
	be.True(t, env.Lookup("y") == nil)
}

func TestSymbolEnvShadowing(t *testing.T) {
	env := NewSymbolEnv()
	first := ir.NewAlloca(types.Double)
	second := ir.NewAlloca(types.Double)

	env.Bind("x", first)
	env.Bind("x", second)
	be.True(t, env.Lookup("x") == second)
}

func TestSymbolEnvReset(t *testing.T) {
	env := NewSymbolEnv()
	env.Bind("a", ir.NewAlloca(types.Double))
	env.Bind("b", ir.NewAlloca(types.Double))
	env.Reset()
	be.True(t, env.Lookup("a") == nil)
	be.True(t, env.Lookup("b") == nil)
}

func TestPrototypeRegistry(t *testing.T) {
	r := NewPrototypeRegistry()
	_, ok := r.Lookup("f")
	be.True(t, !ok)

	r.Register(&Prototype{Name: "f", Params: []string{"x"}})
	r.Register(&Prototype{Name: "a"})
	proto, ok := r.Lookup("f")
	be.True(t, ok)
	be.Equal(t, proto.Params, []string{"x"})
	be.Equal(t, r.Len(), 2)
	be.Equal(t, r.Names(), []string{"a", "f"})
}

func TestPrototypeRegistryReplaces(t *testing.T) {
	r := NewPrototypeRegistry()
	r.Register(&Prototype{Name: "f", Params: []string{"x"}})
	r.Register(&Prototype{Name: "f", Params: []string{"x", "y"}})

	proto, _ := r.Lookup("f")
	be.Equal(t, len(proto.Params), 2)
	be.Equal(t, r.Len(), 1)
}
