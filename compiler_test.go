package main

import (
	"io"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/nalgeon/be"

	"github.com/strager/kal/backend"
)

func newTestCodeGen() *CodeGen {
	return NewCodeGen(ir.NewModule(), NewPrototypeRegistry(), NewSymbolEnv())
}

// emitUnit parses the first unit of src and translates it with gen.
func emitUnit(t *testing.T, gen *CodeGen, src string) (*ir.Func, error) {
	t.Helper()
	unit, err := NewParser(NewStringLexer(src)).ParseUnit()
	be.Err(t, err, nil)
	switch unit.Kind {
	case UnitDefinition:
		return gen.EmitFunction(unit.Def)
	case UnitExtern:
		return gen.EmitPrototype(unit.Proto)
	case UnitExpression:
		return gen.EmitFunction(AnonymousFunction(unit.Expr))
	default:
		t.Fatalf("no unit in %q", src)
		return nil, nil
	}
}

// runFunc translates a definition and calls it with args.
func runFunc(t *testing.T, src string, args ...float64) float64 {
	t.Helper()
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, src)
	be.Err(t, err, nil)

	engine := backend.NewEngine(io.Discard)
	engine.AddModule(gen.Module())
	result, err := engine.Run(fn.Name(), args...)
	be.Err(t, err, nil)
	return result
}

func TestEmitArithmetic(t *testing.T) {
	be.Equal(t, runFunc(t, "def f(a, b) { a * b + 1 }", 2, 3), 7.0)
	be.Equal(t, runFunc(t, "def f(a, b) { a - b / 2 }", 10, 4), 8.0)
	be.Equal(t, runFunc(t, "2 * 3 + 4 * 5"), 26.0)
}

func TestEmitComparison(t *testing.T) {
	be.Equal(t, runFunc(t, "def lt(a, b) { a < b }", 1, 2), 1.0)
	be.Equal(t, runFunc(t, "def lt(a, b) { a < b }", 2, 1), 0.0)
	be.Equal(t, runFunc(t, "def lt(a, b) { a < b }", 2, 2), 0.0)
	be.Equal(t, runFunc(t, "def gt(a, b) { a > b }", 3, 2), 1.0)
}

func TestEmitIf(t *testing.T) {
	be.Equal(t, runFunc(t, "if (1) { 10 } else { 20 }"), 10.0)
	be.Equal(t, runFunc(t, "if (0) { 10 } else { 20 }"), 20.0)
	be.Equal(t, runFunc(t, "def f(x) { if (x < 0) { 0 - x } else { x } }", -4), 4.0)
}

func TestEmitErrors(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"def f() { 1 = 2 }", ErrInvalidAssignmentTarget},
		{"def f(a) { (a + 1) = 2 }", ErrInvalidAssignmentTarget},
		{"def f() { y }", ErrUnknownVariable},
		{"def f() { y = 1 }", ErrUnknownVariable},
		{"def f() { var y = y; y }", ErrUnknownVariable},
		{"def f() { g(1) }", ErrUnknownFunction},
		{"def f() { if (1) { 2 } }", ErrMissingElseBranch},
		{"def f() { 1 + if (1) { 2 } }", ErrMissingElseBranch},
		{"def f() { if (1) { } else { 2 } }", ErrEmptyBranch},
		{"def f() { if (1) { 2 } else { } }", ErrEmptyBranch},
		{"def f() { if (1) { if (1) { 2 } } else { 3 } }", ErrMissingElseBranch},
		{"def f() { f(1) }", ErrArityMismatch},
	}

	for _, test := range tests {
		t.Run(test.src, func(t *testing.T) {
			_, err := emitUnit(t, newTestCodeGen(), test.src)
			be.Err(t, err, test.want)
		})
	}
}

func TestEmitArityMismatchAgainstRegistry(t *testing.T) {
	gen := newTestCodeGen()
	gen.protos.Register(&Prototype{Name: "g", Params: []string{"a", "b"}})

	_, err := emitUnit(t, gen, "def f() { g(1) }")
	be.Err(t, err, ErrArityMismatch)
	be.Err(t, err, "'g' takes 2 arguments, got 1")
}

func TestStatementIfNeedsNoElse(t *testing.T) {
	be.Equal(t, runFunc(t, "def f(x) { var r = 0; if (x) { r = 5 }; r }", 1), 5.0)
	be.Equal(t, runFunc(t, "def f(x) { var r = 0; if (x) { r = 5 }; r }", 0), 0.0)
}

func TestFailedDefinitionKeepsPrototype(t *testing.T) {
	gen := newTestCodeGen()
	_, err := emitUnit(t, gen, "def f(x) { y }")
	be.Err(t, err, ErrUnknownVariable)

	proto, ok := gen.protos.Lookup("f")
	be.True(t, ok)
	be.Equal(t, proto.Params, []string{"x"})
	for _, f := range gen.Module().Funcs {
		be.True(t, f.Name() != "f")
	}
}

func TestRedefinitionInOneModule(t *testing.T) {
	gen := newTestCodeGen()
	_, err := emitUnit(t, gen, "def f(x) { x }")
	be.Err(t, err, nil)
	_, err = emitUnit(t, gen, "def f(x) { x + 1 }")
	be.Err(t, err, ErrRedefinition)
}

func TestEmitPrototype(t *testing.T) {
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, "extern sin(x)")
	be.Err(t, err, nil)
	be.Equal(t, fn.Name(), "sin")
	be.Equal(t, len(fn.Params), 1)
	be.Equal(t, len(fn.Blocks), 0)
	_, ok := gen.protos.Lookup("sin")
	be.True(t, ok)

	again, err := emitUnit(t, gen, "extern sin(y)")
	be.Err(t, err, nil)
	be.True(t, again == fn)

	_, err = emitUnit(t, gen, "extern sin(x, y)")
	be.Err(t, err, ErrRedefinition)
}

func TestCallMaterializesDeclaration(t *testing.T) {
	gen := newTestCodeGen()
	gen.protos.Register(&Prototype{Name: "g", Params: []string{"x"}})

	_, err := emitUnit(t, gen, "def f() { g(1) + g(2) }")
	be.Err(t, err, nil)

	var decls int
	for _, f := range gen.Module().Funcs {
		if f.Name() == "g" {
			decls++
			be.Equal(t, len(f.Blocks), 0)
		}
	}
	be.Equal(t, decls, 1)
}

func TestAnonymousFunctionIsNotRegistered(t *testing.T) {
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, "1 + 1")
	be.Err(t, err, nil)
	be.Equal(t, fn.Name(), "__anon_expr")
	be.Equal(t, gen.protos.Len(), 0)
}

func TestAllocasLeadEntryBlock(t *testing.T) {
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, "def f(x) { var a = 1; for i in (0, 3) { var b = i; }; if (x) { var c = 2; }; a }")
	be.Err(t, err, nil)

	entry := fn.Blocks[0]
	leading := 0
	for _, inst := range entry.Insts {
		if _, ok := inst.(*ir.InstAlloca); !ok {
			break
		}
		leading++
	}
	be.Equal(t, leading, 5) // x, a, i, b, c

	total := 0
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			if _, ok := inst.(*ir.InstAlloca); ok {
				total++
			}
		}
	}
	be.Equal(t, total, leading)
}

func TestLocalNamesAreUnique(t *testing.T) {
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, "def f(x) { var x = x; if (x) { 1 } else { 2 } + if (x) { 3 } else { 4 } }")
	be.Err(t, err, nil)

	seen := make(map[string]bool)
	check := func(name string) {
		if name == "" {
			return
		}
		be.True(t, !seen[name])
		seen[name] = true
	}
	for _, p := range fn.Params {
		check(p.Name())
	}
	for _, b := range fn.Blocks {
		check(b.Name())
		for _, inst := range b.Insts {
			if named, ok := inst.(interface{ Name() string }); ok {
				check(named.Name())
			}
		}
	}
	be.True(t, seen["then"])
	be.True(t, seen["then.1"])
}

func TestEmittedFunctionsVerify(t *testing.T) {
	sources := []string{
		"def fib(x) { if (x < 3) { 1 } else { fib(x - 1) + fib(x - 2) } }",
		"def f(n) { var t = 0; for i in (0, n) { if (i > 2) { t = t + i } else { t = t - 1 } }; t }",
		"def g(a) { if (a) { if (a > 1) { 1 } else { 2 } } else { 3 } }",
	}
	for _, src := range sources {
		fn, err := emitUnit(t, newTestCodeGen(), src)
		be.Err(t, err, nil)
		be.Err(t, backend.Verify(fn), nil)
	}
}

func TestIRDump(t *testing.T) {
	gen := newTestCodeGen()
	fn, err := emitUnit(t, gen, "def sq(x) { x * x }")
	be.Err(t, err, nil)

	text := fn.LLString()
	for _, want := range []string{"define double @sq(", "fmul double", "ret double"} {
		be.True(t, strings.Contains(text, want))
	}
}
