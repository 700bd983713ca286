package backend

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/nalgeon/be"
)

func double(v float64) *constant.Float {
	return constant.NewFloat(types.Double, v)
}

// newDiamond builds f(x) = x != 0 ? 1 : 2 with a phi in the merge block.
func newDiamond(m *ir.Module) (*ir.Func, *ir.InstPhi) {
	x := ir.NewParam("x", types.Double)
	f := m.NewFunc("diamond", types.Double, x)
	entry := f.NewBlock("entry")
	then := f.NewBlock("then")
	els := f.NewBlock("else")
	merge := f.NewBlock("merge")

	cond := entry.NewFCmp(enum.FPredONE, x, double(0))
	entry.NewCondBr(cond, then, els)
	then.NewBr(merge)
	els.NewBr(merge)
	phi := merge.NewPhi(ir.NewIncoming(double(1), then), ir.NewIncoming(double(2), els))
	merge.NewRet(phi)
	return f, phi
}

func TestVerifyAcceptsWellFormedFunctions(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.Double)
	id := m.NewFunc("id", types.Double, x)
	id.NewBlock("entry").NewRet(x)
	be.Err(t, Verify(id), nil)

	diamond, _ := newDiamond(m)
	be.Err(t, Verify(diamond), nil)
}

func TestVerifyRejectsDeclarations(t *testing.T) {
	m := ir.NewModule()
	decl := m.NewFunc("sin", types.Double, ir.NewParam("x", types.Double))
	err := Verify(decl)
	be.Err(t, err, ErrMalformed)
	be.Err(t, err, "@sin has no body")
}

func TestVerifyRejectsMissingTerminator(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Double)
	entry := f.NewBlock("entry")
	next := f.NewBlock("next")
	entry.NewBr(next)
	next.NewFAdd(double(1), double(2))

	be.Err(t, Verify(f), "block %next in @f has no terminator")
}

func TestVerifyRejectsForeignBranch(t *testing.T) {
	m := ir.NewModule()
	other := m.NewFunc("other", types.Double)
	foreign := other.NewBlock("foreign")
	foreign.NewRet(double(0))

	f := m.NewFunc("f", types.Double)
	f.NewBlock("entry").NewBr(foreign)

	be.Err(t, Verify(f), "branches to foreign block")
}

func TestVerifyRejectsEntryPredecessor(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Double)
	entry := f.NewBlock("entry")
	entry.NewBr(entry)

	be.Err(t, Verify(f), "entry block of @f has predecessors")
}

func TestVerifyRejectsLatePhi(t *testing.T) {
	m := ir.NewModule()
	f, phi := newDiamond(m)
	merge := f.Blocks[3]
	add := ir.NewFAdd(double(1), double(1))
	merge.Insts = []ir.Instruction{add, phi}

	be.Err(t, Verify(f), "is not at the start of block")
}

func TestVerifyRejectsPhiMismatch(t *testing.T) {
	m := ir.NewModule()

	f, phi := newDiamond(m)
	phi.Incs = phi.Incs[:1]
	be.Err(t, Verify(f), "no incoming value for predecessor %else")

	g, phi := newDiamond(m)
	phi.Incs[1].Pred = g.Blocks[0]
	be.Err(t, Verify(g), "incoming block %entry is not a predecessor")
}

func TestVerifyRejectsBadReturn(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("f", types.Double)
	f.NewBlock("entry").NewRet(constant.NewInt(types.I1, 1))
	be.Err(t, Verify(f), "does not match the result type double")

	g := m.NewFunc("g", types.Double)
	g.NewBlock("entry").NewRet(nil)
	be.Err(t, Verify(g), ErrMalformed)
}

func TestVerifyRejectsCallArity(t *testing.T) {
	m := ir.NewModule()
	callee := m.NewFunc("two", types.Double, ir.NewParam("a", types.Double), ir.NewParam("b", types.Double))

	f := m.NewFunc("f", types.Double)
	entry := f.NewBlock("entry")
	call := entry.NewCall(callee, double(1))
	entry.NewRet(call)

	be.Err(t, Verify(f), "call to @two in @f passes 1 arguments, expected 2")
}
