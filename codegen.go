package main

import (
	"slices"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/strager/kal/backend"
)

// CodeGen translates parsed units into one LLVM IR module. The symbol
// environment and prototype registry are shared with the session; the module
// belongs to the current top-level unit.
type CodeGen struct {
	module *ir.Module
	protos *PrototypeRegistry
	env    *SymbolEnv

	// Function being generated and the current insertion block.
	fn    *ir.Func
	block *ir.Block
	used  map[string]bool // local names taken in fn
}

func NewCodeGen(module *ir.Module, protos *PrototypeRegistry, env *SymbolEnv) *CodeGen {
	return &CodeGen{module: module, protos: protos, env: env}
}

func (g *CodeGen) Module() *ir.Module {
	return g.module
}

var zero = constant.NewFloat(types.Double, 0)

// uniqueName returns base, or base with a numeric suffix if base is taken.
// Blocks and values share one namespace per function.
func (g *CodeGen) uniqueName(base string) string {
	name := base
	for i := 1; g.used[name]; i++ {
		name = base + "." + strconv.Itoa(i)
	}
	g.used[name] = true
	return name
}

func (g *CodeGen) lookupFunction(name string) *ir.Func {
	for _, f := range g.module.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func (g *CodeGen) declare(proto *Prototype) *ir.Func {
	params := make([]*ir.Param, len(proto.Params))
	for i, name := range proto.Params {
		params[i] = ir.NewParam(name, types.Double)
	}
	return g.module.NewFunc(proto.Name, types.Double, params...)
}

// getFunction resolves a callee: first in the current module, then by
// declaring it from the registered prototype.
func (g *CodeGen) getFunction(name string) *ir.Func {
	if f := g.lookupFunction(name); f != nil {
		return f
	}
	if proto, ok := g.protos.Lookup(name); ok {
		return g.declare(proto)
	}
	return nil
}

func (g *CodeGen) discard(fn *ir.Func) {
	g.module.Funcs = slices.DeleteFunc(g.module.Funcs, func(f *ir.Func) bool { return f == fn })
}

// EmitPrototype registers an extern and declares it in the module.
func (g *CodeGen) EmitPrototype(proto *Prototype) (*ir.Func, error) {
	g.protos.Register(proto)
	if f := g.lookupFunction(proto.Name); f != nil {
		if len(f.Params) != len(proto.Params) {
			return nil, errorAt(proto.Pos, ErrRedefinition, "'%s' already declared with %d parameters", proto.Name, len(f.Params))
		}
		return f, nil
	}
	return g.declare(proto), nil
}

// EmitFunction generates and verifies a function definition. The prototype
// stays registered even if generation fails; the partial function does not
// stay in the module.
func (g *CodeGen) EmitFunction(def *FunctionDef) (*ir.Func, error) {
	proto := def.Proto
	if !def.IsAnonymous() {
		g.protos.Register(proto)
	}

	fn := g.lookupFunction(proto.Name)
	if fn == nil {
		fn = g.declare(proto)
	}
	if len(fn.Blocks) > 0 {
		return nil, errorAt(proto.Pos, ErrRedefinition, "'%s' already has a body", proto.Name)
	}
	if len(fn.Params) != len(proto.Params) {
		return nil, errorAt(proto.Pos, ErrRedefinition, "'%s' already declared with %d parameters", proto.Name, len(fn.Params))
	}

	g.fn = fn
	g.used = make(map[string]bool)
	for i, p := range fn.Params {
		p.SetName(g.uniqueName(proto.Params[i]))
	}
	g.block = ir.NewBlock(g.uniqueName("entry"))
	g.appendBlock(g.block)

	g.env.Reset()
	for i, p := range fn.Params {
		slot := g.entryAlloca(proto.Params[i])
		g.block.NewStore(p, slot)
		g.env.Bind(proto.Params[i], slot)
	}

	var result value.Value
	for i, stmt := range def.Body {
		last := i == len(def.Body)-1
		v, err := g.emit(stmt, last)
		if err != nil {
			g.discard(fn)
			return nil, err
		}
		if last {
			result = v
		}
	}
	if result == nil {
		g.discard(fn)
		return nil, errorAt(proto.Pos, ErrVerificationFailed, "body of '%s' produced no value", proto.Name)
	}
	g.block.NewRet(result)

	if err := backend.Verify(fn); err != nil {
		g.discard(fn)
		return nil, errorAt(proto.Pos, ErrVerificationFailed, "%v", err)
	}
	return fn, nil
}

func (g *CodeGen) appendBlock(b *ir.Block) {
	b.Parent = g.fn
	g.fn.Blocks = append(g.fn.Blocks, b)
}

// setBlock appends b to the function and moves the insertion point to it.
func (g *CodeGen) setBlock(b *ir.Block) {
	g.appendBlock(b)
	g.block = b
}

// entryAlloca creates a stack slot after the allocas already at the top of
// the entry block, so every slot exists before any code runs.
func (g *CodeGen) entryAlloca(name string) *ir.InstAlloca {
	entry := g.fn.Blocks[0]
	slot := ir.NewAlloca(types.Double)
	slot.SetName(g.uniqueName(name))

	i := 0
	for i < len(entry.Insts) {
		if _, ok := entry.Insts[i].(*ir.InstAlloca); !ok {
			break
		}
		i++
	}
	entry.Insts = slices.Insert(entry.Insts, i, ir.Instruction(slot))
	return slot
}

// emit translates one expression. wantValue is false for statements whose
// value is discarded; only those may be an if without else.
func (g *CodeGen) emit(node *ASTNode, wantValue bool) (value.Value, error) {
	switch node.Kind {
	case NodeNumber:
		return constant.NewFloat(types.Double, node.Number), nil
	case NodeIdent:
		return g.emitIdent(node)
	case NodeVar:
		return g.emitVar(node)
	case NodeBinary:
		return g.emitBinary(node)
	case NodeCall:
		return g.emitCall(node)
	case NodeIf:
		return g.emitIf(node, wantValue)
	case NodeFor:
		return g.emitFor(node)
	case NodeBlock:
		return g.emitBlock(node, wantValue)
	default:
		panic("unsupported node kind in expression position: " + string(node.Kind))
	}
}

func (g *CodeGen) emitIdent(node *ASTNode) (value.Value, error) {
	slot := g.env.Lookup(node.String)
	if slot == nil {
		return nil, errorAt(node.Pos, ErrUnknownVariable, "unknown variable name '%s'", node.String)
	}
	load := g.block.NewLoad(types.Double, slot)
	load.SetName(g.uniqueName(node.String))
	return load, nil
}

// emitBlock translates statements in order. Only the last one can be asked
// for a value; its value is the block's.
func (g *CodeGen) emitBlock(node *ASTNode, wantValue bool) (value.Value, error) {
	var result value.Value
	for i, stmt := range node.Children {
		v, err := g.emit(stmt, wantValue && i == len(node.Children)-1)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// emitVar evaluates each initializer before binding its name, so
// "var x = x;" reads the previous x.
func (g *CodeGen) emitVar(node *ASTNode) (value.Value, error) {
	var result value.Value
	for _, binding := range node.Children {
		var initVal value.Value = zero
		if init := binding.Init(); init != nil {
			v, err := g.emit(init, true)
			if err != nil {
				return nil, err
			}
			initVal = v
		}
		slot := g.entryAlloca(binding.String)
		g.block.NewStore(initVal, slot)
		g.env.Bind(binding.String, slot)
		result = initVal
	}
	return result, nil
}

func (g *CodeGen) emitBinary(node *ASTNode) (value.Value, error) {
	lhs, rhs := node.Children[0], node.Children[1]

	if node.Op == "=" {
		if lhs.Kind != NodeIdent {
			return nil, errorAt(node.Pos, ErrInvalidAssignmentTarget, "left side of '=' must be a variable")
		}
		val, err := g.emit(rhs, true)
		if err != nil {
			return nil, err
		}
		slot := g.env.Lookup(lhs.String)
		if slot == nil {
			return nil, errorAt(lhs.Pos, ErrUnknownVariable, "unknown variable name '%s'", lhs.String)
		}
		g.block.NewStore(val, slot)
		return val, nil
	}

	l, err := g.emit(lhs, true)
	if err != nil {
		return nil, err
	}
	r, err := g.emit(rhs, true)
	if err != nil {
		return nil, err
	}

	switch node.Op {
	case "+":
		inst := g.block.NewFAdd(l, r)
		inst.SetName(g.uniqueName("addtmp"))
		return inst, nil
	case "-":
		inst := g.block.NewFSub(l, r)
		inst.SetName(g.uniqueName("subtmp"))
		return inst, nil
	case "*":
		inst := g.block.NewFMul(l, r)
		inst.SetName(g.uniqueName("multmp"))
		return inst, nil
	case "/":
		inst := g.block.NewFDiv(l, r)
		inst.SetName(g.uniqueName("divtmp"))
		return inst, nil
	case "<":
		return g.emitCompare(enum.FPredULT, l, r)
	case ">":
		return g.emitCompare(enum.FPredUGT, l, r)
	default:
		return nil, errorAt(node.Pos, ErrInvalidOperator, "invalid binary operator '%s'", node.Op)
	}
}

// emitCompare widens the i1 comparison result to 0.0 or 1.0.
func (g *CodeGen) emitCompare(pred enum.FPred, l, r value.Value) (value.Value, error) {
	cmp := g.block.NewFCmp(pred, l, r)
	cmp.SetName(g.uniqueName("cmptmp"))
	widened := g.block.NewUIToFP(cmp, types.Double)
	widened.SetName(g.uniqueName("booltmp"))
	return widened, nil
}

func (g *CodeGen) emitCall(node *ASTNode) (value.Value, error) {
	callee := g.getFunction(node.String)
	if callee == nil {
		return nil, errorAt(node.Pos, ErrUnknownFunction, "unknown function referenced: '%s'", node.String)
	}
	if len(callee.Params) != len(node.Children) {
		return nil, errorAt(node.Pos, ErrArityMismatch, "'%s' takes %d arguments, got %d",
			node.String, len(callee.Params), len(node.Children))
	}

	args := make([]value.Value, 0, len(node.Children))
	for _, arg := range node.Children {
		v, err := g.emit(arg, true)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	call := g.block.NewCall(callee, args...)
	call.SetName(g.uniqueName("calltmp"))
	return call, nil
}

// emitIf lowers to then/else/merge blocks joined by a phi. Without an else
// arm, or when the value is unused, no phi is built.
func (g *CodeGen) emitIf(node *ASTNode, wantValue bool) (value.Value, error) {
	then, els := node.Then(), node.Else()
	if wantValue {
		if els == nil {
			return nil, errorAt(node.Pos, ErrMissingElseBranch, "'if' without 'else' cannot produce a value")
		}
		if len(then.Children) == 0 {
			return nil, errorAt(then.Pos, ErrEmptyBranch, "then branch is empty")
		}
		if len(els.Children) == 0 {
			return nil, errorAt(els.Pos, ErrEmptyBranch, "else branch is empty")
		}
	}

	cond, err := g.emit(node.Children[0], true)
	if err != nil {
		return nil, err
	}
	condBool := g.block.NewFCmp(enum.FPredONE, cond, zero)
	condBool.SetName(g.uniqueName("ifcond"))

	thenBB := ir.NewBlock(g.uniqueName("then"))
	var elseBB *ir.Block
	if els != nil {
		elseBB = ir.NewBlock(g.uniqueName("else"))
	}
	mergeBB := ir.NewBlock(g.uniqueName("ifcont"))

	if elseBB != nil {
		g.block.NewCondBr(condBool, thenBB, elseBB)
	} else {
		g.block.NewCondBr(condBool, thenBB, mergeBB)
	}

	g.setBlock(thenBB)
	thenVal, err := g.emitBlock(then, wantValue)
	if err != nil {
		return nil, err
	}
	if g.block.Term == nil {
		g.block.NewBr(mergeBB)
	}
	// Nested control flow may have moved the insertion point.
	thenEnd := g.block

	var elseVal value.Value
	var elseEnd *ir.Block
	if elseBB != nil {
		g.setBlock(elseBB)
		elseVal, err = g.emitBlock(els, wantValue)
		if err != nil {
			return nil, err
		}
		if g.block.Term == nil {
			g.block.NewBr(mergeBB)
		}
		elseEnd = g.block
	}

	g.setBlock(mergeBB)
	if !wantValue {
		return nil, nil
	}
	if thenVal == nil || elseVal == nil {
		return nil, errorAt(node.Pos, ErrEmptyBranch, "branch produced no value")
	}
	phi := g.block.NewPhi(ir.NewIncoming(thenVal, thenEnd), ir.NewIncoming(elseVal, elseEnd))
	phi.SetName(g.uniqueName("iftmp"))
	return phi, nil
}

// emitFor lowers "for v in (start, end, step) body" to
//
//	v = start
//	cond: if v < end goto body else goto after
//	body: ...; v = v + step; goto cond
//
// The loop variable stays bound after the loop. The loop's value is 0.0.
func (g *CodeGen) emitFor(node *ASTNode) (value.Value, error) {
	start, err := g.emit(node.Children[0], true)
	if err != nil {
		return nil, err
	}
	slot := g.entryAlloca(node.String)
	g.block.NewStore(start, slot)
	g.env.Bind(node.String, slot)

	condBB := ir.NewBlock(g.uniqueName("loopcond"))
	bodyBB := ir.NewBlock(g.uniqueName("loop"))
	afterBB := ir.NewBlock(g.uniqueName("afterloop"))

	g.block.NewBr(condBB)

	g.setBlock(condBB)
	cur := g.block.NewLoad(types.Double, slot)
	cur.SetName(g.uniqueName(node.String))
	end, err := g.emit(node.Children[1], true)
	if err != nil {
		return nil, err
	}
	cmp := g.block.NewFCmp(enum.FPredULT, cur, end)
	cmp.SetName(g.uniqueName("loopcond"))
	g.block.NewCondBr(cmp, bodyBB, afterBB)

	g.setBlock(bodyBB)
	if _, err := g.emitBlock(node.Body(), false); err != nil {
		return nil, err
	}
	var step value.Value = constant.NewFloat(types.Double, 1)
	if s := node.Step(); s != nil {
		step, err = g.emit(s, true)
		if err != nil {
			return nil, err
		}
	}
	curVal := g.block.NewLoad(types.Double, slot)
	curVal.SetName(g.uniqueName(node.String))
	next := g.block.NewFAdd(curVal, step)
	next.SetName(g.uniqueName("nextvar"))
	g.block.NewStore(next, slot)
	if g.block.Term == nil {
		g.block.NewBr(condBB)
	}

	g.setBlock(afterBB)
	return zero, nil
}
