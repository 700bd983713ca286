// Package backend verifies and executes LLVM IR built with llir/llvm.
//
// The engine plays the role a JIT plays in an LLVM toolchain: modules are
// added as they are produced, functions are looked up by name, and calls to
// declarations are bound at call time to the newest definition (or a host
// builtin) of that name.
package backend

import (
	"errors"
	"fmt"

	"github.com/llir/llvm/ir"
)

// ErrMalformed is wrapped by every Verify failure.
var ErrMalformed = errors.New("malformed function")

// asBlock extracts the basic block behind a branch target or phi predecessor.
func asBlock(v any) (*ir.Block, bool) {
	b, ok := v.(*ir.Block)
	return b, ok
}

func successors(term ir.Terminator) ([]*ir.Block, error) {
	switch term := term.(type) {
	case *ir.TermRet, *ir.TermUnreachable:
		return nil, nil
	case *ir.TermBr:
		target, ok := asBlock(term.Target)
		if !ok {
			return nil, fmt.Errorf("branch target is not a basic block")
		}
		return []*ir.Block{target}, nil
	case *ir.TermCondBr:
		t, okT := asBlock(term.TargetTrue)
		f, okF := asBlock(term.TargetFalse)
		if !okT || !okF {
			return nil, fmt.Errorf("conditional branch target is not a basic block")
		}
		return []*ir.Block{t, f}, nil
	default:
		return nil, fmt.Errorf("unsupported terminator %T", term)
	}
}

// Verify checks the structural well-formedness of a function definition:
// every block is terminated, branches stay inside the function, phis lead
// their block and name exactly its predecessors, returns match the signature,
// and direct calls pass as many arguments as the callee declares.
func Verify(f *ir.Func) error {
	name := f.Name()
	if len(f.Blocks) == 0 {
		return fmt.Errorf("%w: @%s has no body", ErrMalformed, name)
	}

	owned := make(map[*ir.Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		owned[b] = true
	}

	preds := make(map[*ir.Block][]*ir.Block)
	for _, b := range f.Blocks {
		if b.Term == nil {
			return fmt.Errorf("%w: block %s in @%s has no terminator", ErrMalformed, b.Ident(), name)
		}
		succs, err := successors(b.Term)
		if err != nil {
			return fmt.Errorf("%w: block %s in @%s: %v", ErrMalformed, b.Ident(), name, err)
		}
		for _, succ := range succs {
			if !owned[succ] {
				return fmt.Errorf("%w: block %s in @%s branches to foreign block %s", ErrMalformed, b.Ident(), name, succ.Ident())
			}
			preds[succ] = append(preds[succ], b)
		}
	}

	if entry := f.Blocks[0]; len(preds[entry]) > 0 {
		return fmt.Errorf("%w: entry block of @%s has predecessors", ErrMalformed, name)
	}

	for _, b := range f.Blocks {
		seenNonPhi := false
		for _, inst := range b.Insts {
			switch inst := inst.(type) {
			case *ir.InstPhi:
				if seenNonPhi {
					return fmt.Errorf("%w: phi %s in @%s is not at the start of block %s", ErrMalformed, inst.Ident(), name, b.Ident())
				}
				if err := checkPhi(inst, preds[b]); err != nil {
					return fmt.Errorf("%w: phi %s in @%s: %v", ErrMalformed, inst.Ident(), name, err)
				}
			case *ir.InstCall:
				seenNonPhi = true
				if callee, ok := inst.Callee.(*ir.Func); ok && len(callee.Params) != len(inst.Args) {
					return fmt.Errorf("%w: call to @%s in @%s passes %d arguments, expected %d",
						ErrMalformed, callee.Name(), name, len(inst.Args), len(callee.Params))
				}
			default:
				seenNonPhi = true
			}
		}

		if ret, ok := b.Term.(*ir.TermRet); ok {
			if ret.X == nil || !ret.X.Type().Equal(f.Sig.RetType) {
				return fmt.Errorf("%w: return in block %s of @%s does not match the result type %s",
					ErrMalformed, b.Ident(), name, f.Sig.RetType)
			}
		}
	}
	return nil
}

func checkPhi(phi *ir.InstPhi, preds []*ir.Block) error {
	want := make(map[*ir.Block]int, len(preds))
	for _, pred := range preds {
		want[pred]++
	}
	for _, inc := range phi.Incs {
		pred, ok := asBlock(inc.Pred)
		if !ok {
			return fmt.Errorf("incoming predecessor is not a basic block")
		}
		if want[pred] == 0 {
			return fmt.Errorf("incoming block %s is not a predecessor", pred.Ident())
		}
		want[pred]--
	}
	for pred, missing := range want {
		if missing > 0 {
			return fmt.Errorf("no incoming value for predecessor %s", pred.Ident())
		}
	}
	return nil
}
