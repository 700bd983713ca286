package backend

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"
)

var (
	ErrUnresolvedSymbol  = errors.New("unresolved symbol")
	ErrCallDepthExceeded = errors.New("call depth exceeded")
	ErrStepLimit         = errors.New("instruction budget exhausted")
	ErrArgumentCount     = errors.New("wrong number of arguments")
	ErrUnsupported       = errors.New("unsupported IR")
)

// DefaultMaxCallDepth bounds recursion when Engine.MaxCallDepth is zero.
const DefaultMaxCallDepth = 10000

// Handle identifies a module added to an Engine.
type Handle int

// Builtin is a host function callable from generated code through a
// declaration of the same name.
type Builtin struct {
	Arity int
	Fn    func(args []float64) float64
}

type loadedModule struct {
	handle Handle
	module *ir.Module
}

// Engine executes functions of the modules added to it. Every value it
// handles is a double; i1 results of comparisons are carried as 0 or 1.
type Engine struct {
	modules    []loadedModule
	nextHandle Handle
	builtins   map[string]Builtin

	// MaxCallDepth limits nested calls. Zero means DefaultMaxCallDepth.
	MaxCallDepth int
	// MaxSteps limits the instructions executed by one Run. Zero means no limit.
	MaxSteps int

	depth int
	steps int
}

// NewEngine returns an engine with the host builtins putchard and printd
// writing to out.
func NewEngine(out io.Writer) *Engine {
	e := &Engine{builtins: make(map[string]Builtin)}
	registerHostFunctions(e, out)
	return e
}

// RegisterBuiltin makes fn callable as name. Definitions added through
// AddModule take precedence over builtins.
func (e *Engine) RegisterBuiltin(name string, arity int, fn func(args []float64) float64) {
	e.builtins[name] = Builtin{Arity: arity, Fn: fn}
}

// AddModule makes the functions defined in m callable. Later modules shadow
// earlier ones.
func (e *Engine) AddModule(m *ir.Module) Handle {
	e.nextHandle++
	e.modules = append(e.modules, loadedModule{handle: e.nextHandle, module: m})
	return e.nextHandle
}

// RemoveModule forgets the module added under h.
func (e *Engine) RemoveModule(h Handle) {
	for i, lm := range e.modules {
		if lm.handle == h {
			e.modules = append(e.modules[:i], e.modules[i+1:]...)
			return
		}
	}
}

// ModuleCount returns the number of modules currently added.
func (e *Engine) ModuleCount() int {
	return len(e.modules)
}

// Lookup finds the newest definition (not declaration) of name.
func (e *Engine) Lookup(name string) (*ir.Func, bool) {
	for i := len(e.modules) - 1; i >= 0; i-- {
		for _, f := range e.modules[i].module.Funcs {
			if f.Name() == name && len(f.Blocks) > 0 {
				return f, true
			}
		}
	}
	return nil, false
}

// Run calls the function name with args and returns its result.
func (e *Engine) Run(name string, args ...float64) (float64, error) {
	e.depth = 0
	e.steps = 0
	return e.invoke(name, args)
}

func (e *Engine) invoke(name string, args []float64) (float64, error) {
	if f, ok := e.Lookup(name); ok {
		return e.call(f, args)
	}
	if b, ok := e.builtins[name]; ok {
		if len(args) != b.Arity {
			return 0, fmt.Errorf("%w: builtin %s takes %d, got %d", ErrArgumentCount, name, b.Arity, len(args))
		}
		return b.Fn(args), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnresolvedSymbol, name)
}

type frame struct {
	vals map[value.Value]float64 // SSA values
	mem  map[value.Value]float64 // alloca slots
}

func (fr *frame) eval(v value.Value) (float64, error) {
	switch v := v.(type) {
	case *constant.Float:
		x, _ := v.X.Float64()
		return x, nil
	case *constant.Int:
		return float64(v.X.Int64()), nil
	}
	x, ok := fr.vals[v]
	if !ok {
		return 0, fmt.Errorf("%w: use of undefined value %s", ErrUnsupported, v.Ident())
	}
	return x, nil
}

func (e *Engine) call(f *ir.Func, args []float64) (float64, error) {
	if len(args) != len(f.Params) {
		return 0, fmt.Errorf("%w: @%s takes %d, got %d", ErrArgumentCount, f.Name(), len(f.Params), len(args))
	}
	maxDepth := e.MaxCallDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCallDepth
	}
	if e.depth >= maxDepth {
		return 0, fmt.Errorf("%w: %d nested calls", ErrCallDepthExceeded, e.depth)
	}
	e.depth++
	defer func() { e.depth-- }()

	fr := &frame{
		vals: make(map[value.Value]float64),
		mem:  make(map[value.Value]float64),
	}
	for i, p := range f.Params {
		fr.vals[p] = args[i]
	}

	var prev *ir.Block
	block := f.Blocks[0]
	for {
		rest, err := e.enterBlock(fr, block, prev)
		if err != nil {
			return 0, err
		}
		for _, inst := range rest {
			if err := e.exec(fr, inst); err != nil {
				return 0, err
			}
		}

		var next *ir.Block
		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return 0, nil
			}
			return fr.eval(term.X)
		case *ir.TermBr:
			next, _ = asBlock(term.Target)
		case *ir.TermCondBr:
			cond, err := fr.eval(term.Cond)
			if err != nil {
				return 0, err
			}
			if cond != 0 {
				next, _ = asBlock(term.TargetTrue)
			} else {
				next, _ = asBlock(term.TargetFalse)
			}
		default:
			return 0, fmt.Errorf("%w: terminator %T in @%s", ErrUnsupported, block.Term, f.Name())
		}
		if next == nil {
			return 0, fmt.Errorf("%w: branch without target in @%s", ErrUnsupported, f.Name())
		}
		prev, block = block, next
	}
}

// enterBlock resolves the leading phis of block against the edge taken from
// prev and returns the remaining instructions. All phis read their inputs
// before any of them is assigned.
func (e *Engine) enterBlock(fr *frame, block, prev *ir.Block) ([]ir.Instruction, error) {
	type pending struct {
		phi *ir.InstPhi
		x   float64
	}
	var phis []pending
	i := 0
	for ; i < len(block.Insts); i++ {
		phi, ok := block.Insts[i].(*ir.InstPhi)
		if !ok {
			break
		}
		found := false
		for _, inc := range phi.Incs {
			if pred, _ := asBlock(inc.Pred); pred == prev {
				x, err := fr.eval(inc.X)
				if err != nil {
					return nil, err
				}
				phis = append(phis, pending{phi: phi, x: x})
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: phi %s has no value for the incoming edge", ErrUnsupported, phi.Ident())
		}
	}
	for _, p := range phis {
		fr.vals[p.phi] = p.x
	}
	return block.Insts[i:], nil
}

func (e *Engine) exec(fr *frame, inst ir.Instruction) error {
	if e.MaxSteps > 0 {
		e.steps++
		if e.steps > e.MaxSteps {
			return fmt.Errorf("%w: more than %d instructions", ErrStepLimit, e.MaxSteps)
		}
	}

	switch inst := inst.(type) {
	case *ir.InstAlloca:
		fr.mem[inst] = 0
	case *ir.InstLoad:
		x, ok := fr.mem[inst.Src]
		if !ok {
			return fmt.Errorf("%w: load from %s which is not a stack slot", ErrUnsupported, inst.Src.Ident())
		}
		fr.vals[inst] = x
	case *ir.InstStore:
		if _, ok := fr.mem[inst.Dst]; !ok {
			return fmt.Errorf("%w: store to %s which is not a stack slot", ErrUnsupported, inst.Dst.Ident())
		}
		x, err := fr.eval(inst.Src)
		if err != nil {
			return err
		}
		fr.mem[inst.Dst] = x
	case *ir.InstFAdd:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x + y })
	case *ir.InstFSub:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x - y })
	case *ir.InstFMul:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x * y })
	case *ir.InstFDiv:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 { return x / y })
	case *ir.InstFCmp:
		return fr.binary(inst, inst.X, inst.Y, func(x, y float64) float64 {
			if fcmp(inst.Pred, x, y) {
				return 1
			}
			return 0
		})
	case *ir.InstUIToFP:
		x, err := fr.eval(inst.From)
		if err != nil {
			return err
		}
		fr.vals[inst] = x
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return fmt.Errorf("%w: indirect call through %s", ErrUnsupported, inst.Callee.Ident())
		}
		args := make([]float64, len(inst.Args))
		for i, arg := range inst.Args {
			x, err := fr.eval(arg)
			if err != nil {
				return err
			}
			args[i] = x
		}
		result, err := e.invoke(callee.Name(), args)
		if err != nil {
			return err
		}
		fr.vals[inst] = result
	default:
		return fmt.Errorf("%w: instruction %T", ErrUnsupported, inst)
	}
	return nil
}

func (fr *frame) binary(inst value.Value, x, y value.Value, op func(x, y float64) float64) error {
	a, err := fr.eval(x)
	if err != nil {
		return err
	}
	b, err := fr.eval(y)
	if err != nil {
		return err
	}
	fr.vals[inst] = op(a, b)
	return nil
}

func fcmp(pred enum.FPred, x, y float64) bool {
	unordered := math.IsNaN(x) || math.IsNaN(y)
	switch pred {
	case enum.FPredFalse:
		return false
	case enum.FPredTrue:
		return true
	case enum.FPredOEQ:
		return !unordered && x == y
	case enum.FPredONE:
		return !unordered && x != y
	case enum.FPredOLT:
		return !unordered && x < y
	case enum.FPredOLE:
		return !unordered && x <= y
	case enum.FPredOGT:
		return !unordered && x > y
	case enum.FPredOGE:
		return !unordered && x >= y
	case enum.FPredORD:
		return !unordered
	case enum.FPredUEQ:
		return unordered || x == y
	case enum.FPredUNE:
		return unordered || x != y
	case enum.FPredULT:
		return unordered || x < y
	case enum.FPredULE:
		return unordered || x <= y
	case enum.FPredUGT:
		return unordered || x > y
	case enum.FPredUGE:
		return unordered || x >= y
	case enum.FPredUNO:
		return unordered
	default:
		return false
	}
}
