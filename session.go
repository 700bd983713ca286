package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"

	"github.com/strager/kal/backend"
)

// Session is one compilation session: the read-translate-run loop over a
// stream of top-level units. The prototype registry and the engine's loaded
// modules persist across units; everything else is rebuilt per unit.
type Session struct {
	config   Config
	registry *PrototypeRegistry
	env      *SymbolEnv
	engine   *backend.Engine
	modules  []*ir.Module

	out   io.Writer // results and builtin output
	diag  io.Writer // prompt
	trace tracing.Trace

	Errors ErrorCollection
}

// NewSession writes evaluation results to out and the prompt and trace
// output to diag.
func NewSession(config Config, out, diag io.Writer) *Session {
	engine := backend.NewEngine(out)
	engine.MaxCallDepth = config.MaxCallDepth
	engine.MaxSteps = config.MaxSteps
	return &Session{
		config:   config,
		registry: NewPrototypeRegistry(),
		env:      NewSymbolEnv(),
		engine:   engine,
		out:      out,
		diag:     diag,
		trace:    newTrace(config, diag),
	}
}

// newTrace reports errors always, units at info level with Verbose, and IR
// at debug level with DumpIR.
func newTrace(config Config, diag io.Writer) tracing.Trace {
	trace := gologadapter.New()
	if diag != nil {
		trace.SetOutput(diag)
	}
	switch {
	case config.DumpIR:
		trace.SetTraceLevel(tracing.LevelDebug)
	case config.Verbose:
		trace.SetTraceLevel(tracing.LevelInfo)
	default:
		trace.SetTraceLevel(tracing.LevelError)
	}
	return trace
}

func (s *Session) Registry() *PrototypeRegistry {
	return s.registry
}

func (s *Session) Engine() *backend.Engine {
	return s.engine
}

// Modules returns the IR module of every unit translated so far.
func (s *Session) Modules() []*ir.Module {
	return s.modules
}

// Run processes units from r until end of input. Failed units are recorded
// in s.Errors and do not stop the session. The returned error is a read
// error of r, if any.
func (s *Session) Run(r io.Reader) error {
	lexer := NewLexer(r)
	p := NewParser(lexer)
	for {
		if s.config.Prompt != "" {
			fmt.Fprint(s.diag, s.config.Prompt)
		}
		unit, err := p.ParseUnit()
		if err != nil {
			s.report(err)
			p.Skip()
			continue
		}
		if unit.Kind == UnitEOF {
			return lexer.Err
		}
		if err := s.handle(unit); err != nil {
			s.report(err)
		}
	}
}

// RunString is Run over in-memory source.
func (s *Session) RunString(src string) error {
	return s.Run(strings.NewReader(src))
}

func (s *Session) report(err error) {
	s.Errors.Add(err)
	s.trace.Errorf("%v", err)
}

func (s *Session) handle(unit Unit) error {
	module := ir.NewModule()
	gen := NewCodeGen(module, s.registry, s.env)

	switch unit.Kind {
	case UnitDefinition:
		if s.config.Verbose {
			s.trace.Infof("definition: %s", FunctionSExpr(unit.Def))
		}
		fn, err := gen.EmitFunction(unit.Def)
		if err != nil {
			return err
		}
		if s.config.DumpIR {
			s.trace.Debugf("read function definition:\n%s", fn.LLString())
		}
		s.modules = append(s.modules, module)
		s.engine.AddModule(module)
		return nil

	case UnitExtern:
		if s.config.Verbose {
			s.trace.Infof("extern: %s", PrototypeSExpr(unit.Proto))
		}
		fn, err := gen.EmitPrototype(unit.Proto)
		if err != nil {
			return err
		}
		if s.config.DumpIR {
			s.trace.Debugf("read extern:\n%s", fn.LLString())
		}
		s.modules = append(s.modules, module)
		return nil

	case UnitExpression:
		if s.config.Verbose {
			s.trace.Infof("expression: %s", ToSExpr(unit.Expr))
		}
		if _, err := gen.EmitFunction(AnonymousFunction(unit.Expr)); err != nil {
			return err
		}
		if s.config.DumpIR {
			s.trace.Debugf("read top-level expression:\n%s", module)
		}
		s.modules = append(s.modules, module)
		if !s.config.Execute {
			return nil
		}

		h := s.engine.AddModule(module)
		defer s.engine.RemoveModule(h)
		result, err := s.engine.Run(anonName)
		if err != nil {
			return fmt.Errorf("%s: evaluating expression: %w", unit.Expr.Pos, err)
		}
		fmt.Fprintf(s.out, "%f\n", result)
		return nil

	default:
		panic("unexpected unit kind " + unit.Kind.String())
	}
}
