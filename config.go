package main

import (
	"github.com/xyproto/env/v2"

	"github.com/strager/kal/backend"
)

// Config controls a Session. Subcommand flags are applied on top of
// ConfigFromEnv.
type Config struct {
	Prompt  string // printed before each unit in the REPL; empty disables it
	Verbose bool   // log every unit
	DumpIR  bool   // log generated IR
	Execute bool   // run bare expressions; false only translates and verifies

	MaxCallDepth int
	MaxSteps     int // 0 means unlimited
}

func DefaultConfig() Config {
	return Config{
		Prompt:       "ready> ",
		Execute:      true,
		MaxCallDepth: backend.DefaultMaxCallDepth,
	}
}

// ConfigFromEnv overlays KAL_* environment variables on DefaultConfig. The
// environment is reread on every call.
func ConfigFromEnv() Config {
	env.Load()
	c := DefaultConfig()
	c.Prompt = env.Str("KAL_PROMPT", c.Prompt)
	c.Verbose = env.Bool("KAL_VERBOSE")
	c.DumpIR = env.Bool("KAL_DUMP_IR")
	c.MaxCallDepth = env.Int("KAL_MAX_CALL_DEPTH", c.MaxCallDepth)
	c.MaxSteps = env.Int("KAL_MAX_STEPS", c.MaxSteps)
	return c
}
