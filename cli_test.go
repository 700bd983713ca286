package main

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestCheckSummary(t *testing.T) {
	_, session := runProgram("extern sin(x)\ndef add(a, b) { a + b }\nadd(1, 2)", false)
	be.Equal(t, session.Errors.Count(), 0)

	be.Equal(t, checkSummary("prog.kal", session, false), "prog.kal: no errors found (2 functions)\n")
	be.Equal(t, checkSummary("prog.kal", session, true),
		"prog.kal: no errors found (2 functions)\n"+
			`  (proto "add" "a" "b")`+"\n"+
			`  (proto "sin" "x")`+"\n")
}
