package sexy

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType is the language of a test's input fence.
type InputType string

const (
	InputTypeKalExpr    InputType = "kal-expr"    // a single expression
	InputTypeKalProgram InputType = "kal-program" // a whole session
)

// AssertionType is the language of an assertion fence.
type AssertionType string

const (
	AssertionTypeAST          AssertionType = "ast"           // Sexy pattern of the parsed AST
	AssertionTypeExecute      AssertionType = "execute"       // exact session output
	AssertionTypeCompileError AssertionType = "compile-error" // substring of the first error
	AssertionTypeIR           AssertionType = "ir"            // lines that must occur in the IR
)

var inputTypes = map[string]InputType{
	string(InputTypeKalExpr):    InputTypeKalExpr,
	string(InputTypeKalProgram): InputTypeKalProgram,
}

var assertionTypes = map[string]AssertionType{
	string(AssertionTypeAST):          AssertionTypeAST,
	string(AssertionTypeExecute):      AssertionTypeExecute,
	string(AssertionTypeCompileError): AssertionTypeCompileError,
	string(AssertionTypeIR):           AssertionTypeIR,
}

// Assertion is one assertion fence of a test case.
type Assertion struct {
	Type       AssertionType
	Content    string // fence body without the trailing newline
	ParsedSexy *Node  // only for AssertionTypeAST
	Line       int
}

// TestCase is a "Test: name" section of a Markdown document.
type TestCase struct {
	Name       string
	Input      string
	InputType  InputType
	Assertions []Assertion
	Line       int
}

// ExtractTestCases parses a Markdown document and returns its test cases in
// document order. Every heading starting with "Test: " opens a test case;
// each needs exactly one input fence and at least one assertion fence.
// Fenced code with a language is only allowed inside a test case.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	source := []byte(markdownContent)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var testCases []TestCase
	var current *TestCase

	finish := func() error {
		if current == nil {
			return nil
		}
		if current.Input == "" {
			return fmt.Errorf("line %d: test '%s' has no input fence", current.Line, current.Name)
		}
		if len(current.Assertions) == 0 {
			return fmt.Errorf("line %d: test '%s' has no assertion fences", current.Line, current.Name)
		}
		testCases = append(testCases, *current)
		current = nil
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := extractText(n, source)
			name, ok := strings.CutPrefix(heading, "Test: ")
			if !ok {
				return ast.WalkSkipChildren, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &TestCase{Name: name, Line: lineOf(n, source)}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			if err := addFence(current, n, source); err != nil {
				return ast.WalkStop, err
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}

	if err := finish(); err != nil {
		return nil, err
	}
	return testCases, nil
}

func addFence(tc *TestCase, fence *ast.FencedCodeBlock, source []byte) error {
	language := string(fence.Language(source))
	line := lineOf(fence, source)
	content := strings.TrimRight(extractCodeBlockContent(fence, source), "\n")

	inputType, isInput := inputTypes[language]
	assertionType, isAssertion := assertionTypes[language]

	if tc == nil {
		switch {
		case language == "":
			return nil
		case isInput || isAssertion:
			return fmt.Errorf("line %d: %s fence found outside of test case", line, language)
		default:
			return fmt.Errorf("line %d: unknown fence language '%s' found outside of test case", line, language)
		}
	}

	switch {
	case language == "":
		return nil
	case isInput:
		if tc.Input != "" {
			return fmt.Errorf("line %d: multiple input fences found in test '%s'", line, tc.Name)
		}
		tc.Input = content
		tc.InputType = inputType
	case isAssertion:
		assertion := Assertion{Type: assertionType, Content: content, Line: line}
		if assertionType == AssertionTypeAST {
			parsed, err := Parse(content)
			if err != nil {
				return fmt.Errorf("line %d: failed to parse Sexy assertion in test '%s': %w", line, tc.Name, err)
			}
			assertion.ParsedSexy = parsed
		}
		tc.Assertions = append(tc.Assertions, assertion)
	default:
		return fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, language, tc.Name)
	}
	return nil
}

func extractText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func extractCodeBlockContent(codeBlock *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := codeBlock.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

// lineOf returns the 1-based line of node's first line of content.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte("\n")) + 1
}
