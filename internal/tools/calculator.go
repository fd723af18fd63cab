// internal/tools/calculator.go
package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// CalculatorTool evaluates arithmetic expressions. The grammar covers the
// operators advertised in the description (+, -, *, /, **, %), parentheses,
// and a small set of functions (abs, min, max, round, pow, sum). Nothing is
// ever eval'd; the expression is parsed by hand.
type CalculatorTool struct {
	logger *zap.Logger
}

// NewCalculatorTool creates the calculator.
func NewCalculatorTool(logger *zap.Logger) *CalculatorTool {
	return &CalculatorTool{logger: logger.Named("tools.calculator")}
}

func (t *CalculatorTool) Name() string { return "calculator" }

func (t *CalculatorTool) Description() string {
	return "Perform mathematical calculations. Supports basic arithmetic operations: +, -, *, /, **, %. Returns the result as a number."
}

func (t *CalculatorTool) Category() Category { return CategoryCalculation }

func (t *CalculatorTool) Params() map[string]Param {
	return map[string]Param{
		"expression": {
			Type:        "string",
			Description: "Mathematical expression to evaluate (e.g., '2 + 2', '10 * 5')",
			Required:    true,
		},
	}
}

// Execute parses and evaluates the expression.
func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	expression := argString(args, "expression", "")
	t.logger.Info("Executing calculator tool", zap.String("expression", expression))

	result, err := evalExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("Failed to calculate: %v", err)
	}
	return map[string]any{"result": result, "expression": expression}, nil
}

// -- Expression Evaluation --

// evalExpression evaluates an arithmetic expression string to a float64.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	p.next()
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp      // + - * / %
	tokPower   // **
	tokLParen  // (
	tokRParen  // )
	tokComma   // ,
	tokInvalid // anything else
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// exprParser is a recursive descent parser with precedence, lowest first:
// addition, multiplication, unary sign, exponentiation (right-associative,
// binding tighter than unary minus so -2**2 evaluates to -4).
type exprParser struct {
	input string
	pos   int
	tok   token
}

func (p *exprParser) next() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.input) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	c := p.input[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
			p.pos++
		}
		p.tok = token{kind: tokNumber, text: p.input[start:p.pos], pos: start}
	case unicode.IsLetter(rune(c)) || c == '_':
		for p.pos < len(p.input) && (unicode.IsLetter(rune(p.input[p.pos])) || unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '_') {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.input[start:p.pos], pos: start}
	case c == '*':
		if p.pos+1 < len(p.input) && p.input[p.pos+1] == '*' {
			p.pos += 2
			p.tok = token{kind: tokPower, text: "**", pos: start}
			return
		}
		p.pos++
		p.tok = token{kind: tokOp, text: "*", pos: start}
	case c == '+' || c == '-' || c == '/' || c == '%':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case c == ',':
		p.pos++
		p.tok = token{kind: tokComma, text: ",", pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokInvalid, text: string(c), pos: start}
	}
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case "%":
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if neg {
			return -value, nil
		}
		return value, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.tok.kind == tokPower {
		p.next()
		// Right-associative; the exponent may itself be signed.
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	switch p.tok.kind {
	case tokNumber:
		value, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", p.tok.text)
		}
		p.next()
		return value, nil

	case tokIdent:
		name := strings.ToLower(p.tok.text)
		p.next()
		if p.tok.kind != tokLParen {
			return 0, fmt.Errorf("expected '(' after function %q", name)
		}
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("expected ')' to close call to %q", name)
		}
		p.next()
		return applyFunc(name, args)

	case tokLParen:
		p.next()
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, fmt.Errorf("expected ')'")
		}
		p.next()
		return value, nil

	case tokEOF:
		return 0, fmt.Errorf("unexpected end of expression")

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", p.tok.text, p.tok.pos)
	}
}

func (p *exprParser) parseArgs() ([]float64, error) {
	var args []float64
	if p.tok.kind == tokRParen {
		return args, nil
	}
	for {
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, value)
		if p.tok.kind != tokComma {
			return args, nil
		}
		p.next()
	}
}

// applyFunc evaluates the allowed functions.
func applyFunc(name string, args []float64) (float64, error) {
	atLeastOne := func() error {
		if len(args) == 0 {
			return fmt.Errorf("%s() requires at least one argument", name)
		}
		return nil
	}

	switch name {
	case "abs":
		if len(args) != 1 {
			return 0, fmt.Errorf("abs() takes exactly one argument")
		}
		return math.Abs(args[0]), nil
	case "min":
		if err := atLeastOne(); err != nil {
			return 0, err
		}
		out := args[0]
		for _, a := range args[1:] {
			out = math.Min(out, a)
		}
		return out, nil
	case "max":
		if err := atLeastOne(); err != nil {
			return 0, err
		}
		out := args[0]
		for _, a := range args[1:] {
			out = math.Max(out, a)
		}
		return out, nil
	case "sum":
		out := 0.0
		for _, a := range args {
			out += a
		}
		return out, nil
	case "round":
		switch len(args) {
		case 1:
			return math.Round(args[0]), nil
		case 2:
			shift := math.Pow(10, args[1])
			return math.Round(args[0]*shift) / shift, nil
		default:
			return 0, fmt.Errorf("round() takes one or two arguments")
		}
	case "pow":
		if len(args) != 2 {
			return 0, fmt.Errorf("pow() takes exactly two arguments")
		}
		return math.Pow(args[0], args[1]), nil
	default:
		return 0, fmt.Errorf("unknown function %q", name)
	}
}
