package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SyntaxError indicates a formula that could not be parsed as an
// arithmetic expression. It carries the offending formula so form
// authors can be shown exactly what failed.
type SyntaxError struct {
	Formula string
	Reason  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid formula %q: %s", e.Formula, e.Reason)
}

// Result is the outcome of evaluating a formula. Defaulted lists the
// placeholders that had no value and were substituted with zero, in the
// order they were encountered. Callers surface these to the form author
// as a warning; evaluation itself never fails on a missing value.
type Result struct {
	Value     float64
	Defaulted []string
}

// Evaluate substitutes {field_id} and {mapped.key} placeholders from vars
// and evaluates the resulting arithmetic expression. Supported syntax:
// + - * / % ^ operators, parentheses, unary minus, and decimal literals.
// Unresolved placeholders become 0 and are reported in Result.Defaulted.
// Evaluation is pure: identical inputs always yield identical results.
func Evaluate(formula string, vars map[string]float64) (Result, error) {
	if strings.TrimSpace(formula) == "" {
		return Result{Value: 0}, nil
	}

	p := &parser{formula: formula, vars: vars}
	tokens, err := p.tokenize()
	if err != nil {
		return Result{}, err
	}
	if len(tokens) == 0 {
		return Result{Value: 0, Defaulted: p.defaulted}, nil
	}

	p.tokens = tokens
	value, err := p.parseExpr()
	if err != nil {
		return Result{}, err
	}
	if p.pos != len(p.tokens) {
		return Result{}, p.syntaxErr("unexpected token %q", p.tokens[p.pos].text)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Result{}, p.syntaxErr("expression does not evaluate to a finite number")
	}

	return Result{Value: value, Defaulted: p.defaulted}, nil
}

// CheckSyntax reports whether the formula parses as an arithmetic
// expression. Placeholders are accepted without values, and
// value-dependent failures like division by zero are not flagged: those
// depend on the numbers a submission supplies and cannot be judged at
// design time.
func CheckSyntax(formula string) error {
	if strings.TrimSpace(formula) == "" {
		return nil
	}

	p := &parser{formula: formula, syntaxOnly: true}
	tokens, err := p.tokenize()
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	p.tokens = tokens
	if _, err := p.parseExpr(); err != nil {
		return err
	}
	if p.pos != len(p.tokens) {
		return p.syntaxErr("unexpected token %q", p.tokens[p.pos].text)
	}
	return nil
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOperator
	tokenLeftParen
	tokenRightParen
)

type token struct {
	kind  tokenKind
	text  string
	value float64
}

type parser struct {
	formula    string
	vars       map[string]float64
	tokens     []token
	pos        int
	defaulted  []string
	syntaxOnly bool
}

func (p *parser) syntaxErr(format string, args ...interface{}) error {
	return &SyntaxError{Formula: p.formula, Reason: fmt.Sprintf(format, args...)}
}

// tokenize scans the raw formula. Placeholders are resolved to numeric
// tokens during the scan, so no substituted text is ever re-parsed.
func (p *parser) tokenize() ([]token, error) {
	var tokens []token
	src := p.formula
	i := 0

	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, p.syntaxErr("unterminated placeholder")
			}
			name := src[i+1 : i+end]
			tokens = append(tokens, token{kind: tokenNumber, text: "{" + name + "}", value: p.resolve(name)})
			i += end + 1
		case c == '(':
			tokens = append(tokens, token{kind: tokenLeftParen, text: "("})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRightParen, text: ")"})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/' || c == '%' || c == '^':
			tokens = append(tokens, token{kind: tokenOperator, text: string(c)})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			value, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, p.syntaxErr("invalid number %q", src[i:j])
			}
			tokens = append(tokens, token{kind: tokenNumber, text: src[i:j], value: value})
			i = j
		default:
			return nil, p.syntaxErr("invalid character %q", string(c))
		}
	}

	return tokens, nil
}

// resolve looks up a placeholder value. A {mapped.key} reference also
// matches a bare "key" entry in vars. Anything still unresolved defaults
// to zero and is recorded for the caller.
func (p *parser) resolve(name string) float64 {
	if v, ok := p.vars[name]; ok {
		return v
	}
	if trimmed, ok := strings.CutPrefix(name, "mapped."); ok {
		if v, ok := p.vars[trimmed]; ok {
			return v
		}
	}
	for _, seen := range p.defaulted {
		if seen == name {
			return 0
		}
	}
	p.defaulted = append(p.defaulted, name)
	return 0
}

func (p *parser) peek() (token, bool) {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos], true
	}
	return token{}, false
}

// parseExpr handles + and - at the lowest precedence.
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokenOperator || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if tok.text == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * / and %.
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != tokenOperator || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		switch tok.text {
		case "*":
			left *= right
		case "/":
			if right == 0 {
				if !p.syntaxOnly {
					return 0, p.syntaxErr("division by zero")
				}
			} else {
				left /= right
			}
		case "%":
			if right == 0 {
				if !p.syntaxOnly {
					return 0, p.syntaxErr("modulo by zero")
				}
			} else {
				left = math.Mod(left, right)
			}
		}
	}
}

// parsePower handles ^, which is right-associative.
func (p *parser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	tok, ok := p.peek()
	if !ok || tok.kind != tokenOperator || tok.text != "^" {
		return base, nil
	}
	p.pos++
	exp, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) parseUnary() (float64, error) {
	tok, ok := p.peek()
	if ok && tok.kind == tokenOperator && tok.text == "-" {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -value, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (float64, error) {
	tok, ok := p.peek()
	if !ok {
		return 0, p.syntaxErr("unexpected end of expression")
	}
	switch tok.kind {
	case tokenNumber:
		p.pos++
		return tok.value, nil
	case tokenLeftParen:
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next.kind != tokenRightParen {
			return 0, p.syntaxErr("unbalanced parentheses")
		}
		p.pos++
		return value, nil
	default:
		return 0, p.syntaxErr("unexpected token %q", tok.text)
	}
}
