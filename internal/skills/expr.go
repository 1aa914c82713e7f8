package skills

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var errBadExpression = errors.New("invalid expression")

const (
	maxExpressionLen = 1000
	maxNesting       = 200
)

var wordOperators = []struct{ from, to string }{
	{"plus", "+"},
	{"minus", "-"},
	{"times", "*"},
	{"multiplied by", "*"},
	{"divided by", "/"},
	{"to the power of", "**"},
	{"squared", "**2"},
	{"cubed", "**3"},
}

var leadInRe = regexp.MustCompile(`^(what is|what's|calculate|compute)\s+`)

// normalizeExpression lower-cases s, turns operator words into symbols and
// drops a leading "what is"/"calculate"/"compute" and trailing ?/. marks.
func normalizeExpression(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, w := range wordOperators {
		s = strings.ReplaceAll(s, w.from, w.to)
	}
	s = leadInRe.ReplaceAllString(s, "")
	return strings.TrimRight(strings.TrimSpace(s), "?.! ")
}

// Evaluate computes an arithmetic expression: numbers, + - * / **,
// parentheses, unary signs and a fixed set of functions and constants.
// Results are rounded to 10 decimals.
func Evaluate(expression string) (float64, error) {
	if len(expression) > maxExpressionLen {
		return 0, fmt.Errorf("%w: longer than %d characters", errBadExpression, maxExpressionLen)
	}
	toks, err := lex(normalizeExpression(expression))
	if err != nil {
		return 0, err
	}
	if len(toks) == 0 {
		return 0, fmt.Errorf("%w: empty", errBadExpression)
	}
	p := &parser{toks: toks}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("%w: unexpected %q", errBadExpression, p.toks[p.pos].text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is not finite", errBadExpression)
	}
	return round10(v), nil
}

func round10(v float64) float64 {
	if math.Abs(v) >= 1e15 {
		return v
	}
	return math.Round(v*1e10) / 1e10
}

// FormatNumber prints integral values without a fractional part.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
}

func lex(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			// scientific notation only when digits follow the exponent marker
			if j < len(rs) && rs[j] == 'e' {
				k := j + 1
				if k < len(rs) && (rs[k] == '+' || rs[k] == '-') {
					k++
				}
				if k < len(rs) && unicode.IsDigit(rs[k]) {
					for k < len(rs) && unicode.IsDigit(rs[k]) {
						k++
					}
					j = k
				}
			}
			text := string(rs[i:j])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", errBadExpression, text)
			}
			out = append(out, token{kind: tokNum, text: text, num: v})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(rs) && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j]) || rs[j] == '_') {
				j++
			}
			out = append(out, token{kind: tokIdent, text: string(rs[i:j])})
			i = j
		case r == '*' && i+1 < len(rs) && rs[i+1] == '*':
			out = append(out, token{kind: tokOp, text: "**"})
			i += 2
		case r == '+' || r == '-' || r == '*' || r == '/':
			out = append(out, token{kind: tokOp, text: string(r)})
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen, text: ")"})
			i++
		case r == ',':
			out = append(out, token{kind: tokComma, text: ","})
			i++
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", errBadExpression, r)
		}
	}
	return out, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			p.pos++
			return op, true
		}
	}
	return "", false
}

func (p *parser) accept(kind tokKind) bool {
	t, ok := p.peek()
	if ok && t.kind == kind {
		p.pos++
		return true
	}
	return false
}

// expr := term (('+'|'-') term)*
func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return v, nil
		}
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

// term := unary (('*'|'/') unary)*
func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return v, nil
		}
		rhs, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			v *= rhs
			continue
		}
		if rhs == 0 {
			return 0, fmt.Errorf("%w: division by zero", errBadExpression)
		}
		v /= rhs
	}
}

// unary := ('+'|'-') unary | power
// Every recursive path of the grammar passes through unary, so nesting is
// bounded here.
func (p *parser) unary() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNesting {
		return 0, fmt.Errorf("%w: nested deeper than %d", errBadExpression, maxNesting)
	}
	if op, ok := p.acceptOp("+", "-"); ok {
		v, err := p.unary()
		if err != nil {
			return 0, err
		}
		if op == "-" {
			return -v, nil
		}
		return v, nil
	}
	return p.power()
}

// power := primary ['**' unary]
func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if _, ok := p.acceptOp("**"); !ok {
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

// primary := number | ident | ident '(' args ')' | '(' expr ')'
func (p *parser) primary() (float64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end", errBadExpression)
	}
	switch t.kind {
	case tokNum:
		p.pos++
		return t.num, nil
	case tokLParen:
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if !p.accept(tokRParen) {
			return 0, fmt.Errorf("%w: missing )", errBadExpression)
		}
		return v, nil
	case tokIdent:
		p.pos++
		if p.accept(tokLParen) {
			args, err := p.args()
			if err != nil {
				return 0, err
			}
			return call(t.text, args)
		}
		if c, ok := constants[t.text]; ok {
			return c, nil
		}
		return 0, fmt.Errorf("%w: unknown name %q", errBadExpression, t.text)
	}
	return 0, fmt.Errorf("%w: unexpected %q", errBadExpression, t.text)
}

func (p *parser) args() ([]float64, error) {
	var args []float64
	if p.accept(tokRParen) {
		return args, nil
	}
	for {
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.accept(tokComma) {
			continue
		}
		if p.accept(tokRParen) {
			return args, nil
		}
		return nil, fmt.Errorf("%w: expected , or )", errBadExpression)
	}
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

type function struct {
	min, max int // max < 0: variadic
	fn       func(args []float64) (float64, error)
}

func unaryFn(f func(float64) float64) function {
	return function{1, 1, func(a []float64) (float64, error) { return f(a[0]), nil }}
}

var functions = map[string]function{
	"abs": unaryFn(math.Abs),
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.RoundToEven(a[0]), nil
		}
		scale := math.Pow(10, math.Trunc(a[1]))
		return math.RoundToEven(a[0]*scale) / scale, nil
	}},
	"min": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {1, -1, func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
	"sum": {0, -1, func(a []float64) (float64, error) {
		var s float64
		for _, v := range a {
			s += v
		}
		return s, nil
	}},
	"pow": {2, 2, func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil }},
	"sqrt": {1, 1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, fmt.Errorf("%w: sqrt of negative number", errBadExpression)
		}
		return math.Sqrt(a[0]), nil
	}},
	"sin": unaryFn(math.Sin),
	"cos": unaryFn(math.Cos),
	"tan": unaryFn(math.Tan),
	"log": {1, 2, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, fmt.Errorf("%w: log of non-positive number", errBadExpression)
		}
		if len(a) == 1 {
			return math.Log(a[0]), nil
		}
		if a[1] <= 0 || a[1] == 1 {
			return 0, fmt.Errorf("%w: bad log base", errBadExpression)
		}
		return math.Log(a[0]) / math.Log(a[1]), nil
	}},
	"log10": {1, 1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, fmt.Errorf("%w: log of non-positive number", errBadExpression)
		}
		return math.Log10(a[0]), nil
	}},
	"exp": unaryFn(math.Exp),
}

func call(name string, args []float64) (float64, error) {
	f, ok := functions[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown function %q", errBadExpression, name)
	}
	if len(args) < f.min || (f.max >= 0 && len(args) > f.max) {
		return 0, fmt.Errorf("%w: %s takes %d..%d arguments, got %d", errBadExpression, name, f.min, f.max, len(args))
	}
	return f.fn(args)
}
