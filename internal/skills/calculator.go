package skills

import (
	"context"
	"regexp"
	"strings"

	"jarvis/internal/intent"
)

const NameCalculator = "calculator"

type CalculatorSkill struct{}

func NewCalculatorSkill() *CalculatorSkill { return &CalculatorSkill{} }

func (s *CalculatorSkill) Name() string     { return NameCalculator }
func (s *CalculatorSkill) Describe() string { return "Performs mathematical calculations" }

func (s *CalculatorSkill) IsEligible(in intent.Result) bool { return in.Has(intent.Calculate) }

var calcLeadIn = regexp.MustCompile(`(?i)^\s*(please\s+)?(what is|what's|calculate|compute)\s+`)

// ParametersFrom keeps the expression part of the request: "Calculate 25 * 4 + 10"
// becomes "25 * 4 + 10".
func (s *CalculatorSkill) ParametersFrom(text string, _ intent.Result) Params {
	expr := calcLeadIn.ReplaceAllString(text, "")
	expr = strings.TrimRight(strings.TrimSpace(expr), "?.! ")
	return Params{"expression": expr}
}

func (s *CalculatorSkill) Invoke(_ context.Context, p Params) Result {
	expr := strings.TrimSpace(p["expression"])
	if expr == "" {
		return fail(NameCalculator, "Expression is required")
	}
	v, err := Evaluate(expr)
	if err != nil {
		return fail(NameCalculator, "Could not evaluate expression")
	}
	return ok(NameCalculator,
		map[string]any{"expression": expr, "result": v},
		expr+" = "+FormatNumber(v))
}
