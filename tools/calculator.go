package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// CalculatorTool evaluates arithmetic. Input is either an expression such
// as "(2 + 3) * max(4, pi)" or the prefix form "op arg1 [arg2]" with ops
// add, sub, mul, div, pow and sqrt.
type CalculatorTool struct{}

func (c *CalculatorTool) Name() string { return "calculator" }
func (c *CalculatorTool) Description() string {
	return "Evaluate arithmetic expressions, e.g. '(2 + 3) * 4' or 'sqrt(16) + pow(2, 3)'. Constants: pi, e. Functions: abs, min, max, round, floor, ceil, pow, sqrt, log."
}

func (c *CalculatorTool) Schema() map[string]any { return InputSchema("arithmetic expression") }

var prefixOps = map[string]int{"add": 2, "sub": 2, "mul": 2, "div": 2, "pow": 2, "sqrt": 1}

func (c *CalculatorTool) Execute(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty expression")
	}
	parts := strings.Fields(input)
	if argc, ok := prefixOps[strings.ToLower(parts[0])]; ok && !strings.Contains(input, "(") {
		if len(parts) != argc+1 {
			return "", fmt.Errorf("%s requires %d argument(s)", parts[0], argc)
		}
		input = strings.ToLower(parts[0]) + "(" + strings.Join(parts[1:], ", ") + ")"
	}
	v, err := Evaluate(input)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Evaluate parses expr with the HCL expression grammar and evaluates it to
// a number.
func Evaluate(expr string) (float64, error) {
	parsed, diags := hclsyntax.ParseExpression([]byte(expr), "calculator", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return 0, fmt.Errorf("parse: %s", diags.Error())
	}
	val, diags := parsed.Value(calcContext)
	if diags.HasErrors() {
		return 0, fmt.Errorf("evaluate: %s", diags.Error())
	}
	if val.IsNull() || !val.IsKnown() || val.Type() != cty.Number {
		return 0, fmt.Errorf("expression is not a number")
	}
	f, _ := val.AsBigFloat().Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.New("division by zero")
	}
	return f, nil
}

var calcContext = &hcl.EvalContext{
	Variables: map[string]cty.Value{
		"pi": cty.NumberFloatVal(math.Pi),
		"e":  cty.NumberFloatVal(math.E),
	},
	Functions: map[string]function.Function{
		"abs":   stdlib.AbsoluteFunc,
		"min":   stdlib.MinFunc,
		"max":   stdlib.MaxFunc,
		"floor": stdlib.FloorFunc,
		"ceil":  stdlib.CeilFunc,
		"pow":   stdlib.PowFunc,
		"log":   stdlib.LogFunc,
		"add":   stdlib.AddFunc,
		"sub":   stdlib.SubtractFunc,
		"mul":   stdlib.MultiplyFunc,
		"div":   stdlib.DivideFunc,
		"round": unary(math.Round, nil),
		"sqrt": unary(math.Sqrt, func(f float64) error {
			if f < 0 {
				return errors.New("sqrt of negative")
			}
			return nil
		}),
	},
}

func unary(fn func(float64) float64, check func(float64) error) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{{Name: "num", Type: cty.Number}},
		Type:   function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			f, _ := args[0].AsBigFloat().Float64()
			if check != nil {
				if err := check(f); err != nil {
					return cty.NilVal, err
				}
			}
			return cty.NumberFloatVal(fn(f)), nil
		},
	})
}

// InputSchema is the JSON schema shared by tools that take one string.
func InputSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "string", "description": description},
		},
		"required": []string{"input"},
	}
}

var _ Tool = (*CalculatorTool)(nil)
