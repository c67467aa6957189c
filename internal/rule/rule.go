// Package rule evaluates value_map and exclude_index_map expressions.
//
// A condition is a template in which every %value is replaced by the observed
// value's text; the result is compiled as an expr-lang expression with no
// variables and no builtin functions, so evaluation has no side effects and
// depends only on the substituted text. Comparison operators, arithmetic,
// and/or/not, in, contains, startsWith, endsWith and matches are available.
package rule

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/jandubois/snmp-probe/internal/probe"
)

// Placeholder is replaced with the observed value in every template.
const Placeholder = "%value"

// ErrRule marks a condition or severity expression that cannot be evaluated.
var ErrRule = errors.New("invalid rule")

// Render substitutes value for every placeholder in template.
func Render(template, value string) string {
	return strings.ReplaceAll(template, Placeholder, value)
}

// operand returns value as it is substituted into an expression. Unsigned
// integers beyond int64, such as large Counter64 readings, are written as
// float literals because expr-lang only parses int64 integer literals.
func operand(value string) string {
	u, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil || u <= math.MaxInt64 {
		return value
	}
	return strconv.FormatUint(u, 10) + ".0"
}

// Match renders condition with value and evaluates it as a boolean expression.
func Match(condition, value string) (bool, error) {
	code := Render(condition, operand(value))
	out, err := run(code, expr.AsBool())
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is not a boolean expression", ErrRule, code)
	}
	return b, nil
}

// Severity renders template with value and evaluates it to a severity.
func Severity(template, value string) (probe.Severity, error) {
	code := Render(template, operand(value))
	out, err := run(code, expr.AsInt64())
	if err != nil {
		return probe.SeverityUnknown, err
	}
	n, ok := out.(int64)
	if !ok {
		return probe.SeverityUnknown, fmt.Errorf("%w: severity %q is not an integer", ErrRule, code)
	}
	s, err := probe.ParseSeverity(n)
	if err != nil {
		return probe.SeverityUnknown, fmt.Errorf("%w: severity %q: %v", ErrRule, code, err)
	}
	return s, nil
}

func run(code string, result expr.Option) (any, error) {
	env := map[string]any{}
	program, err := compile(code, env, result)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrRule, code, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrRule, code, err)
	}
	return out, nil
}

func compile(code string, env map[string]any, result expr.Option) (*vm.Program, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	return expr.Compile(code, expr.Env(env), expr.DisableAllBuiltins(), result)
}
