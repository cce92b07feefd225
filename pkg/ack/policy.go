package ack

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"golang.org/x/text/unicode/norm"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// DefaultMinReasonLength is the minimum number of characters of a trimmed reason.
const DefaultMinReasonLength = 10

// DefaultReasonRule admits any reason of at least min_length characters.
const DefaultReasonRule = `size(reason) >= min_length`

// PolicyResult is the outcome of a reason check.
type PolicyResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ReasonPolicy is the client-side admission rule for a justification. It is
// advisory: the engine's rejection remains authoritative.
//
// The rule is a CEL expression over `reason` (trimmed, NFC-normalised),
// `actor_role` and `min_length`. The length floor is always enforced, even
// when a custom rule ignores it.
type ReasonPolicy struct {
	minLength int
	rule      string
	prg       cel.Program
}

// NewReasonPolicy compiles rule (DefaultReasonRule if empty).
func NewReasonPolicy(rule string, minLength int) (*ReasonPolicy, error) {
	if strings.TrimSpace(rule) == "" {
		rule = DefaultReasonRule
	}
	if minLength <= 0 {
		minLength = DefaultMinReasonLength
	}
	env, err := cel.NewEnv(
		cel.Variable("reason", cel.StringType),
		cel.Variable("actor_role", cel.StringType),
		cel.Variable("min_length", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, iss := env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("reason rule compile failed: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("reason rule must evaluate to bool, got %s", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("reason rule program failed: %w", err)
	}
	return &ReasonPolicy{minLength: minLength, rule: rule, prg: prg}, nil
}

// DefaultPolicy returns the plain length rule.
func DefaultPolicy() *ReasonPolicy {
	p, err := NewReasonPolicy("", DefaultMinReasonLength)
	if err != nil {
		panic(err)
	}
	return p
}

// MinLength is the enforced length floor.
func (p *ReasonPolicy) MinLength() int { return p.minLength }

// Normalize trims and NFC-normalises a reason for counting.
func Normalize(reason string) string {
	return norm.NFC.String(strings.TrimSpace(reason))
}

// Check evaluates reason for the given role.
func (p *ReasonPolicy) Check(reason string, role contracts.ActorRole) PolicyResult {
	normalized := Normalize(reason)
	n := len([]rune(normalized))
	if n < p.minLength {
		return PolicyResult{Reason: fmt.Sprintf("reason has %d characters, minimum is %d", n, p.minLength)}
	}
	out, _, err := p.prg.Eval(map[string]any{
		"reason":     normalized,
		"actor_role": string(role),
		"min_length": int64(p.minLength),
	})
	if err != nil {
		return PolicyResult{Reason: fmt.Sprintf("reason rule error: %v", err)}
	}
	if ok, isBool := out.Value().(bool); !isBool || !ok {
		return PolicyResult{Reason: "reason rejected by rule " + p.rule}
	}
	return PolicyResult{Valid: true}
}
