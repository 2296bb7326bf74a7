// Package policy evaluates user-defined disposition rules over comparison
// results, deciding what happens to a scored candidate work before it
// reaches the modification ledger.
package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Disposition actions a rule may take on a scored candidate.
const (
	ActionFile    = "file"    // queue the candidate for review
	ActionDiscard = "discard" // drop it without tracking
	ActionHold    = "hold"    // track it, but no ledger proposal until reviewed
)

// DynamicRule is a user-defined disposition rule (e.g. from YAML).
type DynamicRule struct {
	ID        string `json:"id" yaml:"id"`
	Condition string `json:"condition" yaml:"condition"` // CEL: "score >= 5 && confidence != 'none'"
	Action    string `json:"action" yaml:"action"`
}

// EvaluationContext is the variable surface exposed to rules.
type EvaluationContext struct {
	WorkID     string
	Score      float64
	Confidence string
	Notes      []string
	Source     string
}

// CELEngine compiles and executes disposition rules.
type CELEngine struct {
	env      *cel.Env
	rules    []DynamicRule
	programs map[string]cel.Program
}

// NewCELEngine initializes the CEL environment with the supported
// variable declarations.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("work_id", decls.String),
			decls.NewVar("score", decls.Double),
			decls.NewVar("confidence", decls.String),
			decls.NewVar("notes", decls.NewListType(decls.String)),
			decls.NewVar("source", decls.String),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	return &CELEngine{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile compiles a list of rules into executable programs.
func (e *CELEngine) Compile(rules []DynamicRule) error {
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("rule %s compilation error: %w", r.ID, issues.Err())
		}

		prg, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("rule %s program creation error: %w", r.ID, err)
		}

		e.programs[r.ID] = prg
		e.rules = append(e.rules, r)
	}
	return nil
}

// Evaluate runs every compiled rule and returns the matched ones in
// compile order. Rules that fail at runtime are logged and skipped.
func (e *CELEngine) Evaluate(ctx context.Context, data EvaluationContext) ([]DynamicRule, error) {
	vars := map[string]interface{}{
		"work_id":    data.WorkID,
		"score":      data.Score,
		"confidence": data.Confidence,
		"notes":      data.Notes,
		"source":     data.Source,
	}

	var matches []DynamicRule
	for _, r := range e.rules {
		prg, ok := e.programs[r.ID]
		if !ok {
			continue
		}
		out, _, err := prg.Eval(vars)
		if err != nil {
			slog.Error("Rule evaluation failed", "rule_id", r.ID, "error", err)
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			matches = append(matches, r)
		}
	}

	return matches, nil
}

// Disposition resolves the matched rules to a single action. The first
// match wins; with no rules matched the candidate is filed for review.
func Disposition(matches []DynamicRule) string {
	if len(matches) == 0 {
		return ActionFile
	}
	switch matches[0].Action {
	case ActionFile, ActionDiscard, ActionHold:
		return matches[0].Action
	default:
		return ActionFile
	}
}
