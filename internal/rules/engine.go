package rules

import (
	"fmt"
	"runtime/debug"

	"github.com/raysh454/a11yscan/internal/dom"
	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
)

// Engine evaluates a fixed, ordered set of rules. It holds no per-page state
// and is safe for concurrent use.
type Engine struct {
	rules  []Rule
	logger logging.Logger
}

// NewEngine builds an engine over rules, or the Default set when none are given.
func NewEngine(logger logging.Logger, rules ...Rule) *Engine {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if len(rules) == 0 {
		rules = Default()
	}
	return &Engine{
		rules:  rules,
		logger: logger.With(logging.Field{Key: "component", Value: "rule-engine"}),
	}
}

// Rules lists the engine's rules in evaluation order.
func (e *Engine) Rules() []Info {
	out := make([]Info, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Info())
	}
	return out
}

// Evaluate runs every applicable rule against doc. A rule that errors or
// panics contributes a RuleError and no findings; the remaining rules still
// run.
func (e *Engine) Evaluate(doc *dom.Document, opts Options) ([]model.Finding, []model.RuleError) {
	if !opts.Level.Valid() {
		opts.Level = model.LevelAA
	}
	var (
		findings []model.Finding
		failures []model.RuleError
	)
	for _, r := range e.rules {
		info := r.Info()
		if !opts.Level.Includes(info.Level) {
			continue
		}
		fs, err := e.run(r, doc, opts)
		if err != nil {
			se := &model.ScanError{Kind: model.RuleEvaluationError, URL: doc.URL.String(), Rule: info.ID, Err: err}
			e.logger.Debug("rule failed",
				logging.Field{Key: "rule", Value: info.ID},
				logging.Field{Key: "url", Value: doc.URL.String()},
				logging.Err(se))
			failures = append(failures, model.RuleError{RuleID: info.ID, Message: err.Error()})
			continue
		}
		findings = append(findings, fs...)
	}
	return findings, failures
}

func (e *Engine) run(r Rule, doc *dom.Document, opts Options) (fs []model.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Debug("rule panicked", logging.Field{Key: "stack", Value: string(debug.Stack())})
			fs, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return r.Check(doc, opts)
}
