package rewrite

import (
	"errors"
	"fmt"

	"github.com/yding10/openvino/pkg/graph"
	"github.com/yding10/openvino/pkg/pattern"
	"github.com/yding10/openvino/pkg/provenance"
)

// Engine errors
var (
	ErrInvalidRule = errors.New("invalid rule")
	ErrNoRules     = errors.New("no rules registered")
)

// Eligibility is consulted after a rule's template matches and before its
// transform runs. Returning false vetoes the rewrite for this occurrence
// only; it is not an error. Implementations must be side-effect-free with
// respect to the graph.
type Eligibility func(g *graph.Graph, b *pattern.Bindings) bool

// Transform performs a rule's rewrite. It may construct arbitrary new
// subgraphs before calling Replace, and it is the only caller of Replace on
// behalf of its rule. A nil report signals that no change occurred (the
// transform declined after closer inspection); a non-nil report marks the
// pass dirty.
type Transform func(g *graph.Graph, prov *provenance.Store, b *pattern.Bindings) (*Report, error)

// Rule binds a pattern template, an optional eligibility predicate, and a
// transform callback.
type Rule struct {
	Name      string
	Template  *pattern.Template
	Eligible  Eligibility // nil means always eligible
	Transform Transform
}

// Observer is notified of every replacement an engine pass performs, with
// the firing rule's name. Used for audit journaling.
type Observer func(rule string, rep *Report)

// Engine holds a fixed, registration-ordered set of rewrite rules and runs
// them over graphs in passes. Rules are registered at startup and never
// mutated during a pass.
type Engine struct {
	rules    []Rule
	observer Observer
}

// NewEngine creates an engine with the given rules, in order.
func NewEngine(rules ...Rule) (*Engine, error) {
	e := &Engine{}
	for _, r := range rules {
		if err := e.Register(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register appends a rule to the evaluation order.
func (e *Engine) Register(r Rule) error {
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidRule)
	}
	if r.Template == nil {
		return fmt.Errorf("%w: rule %q has no template", ErrInvalidRule, r.Name)
	}
	if r.Transform == nil {
		return fmt.Errorf("%w: rule %q has no transform", ErrInvalidRule, r.Name)
	}
	e.rules = append(e.rules, r)
	return nil
}

// RuleNames returns the registered rule names in evaluation order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

// SetObserver installs a callback invoked after every replacement with the
// firing rule's name. Pass nil to remove.
func (e *Engine) SetObserver(obs Observer) {
	e.observer = obs
}

// RunPass runs a single rewrite pass over g and reports whether any rule
// changed the graph.
//
// The node order is snapshot at pass start: live nodes, results first, so a
// node is visited only after all of its consumers. Nodes removed mid-pass
// are skipped when reached; nodes created mid-pass are only seen by later
// passes, which keeps a single pass bounded by the live node count at its
// start.
//
// For each visited node the rules are tried in registration order; the first
// rule whose template matches, whose eligibility predicate does not veto,
// and whose transform reports a change wins, and no further rules are tried
// for that node.
func (e *Engine) RunPass(g *graph.Graph, prov *provenance.Store) (bool, error) {
	if len(e.rules) == 0 {
		return false, ErrNoRules
	}

	order := g.TopologicalOrder()
	dirty := false
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if !g.Exists(id) {
			continue
		}
		for _, r := range e.rules {
			b, ok := pattern.Match(g, r.Template, id)
			if !ok {
				continue
			}
			if r.Eligible != nil && !r.Eligible(g, b) {
				continue
			}
			rep, err := r.Transform(g, prov, b)
			if err != nil {
				return dirty, fmt.Errorf("rule %q at %s: %w", r.Name, id, err)
			}
			if rep == nil || !rep.Changed() {
				continue
			}
			dirty = true
			if e.observer != nil {
				e.observer(r.Name, rep)
			}
			break
		}
	}
	return dirty, nil
}

// RunToFixpoint repeats RunPass until a pass makes no change or maxPasses is
// reached, and returns the number of passes run. Convergence is a caller
// policy: rules may be written to cycle, so the cap is what guarantees
// termination.
func (e *Engine) RunToFixpoint(g *graph.Graph, prov *provenance.Store, maxPasses int) (int, error) {
	passes := 0
	for passes < maxPasses {
		dirty, err := e.RunPass(g, prov)
		passes++
		if err != nil {
			return passes, err
		}
		if !dirty {
			break
		}
	}
	return passes, nil
}
