// Package simplify provides a stock library of algebraic rewrite rules for
// the pass engine: identity elimination, double-negation removal, and scalar
// constant folding.
//
// The rules sit outside the engine contractually, they only talk to the core
// through the eligibility predicate and the Replace primitive, and they
// double as the reference for how external optimization families plug in:
// structural shape in the template, numeric eligibility in the predicate,
// graph construction plus Replace in the transform.
//
// Operation kinds used here: "Add", "Mul", "Neg", "Const". A constant's
// payload is its scalar float64 value; non-scalar payloads make the numeric
// rules veto rather than fail.
package simplify

import (
	"github.com/yding10/openvino/pkg/graph"
	"github.com/yding10/openvino/pkg/pattern"
	"github.com/yding10/openvino/pkg/provenance"
	"github.com/yding10/openvino/pkg/rewrite"
)

// Operation kinds the stock rules recognize.
const (
	KindAdd   = "Add"
	KindMul   = "Mul"
	KindNeg   = "Neg"
	KindConst = "Const"
)

// Constant creates a scalar constant node.
func Constant(g *graph.Graph, value float64) (graph.NodeID, error) {
	return g.NewNodeWithPayload(KindConst, value, nil, 1)
}

// ScalarValue extracts the scalar payload of a constant node. The second
// return is false when the node is not a Const or its payload is not a
// scalar.
func ScalarValue(g *graph.Graph, id graph.NodeID) (float64, bool) {
	n, err := g.Node(id)
	if err != nil || n.Kind != KindConst {
		return 0, false
	}
	v, ok := n.Payload.(float64)
	return v, ok
}

// IsScalarConstant reports whether id is a Const node with a scalar payload.
// This is the eligibility shape numeric rule families use: structural match
// first, numeric veto second.
func IsScalarConstant(g *graph.Graph, id graph.NodeID) bool {
	_, ok := ScalarValue(g, id)
	return ok
}

// AddZero eliminates x + 0 and 0 + x, replacing the Add with the surviving
// operand.
func AddZero() rewrite.Rule {
	return identityRule("add-zero", KindAdd, 0)
}

// MulOne eliminates x * 1 and 1 * x.
func MulOne() rewrite.Rule {
	return identityRule("mul-one", KindMul, 1)
}

// identityRule builds the shared shape of AddZero and MulOne: a binary op
// where one operand is the scalar identity element for that op.
func identityRule(name, kind string, identity float64) rewrite.Rule {
	return rewrite.Rule{
		Name:     name,
		Template: pattern.Kind(kind, pattern.Any("lhs"), pattern.Any("rhs")),
		Eligible: func(g *graph.Graph, b *pattern.Bindings) bool {
			_, ok := survivor(g, b, identity)
			return ok
		},
		Transform: func(g *graph.Graph, prov *provenance.Store, b *pattern.Bindings) (*rewrite.Report, error) {
			keep, ok := survivor(g, b, identity)
			if !ok {
				return nil, nil
			}
			return rewrite.Replace(g, prov, b.Root(), keep)
		},
	}
}

// survivor returns the operand that remains when the other operand is the
// identity constant.
func survivor(g *graph.Graph, b *pattern.Bindings, identity float64) (graph.NodeID, bool) {
	lhs := b.MustNode("lhs")
	rhs := b.MustNode("rhs")
	if v, ok := ScalarValue(g, rhs); ok && v == identity {
		return lhs, true
	}
	if v, ok := ScalarValue(g, lhs); ok && v == identity {
		return rhs, true
	}
	return "", false
}

// DoubleNeg removes Neg(Neg(x)), replacing the outer Neg with x.
func DoubleNeg() rewrite.Rule {
	return rewrite.Rule{
		Name: "double-neg",
		Template: pattern.Kind(KindNeg,
			pattern.KindAs("inner", KindNeg, pattern.Any("x"))),
		Transform: func(g *graph.Graph, prov *provenance.Store, b *pattern.Bindings) (*rewrite.Report, error) {
			return rewrite.Replace(g, prov, b.Root(), b.MustNode("x"))
		},
	}
}

// FoldConstants folds Add and Mul over two scalar constants into a single
// constant node. Non-scalar constants veto.
func FoldConstants() rewrite.Rule {
	return rewrite.Rule{
		Name: "fold-constants",
		Template: pattern.Pred("op", func(n *graph.Node) bool {
			return n.Kind == KindAdd || n.Kind == KindMul
		},
			pattern.KindAs("a", KindConst),
			pattern.KindAs("b", KindConst)),
		Eligible: func(g *graph.Graph, b *pattern.Bindings) bool {
			return IsScalarConstant(g, b.MustNode("a")) && IsScalarConstant(g, b.MustNode("b"))
		},
		Transform: func(g *graph.Graph, prov *provenance.Store, b *pattern.Bindings) (*rewrite.Report, error) {
			a, _ := ScalarValue(g, b.MustNode("a"))
			bv, _ := ScalarValue(g, b.MustNode("b"))
			var v float64
			switch g.Kind(b.Root()) {
			case KindAdd:
				v = a + bv
			case KindMul:
				v = a * bv
			default:
				return nil, nil
			}
			folded, err := Constant(g, v)
			if err != nil {
				return nil, err
			}
			return rewrite.Replace(g, prov, b.Root(), folded)
		},
	}
}

// Rules returns the full stock rule set in its intended registration order:
// folding first so identities see already-folded constants.
func Rules() []rewrite.Rule {
	return []rewrite.Rule{
		FoldConstants(),
		AddZero(),
		MulOne(),
		DoubleNeg(),
	}
}

// RulesNamed returns the stock rules filtered and ordered by name. Unknown
// names are ignored; an empty selection returns the full set.
func RulesNamed(names ...string) []rewrite.Rule {
	if len(names) == 0 {
		return Rules()
	}
	byName := make(map[string]rewrite.Rule)
	for _, r := range Rules() {
		byName[r.Name] = r
	}
	out := make([]rewrite.Rule, 0, len(names))
	for _, name := range names {
		if r, ok := byName[name]; ok {
			out = append(out, r)
		}
	}
	return out
}
