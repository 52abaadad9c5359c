package schema

import "github.com/covesa/iotea-go-sdk/pkg/model"

// And combines rules with conjunctive semantics. A single rule is returned
// unwrapped rather than nested inside a trivial "and" envelope.
func And(rules ...*model.RuleNode) *model.RuleNode {
	return combine("and", rules)
}

// Or combines rules with disjunctive semantics. A single rule is returned
// unwrapped rather than nested inside a trivial "or" envelope.
func Or(rules ...*model.RuleNode) *model.RuleNode {
	return combine("or", rules)
}

func combine(kind string, rules []*model.RuleNode) *model.RuleNode {
	filtered := make([]*model.RuleNode, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &model.RuleNode{Combinator: kind, Children: filtered}
}

// Wrap ensures n is a combinator node of the given kind, wrapping a bare
// leaf in a single-child combinator if necessary. A nil n passes through.
func Wrap(n *model.RuleNode, kind string) *model.RuleNode {
	if n == nil || n.IsCombinator() {
		return n
	}
	return &model.RuleNode{Combinator: kind, Children: []*model.RuleNode{n}}
}

// ExcludeOn appends the given features to n's exclusion list and returns n.
// It is a no-op on a nil or non-combinator node.
func ExcludeOn(n *model.RuleNode, features ...string) *model.RuleNode {
	if n == nil || !n.IsCombinator() {
		return n
	}
	n.ExcludeOn = append(n.ExcludeOn, features...)
	return n
}

// AddChild appends a child rule to an existing combinator and returns the
// combinator. Panics if n is not a combinator — callers are expected to
// build combinators with And/Or first.
func AddChild(n *model.RuleNode, child *model.RuleNode) *model.RuleNode {
	if child == nil {
		return n
	}
	if n == nil {
		return child
	}
	if !n.IsCombinator() {
		panic("schema: AddChild requires a combinator node")
	}
	n.Children = append(n.Children, child)
	return n
}

// AssembleTalentRule implements the talent-schema assembly rule from the
// schema design: given a talent's user-declared trigger rule T and its
// auto-generated callee rule C,
//
//   - neither present returns nil (Talent.GetRules passes that nil through
//     unchanged),
//   - only T → T, wrapped in "or" if it is a bare leaf,
//   - only C → C,
//   - both → C with T (wrapped in "or") appended as a child, excluded on
//     every callee's output feature. C must then be a combinator node, as
//     AddChild panics on a bare leaf.
func AssembleTalentRule(trigger, callee *model.RuleNode, calleeOutFeatures []string) *model.RuleNode {
	switch {
	case trigger == nil && callee == nil:
		return nil
	case callee == nil:
		return Wrap(trigger, "or")
	case trigger == nil:
		return callee
	default:
		wrapped := Wrap(trigger, "or")
		ExcludeOn(wrapped, calleeOutFeatures...)
		return AddChild(callee, wrapped)
	}
}
