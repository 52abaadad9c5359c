package schema

import "github.com/covesa/iotea-go-sdk/pkg/model"

// FeaturesOf walks a rule tree and returns the set of feature names
// referenced by its leaves. The client uses this to decide, for each
// inbound event, which registered talents should see it — a direct
// stand-in for the platform's own server-side rule evaluation, which this
// SDK does not reimplement (see the client package docs).
func FeaturesOf(n *model.RuleNode) []string {
	seen := map[string]struct{}{}
	var walk func(*model.RuleNode)
	walk = func(n *model.RuleNode) {
		if n == nil {
			return
		}
		if n.IsCombinator() {
			for _, c := range n.Children {
				walk(c)
			}
			return
		}
		if n.Leaf != nil {
			seen[n.Leaf.Feature] = struct{}{}
		}
	}
	walk(n)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	return out
}
