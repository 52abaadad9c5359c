package model

import "encoding/json"

// ConstraintOp is the wire-level operator tag for a leaf constraint.
type ConstraintOp int

const (
	// OpSchema constraints express their predicate as a JSON Schema fragment.
	OpSchema ConstraintOp = 0
	// OpChange constraints fire whenever the feature changes, regardless of value.
	OpChange ConstraintOp = 1
	// OpNelson constraints select one of the eight Nelson control-chart rules.
	OpNelson ConstraintOp = 2
)

// NelsonRule enumerates the Nelson control-chart rule selectors (0..7).
type NelsonRule int

const (
	NelsonOut1Se NelsonRule = iota
	NelsonOut2Se
	NelsonOut3Se
	NelsonBias
	NelsonTrend
	NelsonAlter
	NelsonLowDev
	NelsonHighDev
)

// Constraint is a single leaf predicate over a feature. It serializes to
// the flat wire shape shared by every constraint family; which fields are
// meaningful depends on Op (see package internal/schema for the
// constructors that populate Value correctly per family).
type Constraint struct {
	Feature               string          `json:"feature"`
	Op                    ConstraintOp    `json:"op"`
	TypeSelector          string          `json:"typeSelector"`
	ValueType             string          `json:"valueType"`
	Path                  string          `json:"path"`
	InstanceIDFilter      string          `json:"instanceIdFilter"`
	LimitFeatureSelection bool            `json:"limitFeatureSelection"`
	Value                 json.RawMessage `json:"value"`
}

// RuleNode is either a leaf Constraint or an `and`/`or` combinator over
// child rules. Exactly one of Leaf or Children should be set —
// a node with Children is a combinator, a node without is a leaf.
type RuleNode struct {
	// Combinator is "and" or "or" when this node has Children; empty for leaves.
	Combinator string
	Children   []*RuleNode
	ExcludeOn  []string

	// Leaf fields, valid only when Combinator == "".
	Leaf *Constraint
}

// IsCombinator reports whether n is an and/or node rather than a leaf.
func (n *RuleNode) IsCombinator() bool { return n != nil && n.Combinator != "" }

// wireRule is the JSON shape of a RuleNode on the wire.
type wireRule struct {
	Type      string          `json:"type,omitempty"`
	Rules     []*wireRule     `json:"rules,omitempty"`
	ExcludeOn []string        `json:"excludeOn,omitempty"`
	Feature   string          `json:"feature,omitempty"`
	Op        *ConstraintOp   `json:"op,omitempty"`
	TypeSel   string          `json:"typeSelector,omitempty"`
	ValueType string          `json:"valueType,omitempty"`
	Path      string          `json:"path,omitempty"`
	InstFlt   string          `json:"instanceIdFilter,omitempty"`
	LimitSel  bool            `json:"limitFeatureSelection,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON renders a RuleNode to its wire form: a leaf constraint's
// fields spliced directly into the object, or a combinator envelope
// `{type, rules, excludeOn}`.
func (n *RuleNode) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	if n.IsCombinator() {
		w := wireRule{
			Type:      n.Combinator,
			Rules:     make([]*wireRule, 0, len(n.Children)),
			ExcludeOn: n.ExcludeOn,
		}
		for _, c := range n.Children {
			cw, err := c.toWire()
			if err != nil {
				return nil, err
			}
			w.Rules = append(w.Rules, cw)
		}
		return json.Marshal(w)
	}
	w, err := n.toWire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

func (n *RuleNode) toWire() (*wireRule, error) {
	if n.IsCombinator() {
		w := &wireRule{Type: n.Combinator, ExcludeOn: n.ExcludeOn}
		for _, c := range n.Children {
			cw, err := c.toWire()
			if err != nil {
				return nil, err
			}
			w.Rules = append(w.Rules, cw)
		}
		return w, nil
	}
	l := n.Leaf
	op := l.Op
	return &wireRule{
		Feature:   l.Feature,
		Op:        &op,
		TypeSel:   l.TypeSelector,
		ValueType: l.ValueType,
		Path:      l.Path,
		InstFlt:   l.InstanceIDFilter,
		LimitSel:  l.LimitFeatureSelection,
		Value:     l.Value,
	}, nil
}

// UnmarshalJSON parses a RuleNode from either wire shape.
func (n *RuleNode) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type == "and" || w.Type == "or" {
		n.Combinator = w.Type
		n.ExcludeOn = w.ExcludeOn
		n.Children = make([]*RuleNode, 0, len(w.Rules))
		for _, r := range w.Rules {
			raw, err := json.Marshal(r)
			if err != nil {
				return err
			}
			child := &RuleNode{}
			if err := child.UnmarshalJSON(raw); err != nil {
				return err
			}
			n.Children = append(n.Children, child)
		}
		return nil
	}
	op := OpSchema
	if w.Op != nil {
		op = *w.Op
	}
	n.Leaf = &Constraint{
		Feature:               w.Feature,
		Op:                    op,
		TypeSelector:          w.TypeSel,
		ValueType:             w.ValueType,
		Path:                  w.Path,
		InstanceIDFilter:      w.InstFlt,
		LimitFeatureSelection: w.LimitSel,
		Value:                 w.Value,
	}
	return nil
}

// TalentSchema is the discovery document a talent publishes describing its
// outputs, options, and the rule tree the platform should trigger it on.
type TalentSchema struct {
	ID             string                 `json:"id"`
	Outputs        map[string]OutputSpec  `json:"outputs"`
	SkipCycleCheck []string               `json:"skipCycleCheckFor,omitempty"`
	Rules          *RuleNode              `json:"-"`
}

// OutputSpec describes one output feature a talent may produce, including
// its JSON-Schema metadata (encoding/json is used throughout this package
// because the wire format needs byte-for-byte control over the serialized
// shape, including the deliberate "minumum" misspelling emitted by
// internal/schema's GreaterThanOrEqualTo — a
// general-purpose JSON-Schema library would normalize that away).
type OutputSpec struct {
	Description string          `json:"description,omitempty"`
	Encoding    json.RawMessage `json:"encoding,omitempty"`
}

// MarshalJSON renders the schema including the rule tree under "config.rules"
// to match the discovery wire form used by the platform.
func (s TalentSchema) MarshalJSON() ([]byte, error) {
	type config struct {
		Rules *RuleNode `json:"rules"`
	}
	type wire struct {
		ID             string                `json:"id"`
		Outputs        map[string]OutputSpec `json:"outputs"`
		SkipCycleCheck []string              `json:"skipCycleCheckFor,omitempty"`
		Config         config                `json:"config"`
	}
	return json.Marshal(wire{
		ID:             s.ID,
		Outputs:        s.Outputs,
		SkipCycleCheck: s.SkipCycleCheck,
		Config:         config{Rules: s.Rules},
	})
}
