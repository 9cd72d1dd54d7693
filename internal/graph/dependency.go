package graph

import (
	"fmt"
	"strings"
)

// DependencyKind classifies an edge.
type DependencyKind int

const (
	// ExecutionOrder only orders the target after the source.
	ExecutionOrder DependencyKind = iota
	// ProjectedData projects the source result and feeds it into a sink
	// of the target before it executes.
	ProjectedData
	// Then and Else connect an If node to the heads of its branches.
	Then
	Else
)

func (k DependencyKind) String() string {
	switch k {
	case ExecutionOrder:
		return "order"
	case ProjectedData:
		return "data"
	case Then:
		return "then"
	case Else:
		return "else"
	default:
		return fmt.Sprintf("DependencyKind(%d)", int(k))
	}
}

// SinkKind names where projected rows land on the target node.
type SinkKind int

const (
	// SinkWriteArgs assigns the row to Fields of a create or update
	// (the parent-ids injection).
	SinkWriteArgs SinkKind = iota
	// SinkSelector ANDs a filter matching the rows (renamed to Fields)
	// into the target's filter. With Relation set, the filter is wrapped
	// in a relation condition on that field.
	SinkSelector
	// SinkConnectParent and SinkConnectChildren fill a many-to-many
	// connect or disconnect.
	SinkConnectParent
	SinkConnectChildren
	// SinkIf feeds the condition data of an If node.
	SinkIf
	// SinkReturn feeds the data of a Return node.
	SinkReturn
	// SinkDiffLeft and SinkDiffRight feed a Diff node.
	SinkDiffLeft
	SinkDiffRight
	// SinkCursor feeds the ordering values of a cursor row into a list read.
	SinkCursor
	// SinkCheck only evaluates the edge expectation.
	SinkCheck
)

var sinkNames = map[SinkKind]string{
	SinkWriteArgs:       "args",
	SinkSelector:        "selector",
	SinkConnectParent:   "connectParent",
	SinkConnectChildren: "connectChildren",
	SinkIf:              "if",
	SinkReturn:          "return",
	SinkDiffLeft:        "diffLeft",
	SinkDiffRight:       "diffRight",
	SinkCursor:          "cursor",
	SinkCheck:           "check",
}

func (k SinkKind) String() string {
	if s, ok := sinkNames[k]; ok {
		return s
	}
	return fmt.Sprintf("SinkKind(%d)", int(k))
}

// Sink is the receiving end of a data edge.
type Sink struct {
	Kind     SinkKind
	Fields   []string
	Relation string

	// One requires exactly one row to arrive. Chaining several rows into
	// a single-valued target is rejected instead of silently truncated.
	One bool
}

// RuleKind is the row-count rule of an expectation.
type RuleKind int

const (
	RuleNonEmpty RuleKind = iota
	RuleEmpty
	RuleCount
)

// Rule constrains the number of projected rows.
type Rule struct {
	Kind  RuleKind
	Count int
}

// Holds reports whether n rows satisfy the rule.
func (r Rule) Holds(n int) bool {
	switch r.Kind {
	case RuleEmpty:
		return n == 0
	case RuleCount:
		return n == r.Count
	default:
		return n > 0
	}
}

func (r Rule) String() string {
	switch r.Kind {
	case RuleEmpty:
		return "empty"
	case RuleCount:
		return fmt.Sprintf("count=%d", r.Count)
	default:
		return "nonEmpty"
	}
}

// ViolationKind classifies a failed expectation.
type ViolationKind string

const (
	// RecordNotFound: a required record does not exist.
	RecordNotFound ViolationKind = "RecordNotFound"
	// RecordsNotConnected: the addressed child is not related to the parent.
	RecordsNotConnected ViolationKind = "RecordsNotConnected"
	// RelationViolation: the write would break a required relation.
	RelationViolation ViolationKind = "RelationViolation"
)

// Violation describes the domain error raised when an expectation fails.
type Violation struct {
	Kind      ViolationKind
	Model     string
	Relation  string
	Operation string
}

// Expectation is checked against the projected rows before the sink is
// applied.
type Expectation struct {
	Rule      Rule
	Violation Violation
}

// Dependency is the data carried by an edge. It holds no code: the
// interpreter applies it with a switch over Kind and Sink.Kind.
type Dependency struct {
	Kind DependencyKind

	// Projection names the source fields projected from the source
	// result, in sink order.
	Projection []string
	Sink       Sink
	Expect     *Expectation
}

// Order returns an execution-order dependency.
func Order() Dependency { return Dependency{Kind: ExecutionOrder} }

// ThenBranch returns the dependency of an If node's then edge.
func ThenBranch() Dependency { return Dependency{Kind: Then} }

// ElseBranch returns the dependency of an If node's else edge.
func ElseBranch() Dependency { return Dependency{Kind: Else} }

// Data returns a projected-data dependency.
func Data(projection []string, sink Sink) Dependency {
	return Dependency{Kind: ProjectedData, Projection: projection, Sink: sink}
}

// Expecting returns d with an expectation attached.
func (d Dependency) Expecting(rule Rule, v Violation) Dependency {
	d.Expect = &Expectation{Rule: rule, Violation: v}
	return d
}

// IsBranch reports whether d is a Then or Else edge.
func (d Dependency) IsBranch() bool {
	return d.Kind == Then || d.Kind == Else
}

func (d Dependency) String() string {
	var b strings.Builder
	b.WriteString(d.Kind.String())
	if d.Kind == ProjectedData {
		fmt.Fprintf(&b, " [%s] -> %s", strings.Join(d.Projection, ", "), d.Sink.Kind)
		if len(d.Sink.Fields) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(d.Sink.Fields, ", "))
		}
		if d.Sink.Relation != "" {
			fmt.Fprintf(&b, " via %s", d.Sink.Relation)
		}
		if d.Sink.One {
			b.WriteString(" one")
		}
	}
	if d.Expect != nil {
		fmt.Fprintf(&b, " expect %s else %s", d.Expect.Rule, d.Expect.Violation.Kind)
	}
	return b.String()
}
