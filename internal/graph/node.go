package graph

import (
	"fmt"

	"github.com/roach88/qgraph/internal/ir"
	"github.com/roach88/qgraph/internal/query"
)

// NodeID is the stable index of a node in the graph arena.
type NodeID int

// Node is one unit of work.
//
// This is a sealed interface - only types in this package implement it.
// Node variants:
//   - *Read, *Write: primitive queries
//   - *If, *Return: flow control driven by data from incoming edges
//   - *Diff: set difference of two identifier lists
//   - *Empty: structural anchor and expectation checkpoint
type Node interface {
	graphNode()
	fmt.Stringer
}

// Read executes a primitive read.
type Read struct {
	Query query.Read
}

// Write executes a primitive write.
type Write struct {
	Query query.Write
}

// If branches on the rows delivered by its incoming If edges. The Then
// branch runs when Data is non-empty.
type If struct {
	Data []ir.SelectionResult
}

// Return yields the rows delivered by its incoming Return edge without
// touching storage.
type Return struct {
	Data []ir.SelectionResult
}

// DiffDirection selects which side of a Diff is kept.
type DiffDirection int

const (
	// LeftToRight keeps the left rows missing from the right.
	LeftToRight DiffDirection = iota
	// RightToLeft keeps the right rows missing from the left.
	RightToLeft
)

func (d DiffDirection) String() string {
	if d == RightToLeft {
		return "RightToLeft"
	}
	return "LeftToRight"
}

// Diff computes a set difference between two identifier lists.
type Diff struct {
	Direction DiffDirection
	Left      []ir.SelectionResult
	Right     []ir.SelectionResult
}

// Result returns the difference in the node's direction.
func (d *Diff) Result() []ir.SelectionResult {
	if d.Direction == RightToLeft {
		return ir.Difference(d.Right, d.Left)
	}
	return ir.Difference(d.Left, d.Right)
}

// Empty does nothing.
type Empty struct{}

func (*Read) graphNode()   {}
func (*Write) graphNode()  {}
func (*If) graphNode()     {}
func (*Return) graphNode() {}
func (*Diff) graphNode()   {}
func (*Empty) graphNode()  {}

func (n *Read) String() string   { return fmt.Sprint(n.Query) }
func (n *Write) String() string  { return fmt.Sprint(n.Query) }
func (n *If) String() string     { return "If nonEmpty" }
func (n *Return) String() string { return "Return" }
func (n *Diff) String() string   { return "Diff" + n.Direction.String() }
func (n *Empty) String() string  { return "Empty" }

// Kind returns a short name for logs and spans.
func Kind(n Node) string {
	switch n.(type) {
	case *Read:
		return "read"
	case *Write:
		return "write"
	case *If:
		return "if"
	case *Return:
		return "return"
	case *Diff:
		return "diff"
	case *Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// ModelName returns the model a query node targets, or "".
func ModelName(n Node) string {
	switch v := n.(type) {
	case *Read:
		return v.Query.TargetModel().Name
	case *Write:
		return v.Query.TargetModel().Name
	default:
		return ""
	}
}
