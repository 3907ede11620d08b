package status

import "fmt"

// Kind classifies a requested status change.
type Kind int

const (
	Invalid Kind = iota
	Valid
	Ignorable
	Administrative
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Ignorable:
		return "ignorable"
	case Administrative:
		return "administrative"
	default:
		return "invalid"
	}
}

type InvalidStateChangeError struct {
	From Status
	To   Status
}

func (e *InvalidStateChangeError) Error() string {
	return fmt.Sprintf("invalid state change from %s to %s", e.From, e.To)
}

// earlier lists the statuses that precede a status in the nominal lifecycle.
// An update moving back to one of them is stale and dropped.
var (
	pending = []Status{Creating, PendingClientAction, PendingAuthorize}
	open    = []Status{Creating, PendingClientAction, PendingAuthorize, Authorized, PendingCapture}
)

var validEdges = map[Status][]Status{
	Creating:            {PendingClientAction, PendingAuthorize, Authorized, PendingCapture, Successful, Rejected, Cancelled},
	PendingClientAction: {PendingAuthorize, Authorized, PendingCapture, Successful, Rejected, PendingCancel, Cancelled},
	PendingAuthorize:    {Authorized, PendingCapture, Successful, Rejected, PendingCancel, Cancelled},
	Authorized:          {PendingCapture, Successful, Rejected, PendingCancel, Cancelled},
	PendingCapture:      {Successful, Rejected, PendingCancel, Cancelled, ChargedBack},
	Successful:          {PendingCancel, Cancelled, Refunded, PartialRefund, ChargedBack, InMediation},
	PartialRefund:       {Refunded, PendingCancel, Cancelled, ChargedBack, InMediation},
	InMediation:         {Successful, Refunded, ChargedBack},
	PendingCancel:       {Cancelled, Refunded},
}

var ignorableEdges = map[Status][]Status{
	PendingClientAction: {Creating},
	PendingAuthorize:    {Creating, PendingClientAction},
	Authorized:          {Creating, PendingClientAction, PendingAuthorize},
	PendingCapture:      {Creating, PendingClientAction, PendingAuthorize, Authorized},
	Successful:          open,
	PartialRefund:       append(append([]Status{}, open...), Successful),
	InMediation:         open,
	PendingCancel:       open,
	Cancelled:           append(append([]Status{}, open...), PendingCancel),
	Rejected:            pending,
	Refunded:            append(append([]Status{}, open...), Successful, PartialRefund, PendingCancel, Cancelled),
	ChargedBack:         append(append([]Status{}, open...), Successful, InMediation, PartialRefund),
}

// administrativeEdges are only reachable through manual refund or chargeback operations.
var administrativeEdges = map[Status][]Status{
	Cancelled: {Refunded, ChargedBack},
	Refunded:  {ChargedBack},
}

var terminal = map[Status]bool{
	Refunded:    true,
	ChargedBack: true,
	Cancelled:   true,
	Rejected:    true,
}

// Graph is an immutable transition table.
type Graph struct {
	edges    map[Status]map[Status]Kind
	terminal map[Status]bool
}

func NewGraph() *Graph {
	g := &Graph{
		edges:    make(map[Status]map[Status]Kind, len(allStatuses)),
		terminal: terminal,
	}
	for _, s := range allStatuses {
		g.edges[s] = make(map[Status]Kind)
	}
	add := func(table map[Status][]Status, kind Kind) {
		for from, tos := range table {
			for _, to := range tos {
				g.edges[from][to] = kind
			}
		}
	}
	add(validEdges, Valid)
	add(ignorableEdges, Ignorable)
	add(administrativeEdges, Administrative)
	return g
}

func (g *Graph) kind(from, to Status) Kind {
	if from == to {
		return Ignorable
	}
	if tos, ok := g.edges[from]; ok {
		if k, ok := tos[to]; ok {
			return k
		}
	}
	return Invalid
}

func (g *Graph) IsValidTransition(from, to Status) bool {
	return g.kind(from, to) == Valid
}

func (g *Graph) IsIgnorableTransition(from, to Status) bool {
	return g.kind(from, to) == Ignorable
}

func (g *Graph) IsAdministrativeTransition(from, to Status) bool {
	return g.kind(from, to) == Administrative
}

func (g *Graph) IsTerminal(s Status) bool {
	return g.terminal[s]
}

// Classify resolves a requested change. Administrative edges count as valid only
// when administrative is set. Anything else unknown yields an *InvalidStateChangeError.
func (g *Graph) Classify(from, to Status, administrative bool) (Kind, error) {
	switch k := g.kind(from, to); k {
	case Valid, Ignorable:
		return k, nil
	case Administrative:
		if administrative {
			return Valid, nil
		}
	}
	return Invalid, &InvalidStateChangeError{From: from, To: to}
}

var defaultGraph = NewGraph()

func Default() *Graph {
	return defaultGraph
}

func IsValidTransition(from, to Status) bool {
	return defaultGraph.IsValidTransition(from, to)
}

func IsIgnorableTransition(from, to Status) bool {
	return defaultGraph.IsIgnorableTransition(from, to)
}

func IsTerminal(s Status) bool {
	return defaultGraph.IsTerminal(s)
}

func Classify(from, to Status, administrative bool) (Kind, error) {
	return defaultGraph.Classify(from, to, administrative)
}
