package statemachine

import (
	"fmt"

	"projectflow/internal/model"
)

// Machine is a closed set of states plus an explicit edge table.
// A state missing from the table is invalid; an edge missing from a
// state's row is a disallowed transition.
type Machine[S ~string] struct {
	kind   model.Kind
	states []S
	edges  map[S]map[S]bool
}

// New builds a machine from an ordered state list and its edges.
func New[S ~string](kind model.Kind, states []S, edges map[S][]S) *Machine[S] {
	m := &Machine[S]{
		kind:   kind,
		states: append([]S(nil), states...),
		edges:  make(map[S]map[S]bool, len(states)),
	}
	for _, s := range states {
		m.edges[s] = make(map[S]bool)
	}
	for from, tos := range edges {
		row, ok := m.edges[from]
		if !ok {
			panic(fmt.Sprintf("statemachine: %s edge from undeclared state %q", kind, from))
		}
		for _, to := range tos {
			if _, ok := m.edges[to]; !ok {
				panic(fmt.Sprintf("statemachine: %s edge to undeclared state %q", kind, to))
			}
			row[to] = true
		}
	}
	return m
}

// EveryEdge permits every state to move to every state, itself included.
func EveryEdge[S ~string](states []S) map[S][]S {
	edges := make(map[S][]S, len(states))
	for _, from := range states {
		edges[from] = append([]S(nil), states...)
	}
	return edges
}

func (m *Machine[S]) Kind() model.Kind { return m.kind }

// States returns the declared states in display order.
func (m *Machine[S]) States() []S {
	return append([]S(nil), m.states...)
}

func (m *Machine[S]) Valid(s S) bool {
	_, ok := m.edges[s]
	return ok
}

func (m *Machine[S]) Allowed(from, to S) bool {
	return m.edges[from][to]
}

// Targets lists the states reachable from "from" in display order.
func (m *Machine[S]) Targets(from S) []S {
	var out []S
	for _, s := range m.states {
		if m.edges[from][s] {
			out = append(out, s)
		}
	}
	return out
}

// Transition validates from -> to and returns the new state.
// A current state outside the enumeration (legacy rows) may move to any
// valid target so the record can be repaired.
func (m *Machine[S]) Transition(from, to S) (S, error) {
	if !m.Valid(to) {
		return from, model.Validation(m.kind, "status", fmt.Sprintf("unknown %s status %q", m.kind, to))
	}
	if !m.Valid(from) {
		return to, nil
	}
	if !m.Allowed(from, to) {
		return from, model.Validation(m.kind, "status", fmt.Sprintf("transition %s -> %s is not allowed", from, to))
	}
	return to, nil
}
