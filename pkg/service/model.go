// Package service holds the read-only description of an application:
// components with their CPU and RAM demand and the service edges between them.
package service

import (
	"fmt"
	"sort"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/graphinfo"
	"github.com/pkg/errors"
)

// UnboundedLatency is the budget of a service edge that declares no latency requirement.
const UnboundedLatency = 1e9

var (
	ErrInvalidComponent = errors.New("invalid component")
	ErrUnknownComponent = errors.New("unknown component")
	ErrDuplicateEdge    = errors.New("duplicate service edge")
	ErrInvalidEdge      = errors.New("invalid service edge")
)

// A Component is a unit of the application to be placed on a host.
// Lambda and Mu are carried through and never consumed by placement.
type Component struct {
	ID     int      `json:"id"`
	Name   string   `json:"name,omitempty"`
	Image  string   `json:"image,omitempty"`
	CPU    float64  `json:"cpu"`
	RAM    float64  `json:"ram"`
	Lambda *float64 `json:"lambda,omitempty"`
	Mu     *float64 `json:"mu,omitempty"`
}

// An Edge is a directed communication requirement between two components.
type Edge struct {
	ID            int     `json:"id"`
	Src           int     `json:"src"`
	Dst           int     `json:"dst"`
	Bandwidth     float64 `json:"bandwidth"`
	LatencyBudget float64 `json:"latency_budget"`
}

func (e Edge) Key() EdgeKey {
	return EdgeKey{Src: e.Src, Dst: e.Dst}
}

// EdgeKey identifies a service edge by its endpoints.
type EdgeKey struct {
	Src int
	Dst int
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%d->%d", k.Src, k.Dst)
}

// Metadata carries the descriptive values of the application record.
type Metadata struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	ApplicationNb int    `json:"application_nb"`
	ComponentNbDZ *int   `json:"component_nb_dz,omitempty"`
	ComponentDZ   []int  `json:"component_dz,omitempty"`
}

type Summary struct {
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Directed bool     `json:"directed"`
	Metadata Metadata `json:"metadata"`
}

// A Model is an immutable directed graph of components and service edges.
type Model struct {
	components map[int]Component
	ids        []int

	edges []Edge
	index map[EdgeKey]int

	metadata Metadata
}

// New validates components and edges and builds a Model.
// Edges keep their input order, which is the order they are routed in.
// An edge without latency budget gets UnboundedLatency.
func New(components []Component, edges []Edge) (*Model, error) {
	m := &Model{
		components: make(map[int]Component, len(components)),
		ids:        make([]int, 0, len(components)),
		edges:      make([]Edge, 0, len(edges)),
		index:      make(map[EdgeKey]int, len(edges)),
	}

	for _, c := range components {
		if _, ok := m.components[c.ID]; ok {
			return nil, errors.Wrapf(ErrInvalidComponent, "component %d defined twice", c.ID)
		}
		if c.CPU < 0 || c.RAM < 0 {
			return nil, errors.Wrapf(ErrInvalidComponent, "component %d has negative demand", c.ID)
		}
		m.components[c.ID] = c
		m.ids = append(m.ids, c.ID)
	}
	sort.Ints(m.ids)

	for _, e := range edges {
		if !m.HasComponent(e.Src) || !m.HasComponent(e.Dst) {
			return nil, errors.Wrapf(ErrUnknownComponent, "service edge %d (%s)", e.ID, e.Key())
		}
		if e.Bandwidth < 0 || e.LatencyBudget < 0 {
			return nil, errors.Wrapf(ErrInvalidEdge, "service edge %d has negative requirements", e.ID)
		}
		if _, ok := m.index[e.Key()]; ok {
			return nil, errors.Wrapf(ErrDuplicateEdge, "service edge %s", e.Key())
		}
		if e.LatencyBudget == 0 {
			e.LatencyBudget = UnboundedLatency
		}
		m.index[e.Key()] = len(m.edges)
		m.edges = append(m.edges, e)
	}

	return m, nil
}

// FromApplication builds a Model from an application record.
// Component ids are the indexes of the record's components.
func FromApplication(app *model.Application) (*Model, error) {
	if app == nil {
		return nil, errors.New("nil application")
	}

	components := make([]Component, len(app.Components))
	for i, c := range app.Components {
		components[i] = Component{
			ID:     i,
			Name:   c.Name,
			Image:  c.Image,
			CPU:    c.CPU,
			RAM:    c.RAM,
			Lambda: c.Lambda,
			Mu:     c.Mu,
		}
	}

	edges := make([]Edge, len(app.Links))
	for i, l := range app.Links {
		edges[i] = Edge{
			ID:            l.ID,
			Src:           l.Src,
			Dst:           l.Dst,
			Bandwidth:     l.Bandwidth,
			LatencyBudget: l.Latency,
		}
	}

	m, err := New(components, edges)
	if err != nil {
		return nil, errors.Wrapf(err, "application %s", app.ID)
	}

	m.metadata = Metadata{
		ID:            app.ID,
		Name:          app.Name,
		ApplicationNb: app.ApplicationNb,
		ComponentNbDZ: app.ComponentNbDZ,
		ComponentDZ:   app.ComponentDZ,
	}

	return m, nil
}

// Nodes returns the components in ascending id order.
func (m *Model) Nodes() []Component {
	nodes := make([]Component, len(m.ids))
	for i, id := range m.ids {
		nodes[i] = m.components[id]
	}
	return nodes
}

func (m *Model) Component(id int) (Component, bool) {
	c, ok := m.components[id]
	return c, ok
}

func (m *Model) HasComponent(id int) bool {
	_, ok := m.components[id]
	return ok
}

// Edges returns the service edges in input order.
func (m *Model) Edges() []Edge {
	return append([]Edge(nil), m.edges...)
}

func (m *Model) Edge(u, v int) (Edge, bool) {
	i, ok := m.index[EdgeKey{Src: u, Dst: v}]
	if !ok {
		return Edge{}, false
	}
	return m.edges[i], true
}

func (m *Model) Metadata() Metadata {
	return m.metadata
}

func (m *Model) Summary() Summary {
	return Summary{
		Nodes:    len(m.ids),
		Edges:    len(m.edges),
		Directed: true,
		Metadata: m.metadata,
	}
}

func (m *Model) DegreeStats() graphinfo.DegreeStats {
	return graphinfo.Degrees(m.ids, m.arcs())
}

func (m *Model) Connectivity() graphinfo.Connectivity {
	return graphinfo.ConnectivityOf(m.ids, m.arcs())
}

func (m *Model) arcs() []graphinfo.Arc {
	arcs := make([]graphinfo.Arc, len(m.edges))
	for i, e := range m.edges {
		arcs[i] = graphinfo.Arc{From: e.Src, To: e.Dst}
	}
	return arcs
}
