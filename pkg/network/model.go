// Package network holds the read-only description of an infrastructure:
// hosts with their CPU and RAM totals and the directed links between them.
package network

import (
	"fmt"
	"math"
	"sort"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/graphinfo"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	ErrInvalidHost   = errors.New("invalid host")
	ErrUnknownHost   = errors.New("unknown host")
	ErrDuplicateLink = errors.New("duplicate link")
	ErrInvalidLink   = errors.New("invalid link")
)

// A Host is a node of the infrastructure.
type Host struct {
	ID   int     `json:"id"`
	Name string  `json:"name,omitempty"`
	CPU  float64 `json:"cpu"`
	RAM  float64 `json:"ram"`
}

// A Link is a directed connection from Src to Dst.
type Link struct {
	Src       int     `json:"src"`
	Dst       int     `json:"dst"`
	Bandwidth float64 `json:"bandwidth"`
	Latency   float64 `json:"latency"`
}

// Key returns the ordered pair identifying the link.
func (l Link) Key() LinkKey {
	return LinkKey{Src: l.Src, Dst: l.Dst}
}

// LinkKey identifies a directed link.
type LinkKey struct {
	Src int
	Dst int
}

func (k LinkKey) String() string {
	return fmt.Sprintf("%d->%d", k.Src, k.Dst)
}

// Metadata carries the descriptive values of the infrastructure record.
type Metadata struct {
	DeclaredHosts int  `json:"declared_hosts"`
	DeclaredEdges int  `json:"declared_edges"`
	Diameter      *int `json:"diameter,omitempty"`
}

// Summary describes the size and shape of the network.
type Summary struct {
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Directed bool     `json:"directed"`
	Metadata Metadata `json:"metadata"`
}

// A Model is an immutable directed graph of hosts and links.
type Model struct {
	hosts map[int]Host
	ids   []int

	links []Link
	index map[LinkKey]int
	succ  map[int][]int

	latency  *orderedGraph
	metadata Metadata
}

// New validates hosts and links and builds a Model.
func New(hosts []Host, links []Link) (*Model, error) {
	m := &Model{
		hosts: make(map[int]Host, len(hosts)),
		ids:   make([]int, 0, len(hosts)),
		links: make([]Link, 0, len(links)),
		index: make(map[LinkKey]int, len(links)),
		succ:  make(map[int][]int, len(hosts)),
	}

	for _, h := range hosts {
		if _, ok := m.hosts[h.ID]; ok {
			return nil, errors.Wrapf(ErrInvalidHost, "host %d defined twice", h.ID)
		}
		if h.CPU < 0 || h.RAM < 0 {
			return nil, errors.Wrapf(ErrInvalidHost, "host %d has negative capacity", h.ID)
		}
		m.hosts[h.ID] = h
		m.ids = append(m.ids, h.ID)
	}
	sort.Ints(m.ids)

	for _, l := range links {
		if !m.HasHost(l.Src) {
			return nil, errors.Wrapf(ErrUnknownHost, "link %s: source %d", l.Key(), l.Src)
		}
		if !m.HasHost(l.Dst) {
			return nil, errors.Wrapf(ErrUnknownHost, "link %s: destination %d", l.Key(), l.Dst)
		}
		if l.Bandwidth < 0 || l.Latency < 0 {
			return nil, errors.Wrapf(ErrInvalidLink, "link %s has negative attributes", l.Key())
		}
		if _, ok := m.index[l.Key()]; ok {
			return nil, errors.Wrapf(ErrDuplicateLink, "link %s", l.Key())
		}
		m.index[l.Key()] = len(m.links)
		m.links = append(m.links, l)
		if l.Src != l.Dst {
			m.succ[l.Src] = append(m.succ[l.Src], l.Dst)
		}
	}
	for _, s := range m.succ {
		sort.Ints(s)
	}

	m.metadata = Metadata{DeclaredHosts: len(hosts), DeclaredEdges: len(links)}
	m.latency = m.buildLatencyGraph()

	return m, nil
}

// FromInfrastructure builds a Model from an infrastructure record.
// Host ids are the indexes of the record's hosts.
func FromInfrastructure(infra *model.Infrastructure) (*Model, error) {
	if infra == nil {
		return nil, errors.New("nil infrastructure")
	}

	hosts := make([]Host, len(infra.Hosts))
	for i, h := range infra.Hosts {
		hosts[i] = Host{ID: i, Name: h.Name, CPU: h.CPU, RAM: h.RAM}
	}
	links := make([]Link, len(infra.Links))
	for i, l := range infra.Links {
		links[i] = Link{Src: l.Src, Dst: l.Dst, Bandwidth: l.Bandwidth, Latency: l.Latency}
	}

	m, err := New(hosts, links)
	if err != nil {
		return nil, err
	}

	if infra.HostsNb > 0 {
		m.metadata.DeclaredHosts = infra.HostsNb
	}
	if infra.EdgesNb > 0 {
		m.metadata.DeclaredEdges = infra.EdgesNb
	}
	m.metadata.Diameter = infra.Diameter

	return m, nil
}

// Nodes returns the hosts in ascending id order.
func (m *Model) Nodes() []Host {
	nodes := make([]Host, len(m.ids))
	for i, id := range m.ids {
		nodes[i] = m.hosts[id]
	}
	return nodes
}

// HostIDs returns the host ids in ascending order.
func (m *Model) HostIDs() []int {
	return append([]int(nil), m.ids...)
}

func (m *Model) Host(id int) (Host, bool) {
	h, ok := m.hosts[id]
	return h, ok
}

func (m *Model) HasHost(id int) bool {
	_, ok := m.hosts[id]
	return ok
}

// Edges returns the links in input order.
func (m *Model) Edges() []Link {
	return append([]Link(nil), m.links...)
}

// Edge returns the link from u to v, if present.
func (m *Model) Edge(u, v int) (Link, bool) {
	i, ok := m.index[LinkKey{Src: u, Dst: v}]
	if !ok {
		return Link{}, false
	}
	return m.links[i], true
}

// Successors returns the hosts reachable from u in one hop, in ascending id order.
// Self links are not reported.
func (m *Model) Successors(u int) []int {
	return append([]int(nil), m.succ[u]...)
}

// LatencyGraph returns a weighted view of the network where every edge weighs its latency.
func (m *Model) LatencyGraph() graph.Weighted {
	return m.latency
}

func (m *Model) Metadata() Metadata {
	return m.metadata
}

func (m *Model) Summary() Summary {
	return Summary{
		Nodes:    len(m.ids),
		Edges:    len(m.links),
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
	arcs := make([]graphinfo.Arc, len(m.links))
	for i, l := range m.links {
		arcs[i] = graphinfo.Arc{From: l.Src, To: l.Dst}
	}
	return arcs
}

func (m *Model) buildLatencyGraph() *orderedGraph {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, id := range m.ids {
		g.AddNode(simple.Node(id))
	}
	for _, l := range m.links {
		if l.Src == l.Dst {
			continue
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(l.Src), simple.Node(l.Dst), l.Latency))
	}
	return &orderedGraph{WeightedDirectedGraph: g}
}

// orderedGraph iterates successors in ascending id order so that
// shortest path searches break ties the same way on every run.
type orderedGraph struct {
	*simple.WeightedDirectedGraph
}

func (g *orderedGraph) From(id int64) graph.Nodes {
	nodes := graph.NodesOf(g.WeightedDirectedGraph.From(id))
	if len(nodes) == 0 {
		return graph.Empty
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return iterator.NewOrderedNodes(nodes)
}
