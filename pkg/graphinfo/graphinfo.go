// Package graphinfo computes diagnostics shared by the network and service
// graphs: degree statistics and connectivity.
package graphinfo

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Arc is a directed edge between two node ids.
type Arc struct {
	From int
	To   int
}

// DegreeStats holds the in and out degree of every node.
type DegreeStats struct {
	InDegree     map[int]int `json:"in_degree"`
	OutDegree    map[int]int `json:"out_degree"`
	MaxInDegree  int         `json:"max_in_degree"`
	MaxOutDegree int         `json:"max_out_degree"`
}

// Connectivity describes how connected a directed graph is.
type Connectivity struct {
	StronglyConnected     bool `json:"strongly_connected"`
	WeaklyConnected       bool `json:"weakly_connected"`
	NumStronglyComponents int  `json:"num_strongly_components"`
	NumWeaklyComponents   int  `json:"num_weakly_components"`
}

// Degrees returns the degree statistics of the graph made of nodes and arcs.
// Self loops count once in each direction.
func Degrees(nodes []int, arcs []Arc) DegreeStats {
	stats := DegreeStats{
		InDegree:  make(map[int]int, len(nodes)),
		OutDegree: make(map[int]int, len(nodes)),
	}
	for _, n := range nodes {
		stats.InDegree[n] = 0
		stats.OutDegree[n] = 0
	}
	for _, a := range arcs {
		stats.OutDegree[a.From]++
		stats.InDegree[a.To]++
	}
	for _, d := range stats.InDegree {
		if d > stats.MaxInDegree {
			stats.MaxInDegree = d
		}
	}
	for _, d := range stats.OutDegree {
		if d > stats.MaxOutDegree {
			stats.MaxOutDegree = d
		}
	}
	return stats
}

// ConnectivityOf returns the connectivity of the graph made of nodes and arcs.
// An empty graph is reported as neither strongly nor weakly connected.
func ConnectivityOf(nodes []int, arcs []Arc) Connectivity {
	if len(nodes) == 0 {
		return Connectivity{}
	}

	g := directed(nodes, arcs)
	strong := topo.TarjanSCC(g)
	weak := topo.ConnectedComponents(graph.Undirect{G: g})

	return Connectivity{
		StronglyConnected:     len(strong) == 1,
		WeaklyConnected:       len(weak) == 1,
		NumStronglyComponents: len(strong),
		NumWeaklyComponents:   len(weak),
	}
}

func directed(nodes []int, arcs []Arc) *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for _, n := range nodes {
		if g.Node(int64(n)) == nil {
			g.AddNode(simple.Node(n))
		}
	}
	for _, a := range arcs {
		// simple graphs reject self edges and they never change connectivity
		if a.From == a.To {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(a.From), simple.Node(a.To)))
	}
	return g
}
