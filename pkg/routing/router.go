// Package routing finds the route of a service edge across the network.
//
// The router computes the minimum latency path between two hosts and checks
// it against the link capacity left in a ledger. It never looks for an
// alternative path when the shortest one cannot carry the traffic.
package routing

import (
	"fmt"

	"github.com/a-liut/fogplace/pkg/ledger"
	"github.com/a-liut/fogplace/pkg/network"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

const (
	CauseBandwidth = "bandwidth"
	CauseLatency   = "latency"
)

// A Route is a feasible path and its total latency.
type Route struct {
	Path    []int   `json:"path"`
	Latency float64 `json:"latency"`
}

// NoPathError is returned when the destination cannot be reached from the source.
type NoPathError struct {
	Src int
	Dst int
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path from host %d to host %d", e.Src, e.Dst)
}

// InfeasibleError is returned when the shortest path exists but lacks
// bandwidth on a link or exceeds the latency budget.
type InfeasibleError struct {
	Src   int
	Dst   int
	Cause string

	// Failing link
	From int
	To   int

	Required  float64
	Available float64
	Latency   float64
	Budget    float64
	Shortfall float64

	Path []int
}

func (e *InfeasibleError) Error() string {
	if e.Cause == CauseLatency {
		return fmt.Sprintf("path %v from host %d to host %d exceeds latency budget %g at link %d->%d (latency %g, over by %g)",
			e.Path, e.Src, e.Dst, e.Budget, e.From, e.To, e.Latency, e.Shortfall)
	}
	return fmt.Sprintf("path %v from host %d to host %d lacks bandwidth at link %d->%d (required %g, available %g, short by %g)",
		e.Path, e.Src, e.Dst, e.From, e.To, e.Required, e.Available, e.Shortfall)
}

// IsNoPath reports whether the cause of err is a *NoPathError.
func IsNoPath(err error) bool {
	_, ok := errors.Cause(err).(*NoPathError)
	return ok
}

// IsInfeasible reports whether the cause of err is an *InfeasibleError.
func IsInfeasible(err error) bool {
	_, ok := errors.Cause(err).(*InfeasibleError)
	return ok
}

// A Router routes service edges over a network using the usage recorded in a ledger.
type Router struct {
	net    *network.Model
	ledger *ledger.Ledger
}

func New(net *network.Model, l *ledger.Ledger) *Router {
	return &Router{net: net, ledger: l}
}

// ShortestPath returns the minimum latency path from src to dst, ignoring capacity.
func (r *Router) ShortestPath(src, dst int) ([]int, float64, error) {
	if !r.net.HasHost(src) || !r.net.HasHost(dst) {
		return nil, 0, &NoPathError{Src: src, Dst: dst}
	}
	if src == dst {
		return []int{src}, 0, nil
	}

	g := r.net.LatencyGraph()
	shortest := path.DijkstraFrom(simple.Node(src), g)
	nodes, _ := shortest.To(int64(dst))
	if len(nodes) == 0 {
		return nil, 0, &NoPathError{Src: src, Dst: dst}
	}

	hops := make([]int, len(nodes))
	var latency float64
	for i, n := range nodes {
		hops[i] = int(n.ID())
		if i > 0 {
			l, _ := r.net.Edge(hops[i-1], hops[i])
			latency += l.Latency
		}
	}
	return hops, latency, nil
}

// Route returns the minimum latency path from src to dst if every link on it
// can carry bandwidth and the path latency stays within budget.
// The ledger is not modified.
func (r *Router) Route(src, dst int, bandwidth, budget float64) (*Route, error) {
	hops, _, err := r.ShortestPath(src, dst)
	if err != nil {
		return nil, err
	}

	var latency float64
	for i := 0; i+1 < len(hops); i++ {
		u, v := hops[i], hops[i+1]

		usage, ok := r.ledger.LinkUsage(u, v)
		if !ok {
			return nil, errors.Errorf("link %d->%d missing from ledger", u, v)
		}
		available := usage.Available()
		if !r.ledger.CanCarry(u, v, bandwidth) {
			return nil, &InfeasibleError{
				Src:       src,
				Dst:       dst,
				Cause:     CauseBandwidth,
				From:      u,
				To:        v,
				Required:  bandwidth,
				Available: available,
				Latency:   latency,
				Budget:    budget,
				Shortfall: usage.BandwidthUsed + bandwidth - usage.BandwidthTotal,
				Path:      hops,
			}
		}

		link, _ := r.net.Edge(u, v)
		latency += link.Latency
		if latency > budget {
			return nil, &InfeasibleError{
				Src:       src,
				Dst:       dst,
				Cause:     CauseLatency,
				From:      u,
				To:        v,
				Required:  bandwidth,
				Available: available,
				Latency:   latency,
				Budget:    budget,
				Shortfall: latency - budget,
				Path:      hops,
			}
		}
	}

	return &Route{Path: hops, Latency: latency}, nil
}
