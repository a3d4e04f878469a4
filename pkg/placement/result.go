package placement

import (
	"encoding/json"
	"fmt"

	"github.com/a-liut/fogplace/pkg/ledger"
	"github.com/a-liut/fogplace/pkg/routing"
	"github.com/a-liut/fogplace/pkg/service"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Failure kinds
const (
	NoHostFit  = "NoHostFit"
	NoPath     = "NoPath"
	Infeasible = "Infeasible"
)

// CauseCommit is the cause of an Infeasible failure raised when the ledger
// refuses a route the router accepted.
const CauseCommit = "commit"

// A Result is the outcome of a placement run. On failure it keeps the partial
// mapping, the routes committed so far and the resulting usage.
type Result struct {
	Strategy string `json:"strategy"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`

	Failure *Failure `json:"failure,omitempty"`

	// Component id -> host id
	Mapping map[int]int  `json:"mapping"`
	Routes  []RoutedEdge `json:"routes"`

	HostUsage []ledger.HostUsage `json:"host_usage,omitempty"`
	LinkUsage []ledger.LinkUsage `json:"link_usage,omitempty"`

	// Typed cause of the failure
	Err error `json:"-"`
}

// A RoutedEdge is a service edge and the path it was routed on.
type RoutedEdge struct {
	ID        int     `json:"id"`
	Src       int     `json:"src"`
	Dst       int     `json:"dst"`
	Path      []int   `json:"path"`
	Latency   float64 `json:"latency"`
	Bandwidth float64 `json:"bandwidth"`
}

// Failure is the serializable diagnosis of a failed placement.
type Failure struct {
	Kind string `json:"kind"`

	Component *int `json:"component,omitempty"`
	Src       *int `json:"src,omitempty"`
	Dst       *int `json:"dst,omitempty"`

	Cause string `json:"cause,omitempty"`
	From  *int   `json:"from,omitempty"`
	To    *int   `json:"to,omitempty"`

	Required  float64 `json:"required,omitempty"`
	Available float64 `json:"available,omitempty"`
	Latency   float64 `json:"latency,omitempty"`
	Budget    float64 `json:"budget,omitempty"`
	Shortfall float64 `json:"shortfall,omitempty"`
}

// NoHostFitError is returned when no host has room for a component.
type NoHostFitError struct {
	Component int
	CPU       float64
	RAM       float64
}

func (e *NoHostFitError) Error() string {
	return fmt.Sprintf("no host fits component %d (cpu %g, ram %g)", e.Component, e.CPU, e.RAM)
}

func (r *Result) OK() bool {
	return r.Status == StatusOK
}

// Path returns the route of the service edge from component u to component v.
func (r *Result) Path(u, v int) ([]int, bool) {
	for _, route := range r.Routes {
		if route.Src == u && route.Dst == v {
			return route.Path, true
		}
	}
	return nil, false
}

func (r *Result) String() string {
	b, _ := json.Marshal(r)
	return string(b)
}

func noHostFitFailure(err *NoHostFitError) *Failure {
	return &Failure{
		Kind:      NoHostFit,
		Component: intPtr(err.Component),
	}
}

func routingFailure(u, v int, err error) *Failure {
	switch e := err.(type) {
	case *routing.NoPathError:
		return &Failure{Kind: NoPath, Src: intPtr(u), Dst: intPtr(v)}
	case *routing.InfeasibleError:
		return &Failure{
			Kind:      Infeasible,
			Src:       intPtr(u),
			Dst:       intPtr(v),
			Cause:     e.Cause,
			From:      intPtr(e.From),
			To:        intPtr(e.To),
			Required:  e.Required,
			Available: e.Available,
			Latency:   e.Latency,
			Budget:    e.Budget,
			Shortfall: e.Shortfall,
		}
	}
	return nil
}

func intPtr(i int) *int {
	return &i
}

func commitFailure(e service.Edge, route *routing.Route) *Failure {
	return &Failure{
		Kind:     Infeasible,
		Src:      intPtr(e.Src),
		Dst:      intPtr(e.Dst),
		Cause:    CauseCommit,
		Required: e.Bandwidth,
		Latency:  route.Latency,
		Budget:   e.LatencyBudget,
	}
}
