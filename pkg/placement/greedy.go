package placement

import (
	"fmt"

	"github.com/a-liut/fogplace/pkg/ledger"
	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/routing"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// GreedyFirstFitName is the registered name of the greedy first-fit strategy.
const GreedyFirstFitName = "greedy_first_fit"

// GreedyFirstFit places components in ascending id order on the first host
// with enough room, then routes service edges in order on their minimum
// latency path. It commits every decision immediately and stops at the first
// failure without backtracking.
type GreedyFirstFit struct {
	metrics *Metrics
}

func NewGreedyFirstFit(scope tally.Scope) *GreedyFirstFit {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &GreedyFirstFit{metrics: NewMetrics(scope)}
}

func (g *GreedyFirstFit) Name() string {
	return GreedyFirstFitName
}

// Place runs one placement with its own ledger. The models are only read.
func (g *GreedyFirstFit) Place(svc *service.Model, net *network.Model, opts ...Option) *Result {
	o := buildOptions(opts)

	g.metrics.Attempts.Inc(1)
	sw := g.metrics.Duration.Start()
	defer sw.Stop()

	l := ledger.New(net)
	result := &Result{
		Strategy: GreedyFirstFitName,
		Mapping:  make(map[int]int),
		Routes:   make([]RoutedEdge, 0, len(svc.Edges())),
	}

	hosts := hostOrder(net, o.StartHost)

	for _, c := range svc.Nodes() {
		host, ok := g.firstFit(l, hosts, c)
		if !ok {
			err := &NoHostFitError{Component: c.ID, CPU: c.CPU, RAM: c.RAM}
			return g.fail(result, l, fmt.Sprintf("no_host_for_component_%d", c.ID), noHostFitFailure(err), err)
		}
		result.Mapping[c.ID] = host
		g.metrics.ComponentsPlaced.Inc(1)
	}

	router := routing.New(net, l)
	for _, e := range svc.Edges() {
		src, dst := result.Mapping[e.Src], result.Mapping[e.Dst]

		route, err := router.Route(src, dst, e.Bandwidth, e.LatencyBudget)
		if err != nil {
			reason := fmt.Sprintf("constraints_%d_%d", e.Src, e.Dst)
			if routing.IsNoPath(err) {
				reason = fmt.Sprintf("no_path_%d_%d", e.Src, e.Dst)
			}
			return g.fail(result, l, reason, routingFailure(e.Src, e.Dst, err), err)
		}

		if err := l.AllocatePath(route.Path, e.Bandwidth); err != nil {
			return g.fail(result, l, fmt.Sprintf("constraints_%d_%d", e.Src, e.Dst), commitFailure(e, route),
				errors.Wrapf(err, "committing route of service edge %d", e.ID))
		}

		log.WithFields(log.Fields{
			"edge":    e.ID,
			"src":     e.Src,
			"dst":     e.Dst,
			"path":    route.Path,
			"latency": route.Latency,
		}).Debug("Service edge routed")

		result.Routes = append(result.Routes, RoutedEdge{
			ID:        e.ID,
			Src:       e.Src,
			Dst:       e.Dst,
			Path:      route.Path,
			Latency:   route.Latency,
			Bandwidth: e.Bandwidth,
		})
		g.metrics.EdgesRouted.Inc(1)
	}

	result.Status = StatusOK
	result.HostUsage = l.Hosts()
	result.LinkUsage = l.Links()
	g.metrics.Success.Inc(1)

	log.WithFields(log.Fields{
		"components": len(result.Mapping),
		"edges":      len(result.Routes),
	}).Info("Placement completed")

	return result
}

func (g *GreedyFirstFit) firstFit(l *ledger.Ledger, hosts []int, c service.Component) (int, bool) {
	for _, h := range hosts {
		if !l.CanHost(h, c.CPU, c.RAM) {
			continue
		}
		if err := l.AllocateHost(h, c.CPU, c.RAM); err != nil {
			log.WithError(err).WithField("host", h).Error("Cannot allocate component on host")
			continue
		}
		log.WithFields(log.Fields{
			"component": c.ID,
			"host":      h,
		}).Debug("Component placed")
		return h, true
	}
	return 0, false
}

func (g *GreedyFirstFit) fail(result *Result, l *ledger.Ledger, reason string, failure *Failure, err error) *Result {
	result.Status = StatusFailed
	result.Reason = reason
	result.Failure = failure
	result.Err = err
	result.HostUsage = l.Hosts()
	result.LinkUsage = l.Links()

	if failure != nil {
		g.metrics.failure(failure.Kind)
	}

	log.WithFields(log.Fields{
		"reason": reason,
		"placed": len(result.Mapping),
		"routed": len(result.Routes),
	}).WithError(err).Info("Placement failed")

	return result
}

// hostOrder returns the host ids in ascending order, rotated to begin at
// start when start is a host of the network.
func hostOrder(net *network.Model, start *int) []int {
	ids := net.HostIDs()
	if start == nil {
		return ids
	}
	for i, id := range ids {
		if id == *start {
			rotated := make([]int, 0, len(ids))
			rotated = append(rotated, ids[i:]...)
			return append(rotated, ids[:i]...)
		}
	}
	return ids
}
