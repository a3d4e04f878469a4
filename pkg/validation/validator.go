// Package validation audits a placement result against the models it was
// computed from. Usage is re-derived from the result and never taken from
// the engine.
package validation

import (
	"fmt"
	"sort"

	"github.com/a-liut/fogplace/pkg/ledger"
	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Checked properties
const (
	ComponentExists = "component_exists"
	HostExists      = "host_exists"
	MappingComplete = "mapping_complete"
	HostCPUCapacity = "host_cpu_capacity"
	HostRAMCapacity = "host_ram_capacity"
	RoutePresent    = "route_present"
	UnknownEdge     = "unknown_edge"
	PathSource      = "path_source"
	PathDestination = "path_destination"
	LinkExists      = "link_exists"
	PathCycle       = "path_cycle"
	LatencyBudget   = "latency_budget"
	LinkBandwidth   = "link_bandwidth"
)

// A Violation identifies the property that does not hold and the entity breaking it.
type Violation struct {
	Property string `json:"property"`
	Entity   string `json:"entity"`
	Detail   string `json:"detail"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s violated by %s: %s", v.Property, v.Entity, v.Detail)
}

// IsViolation reports whether err is, or aggregates, a *Violation of property.
// An empty property matches any violation.
func IsViolation(err error, property string) bool {
	if merr, ok := err.(*multierror.Error); ok {
		for _, e := range merr.Errors {
			if IsViolation(e, property) {
				return true
			}
		}
		return false
	}
	v, ok := errors.Cause(err).(*Violation)
	return ok && (property == "" || v.Property == property)
}

// Validate returns the first violated property of result, or nil.
func Validate(net *network.Model, svc *service.Model, result *placement.Result) error {
	found := check(net, svc, result)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// ValidateAll returns every violated property of result, or nil.
func ValidateAll(net *network.Model, svc *service.Model, result *placement.Result) error {
	var merr *multierror.Error
	for _, v := range check(net, svc, result) {
		merr = multierror.Append(merr, v)
	}
	return merr.ErrorOrNil()
}

// Violations returns every violated property of result.
func Violations(net *network.Model, svc *service.Model, result *placement.Result) []*Violation {
	return check(net, svc, result)
}

type checker struct {
	net    *network.Model
	svc    *service.Model
	result *placement.Result

	found []*Violation
}

func check(net *network.Model, svc *service.Model, result *placement.Result) []*Violation {
	c := &checker{net: net, svc: svc, result: result}
	if result == nil {
		c.add(MappingComplete, "result", "no placement result")
		return c.found
	}

	c.mapping()
	c.capacity()
	c.routes()
	c.bandwidth()

	return c.found
}

func (c *checker) add(property, entity, format string, args ...interface{}) {
	c.found = append(c.found, &Violation{
		Property: property,
		Entity:   entity,
		Detail:   fmt.Sprintf(format, args...),
	})
}

func (c *checker) mappedComponents() []int {
	ids := make([]int, 0, len(c.result.Mapping))
	for id := range c.result.Mapping {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *checker) mapping() {
	for _, id := range c.mappedComponents() {
		host := c.result.Mapping[id]
		if !c.svc.HasComponent(id) {
			c.add(ComponentExists, componentEntity(id), "component is not part of the service")
		}
		if !c.net.HasHost(host) {
			c.add(HostExists, componentEntity(id), "mapped to unknown host %d", host)
		}
	}

	if !c.result.OK() {
		return
	}
	for _, comp := range c.svc.Nodes() {
		if _, ok := c.result.Mapping[comp.ID]; !ok {
			c.add(MappingComplete, componentEntity(comp.ID), "component is not mapped")
		}
	}
}

func (c *checker) capacity() {
	cpu := make(map[int]float64)
	ram := make(map[int]float64)
	for _, id := range c.mappedComponents() {
		comp, ok := c.svc.Component(id)
		if !ok {
			continue
		}
		host := c.result.Mapping[id]
		cpu[host] += comp.CPU
		ram[host] += comp.RAM
	}

	for _, h := range c.net.Nodes() {
		if cpu[h.ID] > h.CPU {
			c.add(HostCPUCapacity, hostEntity(h.ID), "cpu demand %g exceeds total %g", cpu[h.ID], h.CPU)
		}
		if ram[h.ID] > h.RAM {
			c.add(HostRAMCapacity, hostEntity(h.ID), "ram demand %g exceeds total %g", ram[h.ID], h.RAM)
		}
	}
}

func (c *checker) routes() {
	routed := make(map[service.EdgeKey]int)

	for _, r := range c.result.Routes {
		key := service.EdgeKey{Src: r.Src, Dst: r.Dst}
		entity := edgeEntity(key)

		routed[key]++
		if routed[key] == 2 {
			c.add(RoutePresent, entity, "service edge routed more than once")
		}

		edge, ok := c.svc.Edge(r.Src, r.Dst)
		if !ok {
			c.add(UnknownEdge, entity, "route for a service edge that does not exist")
			continue
		}
		c.path(entity, edge, r.Path)
	}

	if !c.result.OK() {
		return
	}
	for _, e := range c.svc.Edges() {
		if routed[e.Key()] == 0 {
			c.add(RoutePresent, edgeEntity(e.Key()), "service edge is not routed")
		}
	}
}

func (c *checker) path(entity string, edge service.Edge, path []int) {
	if len(path) == 0 {
		c.add(PathSource, entity, "empty path")
		return
	}

	if host, ok := c.result.Mapping[edge.Src]; !ok || path[0] != host {
		c.add(PathSource, entity, "path starts at host %d, source component is on host %s", path[0], mappedHost(c.result.Mapping, edge.Src))
	}
	if host, ok := c.result.Mapping[edge.Dst]; !ok || path[len(path)-1] != host {
		c.add(PathDestination, entity, "path ends at host %d, destination component is on host %s", path[len(path)-1], mappedHost(c.result.Mapping, edge.Dst))
	}

	seen := make(map[int]bool, len(path))
	for _, h := range path {
		if seen[h] {
			c.add(PathCycle, entity, "host %d appears more than once in %v", h, path)
			break
		}
		seen[h] = true
	}

	var latency float64
	exceeded := false
	for i := 0; i+1 < len(path); i++ {
		link, ok := c.net.Edge(path[i], path[i+1])
		if !ok {
			c.add(LinkExists, entity, "no link %d->%d", path[i], path[i+1])
			continue
		}
		latency += link.Latency
		if latency > edge.LatencyBudget && !exceeded {
			c.add(LatencyBudget, entity, "latency %g up to host %d exceeds budget %g", latency, path[i+1], edge.LatencyBudget)
			exceeded = true
		}
	}
}

// bandwidth replays every route on fresh link capacities.
func (c *checker) bandwidth() {
	links := ledger.SnapshotLinks(c.net)

	for _, r := range c.result.Routes {
		edge, ok := c.svc.Edge(r.Src, r.Dst)
		if !ok {
			continue
		}
		for i := 0; i+1 < len(r.Path); i++ {
			if u, ok := links[network.LinkKey{Src: r.Path[i], Dst: r.Path[i+1]}]; ok {
				u.BandwidthUsed += edge.Bandwidth
			}
		}
	}

	keys := make([]network.LinkKey, 0, len(links))
	for k := range links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Src != keys[j].Src {
			return keys[i].Src < keys[j].Src
		}
		return keys[i].Dst < keys[j].Dst
	})

	for _, k := range keys {
		u := links[k]
		if !u.Carries(0) {
			c.add(LinkBandwidth, linkEntity(k), "bandwidth use %g exceeds total %g", u.BandwidthUsed, u.BandwidthTotal)
		}
	}
}

func componentEntity(id int) string {
	return fmt.Sprintf("component %d", id)
}

func hostEntity(id int) string {
	return fmt.Sprintf("host %d", id)
}

func edgeEntity(k service.EdgeKey) string {
	return fmt.Sprintf("service edge %s", k)
}

func linkEntity(k network.LinkKey) string {
	return fmt.Sprintf("link %s", k)
}

func mappedHost(mapping map[int]int, component int) string {
	host, ok := mapping[component]
	if !ok {
		return "none"
	}
	return fmt.Sprintf("%d", host)
}
