// Package ledger tracks how much of each host and link capacity a placement
// run has consumed. The network model itself is never modified.
package ledger

import (
	"sort"
	"sync"

	"github.com/a-liut/fogplace/pkg/network"
	"github.com/pkg/errors"
)

var (
	ErrUnknownHost = errors.New("host not in ledger")
	ErrUnknownLink = errors.New("link not in ledger")
	ErrNoCapacity  = errors.New("not enough capacity")
)

// HostUsage is the CPU and RAM consumption of a host.
type HostUsage struct {
	Host     int     `json:"host"`
	CPUTotal float64 `json:"cpu_total"`
	RAMTotal float64 `json:"ram_total"`
	CPUUsed  float64 `json:"cpu_used"`
	RAMUsed  float64 `json:"ram_used"`
}

func (u *HostUsage) fits(cpu, ram float64) bool {
	return u.CPUUsed+cpu <= u.CPUTotal && u.RAMUsed+ram <= u.RAMTotal
}

// LinkUsage is the bandwidth consumption of a directed link.
type LinkUsage struct {
	Src            int     `json:"src"`
	Dst            int     `json:"dst"`
	BandwidthTotal float64 `json:"bandwidth_total"`
	BandwidthUsed  float64 `json:"bandwidth_used"`
}

// Available is the bandwidth still free on the link.
func (u *LinkUsage) Available() float64 {
	return u.BandwidthTotal - u.BandwidthUsed
}

// Carries reports whether bandwidth more fits on the link, that is
// used+bandwidth <= total. Every capacity check on links goes through it.
func (u *LinkUsage) Carries(bandwidth float64) bool {
	return u.BandwidthUsed+bandwidth <= u.BandwidthTotal
}

// SnapshotHosts copies the host totals of net with zero usage.
func SnapshotHosts(net *network.Model) map[int]*HostUsage {
	hosts := make(map[int]*HostUsage)
	for _, h := range net.Nodes() {
		hosts[h.ID] = &HostUsage{Host: h.ID, CPUTotal: h.CPU, RAMTotal: h.RAM}
	}
	return hosts
}

// SnapshotLinks copies the link totals of net with zero usage.
func SnapshotLinks(net *network.Model) map[network.LinkKey]*LinkUsage {
	links := make(map[network.LinkKey]*LinkUsage)
	for _, l := range net.Edges() {
		links[l.Key()] = &LinkUsage{Src: l.Src, Dst: l.Dst, BandwidthTotal: l.Bandwidth}
	}
	return links
}

// A Ledger holds the usage state of one placement run.
// Every method takes the ledger lock, ReserveHost and ReservePath check and
// commit under a single critical section.
type Ledger struct {
	mu sync.Mutex

	hosts map[int]*HostUsage
	links map[network.LinkKey]*LinkUsage
}

// New returns a ledger with zero usage for every host and link of net.
func New(net *network.Model) *Ledger {
	return &Ledger{
		hosts: SnapshotHosts(net),
		links: SnapshotLinks(net),
	}
}

// CanHost reports whether host has room for cpu and ram. Unknown hosts never fit.
func (l *Ledger) CanHost(host int, cpu, ram float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.hosts[host]
	return ok && u.fits(cpu, ram)
}

// AllocateHost adds cpu and ram to the host usage without checking capacity.
func (l *Ledger) AllocateHost(host int, cpu, ram float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.allocateHost(host, cpu, ram)
}

// ReserveHost allocates cpu and ram only if the host has room for them.
func (l *Ledger) ReserveHost(host int, cpu, ram float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.hosts[host]
	if !ok {
		return errors.Wrapf(ErrUnknownHost, "host %d", host)
	}
	if !u.fits(cpu, ram) {
		return errors.Wrapf(ErrNoCapacity, "host %d", host)
	}
	return l.allocateHost(host, cpu, ram)
}

func (l *Ledger) allocateHost(host int, cpu, ram float64) error {
	u, ok := l.hosts[host]
	if !ok {
		return errors.Wrapf(ErrUnknownHost, "host %d", host)
	}
	u.CPUUsed += cpu
	u.RAMUsed += ram
	return nil
}

// CanRoute reports whether every hop of path is a known link with bandwidth left.
func (l *Ledger) CanRoute(path []int, bandwidth float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.canRoute(path, bandwidth)
}

func (l *Ledger) canRoute(path []int, bandwidth float64) bool {
	for i := 0; i+1 < len(path); i++ {
		u, ok := l.links[network.LinkKey{Src: path[i], Dst: path[i+1]}]
		if !ok || !u.Carries(bandwidth) {
			return false
		}
	}
	return true
}

// CanCarry reports whether the link from u to v has room for bandwidth.
// Unknown links carry nothing.
func (l *Ledger) CanCarry(u, v int, bandwidth float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lu, ok := l.links[network.LinkKey{Src: u, Dst: v}]
	return ok && lu.Carries(bandwidth)
}

// AllocatePath adds bandwidth to every hop of path. Either every hop is
// updated or, when a hop is not a known link, none is.
func (l *Ledger) AllocatePath(path []int, bandwidth float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.allocatePath(path, bandwidth)
}

// ReservePath allocates bandwidth on path only if every hop can carry it.
func (l *Ledger) ReservePath(path []int, bandwidth float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.canRoute(path, bandwidth) {
		return errors.Wrapf(ErrNoCapacity, "path %v", path)
	}
	return l.allocatePath(path, bandwidth)
}

func (l *Ledger) allocatePath(path []int, bandwidth float64) error {
	hops := make([]*LinkUsage, 0, len(path))
	for i := 0; i+1 < len(path); i++ {
		key := network.LinkKey{Src: path[i], Dst: path[i+1]}
		u, ok := l.links[key]
		if !ok {
			return errors.Wrapf(ErrUnknownLink, "link %s", key)
		}
		hops = append(hops, u)
	}
	for _, u := range hops {
		u.BandwidthUsed += bandwidth
	}
	return nil
}

// Available returns the free bandwidth on the link from u to v.
func (l *Ledger) Available(u, v int) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lu, ok := l.links[network.LinkKey{Src: u, Dst: v}]
	if !ok {
		return 0, false
	}
	return lu.Available(), true
}

// HostUsage returns a copy of the usage of host.
func (l *Ledger) HostUsage(host int) (HostUsage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.hosts[host]
	if !ok {
		return HostUsage{}, false
	}
	return *u, true
}

// LinkUsage returns a copy of the usage of the link from u to v.
func (l *Ledger) LinkUsage(u, v int) (LinkUsage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lu, ok := l.links[network.LinkKey{Src: u, Dst: v}]
	if !ok {
		return LinkUsage{}, false
	}
	return *lu, true
}

// Hosts returns a copy of every host usage sorted by host id.
func (l *Ledger) Hosts() []HostUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	hosts := make([]HostUsage, 0, len(l.hosts))
	for _, u := range l.hosts {
		hosts = append(hosts, *u)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Host < hosts[j].Host })
	return hosts
}

// Links returns a copy of every link usage sorted by source then destination.
func (l *Ledger) Links() []LinkUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	links := make([]LinkUsage, 0, len(l.links))
	for _, u := range l.links {
		links = append(links, *u)
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].Src != links[j].Src {
			return links[i].Src < links[j].Src
		}
		return links[i].Dst < links[j].Dst
	})
	return links
}
