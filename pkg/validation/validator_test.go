package validation

import (
	"testing"

	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// line network 0 -> 1 -> 2, components chained 0 -> 1 -> 2
func fixture(t *testing.T) (*network.Model, *service.Model) {
	net, err := network.New(
		[]network.Host{{ID: 0, CPU: 2, RAM: 2}, {ID: 1, CPU: 2, RAM: 2}, {ID: 2, CPU: 2, RAM: 2}},
		[]network.Link{
			{Src: 0, Dst: 1, Bandwidth: 10, Latency: 2},
			{Src: 1, Dst: 2, Bandwidth: 10, Latency: 2},
			{Src: 1, Dst: 0, Bandwidth: 10, Latency: 2},
		},
	)
	require.NoError(t, err)

	svc, err := service.New(
		[]service.Component{{ID: 0, CPU: 2, RAM: 1}, {ID: 1, CPU: 2, RAM: 1}, {ID: 2, CPU: 2, RAM: 1}},
		[]service.Edge{
			{ID: 0, Src: 0, Dst: 1, Bandwidth: 6, LatencyBudget: 5},
			{ID: 1, Src: 1, Dst: 2, Bandwidth: 6, LatencyBudget: 5},
		},
	)
	require.NoError(t, err)

	return net, svc
}

func valid() *placement.Result {
	return &placement.Result{
		Status:  placement.StatusOK,
		Mapping: map[int]int{0: 0, 1: 1, 2: 2},
		Routes: []placement.RoutedEdge{
			{ID: 0, Src: 0, Dst: 1, Path: []int{0, 1}, Latency: 2, Bandwidth: 6},
			{ID: 1, Src: 1, Dst: 2, Path: []int{1, 2}, Latency: 2, Bandwidth: 6},
		},
	}
}

func TestValidateAcceptsEngineResults(t *testing.T) {
	net, svc := fixture(t)

	result := placement.NewGreedyFirstFit(nil).Place(svc, net)
	require.True(t, result.OK(), result.Reason)

	assert.NoError(t, Validate(net, svc, result))
	// idempotent
	assert.NoError(t, Validate(net, svc, result))
	assert.NoError(t, ValidateAll(net, svc, result))
}

func TestValidateAcceptsPartialFailures(t *testing.T) {
	net, svc := fixture(t)

	result := placement.NewGreedyFirstFit(nil).Place(svc, net, placement.WithStartHost(2))
	require.False(t, result.OK())

	assert.NoError(t, Validate(net, svc, result))
}

func TestValidateDetectsViolations(t *testing.T) {
	tests := []struct {
		name     string
		tamper   func(r *placement.Result)
		property string
	}{
		{
			name:     "unknown component",
			tamper:   func(r *placement.Result) { r.Mapping[9] = 0 },
			property: ComponentExists,
		},
		{
			name:     "unknown host",
			tamper:   func(r *placement.Result) { r.Mapping[2] = 7 },
			property: HostExists,
		},
		{
			name:     "missing component",
			tamper:   func(r *placement.Result) { delete(r.Mapping, 2) },
			property: MappingComplete,
		},
		{
			name: "cpu oversubscribed",
			tamper: func(r *placement.Result) {
				r.Mapping[1] = 0
				r.Routes[0].Path = []int{0}
				r.Routes[1].Path = []int{0, 1, 2}
			},
			property: HostCPUCapacity,
		},
		{
			name:     "missing route",
			tamper:   func(r *placement.Result) { r.Routes = r.Routes[:1] },
			property: RoutePresent,
		},
		{
			name:     "duplicate route",
			tamper:   func(r *placement.Result) { r.Routes = append(r.Routes, r.Routes[0]) },
			property: RoutePresent,
		},
		{
			name: "route for unknown edge",
			tamper: func(r *placement.Result) {
				r.Routes = append(r.Routes, placement.RoutedEdge{Src: 2, Dst: 0, Path: []int{2}})
			},
			property: UnknownEdge,
		},
		{
			name:     "wrong source",
			tamper:   func(r *placement.Result) { r.Routes[1].Path = []int{0, 1, 2} },
			property: PathSource,
		},
		{
			name:     "wrong destination",
			tamper:   func(r *placement.Result) { r.Routes[0].Path = []int{0, 1, 0} },
			property: PathDestination,
		},
		{
			name:     "missing link",
			tamper:   func(r *placement.Result) { r.Routes[1].Path = []int{1, 0, 2} },
			property: LinkExists,
		},
		{
			name:     "cycle",
			tamper:   func(r *placement.Result) { r.Routes[0].Path = []int{0, 1, 0, 1} },
			property: PathCycle,
		},
		{
			name:     "empty path",
			tamper:   func(r *placement.Result) { r.Routes[0].Path = nil },
			property: PathSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, svc := fixture(t)
			result := valid()
			require.NoError(t, Validate(net, svc, result))

			tt.tamper(result)

			err := ValidateAll(net, svc, result)
			require.Error(t, err)
			assert.True(t, IsViolation(err, tt.property), err.Error())
		})
	}
}

func TestValidateLatencyBudgetOnPrefix(t *testing.T) {
	net, err := network.New(
		[]network.Host{{ID: 0, CPU: 1, RAM: 1}, {ID: 1, CPU: 1, RAM: 1}},
		[]network.Link{{Src: 0, Dst: 1, Bandwidth: 10, Latency: 8}},
	)
	require.NoError(t, err)
	svc, err := service.New(
		[]service.Component{{ID: 0, CPU: 1, RAM: 1}, {ID: 1, CPU: 1, RAM: 1}},
		[]service.Edge{{ID: 0, Src: 0, Dst: 1, Bandwidth: 1, LatencyBudget: 5}},
	)
	require.NoError(t, err)

	result := &placement.Result{
		Status:  placement.StatusOK,
		Mapping: map[int]int{0: 0, 1: 1},
		Routes:  []placement.RoutedEdge{{Src: 0, Dst: 1, Path: []int{0, 1}}},
	}

	err = Validate(net, svc, result)
	require.Error(t, err)
	assert.True(t, IsViolation(err, LatencyBudget))

	v := err.(*Violation)
	assert.Equal(t, "service edge 0->1", v.Entity)
}

func TestValidateReplaysBandwidth(t *testing.T) {
	net, svc := fixture(t)

	// both edges pushed through 0->1 -> 12 of 10
	result := &placement.Result{
		Status:  placement.StatusOK,
		Mapping: map[int]int{0: 0, 1: 1, 2: 2},
		Routes: []placement.RoutedEdge{
			{Src: 0, Dst: 1, Path: []int{0, 1}},
			{Src: 1, Dst: 2, Path: []int{1, 0, 1, 2}},
		},
	}

	err := ValidateAll(net, svc, result)
	require.Error(t, err)
	assert.True(t, IsViolation(err, LinkBandwidth))

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(merr.Errors), 2)

	assert.True(t, IsViolation(Validate(net, svc, result), ""))
}

func TestValidateNilResult(t *testing.T) {
	net, svc := fixture(t)

	assert.True(t, IsViolation(Validate(net, svc, nil), MappingComplete))
}

func TestViolationsDoNotMutateResult(t *testing.T) {
	net, svc := fixture(t)
	result := valid()
	result.Routes[0].Path = []int{0, 1, 0}

	first := Violations(net, svc, result)
	second := Violations(net, svc, result)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{0, 1, 0}, result.Routes[0].Path)
}

// fan-out of n edges from component 0 on host 0 to components on host 1,
// all sharing the link 0->1
func fanOut(t *testing.T, total float64, bandwidths []float64) (*network.Model, *service.Model) {
	net, err := network.New(
		[]network.Host{{ID: 0, CPU: 1, RAM: 1}, {ID: 1, CPU: 100, RAM: 100}},
		[]network.Link{{Src: 0, Dst: 1, Bandwidth: total, Latency: 1}},
	)
	require.NoError(t, err)

	components := []service.Component{{ID: 0, CPU: 1, RAM: 1}}
	var edges []service.Edge
	for i, bw := range bandwidths {
		components = append(components, service.Component{ID: i + 1, CPU: 1, RAM: 1})
		edges = append(edges, service.Edge{ID: i, Src: 0, Dst: i + 1, Bandwidth: bw, LatencyBudget: 10})
	}
	svc, err := service.New(components, edges)
	require.NoError(t, err)

	return net, svc
}

func TestValidateAcceptsFractionalSaturation(t *testing.T) {
	t.Run("rounding above total is rejected by the engine", func(t *testing.T) {
		net, svc := fanOut(t, 1.7, []float64{0.6, 1.1})

		result := placement.NewGreedyFirstFit(nil).Place(svc, net)
		assert.Equal(t, placement.StatusFailed, result.Status)
		assert.Equal(t, "constraints_0_2", result.Reason)
		assert.NoError(t, Validate(net, svc, result))
	})

	totals := []float64{0.3, 0.9, 1.7, 2.1, 3.3}
	fractions := []float64{0.1, 0.2, 0.3, 0.6, 0.7, 1.1}
	for _, total := range totals {
		for _, bw := range fractions {
			bandwidths := make([]float64, 12)
			for i := range bandwidths {
				bandwidths[i] = bw
			}
			net, svc := fanOut(t, total, bandwidths)

			result := placement.NewGreedyFirstFit(nil).Place(svc, net)
			assert.NoError(t, Validate(net, svc, result), "total %g, edges of %g: %s", total, bw, result.Reason)
			for _, u := range result.LinkUsage {
				assert.LessOrEqual(t, u.BandwidthUsed, u.BandwidthTotal)
			}
		}
	}
}
