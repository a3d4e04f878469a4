package placement

import (
	"github.com/uber-go/tally/v4"
)

// Metrics tracks the placement runs of a strategy.
type Metrics struct {
	Attempts tally.Counter
	Success  tally.Counter

	FailNoHostFit  tally.Counter
	FailNoPath     tally.Counter
	FailInfeasible tally.Counter

	ComponentsPlaced tally.Counter
	EdgesRouted      tally.Counter

	Duration tally.Timer
}

// NewMetrics returns a new Metrics struct rooted at the given scope.
func NewMetrics(scope tally.Scope) *Metrics {
	placeScope := scope.SubScope("placement")
	successScope := placeScope.Tagged(map[string]string{"result": "success"})
	failScope := placeScope.Tagged(map[string]string{"result": "fail"})

	return &Metrics{
		Attempts: placeScope.Counter("attempts"),
		Success:  successScope.Counter("runs"),

		FailNoHostFit:  failScope.Tagged(map[string]string{"kind": NoHostFit}).Counter("runs"),
		FailNoPath:     failScope.Tagged(map[string]string{"kind": NoPath}).Counter("runs"),
		FailInfeasible: failScope.Tagged(map[string]string{"kind": Infeasible}).Counter("runs"),

		ComponentsPlaced: placeScope.Counter("components_placed"),
		EdgesRouted:      placeScope.Counter("edges_routed"),

		Duration: placeScope.Timer("duration"),
	}
}

func (m *Metrics) failure(kind string) {
	switch kind {
	case NoHostFit:
		m.FailNoHostFit.Inc(1)
	case NoPath:
		m.FailNoPath.Inc(1)
	case Infeasible:
		m.FailInfeasible.Inc(1)
	}
}
