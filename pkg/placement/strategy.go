/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package placement

import (
	"sort"
	"sync"

	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

//go:generate mockgen -destination=mocks/mock_strategy.go -package=mocks github.com/a-liut/fogplace/pkg/placement Strategy

// A Strategy places the components of a service on the hosts of a network
// and routes every service edge.
type Strategy interface {
	Name() string
	Place(svc *service.Model, net *network.Model, opts ...Option) *Result
}

// Options of a single placement run.
type Options struct {
	// Host the search for a fitting host starts from. Ignored when it is not a host of the network.
	StartHost *int
}

type Option func(*Options)

// WithStartHost rotates the host search order so that it begins at host.
func WithStartHost(host int) Option {
	return func(o *Options) {
		o.StartHost = &host
	}
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Func creates a Strategy reporting its metrics to scope.
type Func func(scope tally.Scope) Strategy

var (
	ErrUnknownStrategy = errors.New("unknown placement strategy")

	lock       sync.RWMutex
	strategies = make(map[string]Func)
)

// Register makes a strategy available by name.
func Register(name string, f Func) error {
	if f == nil {
		return errors.Errorf("nil creator for strategy %s", name)
	}

	lock.Lock()
	defer lock.Unlock()

	if _, ok := strategies[name]; ok {
		return errors.Errorf("strategy %s already registered", name)
	}
	log.WithField("name", name).Debug("Registering placement strategy")
	strategies[name] = f
	return nil
}

// Init registers the built-in strategies.
func Init() {
	lock.RLock()
	_, ok := strategies[GreedyFirstFitName]
	lock.RUnlock()
	if ok {
		return
	}

	if err := Register(GreedyFirstFitName, func(scope tally.Scope) Strategy {
		return NewGreedyFirstFit(scope)
	}); err != nil {
		log.WithError(err).Error("cannot register built-in strategy")
	}
}

// Create returns a new instance of the named strategy.
func Create(name string, scope tally.Scope) (Strategy, error) {
	lock.RLock()
	f, ok := strategies[name]
	lock.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}
	return f(scope), nil
}

// Names returns the registered strategy names in lexical order.
func Names() []string {
	lock.RLock()
	defer lock.RUnlock()

	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
