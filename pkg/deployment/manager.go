/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package deployment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownApplication = errors.New("unknown application")

// An InfrastructureSource describes the infrastructure applications are placed on.
type InfrastructureSource interface {
	Infrastructure() (*model.Infrastructure, error)
}

// A Deploy is an application accepted by the Manager.
type Deploy struct {
	ID          string             `json:"id"`
	Application *model.Application `json:"application"`
	Result      *placement.Result  `json:"result"`
	CreatedAt   time.Time          `json:"created_at"`
}

// A RejectedError is returned when an application cannot be placed. It carries
// the evaluation that led to the rejection.
type RejectedError struct {
	Evaluation *Evaluation
}

func (e *RejectedError) Error() string {
	if !e.Evaluation.OK() {
		return fmt.Sprintf("placement failed: %s", e.Evaluation.Reason)
	}
	return fmt.Sprintf("placement rejected: %d violations", len(e.Evaluation.Violations))
}

// IsRejected reports whether err is a RejectedError and returns it.
func IsRejected(err error) (*RejectedError, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}

// The Manager places applications on the infrastructure of its source and
// keeps the accepted ones.
type Manager struct {
	mu sync.Mutex

	source   InfrastructureSource
	strategy placement.Strategy
	audit    bool

	// Optional
	applier Applier

	deployments []*Deploy
}

type ManagerOption func(*Manager)

// WithAudit validates every placement before accepting it.
func WithAudit(audit bool) ManagerOption {
	return func(m *Manager) {
		m.audit = audit
	}
}

// WithApplier materializes accepted placements with a.
func WithApplier(a Applier) ManagerOption {
	return func(m *Manager) {
		m.applier = a
	}
}

func NewManager(source InfrastructureSource, strategy placement.Strategy, opts ...ManagerOption) *Manager {
	m := &Manager{
		source:   source,
		strategy: strategy,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Strategy returns the strategy used by the manager.
func (m *Manager) Strategy() placement.Strategy {
	return m.strategy
}

// Audit reports whether placements are validated before being accepted.
func (m *Manager) Audit() bool {
	return m.audit
}

// GetDeployments returns the accepted applications in order of acceptance.
func (m *Manager) GetDeployments() []*Deploy {
	m.mu.Lock()
	defer m.mu.Unlock()

	deployments := make([]*Deploy, len(m.deployments))
	copy(deployments, m.deployments)
	return deployments
}

// GetDeploy returns the accepted application with the given id.
func (m *Manager) GetDeploy(id string) (*Deploy, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return m.deployments[i], true
}

func (m *Manager) indexOf(id string) int {
	for i, d := range m.deployments {
		if d.ID == id {
			return i
		}
	}
	return -1
}

// AddApplication places app and keeps it when the placement is accepted.
// An application without id gets a new one. An application whose id is already
// known replaces the previous one, which is kept if the new placement is rejected.
func (m *Manager) AddApplication(ctx context.Context, app *model.Application, opts ...placement.Option) (*Deploy, error) {
	if app == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil application")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	infra, err := m.source.Infrastructure()
	if err != nil {
		return nil, errors.Wrap(err, "cannot describe infrastructure")
	}

	eval, err := Evaluate(m.strategy, infra, app, m.audit, opts...)
	if err != nil {
		return nil, err
	}
	if !eval.Accepted() {
		log.WithFields(log.Fields{
			"application": app.ID,
			"reason":      eval.Reason,
			"violations":  len(eval.Violations),
		}).Warn("Application rejected")
		return nil, &RejectedError{Evaluation: eval}
	}

	d := &Deploy{
		ID:          app.ID,
		Application: app,
		Result:      eval.Result,
		CreatedAt:   time.Now().UTC(),
	}

	i := m.indexOf(app.ID)
	if m.applier != nil {
		if i >= 0 {
			if err := m.applier.Remove(ctx, m.deployments[i]); err != nil {
				return nil, errors.Wrapf(err, "cannot remove previous deploy of %s", app.ID)
			}
		}
		if err := m.applier.Apply(ctx, d, infra); err != nil {
			if i >= 0 {
				// the previous deploy is gone from the cluster
				m.remove(i)
			}
			return nil, errors.Wrapf(err, "cannot apply %s", app.ID)
		}
	}

	if i >= 0 {
		log.WithField("application", app.ID).Info("Application replaced")
		m.deployments[i] = d
	} else {
		log.WithField("application", app.ID).Info("Application added")
		m.deployments = append(m.deployments, d)
	}

	return d, nil
}

// DeleteApplication forgets the application with the given id.
func (m *Manager) DeleteApplication(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return errors.Wrapf(ErrUnknownApplication, "cannot find application %s", id)
	}

	if m.applier != nil {
		if err := m.applier.Remove(ctx, m.deployments[i]); err != nil {
			return errors.Wrapf(err, "cannot remove %s", id)
		}
	}

	m.remove(i)
	log.WithField("application", id).Info("Application deleted")

	return nil
}

func (m *Manager) remove(i int) {
	m.deployments = append(m.deployments[:i], m.deployments[i+1:]...)
}
