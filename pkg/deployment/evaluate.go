/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package deployment

import (
	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/network"
	"github.com/a-liut/fogplace/pkg/placement"
	"github.com/a-liut/fogplace/pkg/service"
	"github.com/a-liut/fogplace/pkg/validation"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidInput = errors.New("invalid input")

// An Evaluation is a placement result and, when it was audited, the violations found.
type Evaluation struct {
	*placement.Result
	Violations []*validation.Violation `json:"violations,omitempty"`
}

// Accepted reports whether the placement succeeded without violations.
func (e *Evaluation) Accepted() bool {
	return e.Result.OK() && len(e.Violations) == 0
}

// Evaluate builds the models of infra and app, places app with strategy and,
// if audit is set, validates the result.
func Evaluate(strategy placement.Strategy, infra *model.Infrastructure, app *model.Application, audit bool, opts ...placement.Option) (*Evaluation, error) {
	net, err := network.FromInfrastructure(infra)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "infrastructure: %v", err)
	}
	svc, err := service.FromApplication(app)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidInput, "application: %v", err)
	}

	log.WithFields(log.Fields{
		"strategy":   strategy.Name(),
		"hosts":      len(net.Nodes()),
		"links":      len(net.Edges()),
		"components": len(svc.Nodes()),
		"edges":      len(svc.Edges()),
	}).Debug("Evaluating placement")

	eval := &Evaluation{Result: strategy.Place(svc, net, opts...)}
	if audit {
		eval.Violations = validation.Violations(net, svc, eval.Result)
		for _, v := range eval.Violations {
			log.WithFields(log.Fields{
				"property": v.Property,
				"entity":   v.Entity,
			}).Error(v.Detail)
		}
	}

	return eval, nil
}
