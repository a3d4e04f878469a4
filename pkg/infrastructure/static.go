package infrastructure

import (
	"encoding/json"

	"github.com/a-liut/fogplace/internal/model"
	"github.com/a-liut/fogplace/pkg/loader"
)

// A StaticSource serves an infrastructure that never changes.
type StaticSource struct {
	infra *model.Infrastructure
}

func NewStaticSource(infra *model.Infrastructure) *StaticSource {
	return &StaticSource{infra: infra}
}

// LoadStaticSource reads the infrastructure at path with the loader.
func LoadStaticSource(path string) (*StaticSource, error) {
	infra, err := loader.LoadInfrastructureFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticSource(infra), nil
}

// Infrastructure returns a deep copy of the infrastructure.
func (s *StaticSource) Infrastructure() (*model.Infrastructure, error) {
	b, err := json.Marshal(s.infra)
	if err != nil {
		return nil, err
	}
	infra := &model.Infrastructure{}
	if err := json.Unmarshal(b, infra); err != nil {
		return nil, err
	}
	return infra, nil
}
