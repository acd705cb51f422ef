package plans

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source loads the plan catalog.
type Source interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	plans []Plan
}

// NewInMemSource returns a Source serving a copy of plans.
// Panics if no plans are provided.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) == 0 {
		panic("plans: at least one plan is required")
	}
	return &inMemSource{plans: append([]Plan(nil), plans...)}
}

func (s *inMemSource) Load(context.Context) ([]Plan, error) {
	return append([]Plan(nil), s.plans...), nil
}

type yamlSource struct {
	path string
}

// NewYAMLSource reads plans from a YAML file with a top-level "plans" list.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

type yamlFile struct {
	Plans []Plan `yaml:"plans"`
}

func (s *yamlSource) Load(context.Context) ([]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	var f yamlFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("parse %s: %w", s.path, err))
	}
	return f.Plans, nil
}
