/*
FogPlace
Component placement and traffic routing over fog infrastructures.
*/
package config

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// Config is the configuration of the fogplace daemon.
type Config struct {
	Logging        LoggingConfig        `yaml:"logging"`
	HTTP           HTTPConfig           `yaml:"http"`
	UDS            UDSConfig            `yaml:"uds"`
	Placement      PlacementConfig      `yaml:"placement"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Kubernetes     KubernetesConfig     `yaml:"kubernetes"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"nonzero"`
	// "json" or "text"
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

// UDSConfig configures the unix socket intake.
type UDSConfig struct {
	Enable        bool          `yaml:"enable"`
	Path          string        `yaml:"path"`
	AcceptTimeout time.Duration `yaml:"accept_timeout"`
}

type PlacementConfig struct {
	Strategy string `yaml:"strategy" validate:"nonzero"`
	// Validate every result before it is accepted
	Validate  bool `yaml:"validate"`
	StartHost *int `yaml:"start_host"`
}

// InfrastructureConfig points to a static infrastructure description.
// It is ignored when Kubernetes is enabled.
type InfrastructureConfig struct {
	File string `yaml:"file"`
}

type KubernetesConfig struct {
	Enable     bool   `yaml:"enable"`
	Kubeconfig string `yaml:"kubeconfig"`
	Namespace  string `yaml:"namespace"`

	// Attributes of the links between nodes without a links annotation
	DefaultLinkBandwidth float64 `yaml:"default_link_bandwidth" validate:"min=0"`
	DefaultLinkLatency   float64 `yaml:"default_link_latency" validate:"min=0"`

	// Create a Deployment for every placed component
	Apply bool `yaml:"apply"`
}

type MetricsConfig struct {
	Enable        bool          `yaml:"enable"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		HTTP:    HTTPConfig{Port: 8080},
		UDS: UDSConfig{
			Path:          "/tmp/fogplace.sock",
			AcceptTimeout: 5 * time.Second,
		},
		Placement: PlacementConfig{Strategy: "greedy_first_fit", Validate: true},
		Kubernetes: KubernetesConfig{
			Namespace:            "default",
			DefaultLinkBandwidth: 99999,
			DefaultLinkLatency:   1,
		},
		Metrics: MetricsConfig{FlushInterval: time.Second},
	}
}

// ValidationError is returned when a configuration fails to pass validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field.
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

func (e ValidationError) Error() string {
	var w bytes.Buffer

	fields := make([]string, 0, len(e.errorMap))
	for f := range e.errorMap {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	fmt.Fprintf(&w, "validation failed")
	for _, f := range fields {
		fmt.Fprintf(&w, "\n   %s: %v", f, e.errorMap[f])
	}
	return w.String()
}

// Parse loads the given config files in order, merges them into config and validates the result.
func Parse(config interface{}, files ...string) error {
	if len(files) == 0 {
		return errors.New("no files to load")
	}
	for _, fname := range files {
		data, err := ioutil.ReadFile(fname)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return errors.Wrapf(err, "parsing %s", fname)
		}
	}
	return Validate(config)
}

// Validate checks the validate tags of config.
func Validate(config interface{}) error {
	if err := validator.Validate(config); err != nil {
		if m, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: m}
		}
		return err
	}
	return nil
}
