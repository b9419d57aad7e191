package gen

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModels = "./internal/model/*.go"
	DefaultSuffix = "_schema.go"
)

// Config drives a generator run. It is usually read from sqlrepo.yaml:
//
//	models: ./internal/model/*.go
//	schema: sales
//	tables:
//	  Customer: Clients
type Config struct {
	// Models is a glob of the Go files holding model structs.
	Models string `yaml:"models,omitempty"`
	// Output is the directory generated files go to. Empty means next to
	// each model file.
	Output string `yaml:"output,omitempty"`
	// Suffix replaces ".go" in the name of each generated file.
	Suffix string `yaml:"suffix,omitempty"`
	// Schema is the table schema registered for every model.
	Schema string `yaml:"schema,omitempty"`
	// Tables maps model names to table names.
	Tables map[string]string `yaml:"tables,omitempty"`
	// Workers bounds the number of files generated in parallel.
	Workers int `yaml:"workers,omitempty"`
}

// LoadConfig reads the YAML file at path. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	b, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrap(err, "gen: read config")
	default:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "gen: parse config %s", path)
		}
	}

	cfg.defaults()
	return cfg, nil
}

func (c *Config) defaults() {
	if c.Models == "" {
		c.Models = DefaultModels
	}
	if c.Suffix == "" {
		c.Suffix = DefaultSuffix
	}
	if c.Workers < 1 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}
