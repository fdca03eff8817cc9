// Package config loads run settings from INI or YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Population  PopulationConfig  `yaml:"population"`
	Network     NetworkConfig     `yaml:"network"`
	Environment EnvironmentConfig `yaml:"environment"`
	Output      OutputConfig      `yaml:"output"`
}

type PopulationConfig struct {
	Size        int     `ini:"size" yaml:"size"`
	Generations int     `ini:"generations" yaml:"generations"`
	PMutation   float64 `ini:"p_mutation" yaml:"p_mutation"`
	PCrossover  float64 `ini:"p_crossover" yaml:"p_crossover"`
	// PInversion is compared against a standard-normal draw, so any real
	// value is meaningful.
	PInversion float64 `ini:"p_inversion" yaml:"p_inversion"`
	Alpha      float64 `ini:"alpha" yaml:"alpha"`
	Seed       int64   `ini:"seed" yaml:"seed"`
}

type NetworkConfig struct {
	Topology      []int  `ini:"topology" delim:"," yaml:"topology"`
	InitialParams string `ini:"initial_params" yaml:"initial_params"`
}

type EnvironmentConfig struct {
	Name     string `ini:"name" yaml:"name"`
	Seed     int64  `ini:"seed" yaml:"seed"`
	MaxSteps int    `ini:"max_steps" yaml:"max_steps"`
	Render   bool   `ini:"render" yaml:"render"`
}

type OutputConfig struct {
	Verbose             bool    `ini:"verbose" yaml:"verbose"`
	CheckpointThreshold float64 `ini:"checkpoint_threshold" yaml:"checkpoint_threshold"`
	CheckpointDir       string  `ini:"checkpoint_dir" yaml:"checkpoint_dir"`
	LogPath             string  `ini:"log_path" yaml:"log_path"`
	Store               string  `ini:"store" yaml:"store"`
	DBPath              string  `ini:"db_path" yaml:"db_path"`
}

func Default() Config {
	return Config{
		Population: PopulationConfig{
			Size:        30,
			Generations: 6000,
			PMutation:   0.6,
			PCrossover:  0.85,
			PInversion:  1e-20,
			Alpha:       0.1,
			Seed:        1,
		},
		Network: NetworkConfig{
			Topology: []int{10, 16, 12, 4},
		},
		Environment: EnvironmentConfig{
			Name:     "walker-lite",
			Seed:     123,
			MaxSteps: 1000,
		},
		Output: OutputConfig{
			Verbose:             true,
			CheckpointThreshold: 80,
			CheckpointDir:       "params",
			LogPath:             filepath.Join("logs", "fitness.csv"),
			DBPath:              "walkerga.db",
		},
	}
}

// Load reads path on top of Default. The format follows the extension:
// .ini, .yaml or .yml.
func Load(path string) (Config, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		return loadINI(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
}

var iniSections = []struct {
	name   string
	target func(*Config) any
}{
	{"population", func(c *Config) any { return &c.Population }},
	{"network", func(c *Config) any { return &c.Network }},
	{"environment", func(c *Config) any { return &c.Environment }},
	{"output", func(c *Config) any { return &c.Output }},
}

func loadINI(path string) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := Default()
	for _, section := range iniSections {
		if !file.HasSection(section.name) {
			continue
		}
		if err := file.Section(section.name).MapTo(section.target(&cfg)); err != nil {
			return Config{}, fmt.Errorf("map [%s] section: %w", section.name, err)
		}
	}
	return cfg, nil
}

func loadYAML(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	p := c.Population
	if p.Size < 1 {
		errs = append(errs, fmt.Errorf("population.size must be >= 1, got %d", p.Size))
	}
	if p.Generations < 1 {
		errs = append(errs, fmt.Errorf("population.generations must be >= 1, got %d", p.Generations))
	}
	if p.PMutation < 0 || p.PMutation > 1 {
		errs = append(errs, fmt.Errorf("population.p_mutation must be in [0,1], got %g", p.PMutation))
	}
	if p.PCrossover < 0 || p.PCrossover > 1 {
		errs = append(errs, fmt.Errorf("population.p_crossover must be in [0,1], got %g", p.PCrossover))
	}
	if p.Alpha < 0 {
		errs = append(errs, fmt.Errorf("population.alpha must be >= 0, got %g", p.Alpha))
	}
	if len(c.Network.Topology) < 2 {
		errs = append(errs, fmt.Errorf("network.topology needs at least 2 layers, got %v", c.Network.Topology))
	}
	for i, size := range c.Network.Topology {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("network.topology[%d] must be > 0, got %d", i, size))
		}
	}
	if strings.TrimSpace(c.Environment.Name) == "" {
		errs = append(errs, errors.New("environment.name is required"))
	}
	if strings.TrimSpace(c.Output.CheckpointDir) == "" {
		errs = append(errs, errors.New("output.checkpoint_dir is required for the final parameter save"))
	}
	if c.Environment.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("environment.max_steps must be >= 1, got %d", c.Environment.MaxSteps))
	}
	return errors.Join(errs...)
}

// TopologyString renders sizes as 10-16-12-4.
func TopologyString(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, size := range sizes {
		parts[i] = strconv.Itoa(size)
	}
	return strings.Join(parts, "-")
}

// ParseTopology accepts sizes separated by exactly one kind of separator:
// '-', 'x' or ','.
func ParseTopology(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty topology %q", value)
	}
	sep := ""
	for _, candidate := range []string{"-", "x", ","} {
		if !strings.Contains(value, candidate) {
			continue
		}
		if sep != "" {
			return nil, fmt.Errorf("topology %q mixes separators %q and %q", value, sep, candidate)
		}
		sep = candidate
	}

	fields := []string{value}
	if sep != "" {
		fields = strings.Split(value, sep)
	}
	sizes := make([]int, len(fields))
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("topology %q: empty layer at position %d", value, i)
		}
		size, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("topology %q: %w", value, err)
		}
		sizes[i] = size
	}
	return sizes, nil
}
