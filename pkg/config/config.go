package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		SlowThreshold   time.Duration `yaml:"slow_threshold"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Actors    []ActorConfig  `yaml:"actors"`
	Alliances []AllianceEdge `yaml:"alliances"`
	Solver    struct {
		Tolerance     float64 `yaml:"tolerance"`
		MaxIterations int     `yaml:"max_iterations"`
		LearningRate  float64 `yaml:"learning_rate"`
		Uncertainty   float64 `yaml:"uncertainty"`
		Draws         int     `yaml:"draws"`
		Discount      float64 `yaml:"discount"`
	} `yaml:"solver"`
	Jobs struct {
		Workers    int           `yaml:"workers"`
		GCInterval time.Duration `yaml:"gc_interval"`
		Retention  time.Duration `yaml:"retention"`
	} `yaml:"jobs"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port"`
		Database    string        `yaml:"database"`
		User        string        `yaml:"user"`
		Password    string        `yaml:"password"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"kafka"`
	Cache struct {
		TTL        time.Duration `yaml:"ttl"`
		MemorySize int           `yaml:"memory_size"`
	} `yaml:"cache"`
}

// ActorConfig declares one actor: capability vector plus allowed actions.
type ActorConfig struct {
	Name         string       `yaml:"name"`
	Capabilities Capabilities `yaml:"capabilities"`
	Actions      []string     `yaml:"actions"`
}

// Capabilities mirrors the domain capability vector, each dimension in [0,1].
type Capabilities struct {
	EconomicPower       float64 `yaml:"economic_power"`
	MilitaryPower       float64 `yaml:"military_power"`
	DiplomaticInfluence float64 `yaml:"diplomatic_influence"`
	DomesticStability   float64 `yaml:"domestic_stability"`
	ExportDependency    float64 `yaml:"export_dependency"`
	EnergyDependency    float64 `yaml:"energy_dependency"`
	TechLeadership      float64 `yaml:"tech_leadership"`
	AllianceStrength    float64 `yaml:"alliance_strength"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance"`
}

// AllianceEdge declares one signed relationship between two actors.
type AllianceEdge struct {
	Source   string  `yaml:"source"`
	Target   string  `yaml:"target"`
	Strength float64 `yaml:"strength"`
	Kind     string  `yaml:"kind"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	return c, nil
}

// Validate checks if the configuration is valid. Cross-actor consistency
// (duplicate names, edges naming unknown actors) is checked where the payoff
// matrix is assembled.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Actors) == 0 {
		return fmt.Errorf("actors cannot be empty")
	}
	for _, a := range c.Actors {
		if a.Name == "" {
			return fmt.Errorf("actor name is required")
		}
		if len(a.Actions) == 0 {
			return fmt.Errorf("actor %s has no actions", a.Name)
		}
	}
	for _, e := range c.Alliances {
		if e.Source == "" || e.Target == "" {
			return fmt.Errorf("alliance edge needs source and target")
		}
		if e.Strength < -1 || e.Strength > 1 {
			return fmt.Errorf("alliance %s-%s strength %v outside [-1, 1]", e.Source, e.Target, e.Strength)
		}
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
