package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/spatial-cortex/internal/confidence"
	"github.com/ajitpratap0/spatial-cortex/internal/matcher"
	"github.com/ajitpratap0/spatial-cortex/internal/query"
	"github.com/ajitpratap0/spatial-cortex/internal/recall"
)

const (
	// DefaultGraph is the graph name used when none is configured.
	DefaultGraph = "home"

	// DefaultHalfLifeHours is the default confidence half-life (30 days).
	DefaultHalfLifeHours = 720

	// DefaultMaxStaleAgeHours is how long a fully decayed edge is kept (90 days).
	DefaultMaxStaleAgeHours = 2160
)

// Config holds all configuration for spatial-cortex.
type Config struct {
	Matcher    matcher.Config   `mapstructure:"matcher"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Query      query.Config     `mapstructure:"query"`
	Recall     recall.Weights   `mapstructure:"recall"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Lifecycle  LifecycleConfig  `mapstructure:"lifecycle"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ConfidenceConfig holds the confidence curve settings.
type ConfidenceConfig struct {
	Cap                float64 `mapstructure:"cap"`
	Floor              float64 `mapstructure:"floor"`
	HalfLifeHours      int     `mapstructure:"half_life_hours"`
	MaxConflictPenalty float64 `mapstructure:"max_conflict_penalty"`
}

// Params converts the section into confidence.Params.
func (c ConfidenceConfig) Params() confidence.Params {
	return confidence.Params{
		Cap:                c.Cap,
		Floor:              c.Floor,
		HalfLife:           time.Duration(c.HalfLifeHours) * time.Hour,
		MaxConflictPenalty: c.MaxConflictPenalty,
	}
}

// LimitsConfig bounds graph growth. Zero means unlimited.
type LimitsConfig struct {
	MaxEntities      int `mapstructure:"max_entities"`
	MaxRelationships int `mapstructure:"max_relationships"`
	VisualDimension  int `mapstructure:"visual_dimension"`
}

// StorageConfig holds snapshot persistence settings.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
	Graph   string `mapstructure:"graph"`
}

// LifecycleConfig holds stale-edge pruning settings.
type LifecycleConfig struct {
	MaxStaleAgeHours int `mapstructure:"max_stale_age_hours"`
}

// MaxStaleAge returns the stale age as a duration.
func (c LifecycleConfig) MaxStaleAge() time.Duration {
	return time.Duration(c.MaxStaleAgeHours) * time.Hour
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".spatial-cortex"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("SPATIAL_CORTEX")
	v.AutomaticEnv()

	_ = v.BindEnv("storage.data_dir", "SPATIAL_CORTEX_DATA_DIR")
	_ = v.BindEnv("storage.graph", "SPATIAL_CORTEX_GRAPH")
	_ = v.BindEnv("logging.level", "SPATIAL_CORTEX_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK; use defaults + env vars
	}

	return unmarshal(v)
}

// LoadFile reads configuration from an explicit YAML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	m := matcher.DefaultConfig()
	v.SetDefault("matcher.name_weight", m.NameWeight)
	v.SetDefault("matcher.visual_weight", m.VisualWeight)
	v.SetDefault("matcher.type_weight", m.TypeWeight)
	v.SetDefault("matcher.tag_weight", m.TagWeight)
	v.SetDefault("matcher.spatial_penalty", m.SpatialPenalty)
	v.SetDefault("matcher.merge_threshold", m.MergeThreshold)
	v.SetDefault("matcher.reject_threshold", m.RejectThreshold)
	v.SetDefault("matcher.pool_name_floor", m.PoolNameFloor)
	v.SetDefault("matcher.pool_visual_floor", m.PoolVisualFloor)
	v.SetDefault("matcher.high_confidence", m.HighConfidence)

	p := confidence.DefaultParams()
	v.SetDefault("confidence.cap", p.Cap)
	v.SetDefault("confidence.floor", p.Floor)
	v.SetDefault("confidence.half_life_hours", DefaultHalfLifeHours)
	v.SetDefault("confidence.max_conflict_penalty", p.MaxConflictPenalty)

	v.SetDefault("limits.max_entities", 0)
	v.SetDefault("limits.max_relationships", 0)
	v.SetDefault("limits.visual_dimension", 0)

	q := query.DefaultConfig()
	v.SetDefault("query.default_radius", q.DefaultRadius)
	v.SetDefault("query.base_cost", q.BaseCost)
	v.SetDefault("query.reverse_cost_factor", q.ReverseCostFactor)
	v.SetDefault("query.locate_name_floor", q.LocateNameFloor)
	v.SetDefault("query.max_chain_depth", q.MaxChainDepth)

	w := recall.DefaultWeights()
	v.SetDefault("recall.name", w.Name)
	v.SetDefault("recall.confidence", w.Confidence)
	v.SetDefault("recall.recency", w.Recency)
	v.SetDefault("recall.corroboration", w.Corroboration)

	v.SetDefault("storage.data_dir", filepath.Join(homeDir(), ".spatial-cortex", "data"))
	v.SetDefault("storage.graph", DefaultGraph)

	v.SetDefault("lifecycle.max_stale_age_hours", DefaultMaxStaleAgeHours)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	m := c.Matcher
	for name, w := range map[string]float64{
		"name_weight":   m.NameWeight,
		"visual_weight": m.VisualWeight,
		"type_weight":   m.TypeWeight,
		"tag_weight":    m.TagWeight,
	} {
		if w < 0 {
			return fmt.Errorf("matcher.%s must be >= 0", name)
		}
	}
	if m.NameWeight+m.VisualWeight+m.TypeWeight+m.TagWeight <= 0 {
		return fmt.Errorf("matcher weights must not all be zero")
	}
	if !unit(m.MergeThreshold) || !unit(m.RejectThreshold) {
		return fmt.Errorf("matcher thresholds must be between 0 and 1")
	}
	if m.RejectThreshold >= m.MergeThreshold {
		return fmt.Errorf("matcher.reject_threshold (%.2f) must be less than matcher.merge_threshold (%.2f)", m.RejectThreshold, m.MergeThreshold)
	}
	if !unit(m.SpatialPenalty) {
		return fmt.Errorf("matcher.spatial_penalty must be between 0 and 1")
	}

	cc := c.Confidence
	if !unit(cc.Cap) || cc.Cap == 0 {
		return fmt.Errorf("confidence.cap must be in (0, 1]")
	}
	if !unit(cc.Floor) || cc.Floor >= cc.Cap {
		return fmt.Errorf("confidence.floor must be between 0 and confidence.cap")
	}
	if cc.HalfLifeHours <= 0 {
		return fmt.Errorf("confidence.half_life_hours must be greater than 0")
	}
	if !unit(cc.MaxConflictPenalty) {
		return fmt.Errorf("confidence.max_conflict_penalty must be between 0 and 1")
	}

	if c.Limits.MaxEntities < 0 || c.Limits.MaxRelationships < 0 {
		return fmt.Errorf("limits must be >= 0")
	}
	if c.Limits.VisualDimension < 0 {
		return fmt.Errorf("limits.visual_dimension must be >= 0")
	}
	if c.Query.DefaultRadius < 0 {
		return fmt.Errorf("query.default_radius must be >= 0")
	}
	if c.Query.BaseCost <= 0 {
		return fmt.Errorf("query.base_cost must be greater than 0")
	}
	if c.Query.ReverseCostFactor < 1 {
		return fmt.Errorf("query.reverse_cost_factor must be >= 1")
	}
	if c.Storage.Graph == "" {
		return fmt.Errorf("storage.graph must not be empty")
	}
	if c.Lifecycle.MaxStaleAgeHours < 0 {
		return fmt.Errorf("lifecycle.max_stale_age_hours must be >= 0")
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
