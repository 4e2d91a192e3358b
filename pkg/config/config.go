package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
	"github.com/xaenox/trajectory-bot/internal/clustering"
	"github.com/xaenox/trajectory-bot/internal/naming"
	"github.com/xaenox/trajectory-bot/internal/storage"
	"github.com/xaenox/trajectory-bot/internal/trajectory"
)

type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Trajectory TrajectoryConfig `mapstructure:"trajectory"`
	Clustering ClusteringConfig `mapstructure:"clustering"`
	Naming     NamingConfig     `mapstructure:"naming"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Log        LogConfig        `mapstructure:"log"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
	SeedFile    string `mapstructure:"seed_file"`
}

type ClassifierConfig struct {
	UseLLM        bool    `mapstructure:"use_llm"`
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type TrajectoryConfig struct {
	BaseRate             float64 `mapstructure:"base_rate"`
	ExpressivenessWeight float64 `mapstructure:"expressiveness_weight"`
	AlignmentWeight      float64 `mapstructure:"alignment_weight"`
	RoleBias             float64 `mapstructure:"role_bias"`
	LowConfidence        float64 `mapstructure:"low_confidence"`
}

type ClusteringConfig struct {
	KMin             int     `mapstructure:"k_min"`
	KMax             int     `mapstructure:"k_max"`
	Restarts         int     `mapstructure:"restarts"`
	MaxIterations    int     `mapstructure:"max_iterations"`
	Seed             int64   `mapstructure:"seed"`
	SilhouetteWeight float64 `mapstructure:"silhouette_weight"`
	BalanceWeight    float64 `mapstructure:"balance_weight"`
	SingletonPenalty float64 `mapstructure:"singleton_penalty"`
}

type NamingConfig struct {
	StraightPath   float64 `mapstructure:"straight_path"`
	MeanderingPath float64 `mapstructure:"meandering_path"`
	Stable         float64 `mapstructure:"stable"`
	Volatile       float64 `mapstructure:"volatile"`
	QuadrantMargin float64 `mapstructure:"quadrant_margin"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func (c DatabaseConfig) ToStorageConfig() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Host:        c.Host,
		Port:        c.Port,
		User:        c.User,
		Password:    c.Password,
		DBName:      c.DBName,
		SSLMode:     c.SSLMode,
		UseInMemory: c.UseInMemory,
	}
}

func (c TrajectoryConfig) ToSimulatorConfig() trajectory.Config {
	return trajectory.Config{
		BaseRate:             c.BaseRate,
		ExpressivenessWeight: c.ExpressivenessWeight,
		AlignmentWeight:      c.AlignmentWeight,
		RoleBias:             c.RoleBias,
		LowConfidence:        c.LowConfidence,
	}
}

func (c ClusteringConfig) ToEngineConfig() clustering.Config {
	return clustering.Config{
		KMin:             c.KMin,
		KMax:             c.KMax,
		Restarts:         c.Restarts,
		MaxIterations:    c.MaxIterations,
		Seed:             c.Seed,
		SilhouetteWeight: c.SilhouetteWeight,
		BalanceWeight:    c.BalanceWeight,
		SingletonPenalty: c.SingletonPenalty,
	}
}

func (c NamingConfig) ToThresholds() naming.Thresholds {
	return naming.Thresholds{
		StraightPath:   c.StraightPath,
		MeanderingPath: c.MeanderingPath,
		Stable:         c.Stable,
		Volatile:       c.Volatile,
		QuadrantMargin: c.QuadrantMargin,
	}
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "trajectories")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", true)
	v.SetDefault("database.seed_file", "")

	v.SetDefault("classifier.use_llm", false)
	v.SetDefault("classifier.min_confidence", 0.6)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 600)
	v.SetDefault("openai.temperature", 0.0)

	sim := trajectory.DefaultConfig()
	v.SetDefault("trajectory.base_rate", sim.BaseRate)
	v.SetDefault("trajectory.expressiveness_weight", sim.ExpressivenessWeight)
	v.SetDefault("trajectory.alignment_weight", sim.AlignmentWeight)
	v.SetDefault("trajectory.role_bias", sim.RoleBias)
	v.SetDefault("trajectory.low_confidence", sim.LowConfidence)

	eng := clustering.DefaultConfig()
	v.SetDefault("clustering.k_min", eng.KMin)
	v.SetDefault("clustering.k_max", eng.KMax)
	v.SetDefault("clustering.restarts", eng.Restarts)
	v.SetDefault("clustering.max_iterations", eng.MaxIterations)
	v.SetDefault("clustering.seed", eng.Seed)
	v.SetDefault("clustering.silhouette_weight", eng.SilhouetteWeight)
	v.SetDefault("clustering.balance_weight", eng.BalanceWeight)
	v.SetDefault("clustering.singleton_penalty", eng.SingletonPenalty)

	th := naming.DefaultThresholds()
	v.SetDefault("naming.straight_path", th.StraightPath)
	v.SetDefault("naming.meandering_path", th.MeanderingPath)
	v.SetDefault("naming.stable", th.Stable)
	v.SetDefault("naming.volatile", th.Volatile)
	v.SetDefault("naming.quadrant_margin", th.QuadrantMargin)

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("log.development", false)
}

// LoadConfig reads the YAML file at path on top of the defaults. An empty
// path yields the defaults plus environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// DATABASE_URL switches to PostgreSQL
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		dbConfig.SeedFile = config.Database.SeedFile
		config.Database = dbConfig
	}

	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
