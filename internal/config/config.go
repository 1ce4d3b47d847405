package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Postgres DBConfig
	Redis    RedisConfig
	S3       S3Config
	Worker   WorkerConfig
	Analysis AnalysisConfig
	Logger   Logger
}

type ServerConfig struct {
	AppVersion   string
	Port         string
	Mode         string
	JwtSecretKey string
}

type DBConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	PgDriver      string
	SSLMode       string
	MigrationsDir string
}

type RedisConfig struct {
	RedisAddr     string
	RedisPassword string
	DB            int
	MinIdleConns  int
	PoolSize      int
	PoolTimeout   int
	UseTLS        bool
}

type S3Config struct {
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	InputBucket string
}

// WorkerConfig describes the remote compute endpoint that runs the
// analysis pipeline (RunPod-style serverless API).
type WorkerConfig struct {
	Endpoint       string
	APIKey         string
	CallbackURL    string
	RequestTimeout int
}

// AnalysisConfig holds submission and completion policy knobs. The dedup
// window and poll interval are policy constants, not semantics; keep them
// configurable.
type AnalysisConfig struct {
	AllowedVideoOrigins []string
	DedupWindowMinutes  int
	PollIntervalSeconds int
	PullTimeoutSeconds  int
	DefaultStep         int
	JobCacheTTLSeconds  int
}

type Logger struct {
	Development       bool
	DisableCaller     bool
	DisableStacktrace bool
	Encoding          string
	Level             string
}

func (a AnalysisConfig) DedupWindow() time.Duration {
	return time.Duration(a.DedupWindowMinutes) * time.Minute
}

func (a AnalysisConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalSeconds) * time.Second
}

func (a AnalysisConfig) PullTimeout() time.Duration {
	return time.Duration(a.PullTimeoutSeconds) * time.Second
}

func (a AnalysisConfig) JobCacheTTL() time.Duration {
	return time.Duration(a.JobCacheTTLSeconds) * time.Second
}

func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.Analysis.DedupWindowMinutes == 0 {
		c.Analysis.DedupWindowMinutes = 10
	}
	if c.Analysis.PollIntervalSeconds == 0 {
		c.Analysis.PollIntervalSeconds = 2
	}
	if c.Analysis.PullTimeoutSeconds == 0 {
		c.Analysis.PullTimeoutSeconds = 300
	}
	if c.Analysis.DefaultStep == 0 {
		c.Analysis.DefaultStep = 3
	}
	if c.Analysis.JobCacheTTLSeconds == 0 {
		c.Analysis.JobCacheTTLSeconds = 30
	}
	return &c, nil
}
