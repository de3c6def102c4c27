package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cnclabs/transe/internal/models/transe"
)

// EnvPrefix prefixes every environment override, e.g. TRANSE_TRAIN_EPOCHS
const EnvPrefix = "TRANSE"

// Config is the full settings tree for the transe command
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Train   TrainConfig   `mapstructure:"train"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	SQLite  SQLiteConfig  `mapstructure:"sqlite"`
	Storage StorageConfig `mapstructure:"storage"`
}

// DataConfig locates the dataset
type DataConfig struct {
	Dir  string `mapstructure:"dir"`
	Mode string `mapstructure:"mode"`
}

// TrainConfig holds the trainer settings and the sampling seed
type TrainConfig struct {
	EmbedDim      int     `mapstructure:"embed_dim"`
	LR            float64 `mapstructure:"lr"`
	Margin        float64 `mapstructure:"margin"`
	Norm          int     `mapstructure:"norm"`
	Epochs        int     `mapstructure:"epochs"`
	NBatches      int     `mapstructure:"nbatches"`
	Seed          int64   `mapstructure:"seed"` // 0 seeds from the clock
	MaxNegRetries int     `mapstructure:"max_neg_retries"`
	OutputDir     string  `mapstructure:"output_dir"`
}

// LogConfig selects the zap level and encoder
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

// MetricsConfig controls the Prometheus textfile dump. Empty disables it.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SQLiteConfig controls the SQLite export. Empty disables it.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// StorageConfig controls mirroring of artifacts to an S3 compatible bucket.
// An empty endpoint disables it.
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// SetDefaults registers the reference settings on v
func SetDefaults(v *viper.Viper) {
	def := transe.DefaultOptions()

	v.SetDefault("data.dir", "../data/FB15k")
	v.SetDefault("data.mode", "train")

	v.SetDefault("train.embed_dim", def.EmbedDim)
	v.SetDefault("train.lr", def.LearningRate)
	v.SetDefault("train.margin", def.Margin)
	v.SetDefault("train.norm", def.Norm)
	v.SetDefault("train.epochs", def.Epochs)
	v.SetDefault("train.nbatches", def.Batches)
	v.SetDefault("train.seed", 0)
	v.SetDefault("train.max_neg_retries", def.MaxNegRetries)
	v.SetDefault("train.output_dir", "../res")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("sqlite.path", "")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "transe-artifacts")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.use_ssl", false)
}

// Load resolves the configuration from defaults, an optional config file
// and TRANSE_* environment variables, in increasing precedence. Flags bound
// on v before the call win over all of them.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.TrainerOptions().Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TrainerOptions maps the train section onto the trainer's options
func (c *Config) TrainerOptions() transe.Options {
	return transe.Options{
		EmbedDim:      c.Train.EmbedDim,
		LearningRate:  c.Train.LR,
		Margin:        c.Train.Margin,
		Norm:          c.Train.Norm,
		Epochs:        c.Train.Epochs,
		Batches:       c.Train.NBatches,
		MaxNegRetries: c.Train.MaxNegRetries,
		OutputDir:     c.Train.OutputDir,
	}
}

// Seed returns the configured seed, or the current time when it is 0
func (c *Config) Seed() int64 {
	if c.Train.Seed != 0 {
		return c.Train.Seed
	}
	return time.Now().UnixNano()
}
