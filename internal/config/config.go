package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Speech        SpeechConfig        `mapstructure:"speech"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	LockTTL     time.Duration `mapstructure:"lockTTL"`
	LockRetries int           `mapstructure:"lockRetries"`
	LockBackoff time.Duration `mapstructure:"lockBackoff"`
}

type SpeechConfig struct {
	ConfidenceThreshold int `mapstructure:"confidenceThreshold"`
	AmbiguityDelta      int `mapstructure:"ambiguityDelta"`
	MaxCandidates       int `mapstructure:"maxCandidates"`
}

type TranscriptionConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"apiKey"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"baseURL"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "lotto.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 5*time.Second)
	v.SetDefault("redis.lockRetries", 20)
	v.SetDefault("redis.lockBackoff", 50*time.Millisecond)

	v.SetDefault("speech.confidenceThreshold", 80)
	v.SetDefault("speech.ambiguityDelta", 5)
	v.SetDefault("speech.maxCandidates", 3)

	v.SetDefault("transcription.provider", "openai")
	v.SetDefault("transcription.apiKey", "")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.baseURL", "https://api.openai.com/v1")
	v.SetDefault("transcription.timeout", 30*time.Second)
}

// Load reads the YAML file at path (optional when empty) on top of the
// defaults. LOTTO_* environment variables, including those from a .env
// file in the working directory, take precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LOTTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}
	GlobalConfig = cfg
}
