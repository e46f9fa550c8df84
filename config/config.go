package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	CORSOrigins  []string      `yaml:"corsOrigins"`
}

type GRPC struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|stage|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	Level     string `yaml:"level"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns"`
	MinConns          int32         `yaml:"minConns"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
}

type Redis struct {
	Addr     string `yaml:"addr"` // пусто: rate limit выключен
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWT struct {
	Secret    string        `yaml:"secret"`
	Issuer    string        `yaml:"issuer"`
	TTL       time.Duration `yaml:"ttl"`       // 168h как в исходном сервисе (7d)
	ClockSkew time.Duration `yaml:"clockSkew"` // напр. 30s
}

type Password struct {
	MinLength  int `yaml:"minLength"`
	BcryptCost int `yaml:"bcryptCost"`
}

type Chat struct {
	MaxMessageLength        int           `yaml:"maxMessageLength"`
	SendQueueSize           int           `yaml:"sendQueueSize"`
	PingEvery               time.Duration `yaml:"pingEvery"`
	WriteTimeout            time.Duration `yaml:"writeTimeout"`
	MaxFrameBytes           int64         `yaml:"maxFrameBytes"`
	RequireMembershipToSend bool          `yaml:"requireMembershipToSend"`
}

type RateLimit struct {
	Auth   int           `yaml:"auth"` // запросов на /api/auth/* за окно
	Window time.Duration `yaml:"window"`
}

type Telemetry struct {
	Endpoint string `yaml:"endpoint"` // OTLP/HTTP, пустой: трейсинг выключен
}

type Config struct {
	HTTP      HTTP      `yaml:"http"`
	GRPC      GRPC      `yaml:"grpc"`
	Logging   Logging   `yaml:"logging"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	JWT       JWT       `yaml:"jwt"`
	Password  Password  `yaml:"password"`
	Chat      Chat      `yaml:"chat"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// overrides: переменные окружения исходного сервиса (.env), перекрывают yaml.
type overrides struct {
	JWTSecret   string `envconfig:"JWT_SECRET"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	Port        string `envconfig:"PORT"`
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	AppEnv      string `envconfig:"APP_ENV"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	// .env опционален
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	var env overrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.apply(env)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) apply(env overrides) {
	if env.JWTSecret != "" {
		c.JWT.Secret = env.JWTSecret
	}
	if env.DatabaseURL != "" {
		c.Postgres.DSN = env.DatabaseURL
	}
	if env.Port != "" {
		c.HTTP.Addr = ":" + env.Port
	}
	if env.RedisAddr != "" {
		c.Redis.Addr = env.RedisAddr
	}
	if env.AppEnv != "" {
		c.Logging.Env = env.AppEnv
	}
}

func (c *Config) validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.JWT.ClockSkew < 0 || c.JWT.ClockSkew > time.Minute {
		return errors.New("jwt.clockSkew must be in [0..1m]")
	}
	if c.Password.BcryptCost != 0 && (c.Password.BcryptCost < 4 || c.Password.BcryptCost > 18) {
		return errors.New("password.bcryptCost must be in [4..18]")
	}

	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"http://localhost:3000"}
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "chat-service"
	}
	c.JWT.TTL = durationOr(c.JWT.TTL, 7*24*time.Hour)
	if c.Password.MinLength <= 0 {
		c.Password.MinLength = 6
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 4000
	}
	if c.Chat.SendQueueSize <= 0 {
		c.Chat.SendQueueSize = 64
	}
	c.Chat.PingEvery = durationOr(c.Chat.PingEvery, 15*time.Second)
	c.Chat.WriteTimeout = durationOr(c.Chat.WriteTimeout, 5*time.Second)
	if c.Chat.MaxFrameBytes <= 0 {
		c.Chat.MaxFrameBytes = 1 << 20
	}
	if c.RateLimit.Auth <= 0 {
		c.RateLimit.Auth = 20
	}
	c.RateLimit.Window = durationOr(c.RateLimit.Window, time.Minute)
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
