package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // chat-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Chat struct {
	TypingTTL         string `yaml:"typingTTL"`         // default 5s
	StreamHeartbeat   string `yaml:"streamHeartbeat"`   // default 30s
	MaxMessageLen     int    `yaml:"maxMessageLen"`     // default 4000
	HistoryPageLimit  int    `yaml:"historyPageLimit"`  // default 50
	ListenReconnect   string `yaml:"listenReconnect"`   // default 3s
	SubscriberBacklog int    `yaml:"subscriberBacklog"` // default 16
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Chat     Chat     `yaml:"chat"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	// установка дефолтов, если значения не указаны
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
	if c.Chat.MaxMessageLen <= 0 {
		c.Chat.MaxMessageLen = 4000
	}
	if c.Chat.HistoryPageLimit <= 0 {
		c.Chat.HistoryPageLimit = 50
	}
	if c.Chat.SubscriberBacklog <= 0 {
		c.Chat.SubscriberBacklog = 16
	}
	return nil
}

func (c *Chat) TypingTTLDuration() time.Duration {
	return parseDurationOr(5*time.Second, c.TypingTTL)
}

func (c *Chat) StreamHeartbeatDuration() time.Duration {
	return parseDurationOr(30*time.Second, c.StreamHeartbeat)
}

func (c *Chat) ListenReconnectDuration() time.Duration {
	return parseDurationOr(3*time.Second, c.ListenReconnect)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
