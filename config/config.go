package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration reads from YAML either as a Go duration string ("45s") or as a
// bare number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the whole process configuration, loaded once at startup from a
// YAML file with environment overrides for the values that differ per node.
type Config struct {
	GatewayID string `yaml:"gateway_id"`
	Listen    string `yaml:"listen"`

	JWTSecret string `yaml:"jwt_secret"`

	// Presence / call lifecycle tuning. Zero values fall back to defaults.
	PresenceTimeout Duration `yaml:"presence_timeout"`
	RingTimeout     Duration `yaml:"ring_timeout"`
	SweepEvery      Duration `yaml:"sweep_every"`

	Redis RedisConfig `yaml:"redis"`
	Mongo MongoConfig `yaml:"mongo"`
	Nats  NatsConfig  `yaml:"nats"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables the presence mirror
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"` // empty selects the in-memory chat store
	Database string `yaml:"database"`
}

type NatsConfig struct {
	URL string `yaml:"url"` // empty disables cross-gateway relay
}

func defaults() Config {
	return Config{
		GatewayID:       "cb-1",
		Listen:          ":8080",
		JWTSecret:       "dev-secret-change-me",
		PresenceTimeout: Duration(45 * time.Second),
		RingTimeout:     Duration(60 * time.Second),
		SweepEvery:      Duration(5 * time.Second),
		Mongo:           MongoConfig{Database: "callbridge"},
	}
}

// Load reads path if it exists and applies env overrides. A missing file is
// not an error: every field has a usable default for local development.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	cfg.normalize()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CB_GATEWAY_ID"); v != "" {
		cfg.GatewayID = v
	}
	if v := os.Getenv("CB_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CB_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("CB_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CB_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("CB_NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}
}

func (c *Config) normalize() {
	d := defaults()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.GatewayID == "" {
		c.GatewayID = d.GatewayID
	}
	if c.PresenceTimeout <= 0 {
		c.PresenceTimeout = d.PresenceTimeout
	}
	if c.RingTimeout <= 0 {
		c.RingTimeout = d.RingTimeout
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = d.SweepEvery
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = d.Mongo.Database
	}
}
