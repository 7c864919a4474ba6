// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
)

// Config représente la configuration du serveur
type Config struct {
	Server struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		ServerID string `yaml:"server_id"`
	} `yaml:"server"`
	Database struct {
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"database"`
	Supabase struct {
		URL     string `yaml:"url"`
		AnonKey string `yaml:"anon_key"`
	} `yaml:"supabase"`
	Redis struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"redis"`
	CORS struct {
		Origins []string `yaml:"origins"`
	} `yaml:"cors"`
	// Les timeouts viennent de l'environnement (AUTH_TIMEOUT,
	// WS_HEARTBEAT_INTERVAL, WS_CONNECTION_TIMEOUT), en secondes ou au
	// format Go ("30s", "1m")
	Timeouts struct {
		Auth       time.Duration `yaml:"-"`
		Heartbeat  time.Duration `yaml:"-"`
		Connection time.Duration `yaml:"-"`
	} `yaml:"-"`
	Debug bool `yaml:"debug"`
}

// Load charge la configuration depuis le fichier YAML puis applique
// les variables d'environnement. Un fichier .env est chargé s'il existe.
func Load(path string) (*Config, error) {
	// .env est optionnel, l'environnement réel a priorité
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
		} else {
			defer file.Close()
			decoder := yaml.NewDecoder(file)
			if err := decoder.Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// defaults retourne la configuration par défaut
func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Host = ""
	cfg.Server.Port = constants.DefaultServerPort
	cfg.Database.Host = "localhost"
	cfg.Database.Port = "5432"
	cfg.Database.SSLMode = "disable"
	cfg.Timeouts.Auth = constants.AuthTimeout
	cfg.Timeouts.Heartbeat = constants.HeartbeatInterval
	cfg.Timeouts.Connection = constants.ConnectionTimeout
	return cfg
}

// applyEnv applique les variables d'environnement par-dessus le YAML
func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("SERVER_ID"); v != "" {
		cfg.Server.ServerID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		cfg.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		cfg.Supabase.AnonKey = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_TOKEN"); v != "" {
		cfg.Redis.Token = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.Origins = splitOrigins(v)
	}
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Debug, _ = strconv.ParseBool(v)
	}
	if d := envDuration("AUTH_TIMEOUT"); d > 0 {
		cfg.Timeouts.Auth = d
	}
	if d := envDuration("WS_HEARTBEAT_INTERVAL"); d > 0 {
		cfg.Timeouts.Heartbeat = d
	}
	if d := envDuration("WS_CONNECTION_TIMEOUT"); d > 0 {
		cfg.Timeouts.Connection = d
	}
}

// envDuration lit une durée depuis l'environnement, en secondes ou
// au format Go ("30s", "1m")
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

// splitOrigins découpe une liste d'origines séparées par des virgules
func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// DSN retourne la chaîne de connexion Postgres
func (c *Config) DSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.Username,
		c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

// OriginAllowed vérifie si une origine est autorisée pour l'upgrade WebSocket
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.CORS.Origins) == 0 {
		return true
	}
	for _, o := range c.CORS.Origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// validate vérifie la cohérence de la configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Timeouts.Auth <= 0 {
		return fmt.Errorf("auth timeout must be positive")
	}
	return nil
}
