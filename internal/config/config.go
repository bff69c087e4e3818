package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/weiawesome/live-poll/pkg/config"
	"github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/pubsub"
)

// Auth modes.
const (
	AuthModeTrust = "trust"
	AuthModeToken = "token"
)

type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Session   SessionConfig
	Auth      AuthConfig
	Events    EventsConfig
	Log       log.Config
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	FrontendURL    string   `mapstructure:"frontend_url"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type SessionConfig struct {
	MaxChatLength      int    `mapstructure:"max_chat_length"`
	MaxNameLength      int    `mapstructure:"max_name_length"`
	MaxOptions         int    `mapstructure:"max_options"`
	MaxTimeLimit       int    `mapstructure:"max_time_limit"`
	ValidateVoteOption bool   `mapstructure:"validate_vote_option"`
	RejectActiveCreate bool   `mapstructure:"reject_active_create"`
	IDStrategy         string `mapstructure:"id_strategy"`
}

type AuthConfig struct {
	Mode            string
	PresenterSecret string        `mapstructure:"presenter_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	Issuer          string
}

// TokenMode reports whether presenter privileges require a signed token.
func (a AuthConfig) TokenMode() bool {
	return a.Mode == AuthModeToken
}

type EventsConfig struct {
	pubsub.Config `mapstructure:",squash"`
	Channel       string
	Session       string
	Buffer        int
}

// Load reads config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config", "POLL")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:8080"})
	v.SetDefault("cors.frontend_url", "")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("session.max_chat_length", 200)
	v.SetDefault("session.max_name_length", 64)
	v.SetDefault("session.max_options", 6)
	v.SetDefault("session.max_time_limit", 3600)
	v.SetDefault("session.validate_vote_option", true)
	v.SetDefault("session.reject_active_create", false)
	v.SetDefault("session.id_strategy", "ulid")
	v.SetDefault("auth.mode", AuthModeTrust)
	v.SetDefault("auth.presenter_secret", "")
	v.SetDefault("auth.token_ttl", "12h")
	v.SetDefault("auth.issuer", "live-poll")
	v.SetDefault("events.driver", pubsub.DriverNone)
	v.SetDefault("events.channel", "poll:session:events")
	v.SetDefault("events.session", "default")
	v.SetDefault("events.buffer", 1024)
	v.SetDefault("events.redis.address", "localhost:6379")
	v.SetDefault("events.redis.pool_size", 10)
	v.SetDefault("events.redis.read_timeout", "3s")
	v.SetDefault("events.redis.write_timeout", "3s")
	v.SetDefault("events.kafka.brokers", "localhost:9092")
	v.SetDefault("events.kafka.topic", "poll-session-events")
	v.SetDefault("events.kafka.partitions", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "live-poll")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("cors.frontend_url", "FRONTEND_URL")
	v.BindEnv("auth.mode", "AUTH_MODE")
	v.BindEnv("auth.presenter_secret", "PRESENTER_SECRET")
	v.BindEnv("events.driver", "EVENTS_DRIVER")
	v.BindEnv("events.redis.address", "REDIS_ADDRESS")
	v.BindEnv("events.redis.password", "REDIS_PASSWORD")
	v.BindEnv("events.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("events.kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Server.ShutdownTimeout = pkgconfig.Duration(v, "server.shutdown_timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Auth.TokenTTL = pkgconfig.Duration(v, "auth.token_ttl", 12*time.Hour)
	cfg.Events.Redis.ReadTimeout = pkgconfig.Duration(v, "events.redis.read_timeout", 3*time.Second)
	cfg.Events.Redis.WriteTimeout = pkgconfig.Duration(v, "events.redis.write_timeout", 3*time.Second)

	// Comma separated env values arrive as a single element.
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeTrust:
	case AuthModeToken:
		if c.Auth.PresenterSecret == "" {
			return fmt.Errorf("auth.presenter_secret is required when auth.mode is %q", AuthModeToken)
		}
	default:
		return fmt.Errorf("unsupported auth.mode: %q", c.Auth.Mode)
	}
	if c.Session.MaxOptions < 2 {
		return fmt.Errorf("session.max_options must be at least 2, got %d", c.Session.MaxOptions)
	}
	if c.Session.MaxTimeLimit < 1 {
		return fmt.Errorf("session.max_time_limit must be positive, got %d", c.Session.MaxTimeLimit)
	}
	if c.Session.MaxChatLength < 1 {
		return fmt.Errorf("session.max_chat_length must be positive, got %d", c.Session.MaxChatLength)
	}
	if c.Events.Buffer < 1 {
		c.Events.Buffer = 1
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
