package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/fmonfasani/nexus/pkg/config"
	"github.com/fmonfasani/nexus/pkg/pubsub"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Cache     CacheConfig
	JWT       JWTConfig
	Meeting   MeetingConfig
	Quality   QualityConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"db_name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Prefix string
	TTL    time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret         string
	AccessDuration time.Duration `mapstructure:"access_duration"`
	Issuer         string
}

// MeetingConfig holds room-coordination tunables.
type MeetingConfig struct {
	// GracePeriod is how long a meeting may sit empty before it is ended.
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	MaxChatLength   int           `mapstructure:"max_chat_length"`
	MaxParticipants int           `mapstructure:"max_participants"`
}

// QualityConfig holds connection-quality tier thresholds. A sample is
// poor when it exceeds a poor threshold, fair when it exceeds a fair
// threshold, good otherwise.
type QualityConfig struct {
	PoorLatencyMs int     `mapstructure:"poor_latency_ms"`
	PoorLossRatio float64 `mapstructure:"poor_loss_ratio"`
	FairLatencyMs int     `mapstructure:"fair_latency_ms"`
	FairLossRatio float64 `mapstructure:"fair_loss_ratio"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file_path", "nexus.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.driver", "kafka")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "meeting-coordinator")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("cache.prefix", "meeting:cache")
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_duration", "15m")
	v.SetDefault("jwt.issuer", "nexus-auth")
	v.SetDefault("meeting.grace_period", "60s")
	v.SetDefault("meeting.max_chat_length", 4000)
	v.SetDefault("meeting.max_participants", 100)
	v.SetDefault("quality.poor_latency_ms", 300)
	v.SetDefault("quality.poor_loss_ratio", 0.05)
	v.SetDefault("quality.fair_latency_ms", 150)
	v.SetDefault("quality.fair_loss_ratio", 0.01)
	v.SetDefault("log.level", "info")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("jwt.secret", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 30*time.Second)
	cfg.JWT.AccessDuration = parseDuration(v, "jwt.access_duration", 15*time.Minute)
	cfg.Meeting.GracePeriod = parseDuration(v, "meeting.grace_period", 60*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
