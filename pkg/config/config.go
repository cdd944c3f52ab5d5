package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Limits LimitsConfig
	Log    LogConfig
	Client ClientConfig
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DBConfig struct {
	// Driver 為 postgres 或 sqlite
	Driver   string
	Path     string
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// AuthConfig 控制 JWT 的簽發與驗證
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// LimitsConfig 每個用戶發送訊息的速率限制
type LimitsConfig struct {
	SendRPS   float64 `mapstructure:"send_rps"`
	SendBurst int     `mapstructure:"send_burst"`
}

type LogConfig struct {
	Level string
}

// ClientConfig 供 chatclient 使用的連線設定
type ClientConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Token            string        `mapstructure:"token"`
	PageSize         int           `mapstructure:"page_size"`
	ParticipantTTL   time.Duration `mapstructure:"participant_ttl"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.path", "eventchat.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 240*time.Hour)

	v.SetDefault("limits.send_rps", 5.0)
	v.SetDefault("limits.send_burst", 10)

	v.SetDefault("log.level", "info")

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.page_size", 50)
	v.SetDefault("client.participant_ttl", 5*time.Minute)
	v.SetDefault("client.reconnect_backoff", 2*time.Second)
}

// Load 讀取 .env、config.yaml 以及 EVENTCHAT_* 環境變數
// 找不到配置文件時只使用預設值與環境變數
func Load() (*Config, error) {
	// .env 是可選的
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./pkg/config")

	v.SetEnvPrefix("EVENTCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
