package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Agent    AgentConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Widget   WidgetConfig
	Prompts  PromptsConfig
	Log      LogConfig
}

type AppConfig struct {
	Name string `mapstructure:"name"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AgentHost string `mapstructure:"agent_host"`
	AgentPort int    `mapstructure:"agent_port"`
}

// AgentConfig points at the external agent process. The agent is an
// opaque HTTP peer; every notification outcome doubles as a liveness
// signal.
type AgentConfig struct {
	URL           string        `mapstructure:"url"`
	NotifyTimeout time.Duration `mapstructure:"notify_timeout"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
	StopTimeout   time.Duration `mapstructure:"stop_timeout"`
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type WidgetConfig struct {
	MaxStateBytes  int           `mapstructure:"max_state_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level            string        `mapstructure:"level"`
	Format           string        `mapstructure:"format"`
	Output           string        `mapstructure:"output"`
	File             FileLogConfig `mapstructure:"file"`
	EnableCaller     bool          `mapstructure:"enablecaller"`
	EnableStacktrace bool          `mapstructure:"enablestacktrace"`
}

type FileLogConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxsize"`
	MaxAge     int    `mapstructure:"maxage"`
	MaxBackups int    `mapstructure:"maxbackups"`
	Compress   bool   `mapstructure:"compress"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ClawChat"
	}
	if c.Agent.NotifyTimeout == 0 {
		c.Agent.NotifyTimeout = 10 * time.Second
	}
	if c.Agent.ProbeTimeout == 0 {
		c.Agent.ProbeTimeout = 2 * time.Second
	}
	if c.Agent.StopTimeout == 0 {
		c.Agent.StopTimeout = 5 * time.Second
	}
	if c.Widget.MaxStateBytes == 0 {
		c.Widget.MaxStateBytes = 1024 * 1024
	}
	if c.Widget.RequestTimeout == 0 {
		c.Widget.RequestTimeout = 30 * time.Second
	}
	if c.Widget.MaxUploadBytes == 0 {
		c.Widget.MaxUploadBytes = 100 * 1024 * 1024
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "console"
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
