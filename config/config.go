package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config 两个 demo server 共用的配置，字段按 envconfig 规则从环境变量读取
type Config struct {
	Server     ServerConfig
	Tracing    TracingConfig
	Log        LogConfig
	Tracker    TrackerConfig
	Downstream DownstreamConfig
}

// ServerConfig HTTP server 配置
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// TracingConfig OTel 配置
type TracingConfig struct {
	ServiceName string  `envconfig:"SERVICE_NAME"`
	Exporter    string  `envconfig:"EXPORTER" default:"console"` // console / otlp / otlphttp / none
	Endpoint    string  `envconfig:"ENDPOINT" default:"localhost:4317"`
	Insecure    bool    `envconfig:"INSECURE" default:"true"`
	PrettyPrint bool    `envconfig:"PRETTY_PRINT" default:"false"`
	SampleRatio float64 `envconfig:"SAMPLE_RATIO" default:"1"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir     string `envconfig:"DIR" default:"logs"`
	Level   string `envconfig:"LEVEL" default:"info"`
	Console bool   `envconfig:"CONSOLE" default:"false"`
}

// TrackerConfig trace id 去重配置
type TrackerConfig struct {
	ResultsFile string `envconfig:"RESULTS_FILE" default:"trace-results.log"`
	// 遇到重复 trace id 是否直接退出进程
	FailOnDuplicate bool `envconfig:"FAIL_ON_DUPLICATE" default:"true"`
}

// DownstreamConfig simpleapi 下游调用配置
type DownstreamConfig struct {
	URL         string        `envconfig:"URL" default:"http://worldtimeapi.org/api/timezone/Etc/UTC"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"5s"`
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"1"` // 总尝试次数，1 表示不重试
}

// Load 按 prefix 读取环境变量，如 TRACEIDCHECK_SERVER_ADDR
func Load(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = prefix
	}
	return &cfg, nil
}
