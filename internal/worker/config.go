package worker

import (
	"fmt"
	"os"
	"time"

	"github.com/agentdock/backend/internal/config"
	"gopkg.in/yaml.v3"
)

var defaultConfigPaths = []string{
	"./sandbox-worker.yaml",
	"/etc/agentdock/sandbox-worker.yaml",
}

type Config struct {
	QueueBackend      string        `yaml:"queue_backend"`
	CommandQueue      string        `yaml:"command_queue"`
	ResponseQueue     string        `yaml:"response_queue"`
	ConnectionString  string        `yaml:"connection_string"`
	DatabaseDSN       string        `yaml:"database_dsn"`
	ProjectsDir       string        `yaml:"projects_dir"`
	Shell             string        `yaml:"shell"`
	ListenAddr        string        `yaml:"listen_addr"`
	LogLevel          string        `yaml:"log_level"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	CommandTimeout    time.Duration `yaml:"command_timeout"`
}

// Load reads the YAML file at path, or the first default path that exists.
// A missing file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	var cfg Config

	configPath := path
	if configPath == "" {
		for _, p := range defaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); v != "" {
		c.ConnectionString = v
	}
	if v := os.Getenv("AGENTDOCK_WORKER_QUEUE_BACKEND"); v != "" {
		c.QueueBackend = v
	}
	if v := os.Getenv("AGENTDOCK_WORKER_DATABASE_DSN"); v != "" {
		c.DatabaseDSN = v
	}
	if v := os.Getenv("SHELL_BIN"); v != "" {
		c.Shell = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
}

func (c *Config) SetDefaults() {
	if c.QueueBackend == "" {
		c.QueueBackend = "azure"
	}
	if c.CommandQueue == "" {
		c.CommandQueue = "commands"
	}
	if c.ResponseQueue == "" {
		c.ResponseQueue = "responses"
	}
	if c.ProjectsDir == "" {
		c.ProjectsDir = "/projects"
	}
	if c.Shell == "" {
		c.Shell = "bash"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":3000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 30 * time.Second
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 10 * time.Minute
	}
}

func (c *Config) Validate() error {
	switch c.QueueBackend {
	case "azure":
		if c.ConnectionString == "" {
			return fmt.Errorf("connection_string is required for the azure queue")
		}
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database_dsn is required for the postgres queue")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown queue_backend %q", c.QueueBackend)
	}
	return nil
}

// QueueConfig maps the worker settings onto the shared queue section.
func (c *Config) QueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Backend:           c.QueueBackend,
		CommandQueue:      c.CommandQueue,
		ResponseQueue:     c.ResponseQueue,
		ConnectionString:  c.ConnectionString,
		PollInterval:      c.PollInterval,
		VisibilityTimeout: c.VisibilityTimeout,
	}
}
