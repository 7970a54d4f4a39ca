package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Executor ExecutorConfig `mapstructure:"executor"`
	TaskLoop TaskLoopConfig `mapstructure:"task_loop"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Anchor   AnchorConfig   `mapstructure:"anchor"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Session  SessionConfig  `mapstructure:"session"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Features FeaturesConfig `mapstructure:"features"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// QueueConfig selects the transport for the command and response channels.
// Backend is one of memory, postgres or azure.
type QueueConfig struct {
	Backend           string        `mapstructure:"backend"`
	CommandQueue      string        `mapstructure:"command_queue"`
	ResponseQueue     string        `mapstructure:"response_queue"`
	ConnectionString  string        `mapstructure:"connection_string"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ResponseTimeout   time.Duration `mapstructure:"response_timeout"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	BatchSize         int           `mapstructure:"batch_size"`
}

type ExecutorConfig struct {
	Backend        string        `mapstructure:"backend"`
	Container      string        `mapstructure:"container"`
	ProjectsDir    string        `mapstructure:"projects_dir"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	SSH            SSHConfig     `mapstructure:"ssh"`
}

type SSHConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type TaskLoopConfig struct {
	MaxRetries      int    `mapstructure:"max_retries"`
	MaxIterations   int    `mapstructure:"max_iterations"`
	FallbackCommand string `mapstructure:"fallback_command"`
	MaxTokens       int    `mapstructure:"max_tokens"`
	Model           string `mapstructure:"model"`
}

type LLMConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Temperature    float64 `mapstructure:"temperature"`
	CacheSize      int     `mapstructure:"cache_size"`
}

type AnchorConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Headless   bool          `mapstructure:"headless"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

type BrowserConfig struct {
	MaxSteps       int           `mapstructure:"max_steps"`
	StartURL       string        `mapstructure:"start_url"`
	PageTextLimit  int           `mapstructure:"page_text_limit"`
	StepTimeout    time.Duration `mapstructure:"step_timeout"`
	EndOnComplete  bool          `mapstructure:"end_on_complete"`
	DefaultUser    string        `mapstructure:"default_user"`
	DefaultBrowser int           `mapstructure:"default_browser_count"`
}

type SessionConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type MemoryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	PersistPath string `mapstructure:"persist_path"`
	DefaultK    int    `mapstructure:"default_k"`
}

type FeaturesConfig struct {
	RequestIDHeader      string        `mapstructure:"request_id_header"`
	EnableRequestLogging bool          `mapstructure:"enable_request_logging"`
	EnableMetrics        bool          `mapstructure:"enable_metrics"`
	EnableJournal        bool          `mapstructure:"enable_journal"`
	JournalRetention     time.Duration `mapstructure:"journal_retention"`
}

type AuthConfig struct {
	APIKey         string   `mapstructure:"api_key"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads the YAML file at path, overlays AGENTDOCK_* environment
// variables and the well-known provider secrets, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("AGENTDOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range secretEnv {
		if err := v.BindEnv(key, "AGENTDOCK_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// secretEnv maps config keys to the plain environment variables the
// deployment already exports.
var secretEnv = map[string]string{
	"llm.api_key":             "OPENAI_API_KEY",
	"llm.base_url":            "OPENAI_BASE_URL",
	"anchor.api_key":          "ANCHOR_API_KEY",
	"queue.connection_string": "AZURE_STORAGE_CONNECTION_STRING",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.command_queue", "commands")
	v.SetDefault("queue.response_queue", "responses")
	v.SetDefault("queue.poll_interval", 5*time.Second)
	v.SetDefault("queue.response_timeout", 300*time.Second)
	v.SetDefault("queue.visibility_timeout", 30*time.Second)
	v.SetDefault("queue.batch_size", 32)

	v.SetDefault("executor.backend", "local")
	v.SetDefault("executor.container", "sandbox-container")
	v.SetDefault("executor.projects_dir", "/projects")
	v.SetDefault("executor.command_timeout", 5*time.Minute)
	v.SetDefault("executor.ssh.port", 22)
	v.SetDefault("executor.ssh.timeout", 10*time.Second)

	v.SetDefault("task_loop.max_retries", 3)
	v.SetDefault("task_loop.max_iterations", 50)
	v.SetDefault("task_loop.fallback_command", "pwd")
	v.SetDefault("task_loop.max_tokens", 500)

	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.cache_size", 1024)

	v.SetDefault("anchor.base_url", "https://api.anchorbrowser.io")
	v.SetDefault("anchor.timeout", 60*time.Second)
	v.SetDefault("anchor.max_retries", 3)

	v.SetDefault("browser.max_steps", 3)
	v.SetDefault("browser.start_url", "https://duckduckgo.com/html/?q=")
	v.SetDefault("browser.page_text_limit", 6000)
	v.SetDefault("browser.step_timeout", 45*time.Second)
	v.SetDefault("browser.end_on_complete", true)
	v.SetDefault("browser.default_user", "Anonymous User")
	v.SetDefault("browser.default_browser_count", 1)

	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.reap_interval", time.Minute)

	v.SetDefault("memory.enabled", true)
	v.SetDefault("memory.default_k", 4)

	v.SetDefault("features.request_id_header", "X-Request-ID")
	v.SetDefault("features.enable_request_logging", true)
	v.SetDefault("features.enable_metrics", true)
	v.SetDefault("features.enable_journal", true)
	v.SetDefault("features.journal_retention", 7*24*time.Hour)
}

var (
	ErrMissingLLMKey        = errors.New("config: llm.api_key (OPENAI_API_KEY) is required")
	ErrMissingAnchorKey     = errors.New("config: anchor.api_key (ANCHOR_API_KEY) is required")
	ErrMissingQueueConn     = errors.New("config: queue.connection_string is required for the azure backend")
	ErrUnknownQueueBackend  = errors.New("config: unknown queue backend")
	ErrUnknownExecutor      = errors.New("config: unknown executor backend")
	ErrMissingSSHHost       = errors.New("config: executor.ssh.host is required for the ssh backend")
	ErrInvalidTaskLoopLimit = errors.New("config: task_loop.max_retries and max_iterations must be positive")
)

// Validate fails fast on credentials and settings the process cannot run without.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingLLMKey
	}
	if c.Anchor.APIKey == "" {
		return ErrMissingAnchorKey
	}

	switch c.Queue.Backend {
	case "memory", "postgres":
	case "azure":
		if c.Queue.ConnectionString == "" {
			return ErrMissingQueueConn
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQueueBackend, c.Queue.Backend)
	}

	switch c.Executor.Backend {
	case "local", "queue", "azure":
	case "ssh":
		if c.Executor.SSH.Host == "" {
			return ErrMissingSSHHost
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExecutor, c.Executor.Backend)
	}

	if c.TaskLoop.MaxRetries <= 0 || c.TaskLoop.MaxIterations <= 0 {
		return ErrInvalidTaskLoopLimit
	}
	return nil
}
