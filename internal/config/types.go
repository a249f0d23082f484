package config

// Config is the top-level configuration structure parsed from commitly YAML.
type Config struct {
	Git         GitConfig         `yaml:"git"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Test        TestConfig        `yaml:"test"`
	Database    DatabaseConfig    `yaml:"database"`
	LLM         LLMConfig         `yaml:"llm"`
	Refactoring RefactoringConfig `yaml:"refactoring"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Checks      map[string]Check  `yaml:"checks"`
	Notify      NotifyConfig      `yaml:"notify"`
	Report      ReportConfig      `yaml:"report"`
}

// GitConfig holds version-control settings.
type GitConfig struct {
	Remote string `yaml:"remote"`
}

// ExecutionConfig describes how the project's primary command is run.
type ExecutionConfig struct {
	Command   string `yaml:"command"`
	Timeout   int    `yaml:"timeout"` // seconds
	PythonBin string `yaml:"python_bin"`
	MaxMemory int    `yaml:"max_memory"` // MiB, advisory
}

// TestConfig describes how the project's test command is run.
type TestConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // seconds
}

// DatabaseConfig is the optimizer's target database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Dialect  string `yaml:"dialect"`
}

// LLMConfig configures the language-model handle.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// RefactoringConfig overrides the refactoring rule prompt.
type RefactoringConfig struct {
	Rules string `yaml:"rules"`
}

// PipelineConfig holds pipeline-level switches.
type PipelineConfig struct {
	CleanupHubOnFailure bool `yaml:"cleanup_hub_on_failure"`
}

// Check defines a static-analysis or formatter command invoked between
// pipeline steps. A missing tool is a soft skip, not a failure.
type Check struct {
	Command string `yaml:"command"`
	Parser  string `yaml:"parser"`
	Timeout int    `yaml:"timeout"` // seconds
	Fix     bool   `yaml:"fix"`
}

// NotifyConfig configures the non-blocking Notify agent.
type NotifyConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Channel       string   `yaml:"channel"`
	Token         string   `yaml:"token"`
	WindowDays    int      `yaml:"window_days"`
	Keywords      []string `yaml:"keywords"`
	ReplyTemplate string   `yaml:"reply_template"`
}

// ReportConfig configures the non-blocking Report agent.
type ReportConfig struct {
	Format string `yaml:"format"` // md | pdf | html; pdf and html degrade to md
}
