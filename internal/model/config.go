package model

import "time"

// DefaultUserAgent is a realistic desktop browser UA; several news sites
// refuse obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.85 Safari/537.36"

// Config is the complete runtime configuration. It is built once by the CLI
// and passed down to every component constructor.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures plain HTTP fetches used by the extraction tiers
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent        string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy        string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy       string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	RequestsPerSec   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per domain
	BurstSize        int           `yaml:"burst_size" mapstructure:"burst_size"`
	RespectRobotsTxt bool          `yaml:"respect_robots_txt" mapstructure:"respect_robots_txt"`
}

// BrowserConfig configures the headless Chrome sessions
type BrowserConfig struct {
	ExecPath        string        `yaml:"exec_path,omitempty" mapstructure:"exec_path"` // Empty: chromedp finds Chrome
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" mapstructure:"page_load_timeout"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
	WindowWidth     int           `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight    int           `yaml:"window_height" mapstructure:"window_height"`
}

// ExtractionConfig configures the text extraction fallback chain
type ExtractionConfig struct {
	MinTextLength int           `yaml:"min_text_length" mapstructure:"min_text_length"` // In characters
	FetchTimeout  time.Duration `yaml:"fetch_timeout" mapstructure:"fetch_timeout"`     // Readability tier GET
	SettleDelay   time.Duration `yaml:"settle_delay" mapstructure:"settle_delay"`       // Rendered tier wait for dynamic content
	RenderTimeout time.Duration `yaml:"render_timeout" mapstructure:"render_timeout"`
}

// LLMConfig selects and configures the language-model backend
type LLMConfig struct {
	Provider     string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model        string        `yaml:"model" mapstructure:"model"`
	APIKey       string        `yaml:"-" mapstructure:"api_key"`
	BaseURL      string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Temperature  float32       `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens    int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	MemoryTokens int           `yaml:"memory_tokens" mapstructure:"memory_tokens"` // Chat history budget per session
}

// RetryConfig holds the retry budgets of the fetch driver and the verification engine
type RetryConfig struct {
	LoadAttempts   int           `yaml:"load_attempts" mapstructure:"load_attempts"`
	LoadDelay      time.Duration `yaml:"load_delay" mapstructure:"load_delay"`
	QueryAttempts  int           `yaml:"query_attempts" mapstructure:"query_attempts"` // Attempts per prompt while rate limited
	QueryBaseDelay time.Duration `yaml:"query_base_delay" mapstructure:"query_base_delay"`
	QueryJitter    time.Duration `yaml:"query_jitter" mapstructure:"query_jitter"`
	EntityPauseMin time.Duration `yaml:"entity_pause_min" mapstructure:"entity_pause_min"`
	EntityPauseMax time.Duration `yaml:"entity_pause_max" mapstructure:"entity_pause_max"`
}

// PipelineConfig configures the per-URL orchestrator
type PipelineConfig struct {
	RetryUnresolved bool          `yaml:"retry_unresolved" mapstructure:"retry_unresolved"`
	URLPauseMin     time.Duration `yaml:"url_pause_min" mapstructure:"url_pause_min"`
	URLPauseMax     time.Duration `yaml:"url_pause_max" mapstructure:"url_pause_max"`
	CandidateDir    string        `yaml:"candidate_dir" mapstructure:"candidate_dir"`       // Directory of discover CSV exports
	CandidateFiles  int           `yaml:"candidate_files" mapstructure:"candidate_files"`   // Newest N files to read
	MaxCandidates   int           `yaml:"max_candidates" mapstructure:"max_candidates"`     // Cap on URLs read per run
	StoreScanLimit  int           `yaml:"store_scan_limit" mapstructure:"store_scan_limit"` // Limit for the dedup scan
}

// StoreConfig locates the record store
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SearchRun is one configured discovery query
type SearchRun struct {
	ID              string   `yaml:"id" mapstructure:"id"`
	DaysBack        int      `yaml:"days_back" mapstructure:"days_back"`
	Region          string   `yaml:"region" mapstructure:"region"`
	ExcludedDomains []string `yaml:"excluded_domains" mapstructure:"excluded_domains"`
}

// SearchConfig configures the discover command
type SearchConfig struct {
	APIKey     string        `yaml:"-" mapstructure:"api_key"`
	EngineID   string        `yaml:"-" mapstructure:"engine_id"`
	MaxResults int           `yaml:"max_results" mapstructure:"max_results"`
	PagePause  time.Duration `yaml:"page_pause" mapstructure:"page_pause"`
	Runs       []SearchRun   `yaml:"runs" mapstructure:"runs"`
}

// OutputConfig configures logs and run artifacts
type OutputConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	LogFile     string `yaml:"log_file,omitempty" mapstructure:"log_file"`
	LogLevel    string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat   string `yaml:"log_format" mapstructure:"log_format"` // text or json
	MetricsFile string `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the defaults used when no config file or flag overrides a value
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:        10 * time.Second,
			UserAgent:      DefaultUserAgent,
			MaxBodyBytes:   5_000_000,
			RequestsPerSec: 1,
			BurstSize:      2,
		},
		Browser: BrowserConfig{
			UserAgent:       DefaultUserAgent,
			PageLoadTimeout: 30 * time.Second,
			ProbeTimeout:    30 * time.Second,
			WindowWidth:     1920,
			WindowHeight:    1080,
		},
		Extraction: ExtractionConfig{
			MinTextLength: 100,
			FetchTimeout:  10 * time.Second,
			SettleDelay:   3 * time.Second,
			RenderTimeout: 45 * time.Second,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "o3-mini",
			Timeout:      120 * time.Second,
			Temperature:  0,
			MaxTokens:    2000,
			MemoryTokens: 3000,
		},
		Retry: RetryConfig{
			LoadAttempts:   3,
			LoadDelay:      5 * time.Second,
			QueryAttempts:  5,
			QueryBaseDelay: 5 * time.Second,
			QueryJitter:    time.Second,
			EntityPauseMin: time.Second,
			EntityPauseMax: 3 * time.Second,
		},
		Pipeline: PipelineConfig{
			RetryUnresolved: true,
			URLPauseMin:     time.Second,
			URLPauseMax:     3 * time.Second,
			CandidateDir:    "output",
			CandidateFiles:  4,
			MaxCandidates:   1000,
			StoreScanLimit:  1_000_000,
		},
		Store: StoreConfig{
			Path: ".casefile/casefile.db",
		},
		Search: SearchConfig{
			MaxResults: 200,
			PagePause:  time.Second,
			Runs: []SearchRun{
				{ID: "default_search", DaysBack: 7, Region: "South Africa"},
			},
		},
		Output: OutputConfig{
			Dir:       "output",
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}
