package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/ppiankov/casefile/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	verbose     bool
	logFile     string
	logLevel    string
	metricsFile string
	deadline    time.Duration

	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "casefile",
	Short: "Collect and verify news reports of human-trafficking incidents",
	Long: `Casefile discovers news articles, fetches and extracts their text,
and asks a language model whether each one reports an actual trafficking
incident. Confirmed incidents, suspects and victims are stored as
structured records.

Workflow:
  casefile discover          # search for candidate articles, write CSV exports
  casefile mine              # process the newest exports into the store
  casefile urls              # list what has been stored`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("casefile %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.casefile/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file as well as stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write a Prometheus textfile with run counters")
	rootCmd.PersistentFlags().DurationVar(&deadline, "deadline", 0, "stop the run after this long (0 = no deadline)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".casefile"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, the config file, CASEFILE_* variables and the
// provider key variables into one Config. Flags are applied by each command.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	v := viper.GetViper()
	configureEnv(v)
	registerDefaults(v, "", reflect.ValueOf(cfg).Elem())
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	resolveLLMKey(&cfg.LLM)
	cfg.Search.APIKey = firstNonEmpty(cfg.Search.APIKey, os.Getenv("GOOGLE_API_KEY"))
	cfg.Search.EngineID = firstNonEmpty(cfg.Search.EngineID, os.Getenv("GOOGLE_CSE_ID"))

	if logFile != "" {
		cfg.Output.LogFile = logFile
	}
	if logLevel != "" {
		cfg.Output.LogLevel = logLevel
	}
	if metricsFile != "" {
		cfg.Output.MetricsFile = metricsFile
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Output.LogLevel = "debug"
	}
	return cfg, nil
}

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("CASEFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// registerDefaults declares every mapstructure key of the config struct with
// its default value. AutomaticEnv only resolves keys viper knows about, so
// without this CASEFILE_* variables are ignored when no config file is read.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

// resolveLLMKey fills the credentials of the selected provider from its
// environment variable when the config does not set them
func resolveLLMKey(c *model.LLMConfig) {
	switch strings.ToLower(c.Provider) {
	case "openai", "":
		c.APIKey = firstNonEmpty(c.APIKey, os.Getenv("OPENAI_API_KEY"))
	case "anthropic", "claude":
		c.APIKey = firstNonEmpty(c.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	case "ollama":
		c.BaseURL = firstNonEmpty(os.Getenv("OLLAMA_BASE_URL"), c.BaseURL)
	}
}

// runContext is canceled on SIGINT/SIGTERM and, when set, after --deadline
func runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if deadline <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	return ctx, func() {
		cancel()
		stop()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
