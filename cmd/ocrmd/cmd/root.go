package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jo-hoe/ocrmd/internal/app"
	"github.com/jo-hoe/ocrmd/internal/config"
)

var (
	cfgFile  string
	logLevel string
	envFile  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ocrmd",
	Short: "Transcribe documents and images to Markdown with a multimodal LLM",
	Long: `ocrmd sends each file together with one fixed instruction to a hosted
multimodal model and writes back the Markdown it returns.

- "transcribe" handles local files and writes <name>.md next to them
- "serve" exposes the same pipeline over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(envFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $OCRMD_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug|info|warn|error (overrides server.logLevel)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// loadDotEnv never overrides variables that are already set; a missing file is fine.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadConfig reads the config, lets override adjust it, then applies defaults and validation.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Read(cfgFile)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if logLevel != "" {
		level = config.ParseLogLevel(logLevel)
	}
	return app.NewLogger(os.Stderr, level)
}
