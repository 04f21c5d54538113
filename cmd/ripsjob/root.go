package main

import (
	"github.com/spf13/cobra"

	"github.com/lorveOne/MinisterioRips/internal/config"
)

var (
	envFile   string
	logFormat string

	// Folder overrides; empty means "use the environment".
	flagSourceRoot string
	flagStaging    string
	flagBaseURL    string
)

var rootCmd = &cobra.Command{
	Use:   "ripsjob",
	Short: "RIPS → SISPRO submission pipeline",
	Long:  "Assembles RIPS billing packages from source folders, normalizes them, and submits them to the SISPRO FEV-RIPS validation API.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&flagSourceRoot, "source-root", "", "Source folder root (or set RUTA_BASE_CARPETAS)")
	pf.StringVar(&flagStaging, "staging", "", "Staging folder (default: <source-root>/porEnviar)")
	pf.StringVar(&flagBaseURL, "base-url", "", "SISPRO API base URL (or set BASE_URL)")
}

// loadConfig builds the runtime config from env plus flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if flagSourceRoot != "" {
		cfg.SourceRoot = flagSourceRoot
		cfg.StagingDir = ""
		cfg.ProcessedDir = ""
		cfg.RejectedDir = ""
	}
	if flagStaging != "" {
		cfg.StagingDir = flagStaging
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	cfg.LogFormat = logFormat
	return cfg, nil
}
