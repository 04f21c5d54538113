package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for a ripsjob run.
type Config struct {
	// Folder layout. StagingDir, ProcessedDir and RejectedDir default to
	// subfolders of SourceRoot when not set explicitly.
	SourceRoot   string
	StagingDir   string
	ProcessedDir string
	RejectedDir  string

	// SISPRO API.
	BaseURL        string
	DocumentType   string
	DocumentNumber string
	Password       string
	NIT            string
	// InsecureSkipVerify disables TLS certificate checks. The SISPRO test
	// environment serves a self-signed certificate.
	InsecureSkipVerify bool

	// SubmitDelay is the pause between consecutive package submissions.
	SubmitDelay time.Duration

	// Scheduler.
	CronSchedule string
	Interval     time.Duration

	// Dashboard.
	DashboardPort int

	LogFormat string // "text" or "json"
}

// Load reads configuration from the environment. When envFile is non-empty
// and exists, it is loaded first via godotenv (existing env vars win).
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		// Best-effort default .env in the working directory.
		_ = godotenv.Load()
	}

	c := &Config{
		SourceRoot:         os.Getenv("RUTA_BASE_CARPETAS"),
		StagingDir:         os.Getenv("RUTA_ARCHIVOS_GENERADOS"),
		ProcessedDir:       os.Getenv("RUTA_ARCHIVOSENVIADOS"),
		RejectedDir:        os.Getenv("RUTA_ARCHIVOSRECHAZADOS"),
		BaseURL:            envOr("BASE_URL", "https://localhost:9443/api"),
		DocumentType:       envOr("TIPO_DOCUMENTO_SISPRO", "CC"),
		DocumentNumber:     os.Getenv("USUARIO_SISPRO"),
		Password:           os.Getenv("PASSWORD_SISPRO"),
		NIT:                os.Getenv("NIT_SISPRO"),
		InsecureSkipVerify: os.Getenv("SISPRO_IGNORE_SSL") == "true",
		SubmitDelay:        time.Second,
		CronSchedule:       envOr("CRON_SCHEDULE", "0 */30 * * * *"),
		Interval:           30 * time.Second,
		DashboardPort:      3000,
		LogFormat:          "text",
	}

	if v := os.Getenv("SUBMIT_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SUBMIT_DELAY_MS %q: %w", v, err)
		}
		c.SubmitDelay = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("INTERVALO_CONTINUO"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid INTERVALO_CONTINUO %q: %w", v, err)
		}
		c.Interval = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("DASHBOARD_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DASHBOARD_PORT %q: %w", v, err)
		}
		c.DashboardPort = p
	}

	c.applyFolderDefaults()
	return c, nil
}

func (c *Config) applyFolderDefaults() {
	if c.SourceRoot == "" {
		return
	}
	if c.StagingDir == "" {
		c.StagingDir = filepath.Join(c.SourceRoot, "porEnviar")
	}
	if c.ProcessedDir == "" {
		c.ProcessedDir = filepath.Join(c.SourceRoot, "procesados")
	}
	if c.RejectedDir == "" {
		c.RejectedDir = filepath.Join(c.SourceRoot, "rechazados")
	}
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("--source-root or RUTA_BASE_CARPETAS is required")
	}
	c.applyFolderDefaults()
	return nil
}

// ValidateWithAPI checks folder fields plus the SISPRO credentials needed
// to submit packages.
func (c *Config) ValidateWithAPI() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if c.DocumentNumber == "" || c.Password == "" || c.NIT == "" {
		return fmt.Errorf("USUARIO_SISPRO, PASSWORD_SISPRO and NIT_SISPRO are required")
	}
	return nil
}

// LedgerPath is the location of the idempotency ledger under the source root.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.SourceRoot, ".units_processed.json")
}

// EnsureDirs creates the source, staging and terminal folders if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.SourceRoot, c.StagingDir, c.ProcessedDir, c.RejectedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
