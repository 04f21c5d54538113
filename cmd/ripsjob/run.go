package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lorveOne/MinisterioRips/internal/config"
	"github.com/lorveOne/MinisterioRips/internal/exitcode"
	"github.com/lorveOne/MinisterioRips/internal/logging"
	"github.com/lorveOne/MinisterioRips/internal/pipeline"
	"github.com/lorveOne/MinisterioRips/internal/sispro"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one submission run and exit",
	RunE:  runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	log := logging.Setup(logFormat)

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.ValidateWithAPI()
	}
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pipe := newPipeline(cfg, log)
	summary, err := pipe.Run(context.Background())
	if err != nil {
		var pe *pipeline.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("run failed")
			switch pe.Phase {
			case "setup", "assemble", "validate":
				os.Exit(exitcode.AssembleError)
			case "login":
				os.Exit(exitcode.AuthError)
			default:
				os.Exit(exitcode.SubmitError)
			}
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(exitcode.SubmitError)
	}

	fmt.Printf("Run complete: %d assembled, %d submitted, %d accepted, %d rejected (%.1fs)\n",
		summary.Assembled, summary.Submitted, summary.Accepted+summary.Duplicates,
		summary.Rejected+summary.CommFailures, summary.DurationTotal.Seconds())
	return nil
}

func newPipeline(cfg *config.Config, log zerolog.Logger) *pipeline.Pipeline {
	client := sispro.NewClient(cfg.BaseURL, sispro.Credentials{
		DocumentType:   cfg.DocumentType,
		DocumentNumber: cfg.DocumentNumber,
		Password:       cfg.Password,
		NIT:            cfg.NIT,
	}, cfg.InsecureSkipVerify)
	return pipeline.New(cfg, log, client)
}
