package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lorveOne/MinisterioRips/internal/dashboard"
	"github.com/lorveOne/MinisterioRips/internal/exitcode"
	"github.com/lorveOne/MinisterioRips/internal/logging"
)

var flagPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator dashboard API",
	Long:  "Serves folder status, the idempotency ledger and a manual run trigger over HTTP.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (or set DASHBOARD_PORT, default 3000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(logFormat)

	cfg, err := loadConfig()
	if err == nil {
		err = cfg.ValidateWithAPI()
	}
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if flagPort != 0 {
		cfg.DashboardPort = flagPort
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Error().Err(err).Msg("could not create pipeline folders")
		os.Exit(exitcode.ServerError)
	}

	srv := dashboard.New(cfg, newPipeline(cfg, log), log)
	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("dashboard server failed")
		os.Exit(exitcode.ServerError)
	}
	return nil
}
