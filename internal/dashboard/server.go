// Package dashboard exposes a small HTTP surface for operators: folder
// counts, the idempotency ledger, a reset for failed units, and a manual
// run trigger.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/config"
	"github.com/lorveOne/MinisterioRips/internal/ledger"
	"github.com/lorveOne/MinisterioRips/internal/pipeline"
)

// Trigger starts pipeline runs and reports whether one is active.
type Trigger interface {
	Run(ctx context.Context) (*pipeline.RunSummary, error)
	IsRunning() bool
}

// Server serves the operator dashboard API.
type Server struct {
	cfg     *config.Config
	trigger Trigger
	log     zerolog.Logger
}

func New(cfg *config.Config, trigger Trigger, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, trigger: trigger, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	api := r.Group("/api")
	{
		api.GET("/folders", s.folderStatus)
		api.GET("/ledger", s.ledgerView)
		api.POST("/ledger/clear-rejected", s.clearRejected)
		api.POST("/run", s.triggerRun)
	}
	return r
}

// ListenAndServe blocks serving the dashboard until the listener fails.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.DashboardPort)
	s.log.Info().Str("addr", addr).Msg("dashboard listening")
	return s.Router().Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "running": s.trigger.IsRunning()})
}

// folderStatus reports JSON file counts per pipeline folder plus the
// number of source folders not yet assembled.
func (s *Server) folderStatus(c *gin.Context) {
	status := gin.H{
		"porEnviar":  countJSONFiles(s.cfg.StagingDir),
		"procesados": countSubdirs(s.cfg.ProcessedDir),
		"rechazados": countSubdirs(s.cfg.RejectedDir),
	}

	pending, err := s.pendingSourceFolders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status["pendientes"] = pending
	c.JSON(http.StatusOK, status)
}

func (s *Server) ledgerView(c *gin.Context) {
	led, err := ledger.Open(s.cfg.LedgerPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, led.Entries())
}

// clearRejected drops missing_files and error entries from the ledger so
// the affected units are reassembled on the next run.
func (s *Server) clearRejected(c *gin.Context) {
	led, err := ledger.Open(s.cfg.LedgerPath())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	removed, err := led.ClearRetryable()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"cleared": removed})
}

// triggerRun launches a run in the background; 409 when one is active.
func (s *Server) triggerRun(c *gin.Context) {
	if s.trigger.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}
	go func() {
		if _, err := s.trigger.Run(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("manual run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "run started"})
}

func (s *Server) pendingSourceFolders() (int, error) {
	entries, err := os.ReadDir(s.cfg.SourceRoot)
	if err != nil {
		return 0, err
	}

	led, err := ledger.Open(s.cfg.LedgerPath())
	if err != nil {
		return 0, err
	}

	reserved := map[string]bool{
		filepath.Base(s.cfg.StagingDir):   true,
		filepath.Base(s.cfg.ProcessedDir): true,
		filepath.Base(s.cfg.RejectedDir):  true,
	}

	pending := 0
	for _, e := range entries {
		if !e.IsDir() || reserved[e.Name()] {
			continue
		}
		if !led.Has(e.Name()) {
			pending++
		}
	}
	return pending, nil
}

func countJSONFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			n++
		}
	}
	return n
}

func countSubdirs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			n++
		}
	}
	return n
}
