// Package pipeline sequences one submission run: assemble → validate →
// login → submit → route. Runs are run-to-completion and mutually
// exclusive within the process; a run requested while one is active is
// dropped by the caller via ErrRunInProgress.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/assemble"
	"github.com/lorveOne/MinisterioRips/internal/config"
	"github.com/lorveOne/MinisterioRips/internal/ledger"
	"github.com/lorveOne/MinisterioRips/internal/rips"
	"github.com/lorveOne/MinisterioRips/internal/route"
	"github.com/lorveOne/MinisterioRips/internal/sispro"
)

// ErrRunInProgress is returned when Run is invoked while another run is
// active in this process.
var ErrRunInProgress = errors.New("a run is already in progress")

// PipelineError wraps a run-level failure with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Submitter is the remote API surface the pipeline depends on.
type Submitter interface {
	Login(ctx context.Context) error
	Submit(ctx context.Context, pkg any) (*sispro.SubmitResponse, error)
}

// RunSummary aggregates the statistics of one run.
type RunSummary struct {
	RunID            string
	Assembled        int
	Valid            int
	Invalid          int
	Submitted        int
	Accepted         int
	Duplicates       int
	Rejected         int
	CommFailures     int
	DurationAssemble time.Duration
	DurationSubmit   time.Duration
	DurationTotal    time.Duration
}

// Pipeline executes submission runs over one folder layout.
type Pipeline struct {
	cfg     *config.Config
	log     zerolog.Logger
	client  Submitter
	running atomic.Bool
}

func New(cfg *config.Config, log zerolog.Logger, client Submitter) *Pipeline {
	return &Pipeline{cfg: cfg, log: log, client: client}
}

// IsRunning reports whether a run is active.
func (p *Pipeline) IsRunning() bool {
	return p.running.Load()
}

// stagedUnit is one validated package waiting for submission.
type stagedUnit struct {
	unitID string
	name   string
	env    map[string]any
}

// Run executes one full pass. Per-unit failures are counted and routed;
// only run-level preconditions (folders, ledger, login) abort the run.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	totalStart := time.Now()
	summary := &RunSummary{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", summary.RunID).Logger()

	if err := p.cfg.EnsureDirs(); err != nil {
		return nil, &PipelineError{Phase: "setup", Err: err}
	}
	led, err := ledger.Open(p.cfg.LedgerPath())
	if err != nil {
		return nil, &PipelineError{Phase: "setup", Err: err}
	}

	// Phase 1: Assemble
	log.Info().Str("source_root", p.cfg.SourceRoot).Msg("starting assembly")
	assembleStart := time.Now()
	asm := &assemble.Assembler{
		SourceRoot: p.cfg.SourceRoot,
		StagingDir: p.cfg.StagingDir,
		Ledger:     led,
		Log:        log,
	}
	stagedNew, err := asm.AssembleAll()
	if err != nil {
		return nil, &PipelineError{Phase: "assemble", Err: err}
	}
	summary.Assembled = len(stagedNew)
	summary.DurationAssemble = time.Since(assembleStart)

	router := &route.Router{
		StagingDir:   p.cfg.StagingDir,
		ProcessedDir: p.cfg.ProcessedDir,
		RejectedDir:  p.cfg.RejectedDir,
		Log:          log,
	}

	// Phase 2: Validate everything currently staged, not only this run's
	// output; packages left behind by an interrupted run are picked up.
	units, err := p.validateStaged(log, router, summary)
	if err != nil {
		return nil, &PipelineError{Phase: "validate", Err: err}
	}

	if len(units) == 0 {
		summary.DurationTotal = time.Since(totalStart)
		log.Info().Int("assembled", summary.Assembled).Msg("no valid packages to submit")
		return summary, nil
	}

	// Phase 3: Login, once per run.
	log.Info().Int("packages", len(units)).Msg("authenticating")
	if err := p.client.Login(ctx); err != nil {
		return nil, &PipelineError{Phase: "login", Err: err}
	}

	// Phase 4: Sequential submission with a fixed inter-submission delay.
	submitStart := time.Now()
	for i, unit := range units {
		if i > 0 {
			time.Sleep(p.cfg.SubmitDelay)
		}
		p.submitUnit(ctx, log, router, unit, summary)
	}
	summary.DurationSubmit = time.Since(submitStart)
	summary.DurationTotal = time.Since(totalStart)

	log.Info().
		Int("assembled", summary.Assembled).
		Int("submitted", summary.Submitted).
		Int("accepted", summary.Accepted).
		Int("duplicates", summary.Duplicates).
		Int("rejected", summary.Rejected).
		Int("comm_failures", summary.CommFailures).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("run complete")

	return summary, nil
}

// validateStaged checks every staged package and routes structural
// failures straight to the rejected terminal without submission.
func (p *Pipeline) validateStaged(log zerolog.Logger, router *route.Router, summary *RunSummary) ([]stagedUnit, error) {
	entries, err := os.ReadDir(p.cfg.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("read staging folder: %w", err)
	}

	var units []stagedUnit
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".json") {
			continue
		}
		unitID := assemble.UnitID(name)
		if unitID == "" {
			unitID = strings.TrimSuffix(name, filepath.Ext(name))
		}

		env, err := p.readStaged(name)
		if err == nil {
			err = rips.ValidatePackage(env)
		}
		if err != nil {
			log.Warn().Err(err).Str("package", name).Msg("structural validation failed")
			summary.Invalid++
			outcome := sispro.Outcome{
				Kind:   sispro.OutcomeRejected,
				Detail: fmt.Sprintf("structural validation failed: %s", err),
			}
			if _, rerr := router.Route(unitID, name, outcome); rerr != nil {
				log.Error().Err(rerr).Str("package", name).Msg("routing failed")
			}
			continue
		}

		units = append(units, stagedUnit{unitID: unitID, name: name, env: env})
	}

	sort.Slice(units, func(i, j int) bool { return units[i].name < units[j].name })
	summary.Valid = len(units)
	return units, nil
}

func (p *Pipeline) submitUnit(ctx context.Context, log zerolog.Logger, router *route.Router, unit stagedUnit, summary *RunSummary) {
	log.Info().Str("package", unit.name).Msg("submitting")

	var outcome sispro.Outcome
	resp, err := p.client.Submit(ctx, unit.env)
	if err != nil {
		log.Error().Err(err).Str("package", unit.name).Msg("submission failed")
		outcome = sispro.CommunicationFailure(err)
	} else {
		outcome = sispro.Classify(resp)
	}
	summary.Submitted++

	switch outcome.Kind {
	case sispro.OutcomeAccepted:
		summary.Accepted++
		log.Info().Str("package", unit.name).Str("cuv", outcome.CUV).Msg("package accepted")
	case sispro.OutcomeDuplicateAccepted:
		summary.Duplicates++
		log.Info().Str("package", unit.name).Str("cuv", outcome.CUV).Msg("package already approved previously")
	case sispro.OutcomeRejected:
		summary.Rejected++
		log.Warn().Str("package", unit.name).Int("results", len(outcome.Results)).Msg("package rejected")
	case sispro.OutcomeCommunicationError:
		summary.CommFailures++
	}

	if _, err := router.Route(unit.unitID, unit.name, outcome); err != nil {
		log.Error().Err(err).Str("package", unit.name).Msg("routing failed")
	}
}

func (p *Pipeline) readStaged(name string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(p.cfg.StagingDir, name))
	if err != nil {
		return nil, fmt.Errorf("read staged package: %w", err)
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse staged package: %w", err)
	}
	return env, nil
}
