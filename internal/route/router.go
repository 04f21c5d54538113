// Package route moves submitted packages to their terminal folders and
// writes the audit trail. Routing never re-decides an outcome: a missing
// or already-moved file is logged and skipped, not raised.
package route

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/sispro"
)

// AuditRecord is the per-unit audit document written next to the routed
// package. Never updated after creation.
type AuditRecord struct {
	ResultState     bool                      `json:"resultState"`
	ValidationID    *string                   `json:"validationId"`
	InvoiceNumber   string                    `json:"invoiceNumber"`
	SubmittedAt     string                    `json:"submittedAt"`
	ItemizedResults []sispro.ValidationResult `json:"itemizedResults"`
}

// dailyLogEntry is one line of the per-day run log kept in each terminal
// root, mirroring the historical log_<date>.json files operators rely on.
type dailyLogEntry struct {
	Factura string `json:"factura"`
	CUV     string `json:"cuv,omitempty"`
	Errores any    `json:"errores"`
}

// Router relocates staged packages into terminal folders.
type Router struct {
	StagingDir   string
	ProcessedDir string
	RejectedDir  string
	Log          zerolog.Logger
	Now          func() time.Time // defaults to time.Now
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Route moves the unit's artifacts to their terminal folder according to
// the outcome and writes the audit record. It returns the terminal path.
func (r *Router) Route(unitID, stagedName string, outcome sispro.Outcome) (string, error) {
	stagedPath := filepath.Join(r.StagingDir, stagedName)

	env := r.readEnvelope(stagedPath)
	invoice := invoiceNumber(env)

	if outcome.Accepted() {
		return r.routeAccepted(unitID, stagedPath, env, invoice, outcome)
	}
	return r.routeRejected(unitID, stagedPath, invoice, outcome)
}

// routeAccepted restructures the package so the claims record becomes the
// top-level document, drops it into processed/<invoice>/ and records the CUV.
func (r *Router) routeAccepted(unitID, stagedPath string, env map[string]any, invoice string, outcome sispro.Outcome) (string, error) {
	name := invoice
	if name == "" {
		name = unitID
	}
	dir := filepath.Join(r.ProcessedDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create terminal folder: %w", err)
	}

	if record, ok := env["rips"].(map[string]any); ok {
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode claims record: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644); err != nil {
			return "", fmt.Errorf("write claims record: %w", err)
		}
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			r.Log.Warn().Err(err).Str("unit", unitID).Msg("could not remove staged package")
		}
	} else {
		r.Log.Warn().Str("unit", unitID).Msg("staged package unreadable, writing audit only")
	}
	r.moveSiblings(unitID, filepath.Base(stagedPath), dir)

	audit := AuditRecord{
		ResultState:     true,
		ValidationID:    optional(outcome.CUV),
		InvoiceNumber:   name,
		SubmittedAt:     r.now().UTC().Format(time.RFC3339),
		ItemizedResults: []sispro.ValidationResult{},
	}
	if err := r.writeAudit(dir, name, audit); err != nil {
		return "", err
	}
	r.appendDailyLog(r.ProcessedDir, dailyLogEntry{Factura: name, CUV: outcome.CUV, Errores: ""})

	r.Log.Info().Str("unit", unitID).Str("outcome", outcome.Kind.String()).Str("terminal", dir).Msg("unit routed")
	return dir, nil
}

// routeRejected moves the package untouched into rejected/<invoice-or-unit>/
// together with the full itemized validation results.
func (r *Router) routeRejected(unitID, stagedPath, invoice string, outcome sispro.Outcome) (string, error) {
	name := invoice
	if name == "" {
		name = unitID
	}
	dir := filepath.Join(r.RejectedDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create terminal folder: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(stagedPath))
	if err := os.Rename(stagedPath, dest); err != nil {
		if os.IsNotExist(err) {
			r.Log.Warn().Str("unit", unitID).Msg("staged package already moved")
		} else {
			r.Log.Warn().Err(err).Str("unit", unitID).Msg("could not move staged package")
		}
	}
	r.moveSiblings(unitID, filepath.Base(stagedPath), dir)

	if len(outcome.Results) > 0 {
		r.saveResponse(dir, name, outcome.Results)
	}

	audit := AuditRecord{
		ResultState:     false,
		ValidationID:    optional(outcome.CUV),
		InvoiceNumber:   name,
		SubmittedAt:     r.now().UTC().Format(time.RFC3339),
		ItemizedResults: itemized(outcome.Results),
	}
	if err := r.writeAudit(dir, name, audit); err != nil {
		return "", err
	}

	var errores any = outcome.Detail
	if len(outcome.Results) > 0 {
		errores = outcome.Results
	}
	r.appendDailyLog(r.RejectedDir, dailyLogEntry{Factura: name, CUV: outcome.CUV, Errores: errores})

	r.Log.Info().Str("unit", unitID).Str("outcome", outcome.Kind.String()).Str("terminal", dir).Msg("unit routed")
	return dir, nil
}

// moveSiblings relocates any other staged files belonging to the unit,
// e.g. billing-document copies staged alongside the package.
func (r *Router) moveSiblings(unitID, exclude, dir string) {
	matches, err := filepath.Glob(filepath.Join(r.StagingDir, unitID+"_*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		base := filepath.Base(m)
		if base == exclude {
			continue
		}
		if err := os.Rename(m, filepath.Join(dir, base)); err != nil {
			r.Log.Warn().Err(err).Str("file", base).Msg("could not move sibling file")
		}
	}
}

// writeAudit writes resultado_<name>.json, numbering the file when a
// record with that name already exists. Audit records are append-only.
func (r *Router) writeAudit(dir, name string, audit AuditRecord) error {
	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	path := filepath.Join(dir, "resultado_"+name+".json")
	for n := 2; fileExists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("resultado_%s_%d.json", name, n))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// saveResponse stores the verbatim itemized results for later inspection.
func (r *Router) saveResponse(dir, name string, results []sispro.ValidationResult) {
	respDir := filepath.Join(dir, "respuestas")
	if err := os.MkdirAll(respDir, 0o755); err != nil {
		r.Log.Warn().Err(err).Msg("could not create respuestas folder")
		return
	}
	stamp := r.now().UTC().Format("2006-01-02T15-04-05")
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(respDir, fmt.Sprintf("respuesta_%s_%s.json", name, stamp))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.Log.Warn().Err(err).Msg("could not save response file")
	}
}

// appendDailyLog appends one entry to log_<date>.json in the terminal root.
func (r *Router) appendDailyLog(root string, entry dailyLogEntry) {
	path := filepath.Join(root, "log_"+r.now().UTC().Format("2006-01-02")+".json")

	var entries []dailyLogEntry
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &entries)
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.Log.Warn().Err(err).Str("log", path).Msg("could not append daily log")
	}
}

func (r *Router) readEnvelope(path string) map[string]any {
	data, err := os.ReadFile(path)
	if err != nil {
		r.Log.Warn().Err(err).Str("file", path).Msg("staged package not readable")
		return nil
	}
	var env map[string]any
	if err := json.Unmarshal(data, &env); err != nil {
		r.Log.Warn().Err(err).Str("file", path).Msg("staged package not parseable")
		return nil
	}
	return env
}

func invoiceNumber(env map[string]any) string {
	record, ok := env["rips"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := record["numFactura"].(string)
	return s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func itemized(results []sispro.ValidationResult) []sispro.ValidationResult {
	if results == nil {
		return []sispro.ValidationResult{}
	}
	return results
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
