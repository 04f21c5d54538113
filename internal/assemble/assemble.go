// Package assemble discovers source units and turns each complete
// JSON+XML pair into a normalized submission package in the staging
// folder, gated by the idempotency ledger.
package assemble

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/ledger"
	"github.com/lorveOne/MinisterioRips/internal/normalize"
	"github.com/lorveOne/MinisterioRips/internal/period"
	"github.com/lorveOne/MinisterioRips/internal/rips"
)

// StagedSuffix is appended to the unit ID to derive the staged file name.
const StagedSuffix = "_adjusted.json"

// StagedName derives the staging file name for a unit.
func StagedName(unitID string) string {
	return unitID + StagedSuffix
}

// UnitID recovers the unit ID from a staged file name, or "" when the
// name does not carry the staged suffix.
func UnitID(stagedName string) string {
	id := strings.TrimSuffix(stagedName, StagedSuffix)
	if id == stagedName {
		return ""
	}
	return id
}

// Assembler writes submission packages into the staging folder.
type Assembler struct {
	SourceRoot string
	StagingDir string
	Ledger     ledger.Ledger
	Log        zerolog.Logger
}

// AssembleAll walks the source root once and returns the staged file names
// produced in this pass. One unit's failure is recorded in the ledger and
// never aborts the batch; only an unreadable source root is fatal.
func (a *Assembler) AssembleAll() ([]string, error) {
	scanner, err := NewScanner(a.SourceRoot)
	if err != nil {
		return nil, err
	}

	var staged []string
	for {
		unit, ok := scanner.Next()
		if !ok {
			break
		}
		if a.Ledger.Has(unit.ID) {
			a.Log.Debug().Str("unit", unit.ID).Msg("already in ledger, skipping")
			continue
		}

		if !unit.Complete() {
			a.Log.Warn().Str("unit", unit.ID).Msg("document pair incomplete")
			a.mark(unit.ID, ledger.StatusMissingFiles)
			continue
		}

		name, err := a.assembleUnit(unit)
		if err != nil {
			a.Log.Error().Err(err).Str("unit", unit.ID).Msg("assembly failed")
			a.mark(unit.ID, ledger.ErrorStatus(err))
			continue
		}

		a.Log.Info().Str("unit", unit.ID).Str("staged", name).Msg("unit assembled")
		a.mark(unit.ID, ledger.StatusAdjusted)
		staged = append(staged, name)
	}
	return staged, nil
}

// assembleUnit reads the document pair, derives the billing period,
// normalizes the record and writes the staged package.
func (a *Assembler) assembleUnit(unit *SourceUnit) (string, error) {
	recordData, err := os.ReadFile(unit.JSONPath)
	if err != nil {
		return "", fmt.Errorf("read claims record: %w", err)
	}
	var doc rips.Document
	if err := json.Unmarshal(recordData, &doc); err != nil {
		return "", fmt.Errorf("parse claims record: %w", err)
	}

	xmlData, err := os.ReadFile(unit.XMLPath)
	if err != nil {
		return "", fmt.Errorf("read billing document: %w", err)
	}
	p, err := period.Extract(xmlData)
	if err != nil {
		return "", fmt.Errorf("extract billing period: %w", err)
	}

	adjustments, err := normalize.Apply(doc, p, a.Log)
	if err != nil {
		return "", fmt.Errorf("normalize record: %w", err)
	}
	a.Log.Info().
		Str("unit", unit.ID).
		Str("period", p.String()).
		Int("adjustments", adjustments).
		Msg("record normalized")

	pkg := rips.Package{
		Rips:       doc,
		XMLFevFile: base64.StdEncoding.EncodeToString(xmlData),
	}
	out, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode package: %w", err)
	}

	name := StagedName(unit.ID)
	if err := os.WriteFile(filepath.Join(a.StagingDir, name), out, 0o644); err != nil {
		return "", fmt.Errorf("write staged package: %w", err)
	}
	return name, nil
}

// mark records a ledger entry; a ledger write failure is logged, not
// propagated, so the batch keeps moving.
func (a *Assembler) mark(unitID, status string) {
	if err := a.Ledger.MarkProcessed(unitID, status); err != nil {
		a.Log.Error().Err(err).Str("unit", unitID).Msg("could not update ledger")
	}
}
