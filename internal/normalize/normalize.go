// Package normalize rewrites known-bad RIPS field values into the shapes
// the SISPRO validator accepts: two-character coded fields, non-zero
// treatment durations, current technology codes, and clinical-event dates
// clamped into the billing period.
package normalize

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/period"
	"github.com/lorveOne/MinisterioRips/internal/rips"
)

// ErrNoUsers means the record lacks its top-level usuarios container and
// cannot be normalized. Callers route the unit to an error state.
var ErrNoUsers = errors.New("claims record has no usuarios container")

// Deprecated technology codes remapped to their current SISPRO equivalents.
var techCodeRemap = map[string]string{
	"TAB-SC-URBU": "601T01",
}

// Default codes applied when a field is blank or truncated to one character.
const (
	defaultDischargeCondition = "01"
	defaultAdmissionRoute     = "02"
	defaultProcedurePurpose   = "44"
)

// Apply mutates the claims record in place so it conforms to the SISPRO
// submission rules, returning the number of field adjustments made.
// Every rule is idempotent: applying Apply to an already-normalized record
// makes zero adjustments. Unparseable dates are logged and left unchanged.
func Apply(doc rips.Document, p *period.BillingPeriod, log zerolog.Logger) (int, error) {
	users := doc.Users()
	if users == nil {
		return 0, ErrNoUsers
	}

	adjustments := 0
	for _, user := range users {
		services := rips.Services(user)
		if services == nil {
			continue
		}

		for _, e := range rips.Entries(services, rips.CategoryUrgencias) {
			adjustments += padCode(e, "condicionDestinoUsuarioEgreso")
			adjustments += clampDate(e, "fechaEgreso", p, log)
		}

		for _, e := range rips.Entries(services, rips.CategoryHospitalizacion) {
			if s, ok := e["viaIngresoServicioSalud"].(string); ok && len(s) == 1 {
				e["viaIngresoServicioSalud"] = defaultAdmissionRoute
				adjustments++
			}
			if s, ok := e["condicionDestinoUsuarioEgreso"].(string); ok && strings.TrimSpace(s) == "" {
				e["condicionDestinoUsuarioEgreso"] = defaultDischargeCondition
				adjustments++
			}
			adjustments += clampDate(e, "fechaInicioAtencion", p, log)
			adjustments += clampDate(e, "fechaEgreso", p, log)
		}

		for _, e := range rips.Entries(services, rips.CategoryConsultas) {
			adjustments += clampDate(e, "fechaInicioAtencion", p, log)
		}

		for _, e := range rips.Entries(services, rips.CategoryProcedimientos) {
			if s, ok := e["finalidadTecnologiaSalud"].(string); ok && len(s) == 1 {
				e["finalidadTecnologiaSalud"] = defaultProcedurePurpose
				adjustments++
			}
			adjustments += clampDate(e, "fechaInicioAtencion", p, log)
		}

		for _, e := range rips.Entries(services, rips.CategoryMedicamentos) {
			if days, ok := e["diasTratamiento"].(float64); ok && days == 0 {
				e["diasTratamiento"] = float64(1)
				adjustments++
			}
			adjustments += clampDate(e, "fechaDispensAdmon", p, log)
		}

		for _, e := range rips.Entries(services, rips.CategoryOtrosServicios) {
			if code, ok := e["codTecnologiaSalud"].(string); ok {
				if current, found := techCodeRemap[code]; found {
					e["codTecnologiaSalud"] = current
					adjustments++
				}
			}
			adjustments += clampDate(e, "fechaSuministroTecnologia", p, log)
		}
	}
	return adjustments, nil
}

// padCode left-pads a one-character coded field with a leading zero.
func padCode(entry map[string]any, field string) int {
	s, ok := entry[field].(string)
	if !ok || len(s) != 1 {
		return 0
	}
	entry[field] = "0" + s
	return 1
}

// clampDate bounds a date field into the billing period, counting one
// adjustment when the stored string changes.
func clampDate(entry map[string]any, field string, p *period.BillingPeriod, log zerolog.Logger) int {
	s, ok := entry[field].(string)
	if !ok || s == "" {
		return 0
	}
	clamped, ok := ClampToPeriod(s, p)
	if !ok {
		log.Warn().Str("field", field).Str("value", s).Msg("unparseable date left unchanged")
		return 0
	}
	if clamped == s {
		return 0
	}
	entry[field] = clamped
	return 1
}
