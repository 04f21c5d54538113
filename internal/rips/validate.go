package rips

import "fmt"

// Required field lists per the SISPRO submission contract. The validator is
// structural only: it checks presence, not value ranges.
var (
	requiredRoot = []string{"numDocumentoIdObligado", "numFactura", "usuarios"}

	requiredUser = []string{
		"tipoDocumentoIdentificacion",
		"numDocumentoIdentificacion",
		"tipoUsuario",
		"fechaNacimiento",
		"codSexo",
		"consecutivo",
		"servicios",
	}

	requiredByCategory = map[string][]string{
		CategoryConsultas:       {"codPrestador", "fechaInicioAtencion", "vrServicio", "consecutivo"},
		CategoryHospitalizacion: {"codPrestador", "fechaInicioAtencion", "consecutivo"},
		CategoryProcedimientos:  {"codPrestador", "fechaInicioAtencion", "codProcedimiento", "vrServicio", "consecutivo"},
		CategoryMedicamentos:    {"codPrestador", "fechaDispensAdmon", "codTecnologiaSalud", "vrServicio", "consecutivo"},
		CategoryOtrosServicios:  {"codPrestador", "fechaSuministroTecnologia", "codTecnologiaSalud", "vrServicio", "consecutivo"},
	}
)

// ValidatePackage checks the structural shape of a decoded submission
// envelope. It is pure: no I/O, no mutation. The first failing check wins.
func ValidatePackage(env map[string]any) error {
	ripsRaw, ok := env["rips"]
	if !ok || ripsRaw == nil {
		return fmt.Errorf("missing rips section")
	}
	xmlRaw, ok := env["xmlFevFile"]
	if !ok || xmlRaw == nil {
		return fmt.Errorf("missing xmlFevFile section")
	}
	if _, ok := xmlRaw.(string); !ok {
		return fmt.Errorf("xmlFevFile must be a base64 string")
	}

	record, ok := ripsRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("rips section must be an object")
	}
	return validateRecord(Document(record))
}

func validateRecord(d Document) error {
	for _, field := range requiredRoot {
		if isMissing(d[field]) {
			return fmt.Errorf("missing required field rips.%s", field)
		}
	}

	usersRaw, ok := d["usuarios"].([]any)
	if !ok || len(usersRaw) == 0 {
		return fmt.Errorf("usuarios must be a non-empty array")
	}

	for i, raw := range usersRaw {
		user, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("usuario %d: not an object", i)
		}
		if err := validateUser(user, i); err != nil {
			return err
		}
	}
	return nil
}

func validateUser(user map[string]any, idx int) error {
	for _, field := range requiredUser {
		if isMissing(user[field]) {
			return fmt.Errorf("usuario %d: missing required field %q", idx, field)
		}
	}

	services, ok := user["servicios"].(map[string]any)
	if !ok {
		return fmt.Errorf("usuario %d: servicios must be an object", idx)
	}

	for category, required := range requiredByCategory {
		entries, present := services[category]
		if !present {
			continue
		}
		list, ok := entries.([]any)
		if !ok {
			return fmt.Errorf("usuario %d: %s must be an array", idx, category)
		}
		for j, e := range list {
			entry, ok := e.(map[string]any)
			if !ok {
				return fmt.Errorf("usuario %d, %s %d: not an object", idx, category, j)
			}
			for _, field := range required {
				if isMissing(entry[field]) {
					return fmt.Errorf("usuario %d, %s %d: missing required field %q", idx, category, j, field)
				}
			}
		}
	}
	return nil
}

// isMissing treats absent and null as missing. Zero and empty-string values
// pass: the remote validator owns value-level rules.
func isMissing(v any) bool {
	return v == nil
}
