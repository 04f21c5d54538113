package rips

// Document is a RIPS claims record decoded from JSON. It stays dynamic so
// that fields this service does not know about still round-trip to the
// validation API unchanged.
type Document map[string]any

// Package is the submission envelope: the claims record plus the
// base64-encoded electronic invoice XML.
type Package struct {
	Rips       Document `json:"rips"`
	XMLFevFile string   `json:"xmlFevFile"`
}

// Service category keys as they appear inside usuario.servicios.
const (
	CategoryConsultas       = "consultas"
	CategoryHospitalizacion = "hospitalizacion"
	CategoryProcedimientos  = "procedimientos"
	CategoryMedicamentos    = "medicamentos"
	CategoryOtrosServicios  = "otrosServicios"
	CategoryUrgencias       = "urgencias"
)

// InvoiceNumber returns the numFactura field, or "" when absent.
func (d Document) InvoiceNumber() string {
	s, _ := d["numFactura"].(string)
	return s
}

// Users returns the usuarios array. Each element is the raw decoded object;
// non-object elements are skipped.
func (d Document) Users() []map[string]any {
	raw, ok := d["usuarios"].([]any)
	if !ok {
		return nil
	}
	users := make([]map[string]any, 0, len(raw))
	for _, u := range raw {
		if m, ok := u.(map[string]any); ok {
			users = append(users, m)
		}
	}
	return users
}

// Services returns the servicios object of a usuario, or nil.
func Services(user map[string]any) map[string]any {
	m, _ := user["servicios"].(map[string]any)
	return m
}

// Entries returns the entries of one service category as mutable objects.
func Entries(services map[string]any, category string) []map[string]any {
	raw, ok := services[category].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
