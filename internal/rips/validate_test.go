package rips

import (
	"encoding/json"
	"strings"
	"testing"
)

func decodeEnvelope(t *testing.T, raw string) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

const validEnvelope = `{
  "rips": {
    "numDocumentoIdObligado": "810000913",
    "numFactura": "FE1234",
    "usuarios": [
      {
        "tipoDocumentoIdentificacion": "CC",
        "numDocumentoIdentificacion": "1098765",
        "tipoUsuario": "01",
        "fechaNacimiento": "1980-05-01",
        "codSexo": "M",
        "consecutivo": 1,
        "servicios": {
          "consultas": [
            {"codPrestador": "110010000001", "fechaInicioAtencion": "2025-01-10 08:00", "vrServicio": 35000, "consecutivo": 1}
          ],
          "medicamentos": [
            {"codPrestador": "110010000001", "fechaDispensAdmon": "2025-01-10 08:00", "codTecnologiaSalud": "J01CA04", "vrServicio": 1200, "consecutivo": 1}
          ]
        }
      }
    ]
  },
  "xmlFevFile": "PGZha2UvPg=="
}`

func TestValidatePackage_Valid(t *testing.T) {
	if err := ValidatePackage(decodeEnvelope(t, validEnvelope)); err != nil {
		t.Fatalf("ValidatePackage: %v", err)
	}
}

func TestValidatePackage_ShortCircuits(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(env map[string]any)
		wantErr string
	}{
		{
			"missing rips",
			func(env map[string]any) { delete(env, "rips") },
			"missing rips",
		},
		{
			"missing xmlFevFile",
			func(env map[string]any) { delete(env, "xmlFevFile") },
			"missing xmlFevFile",
		},
		{
			"xmlFevFile not a string",
			func(env map[string]any) { env["xmlFevFile"] = 42.0 },
			"base64 string",
		},
		{
			"missing root field",
			func(env map[string]any) { delete(env["rips"].(map[string]any), "numFactura") },
			"rips.numFactura",
		},
		{
			"empty usuarios",
			func(env map[string]any) { env["rips"].(map[string]any)["usuarios"] = []any{} },
			"non-empty array",
		},
		{
			"missing user field",
			func(env map[string]any) {
				user := env["rips"].(map[string]any)["usuarios"].([]any)[0].(map[string]any)
				delete(user, "codSexo")
			},
			`"codSexo"`,
		},
		{
			"missing service field",
			func(env map[string]any) {
				user := env["rips"].(map[string]any)["usuarios"].([]any)[0].(map[string]any)
				consulta := user["servicios"].(map[string]any)["consultas"].([]any)[0].(map[string]any)
				delete(consulta, "vrServicio")
			},
			`"vrServicio"`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env := decodeEnvelope(t, validEnvelope)
			c.mutate(env)
			err := ValidatePackage(env)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), c.wantErr) {
				t.Errorf("error %q does not mention %q", err, c.wantErr)
			}
		})
	}
}

func TestValidatePackage_AbsentCategoriesAllowed(t *testing.T) {
	env := decodeEnvelope(t, validEnvelope)
	user := env["rips"].(map[string]any)["usuarios"].([]any)[0].(map[string]any)
	user["servicios"] = map[string]any{}
	if err := ValidatePackage(env); err != nil {
		t.Fatalf("empty servicios should validate: %v", err)
	}
}

func TestDocumentAccessors(t *testing.T) {
	env := decodeEnvelope(t, validEnvelope)
	doc := Document(env["rips"].(map[string]any))

	if got := doc.InvoiceNumber(); got != "FE1234" {
		t.Errorf("InvoiceNumber = %q, want FE1234", got)
	}
	users := doc.Users()
	if len(users) != 1 {
		t.Fatalf("Users = %d, want 1", len(users))
	}
	services := Services(users[0])
	if services == nil {
		t.Fatal("Services = nil")
	}
	if got := len(Entries(services, CategoryConsultas)); got != 1 {
		t.Errorf("consultas entries = %d, want 1", got)
	}
	if got := Entries(services, CategoryUrgencias); got != nil {
		t.Errorf("urgencias entries = %v, want nil", got)
	}
}
