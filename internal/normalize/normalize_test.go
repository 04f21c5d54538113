package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/rips"
)

func decodeRecord(t *testing.T, raw string) rips.Document {
	t.Helper()
	var doc rips.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return doc
}

const sampleRecord = `{
  "numDocumentoIdObligado": "810000913",
  "numFactura": "FE1234",
  "usuarios": [
    {
      "consecutivo": 1,
      "servicios": {
        "urgencias": [
          {"condicionDestinoUsuarioEgreso": "1", "fechaEgreso": "2025-02-02 09:15"}
        ],
        "hospitalizacion": [
          {"viaIngresoServicioSalud": "2", "condicionDestinoUsuarioEgreso": "  ", "fechaInicioAtencion": "2024-12-30", "fechaEgreso": "2025-01-10 11:00"}
        ],
        "consultas": [
          {"fechaInicioAtencion": "2025-02-15 10:00"}
        ],
        "procedimientos": [
          {"finalidadTecnologiaSalud": "4", "fechaInicioAtencion": "15/01/2025 08:30"}
        ],
        "medicamentos": [
          {"diasTratamiento": 0, "fechaDispensAdmon": "2025-01-05"}
        ],
        "otrosServicios": [
          {"codTecnologiaSalud": "TAB-SC-URBU", "fechaSuministroTecnologia": "2025-01-20"}
        ]
      }
    }
  ]
}`

func TestApply_AdjustsKnownBadFields(t *testing.T) {
	doc := decodeRecord(t, sampleRecord)
	p := testPeriod()

	n, err := Apply(doc, p, zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n == 0 {
		t.Fatal("expected adjustments, got 0")
	}

	services := rips.Services(doc.Users()[0])

	urg := rips.Entries(services, rips.CategoryUrgencias)[0]
	if urg["condicionDestinoUsuarioEgreso"] != "01" {
		t.Errorf("urgencias condicionDestinoUsuarioEgreso = %v, want 01", urg["condicionDestinoUsuarioEgreso"])
	}
	if urg["fechaEgreso"] != "2025-01-31 23:59" {
		t.Errorf("urgencias fechaEgreso = %v, want clamped to period end", urg["fechaEgreso"])
	}

	hosp := rips.Entries(services, rips.CategoryHospitalizacion)[0]
	if hosp["viaIngresoServicioSalud"] != "02" {
		t.Errorf("viaIngresoServicioSalud = %v, want 02", hosp["viaIngresoServicioSalud"])
	}
	if hosp["condicionDestinoUsuarioEgreso"] != "01" {
		t.Errorf("blank condicionDestinoUsuarioEgreso = %v, want 01", hosp["condicionDestinoUsuarioEgreso"])
	}
	if hosp["fechaInicioAtencion"] != "2025-01-01 00:00" {
		t.Errorf("fechaInicioAtencion = %v, want clamped to period start", hosp["fechaInicioAtencion"])
	}

	con := rips.Entries(services, rips.CategoryConsultas)[0]
	if con["fechaInicioAtencion"] != "2025-01-31 23:59" {
		t.Errorf("consulta fechaInicioAtencion = %v, want clamped to period end", con["fechaInicioAtencion"])
	}

	proc := rips.Entries(services, rips.CategoryProcedimientos)[0]
	if proc["finalidadTecnologiaSalud"] != "44" {
		t.Errorf("finalidadTecnologiaSalud = %v, want 44", proc["finalidadTecnologiaSalud"])
	}
	if proc["fechaInicioAtencion"] != "2025-01-15 08:30" {
		t.Errorf("procedimiento fechaInicioAtencion = %v, want canonical form", proc["fechaInicioAtencion"])
	}

	med := rips.Entries(services, rips.CategoryMedicamentos)[0]
	if med["diasTratamiento"] != float64(1) {
		t.Errorf("diasTratamiento = %v, want 1", med["diasTratamiento"])
	}

	otro := rips.Entries(services, rips.CategoryOtrosServicios)[0]
	if otro["codTecnologiaSalud"] != "601T01" {
		t.Errorf("codTecnologiaSalud = %v, want 601T01", otro["codTecnologiaSalud"])
	}
}

func TestApply_Idempotent(t *testing.T) {
	doc := decodeRecord(t, sampleRecord)
	p := testPeriod()

	if _, err := Apply(doc, p, zerolog.Nop()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	snapshot := marshal(t, doc)

	n, err := Apply(doc, p, zerolog.Nop())
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if n != 0 {
		t.Errorf("second Apply made %d adjustments, want 0", n)
	}
	if marshal(t, doc) != snapshot {
		t.Error("record changed on second Apply")
	}
}

func TestApply_UnparseableDateLeftUnchanged(t *testing.T) {
	doc := decodeRecord(t, `{"usuarios":[{"servicios":{"consultas":[{"fechaInicioAtencion":"??/??/????"}]}}]}`)

	n, err := Apply(doc, testPeriod(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 0 {
		t.Errorf("adjustments = %d, want 0", n)
	}
	con := rips.Entries(rips.Services(doc.Users()[0]), rips.CategoryConsultas)[0]
	if con["fechaInicioAtencion"] != "??/??/????" {
		t.Errorf("unparseable date changed: %v", con["fechaInicioAtencion"])
	}
}

func TestApply_MissingUsersFatal(t *testing.T) {
	doc := decodeRecord(t, `{"numFactura":"FE1"}`)
	if _, err := Apply(doc, testPeriod(), zerolog.Nop()); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("err = %v, want ErrNoUsers", err)
	}
}

func marshal(t *testing.T, doc rips.Document) string {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
