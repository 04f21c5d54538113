package sispro

import (
	"errors"
	"strings"
	"testing"
)

const hexCUV = "a3f1b2c4d5e6a7f8091a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f70"

func TestClassify_Accepted(t *testing.T) {
	out := Classify(&SubmitResponse{ResultState: true, CodigoUnicoValidacion: hexCUV})
	if out.Kind != OutcomeAccepted || out.CUV != hexCUV {
		t.Fatalf("outcome = %+v", out)
	}
	if !out.Accepted() {
		t.Error("Accepted() = false")
	}
}

func TestClassify_AcceptedWithSentinelCUV(t *testing.T) {
	out := Classify(&SubmitResponse{ResultState: true, CodigoUnicoValidacion: CUVNotApplicable})
	if out.Kind != OutcomeAccepted || out.CUV != "" {
		t.Fatalf("outcome = %+v, want accepted with empty CUV", out)
	}
}

func TestClassify_AlreadyApproved(t *testing.T) {
	resp := &SubmitResponse{
		ResultState: false,
		ResultadosValidacion: []ValidationResult{
			{Clase: ClassNotice, Codigo: "NOT01", Observaciones: "informational"},
			{Clase: ClassRejected, Codigo: CodeAlreadyApproved, Observaciones: "  " + hexCUV + "  "},
		},
	}
	out := Classify(resp)
	if out.Kind != OutcomeDuplicateAccepted {
		t.Fatalf("kind = %v", out.Kind)
	}
	if out.CUV != hexCUV {
		t.Errorf("CUV = %q, want remarks trimmed verbatim", out.CUV)
	}
	if len(out.Results) != 2 {
		t.Errorf("itemized results not carried: %v", out.Results)
	}
}

func TestClassify_DuplicateHexExtraction(t *testing.T) {
	resp := &SubmitResponse{
		ResultState: false,
		ResultadosValidacion: []ValidationResult{
			{Clase: ClassRejected, Codigo: CodeDuplicate,
				Observaciones: "Factura ya radicada con cuv " + strings.ToUpper(hexCUV[:10]) + hexCUV[10:] + " previamente"},
		},
	}
	out := Classify(resp)
	if out.Kind != OutcomeDuplicateAccepted {
		t.Fatalf("kind = %v", out.Kind)
	}
	if !strings.EqualFold(out.CUV, hexCUV) {
		t.Errorf("CUV = %q", out.CUV)
	}
}

// When both duplicate shapes appear, the already-approved remarks win.
func TestClassify_AlreadyApprovedPrecedence(t *testing.T) {
	other := strings.Repeat("b", 64)
	resp := &SubmitResponse{
		ResultState: false,
		ResultadosValidacion: []ValidationResult{
			{Clase: ClassRejected, Codigo: CodeDuplicate, Observaciones: "CUV " + other},
			{Clase: ClassRejected, Codigo: CodeAlreadyApproved, Observaciones: hexCUV},
		},
	}
	out := Classify(resp)
	if out.CUV != hexCUV {
		t.Fatalf("CUV = %q, want the RVG18 remarks value", out.CUV)
	}
}

func TestClassify_Rejected(t *testing.T) {
	resp := &SubmitResponse{
		ResultState:           false,
		CodigoUnicoValidacion: CUVNotApplicable,
		ResultadosValidacion: []ValidationResult{
			{Clase: ClassRejected, Codigo: "RVC010", Descripcion: "invalid service code"},
		},
	}
	out := Classify(resp)
	if out.Kind != OutcomeRejected {
		t.Fatalf("kind = %v", out.Kind)
	}
	if out.CUV != CUVNotApplicable {
		t.Errorf("CUV = %q, want sentinel carried through", out.CUV)
	}
	if out.Accepted() {
		t.Error("rejected outcome reported accepted")
	}
	if len(out.Results) != 1 {
		t.Errorf("results = %v", out.Results)
	}
}

func TestClassify_DuplicateRemarksWithoutHex(t *testing.T) {
	resp := &SubmitResponse{
		ResultState: false,
		ResultadosValidacion: []ValidationResult{
			{Clase: ClassRejected, Codigo: CodeDuplicate, Observaciones: "duplicate, no identifier"},
		},
	}
	if out := Classify(resp); out.Kind != OutcomeRejected {
		t.Fatalf("kind = %v, want rejected when no CUV is recoverable", out.Kind)
	}
}

func TestCommunicationFailure(t *testing.T) {
	out := CommunicationFailure(errors.New("dial tcp: connection refused"))
	if out.Kind != OutcomeCommunicationError {
		t.Fatalf("kind = %v", out.Kind)
	}
	if !strings.Contains(out.Detail, "connection refused") {
		t.Errorf("Detail = %q", out.Detail)
	}
	if out.Kind.String() != "communication_error" {
		t.Errorf("String = %q", out.Kind.String())
	}
}
