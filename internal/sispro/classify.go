package sispro

import (
	"regexp"
	"strings"
)

// CUVNotApplicable is the sentinel the API puts in the CUV field when no
// validation identifier applies to the response.
const CUVNotApplicable = "No aplica"

// OutcomeKind is the closed set of submission outcomes.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeDuplicateAccepted
	OutcomeRejected
	OutcomeCommunicationError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicateAccepted:
		return "duplicate_accepted"
	case OutcomeRejected:
		return "rejected"
	default:
		return "communication_error"
	}
}

// Outcome is the classified result of one package submission. CUV is set
// for accepted and duplicate outcomes; Results carries the full itemized
// list for rejections; Detail describes communication failures.
type Outcome struct {
	Kind    OutcomeKind
	CUV     string
	Results []ValidationResult
	Detail  string
}

// Accepted reports whether the unit reached an accepted terminal state.
func (o Outcome) Accepted() bool {
	return o.Kind == OutcomeAccepted || o.Kind == OutcomeDuplicateAccepted
}

// cuvHexPattern matches the validation identifier embedded in duplicate
// rejection remarks.
var cuvHexPattern = regexp.MustCompile(`(?i)CUV\s+([a-f0-9]{64})`)

// Classify interprets a raw submission response. Precedence when the
// result flag is false: the already-approved scan (RVG18, remarks carry
// the CUV verbatim) always wins over the hex-pattern scan (RVG02).
func Classify(resp *SubmitResponse) Outcome {
	if resp.ResultState {
		return Outcome{Kind: OutcomeAccepted, CUV: usableCUV(resp.CodigoUnicoValidacion)}
	}

	if cuv := alreadyApprovedCUV(resp.ResultadosValidacion); cuv != "" {
		return Outcome{Kind: OutcomeDuplicateAccepted, CUV: cuv, Results: resp.ResultadosValidacion}
	}
	if cuv := duplicateHexCUV(resp.ResultadosValidacion); cuv != "" {
		return Outcome{Kind: OutcomeDuplicateAccepted, CUV: cuv, Results: resp.ResultadosValidacion}
	}

	return Outcome{
		Kind:    OutcomeRejected,
		CUV:     rejectedCUV(resp.CodigoUnicoValidacion),
		Results: resp.ResultadosValidacion,
	}
}

// CommunicationFailure wraps a transport-level error as an outcome.
func CommunicationFailure(err error) Outcome {
	return Outcome{Kind: OutcomeCommunicationError, Detail: err.Error()}
}

func alreadyApprovedCUV(results []ValidationResult) string {
	for _, r := range results {
		if r.Clase == ClassRejected && r.Codigo == CodeAlreadyApproved {
			return usableCUV(strings.TrimSpace(r.Observaciones))
		}
	}
	return ""
}

func duplicateHexCUV(results []ValidationResult) string {
	for _, r := range results {
		if r.Clase != ClassRejected || r.Codigo != CodeDuplicate {
			continue
		}
		if m := cuvHexPattern.FindStringSubmatch(r.Observaciones); m != nil {
			return m[1]
		}
	}
	return ""
}

// usableCUV filters out the not-applicable sentinel.
func usableCUV(cuv string) string {
	if strings.Contains(cuv, CUVNotApplicable) {
		return ""
	}
	return cuv
}

// rejectedCUV keeps the sentinel when the remote explicitly marks the CUV
// not applicable, so the audit record can carry it through.
func rejectedCUV(cuv string) string {
	if strings.Contains(cuv, CUVNotApplicable) {
		return CUVNotApplicable
	}
	return ""
}
