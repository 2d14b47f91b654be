package models

import "strings"

// Mode is the solver route reported by the solving service. The set is open:
// values the client does not know are carried through unchanged.
type Mode string

const (
	ModeKBResponse Mode = "KB_RESPONSE"
	ModeWebSearch  Mode = "WEB_SEARCH"
	ModeRejected   Mode = "REJECTED"
	ModeBlocked    Mode = "BLOCKED"
)

func (m Mode) Known() bool {
	switch m {
	case ModeKBResponse, ModeWebSearch, ModeRejected, ModeBlocked:
		return true
	default:
		return false
	}
}

// Label renders the route for display, e.g. "KB RESPONSE".
func (m Mode) Label() string {
	return strings.Replace(string(m), "_", " ", 1)
}

// Solution is the artifact returned by the solve endpoint.
type Solution struct {
	Mode       Mode    `json:"mode"`
	Solution   string  `json:"solution"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
	// Message is set instead of Solution on rejected or blocked routes.
	Message string `json:"message,omitempty"`
}

// Present reports whether the service produced a solution body.
func (s Solution) Present() bool {
	return s.Solution != ""
}

// HasConfidence is true for routes where the confidence score is meaningful.
func (s Solution) HasConfidence() bool {
	return s.Mode == ModeKBResponse
}

// Body is the text to show for this response.
func (s Solution) Body() string {
	if s.Solution != "" {
		return s.Solution
	}
	return s.Message
}

type SolveRequest struct {
	Query  string `json:"query"`
	Level  string `json:"level"`
	UserID string `json:"user_id"`
}

type Assessment string

const (
	AssessmentUnset     Assessment = ""
	AssessmentCorrect   Assessment = "CORRECT"
	AssessmentIncorrect Assessment = "INCORRECT"
	AssessmentComplex   Assessment = "COMPLEX"
	AssessmentOffTopic  Assessment = "OFF_TOPIC"
)

// Assessments lists the selectable values in display order.
var Assessments = []Assessment{
	AssessmentCorrect,
	AssessmentIncorrect,
	AssessmentComplex,
	AssessmentOffTopic,
}

func ParseAssessment(s string) (Assessment, bool) {
	a := Assessment(strings.ToUpper(strings.TrimSpace(s)))
	if a == AssessmentUnset {
		return AssessmentUnset, true
	}
	return a, a.Valid()
}

func (a Assessment) Valid() bool {
	switch a {
	case AssessmentCorrect, AssessmentIncorrect, AssessmentComplex, AssessmentOffTopic:
		return true
	default:
		return false
	}
}

// NeedsCorrection is true when a correction text is meaningful for the
// assessment. Only these are turned into training examples downstream.
func (a Assessment) NeedsCorrection() bool {
	return a == AssessmentIncorrect || a == AssessmentComplex
}

func (a Assessment) Label() string {
	switch a {
	case AssessmentCorrect:
		return "Correct and Well-Grounded"
	case AssessmentIncorrect:
		return "Incorrect/Factually Flawed"
	case AssessmentComplex:
		return "Correct but Too Complex/Vague"
	case AssessmentOffTopic:
		return "Off-Topic or Guardrail Failure"
	default:
		return ""
	}
}

// FeedbackRecord is the body posted to the feedback endpoint. Query,
// GeneratedSolution, RouteMode and ConfidenceScore link the assessment to the
// solve it was made for.
type FeedbackRecord struct {
	Query             string     `json:"query"`
	GeneratedSolution string     `json:"generated_solution"`
	Assessment        Assessment `json:"assessment"`
	CorrectionText    string     `json:"correction_text"`
	RouteMode         Mode       `json:"route_mode"`
	ConfidenceScore   float64    `json:"confidence_score"`
}

// Field names accepted from the presentation layer.
const (
	FieldAssessment     = "assessment"
	FieldCorrectionText = "correction_text"
)
