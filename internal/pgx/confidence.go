package pgx

// ConfidenceBreakdown is the six-component, two-input confidence model
// described in §3/§4.4. Every component starts at 1.0 and is only ever
// lowered by an explicit penalty that is also recorded in
// PenaltiesApplied for audit, with two exceptions: the resolver assigns
// DiplotypeDeterminism directly from the selection branch it takes, and
// an unsupported gene yields all-zero components. final is never set directly — it is always
// recomputed from the other fields (see internal/confidence).
type ConfidenceBreakdown struct {
	VariantQuality       float64
	AlleleCoverage       float64
	PhaseResolution      float64
	CNVEvaluation        float64
	DiplotypeDeterminism float64
	CPICApplicability    float64
	GenomeBuildValidity  float64

	KnowledgeConfidence float64
	GeneDrugConfirmed   bool

	PenaltiesApplied []string

	// Derived values, filled in by internal/confidence.Derive. Stored on
	// the breakdown itself so the response envelope can serialize them,
	// but callers must treat them as read-only outputs, never inputs.
	GenotypeConfidence      float64
	PhenotypeConfidence     float64
	ClassificationConfidence float64
	Final                   float64
}

// NewConfidenceBreakdown returns a breakdown with every component at its
// neutral starting value of 1.0.
func NewConfidenceBreakdown() *ConfidenceBreakdown {
	return &ConfidenceBreakdown{
		VariantQuality:       1.0,
		AlleleCoverage:       1.0,
		PhaseResolution:      1.0,
		CNVEvaluation:        1.0,
		DiplotypeDeterminism: 1.0,
		CPICApplicability:    1.0,
		GenomeBuildValidity:  1.0,
		KnowledgeConfidence:  1.0,
		GeneDrugConfirmed:    true,
	}
}

// AddPenalty records a human-readable deduction for audit purposes.
func (b *ConfidenceBreakdown) AddPenalty(reason string) {
	b.PenaltiesApplied = append(b.PenaltiesApplied, reason)
}

// RiskAssessment is the clinical risk output of C5.
type RiskAssessment struct {
	RiskLabel            RiskLabel
	Severity             Severity
	ConfidenceScore      float64
	ConfidenceBreakdown  *ConfidenceBreakdown
	RiskScore            *float64
	RiskLevel            string
	AutomationStatus     AutomationStatus
	GeneDrugConfirmation *GeneDrugConfirmation
	EvidenceLevel        *EvidenceLevel
	ClinicalAnnotations  []ClinicalAnnotation
}

// ClinicalRecommendation is the structured recommendation text C5 may
// optionally produce (§4.5 step 11).
type ClinicalRecommendation struct {
	Text               string
	Implication        string
	RecommendationURL  string
}
