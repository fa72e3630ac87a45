// Package risk implements C5, the Risk Engine: combines a resolved
// phenotype with drug knowledge from the corpus to produce a canonical
// risk label, severity, clinical recommendation and automation status.
//
// The keyword classification table and drug/phenotype fallback tables
// are re-expressed from the knowledge base's CPIC-text heuristics, not
// invented here.
package risk

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgxengine/core/internal/confidence"
	"github.com/pgxengine/core/internal/pgx"
)

// KnowledgeBase is the read surface Evaluate needs from the reference
// corpus (C1). It exists as its own interface — rather than taking
// *corpus.Corpus directly — so the §4.5 step 3 gene-drug integrity
// abort, which the shipped corpus's self-consistent literal data can
// never actually trigger, can still be driven and asserted by a test
// double.
type KnowledgeBase interface {
	ResolveDrugAlias(drug string) string
	DrugSupported(drug string) bool
	ConfirmGeneDrug(gene, drug string) pgx.GeneDrugConfirmation
	EvidenceLevel(gene, drug string) pgx.EvidenceLevel
	DrugRecommendation(drug string, phenotype pgx.Phenotype) (pgx.DrugRecommendation, bool)
	ClinicalAnnotations(gene, drug string) []pgx.ClinicalAnnotation
}

// severityRank lets us compare severities without relying on string
// order.
var severityRank = map[pgx.Severity]int{
	pgx.SeverityNone:         0,
	pgx.SeverityLow:          1,
	pgx.SeverityModerate:     2,
	pgx.SeverityHigh:         3,
	pgx.SeverityCritical:     4,
	pgx.SeverityUndetermined: -1,
}

// riskSeverityTable maps each canonical risk label to its baseline
// severity, used when CPIC text carries no more specific severity.
var riskSeverityTable = map[pgx.RiskLabel]pgx.Severity{
	pgx.RiskToxic:                    pgx.SeverityCritical,
	pgx.RiskIneffective:              pgx.SeverityHigh,
	pgx.RiskAvoid:                    pgx.SeverityCritical,
	pgx.RiskUseAlternative:           pgx.SeverityHigh,
	pgx.RiskAdjustDosage:             pgx.SeverityModerate,
	pgx.RiskStandardDosing:           pgx.SeverityNone,
	pgx.RiskSafe:                     pgx.SeverityNone,
	pgx.RiskUnknown:                  pgx.SeverityModerate,
	pgx.RiskNoSpecificRecommendation: pgx.SeverityModerate,
	pgx.RiskDrugNotSupported:         pgx.SeverityNone,
}

// Evaluate runs the full §4.5 algorithm. genotypeBreakdown and
// gene come from the resolver (C3); feedbackPrior is the
// optional multiplicative factor from the feedback store, already
// clamped to [0.80, 1.50] by its caller (defaults to 1.0 when absent).
func Evaluate(c KnowledgeBase, gene, drugInput string, diplotype string, phenotype pgx.Phenotype, genotypeBreakdown *pgx.ConfidenceBreakdown, feedbackPrior float64) (*pgx.RiskAssessment, *pgx.ClinicalRecommendation, *pgx.PipelineError) {
	drug := c.ResolveDrugAlias(drugInput)

	if !c.DrugSupported(drug) {
		return unsupportedDrugResponse(), nil, nil
	}

	confirmation := c.ConfirmGeneDrug(gene, drug)
	if confirmation.Drug != "" && confirmation.Drug != drug {
		return nil, nil, pgx.NewPipelineError(pgx.ErrIntegrityViolation, "gene-drug integrity error: knowledge base drug identity does not match input", drug, gene)
	}

	if !confirmation.Confirmed {
		return unconfirmedResponse(confirmation), nil, nil
	}

	breakdown := cloneGenotypeComponents(genotypeBreakdown)
	evidence := c.EvidenceLevel(gene, drug)
	breakdown.KnowledgeConfidence = evidence.ConfidenceWeight
	breakdown.GeneDrugConfirmed = true
	breakdown.CPICApplicability = 1.0

	if isUnresolvablePhenotype(diplotype, phenotype) {
		breakdown.CPICApplicability = 1.0 - 0.30
		breakdown.AddPenalty("cpic_applicability: phenotype unresolved")
		return unresolvedPhenotypeResponse(breakdown, confirmation, evidence), nil, nil
	}

	rec, found := c.DrugRecommendation(drug, phenotype)
	if !found {
		rec = fallbackRecommendation(drug, phenotype)
		breakdown.CPICApplicability = 1.0 - 0.20
		breakdown.AddPenalty("cpic_applicability: no specific CPIC rule")
	}

	riskLabel := classifyRiskLabel(rec.Summary, rec.Implication, rec.Severity)
	severity := resolveSeverity(rec.Severity, riskLabel)

	if invariantViolated(phenotype, severity) {
		logrus.WithFields(logrus.Fields{"gene": gene, "drug": drug, "phenotype": phenotype, "severity": severity}).
			Warn("invariant violation: normal phenotype paired with critical severity, assembly rejected")
		breakdown.AddPenalty("invariant: normal phenotype paired with critical severity — rejected")
		return unresolvedPhenotypeResponse(breakdown, confirmation, evidence), nil, nil
	}

	annotations := c.ClinicalAnnotations(gene, drug)

	confidence.Derive(breakdown, false)
	automation := confidence.EvaluateGates(breakdown, confirmation.Confirmed)
	confidence.Derive(breakdown, !automation.Allowed)

	riskScore := calculateRiskScore(severity, phenotype, breakdown.Final, feedbackPrior)
	riskLevel := riskLevelFromScore(riskScore)

	assessment := &pgx.RiskAssessment{
		RiskLabel:            riskLabel,
		Severity:             severity,
		ConfidenceScore:      breakdown.Final,
		ConfidenceBreakdown:  breakdown,
		RiskScore:            &riskScore,
		RiskLevel:            riskLevel,
		AutomationStatus:     automation,
		GeneDrugConfirmation: &confirmation,
		EvidenceLevel:        &evidence,
		ClinicalAnnotations:  annotations,
	}

	recommendation := structuredRecommendation(rec)

	return assessment, recommendation, nil
}

func cloneGenotypeComponents(src *pgx.ConfidenceBreakdown) *pgx.ConfidenceBreakdown {
	b := pgx.NewConfidenceBreakdown()
	if src == nil {
		return b
	}
	b.VariantQuality = src.VariantQuality
	b.AlleleCoverage = src.AlleleCoverage
	b.PhaseResolution = src.PhaseResolution
	b.CNVEvaluation = src.CNVEvaluation
	b.DiplotypeDeterminism = src.DiplotypeDeterminism
	b.GenomeBuildValidity = src.GenomeBuildValidity
	b.GenotypeConfidence = src.GenotypeConfidence
	b.PhenotypeConfidence = src.PhenotypeConfidence
	b.PenaltiesApplied = append([]string{}, src.PenaltiesApplied...)
	return b
}

func unsupportedDrugResponse() *pgx.RiskAssessment {
	return &pgx.RiskAssessment{
		RiskLabel:       pgx.RiskDrugNotSupported,
		Severity:        pgx.SeverityNone,
		ConfidenceScore: 0,
		AutomationStatus: pgx.AutomationStatus{
			Allowed:        false,
			BlockedReasons: []string{"Drug not currently supported by CPIC guidelines"},
		},
	}
}

func unconfirmedResponse(confirmation pgx.GeneDrugConfirmation) *pgx.RiskAssessment {
	status := pgx.AutomationStatus{Allowed: true}
	status.Block("Unsupported in current knowledge base")
	status.Block("Phenotype unresolved")
	status.Block("Evidence insufficient")
	status.Block("Gene-drug pair not confirmed")
	return &pgx.RiskAssessment{
		RiskLabel:            pgx.RiskNoSpecificRecommendation,
		Severity:             pgx.SeverityNone,
		ConfidenceScore:      0,
		AutomationStatus:     status,
		GeneDrugConfirmation: &confirmation,
	}
}

func isUnresolvablePhenotype(diplotype string, phenotype pgx.Phenotype) bool {
	switch diplotype {
	case pgx.DiplotypeUnresolved, pgx.DiplotypeIndeterminate, pgx.DiplotypeUnknown:
		return true
	}
	return phenotype.IsUnresolved()
}

func unresolvedPhenotypeResponse(breakdown *pgx.ConfidenceBreakdown, confirmation pgx.GeneDrugConfirmation, evidence pgx.EvidenceLevel) *pgx.RiskAssessment {
	status := pgx.AutomationStatus{Allowed: true}
	status.Block("Phenotype unresolved")
	confidence.Derive(breakdown, true)
	return &pgx.RiskAssessment{
		RiskLabel:            pgx.RiskNoSpecificRecommendation,
		Severity:             pgx.SeverityUndetermined,
		ConfidenceScore:      breakdown.Final,
		ConfidenceBreakdown:  breakdown,
		AutomationStatus:     status,
		GeneDrugConfirmation: &confirmation,
		EvidenceLevel:        &evidence,
	}
}

// warfarinPhenotypeTable and clopidogrelPhenotypeTable are the
// drug-specific deterministic fallbacks named in §4.5 step 6.
var warfarinPhenotypeTable = map[pgx.Phenotype]pgx.DrugRecommendation{
	pgx.PhenotypePoorMetabolizer: {
		Summary:     "Reduce starting dose substantially; use pharmacogenomic dosing algorithm.",
		Implication: "Markedly reduced warfarin clearance; increased risk of bleeding.",
		Severity:    pgx.SeverityHigh,
	},
}

var clopidogrelPhenotypeTable = map[pgx.Phenotype]pgx.DrugRecommendation{
	pgx.PhenotypePoorMetabolizer: {
		Summary:     "Use an alternative antiplatelet therapy.",
		Implication: "Significantly reduced platelet inhibition; increased risk of adverse cardiovascular events.",
		Severity:    pgx.SeverityHigh,
	},
}

func fallbackRecommendation(drug string, phenotype pgx.Phenotype) pgx.DrugRecommendation {
	if phenotype.IsNormalFamily() || phenotype == pgx.PhenotypeNormalMetabolizer {
		return pgx.DrugRecommendation{Summary: "Standard dosing recommended.", Implication: "Normal expected drug handling.", Severity: pgx.SeverityNone}
	}

	switch phenotype {
	case pgx.PhenotypePoorMetabolizer, pgx.PhenotypeUltrarapidMetabolizer:
		if drug == "warfarin" {
			if rec, ok := warfarinPhenotypeTable[phenotype]; ok {
				return rec
			}
		}
		if drug == "clopidogrel" {
			if rec, ok := clopidogrelPhenotypeTable[phenotype]; ok {
				return rec
			}
		}
		return pgx.DrugRecommendation{
			Summary:     "Adjust dosage based on phenotype.",
			Implication: "Altered metabolism affects drug exposure.",
			Severity:    pgx.SeverityHigh,
		}
	case pgx.PhenotypeIntermediateMetabolizer:
		return pgx.DrugRecommendation{
			Summary:     "Adjust dosage; monitor closely.",
			Implication: "Moderately altered metabolism affects drug exposure.",
			Severity:    pgx.SeverityModerate,
		}
	default:
		return pgx.DrugRecommendation{Summary: "No specific CPIC recommendation.", Severity: pgx.SeverityModerate}
	}
}

// classifyRiskLabel implements §4.5 step 7: an ordered keyword table
// over the combined summary + implication text, with "standard starting
// dose"-style keywords ignored when the declared severity is high or
// critical.
func classifyRiskLabel(summary, implication string, declaredSeverity pgx.Severity) pgx.RiskLabel {
	text := strings.ToLower(summary + " " + implication)
	highOrCritical := declaredSeverity == pgx.SeverityHigh || declaredSeverity == pgx.SeverityCritical

	if containsAny(text, "avoid", "contraindicated", "do not use") {
		return pgx.RiskAvoid
	}
	if containsAny(text, "increased risk of toxicity", "life-threatening", "fatal", "severe toxicity") {
		return pgx.RiskToxic
	}
	if containsAny(text, "lack of efficacy", "ineffective", "no therapeutic effect") {
		return pgx.RiskIneffective
	}
	if containsAny(text, "alternative antiplatelet", "alternative therapy", "consider alternative", "use an alternative") {
		return pgx.RiskUseAlternative
	}
	if containsAny(text, "reduce dose", "lower dose", "decreased dose", "dose reduction", "reduced starting dose", "reduce starting dose", "adjust dosage", "20-50%", "25-50%") {
		return pgx.RiskAdjustDosage
	}
	if !highOrCritical && containsAny(text, "standard starting dose", "standard dose", "label recommended", "no change", "use standard", "no clinical intervention") {
		return pgx.RiskStandardDosing
	}
	if declaredSeverity == pgx.SeverityNone {
		return pgx.RiskStandardDosing
	}
	return pgx.RiskUnknown
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// resolveSeverity implements §4.5 step 8: prefer the declared CPIC
// severity when valid, else derive from the risk-label severity table.
func resolveSeverity(declared pgx.Severity, label pgx.RiskLabel) pgx.Severity {
	if _, ok := severityRank[declared]; ok && declared != "" {
		return declared
	}
	if s, ok := riskSeverityTable[label]; ok {
		return s
	}
	return pgx.SeverityUndetermined
}

// invariantViolated implements §4.5 step 10: a normal phenotype may
// never carry critical severity.
func invariantViolated(phenotype pgx.Phenotype, severity pgx.Severity) bool {
	return phenotype.IsNormalFamily() && severity == pgx.SeverityCritical
}

// calculateRiskScore blends severity, phenotype extremity, confidence
// and the feedback prior into a single numeric score in [0,100] (§6).
func calculateRiskScore(severity pgx.Severity, phenotype pgx.Phenotype, confidenceFinal, feedbackPrior float64) float64 {
	base := 0.0
	switch severity {
	case pgx.SeverityCritical:
		base = 0.9
	case pgx.SeverityHigh:
		base = 0.7
	case pgx.SeverityModerate:
		base = 0.45
	case pgx.SeverityLow:
		base = 0.2
	case pgx.SeverityNone:
		base = 0.05
	default:
		base = 0.5
	}
	if phenotype == pgx.PhenotypePoorMetabolizer || phenotype == pgx.PhenotypeUltrarapidMetabolizer || phenotype == pgx.PhenotypePoorFunction {
		base += 0.05
	}
	score := base * (0.5 + 0.5*confidenceFinal) * feedbackPrior * 100
	if score > 100.0 {
		score = 100.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

func riskLevelFromScore(score float64) string {
	switch {
	case score >= 75:
		return "high"
	case score >= 45:
		return "moderate"
	case score >= 15:
		return "low"
	default:
		return "minimal"
	}
}

// structuredRecommendation implements §4.5 step 11 by passing the raw
// CPIC summary, implication and URL through unchanged; the text is not
// split into action/monitoring/dosing parts. It returns nil when the
// recommendation has no summary.
func structuredRecommendation(rec pgx.DrugRecommendation) *pgx.ClinicalRecommendation {
	if rec.Summary == "" {
		return nil
	}
	return &pgx.ClinicalRecommendation{
		Text:              rec.Summary,
		Implication:       rec.Implication,
		RecommendationURL: rec.URL,
	}
}
