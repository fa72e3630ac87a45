// Package confidence implements C4: derives genotype_confidence,
// phenotype_confidence, classification_confidence and final from a raw
// ConfidenceBreakdown, and evaluates the four automation gates.
package confidence

import "github.com/pgxengine/core/internal/pgx"

const (
	weightAlleleCoverage      = 0.35
	weightCNVEvaluation       = 0.25
	weightVariantQuality      = 0.25
	weightGenomeBuildValidity = 0.15
)

// Derive fills in the four derived fields on b from its raw components.
// It never reads Final/GenotypeConfidence/etc. as input — only the raw
// components and GeneDrugConfirmed/KnowledgeConfidence.
func Derive(b *pgx.ConfidenceBreakdown, automationBlocked bool) {
	b.GenotypeConfidence = weightAlleleCoverage*b.AlleleCoverage +
		weightCNVEvaluation*b.CNVEvaluation +
		weightVariantQuality*b.VariantQuality +
		weightGenomeBuildValidity*b.GenomeBuildValidity

	b.PhenotypeConfidence = b.GenotypeConfidence * b.DiplotypeDeterminism

	resolvedButUnknown := 1 - b.PhenotypeConfidence
	b.ClassificationConfidence = 0.6*max(b.PhenotypeConfidence, resolvedButUnknown) + 0.4*b.KnowledgeConfidence

	phenotypeCap := 1.0
	if b.PhenotypeConfidence == 0 {
		phenotypeCap = 0.50
	}
	automationCap := 1.0
	if automationBlocked {
		automationCap = 0.70
	}

	b.Final = min3(b.ClassificationConfidence, phenotypeCap, automationCap)
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// GateResult is the outcome of evaluating one automation gate.
type GateResult struct {
	Name   string
	Passed bool
	Reason string
}

// EvaluateGates runs G1-G4 in order and returns the automation status.
// phenotypeConfidence, knowledgeConfidence and genotypeConfidence are
// read from b; geneDrugConfirmed comes from the caller (the risk engine).
func EvaluateGates(b *pgx.ConfidenceBreakdown, geneDrugConfirmed bool) pgx.AutomationStatus {
	status := pgx.AutomationStatus{Allowed: true}

	if b.PhenotypeConfidence <= 0 {
		status.Block("Phenotype unresolved")
	}
	if b.KnowledgeConfidence < 0.80 {
		status.Block("Evidence insufficient")
	}
	if b.GenotypeConfidence < 0.50 {
		status.Block("Genotype quality too low")
	}
	if !geneDrugConfirmed {
		status.Block("Gene-drug pair not confirmed")
	}

	return status
}
