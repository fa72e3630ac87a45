package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgxengine/core/internal/pgx"
)

func TestDerive_AllNeutralComponentsYieldFullConfidence(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()

	Derive(b, false)

	assert.Equal(t, 1.0, b.GenotypeConfidence)
	assert.Equal(t, 1.0, b.PhenotypeConfidence)
	assert.Equal(t, 1.0, b.ClassificationConfidence)
	assert.Equal(t, 1.0, b.Final)
}

func TestDerive_WeightedGenotypeConfidence(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()
	b.AlleleCoverage = 0.8
	b.CNVEvaluation = 0.6
	b.VariantQuality = 0.9
	b.GenomeBuildValidity = 1.0

	Derive(b, false)

	want := 0.35*0.8 + 0.25*0.6 + 0.25*0.9 + 0.15*1.0
	assert.InDelta(t, want, b.GenotypeConfidence, 1e-9)
	assert.InDelta(t, want*b.DiplotypeDeterminism, b.PhenotypeConfidence, 1e-9)
}

// When the diplotype could not be resolved at all, DiplotypeDeterminism
// collapses PhenotypeConfidence to zero and Final is capped at 0.50
// regardless of how strong the other components are (§4.4).
func TestDerive_ZeroPhenotypeConfidenceCapsFinalAtHalf(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()
	b.DiplotypeDeterminism = 0

	Derive(b, false)

	assert.Equal(t, 0.0, b.PhenotypeConfidence)
	assert.Equal(t, 0.50, b.Final)
}

// An automation block caps Final at 0.70 even when every component is
// otherwise neutral, independent of the phenotype-confidence cap.
func TestDerive_AutomationBlockedCapsFinalAtSeventy(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()

	Derive(b, true)

	assert.Equal(t, 1.0, b.PhenotypeConfidence)
	assert.Equal(t, 0.70, b.Final)
}

// resolvedButUnknown = 1 - PhenotypeConfidence; ClassificationConfidence
// takes whichever of PhenotypeConfidence or its complement is larger, so
// a confidently-low PhenotypeConfidence still yields a confidently-known
// classification rather than being penalized twice.
func TestDerive_ClassificationConfidenceUsesLargerOfPhenotypeOrComplement(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()
	b.AlleleCoverage = 0
	b.CNVEvaluation = 0
	b.VariantQuality = 0
	b.GenomeBuildValidity = 0
	b.KnowledgeConfidence = 0.5

	Derive(b, false)

	assert.Equal(t, 0.0, b.GenotypeConfidence)
	assert.Equal(t, 0.0, b.PhenotypeConfidence)
	want := 0.6*1.0 + 0.4*0.5
	assert.InDelta(t, want, b.ClassificationConfidence, 1e-9)
}

func TestEvaluateGates_AllPass(t *testing.T) {
	b := pgx.NewConfidenceBreakdown()
	Derive(b, false)

	status := EvaluateGates(b, true)

	assert.True(t, status.Allowed)
	assert.Empty(t, status.BlockedReasons)
}

func TestEvaluateGates_EachGateBlocksIndependently(t *testing.T) {
	t.Run("phenotype unresolved", func(t *testing.T) {
		b := pgx.NewConfidenceBreakdown()
		b.DiplotypeDeterminism = 0
		Derive(b, false)

		status := EvaluateGates(b, true)
		assert.False(t, status.Allowed)
		assert.Contains(t, status.BlockedReasons, "Phenotype unresolved")
	})

	t.Run("evidence insufficient", func(t *testing.T) {
		b := pgx.NewConfidenceBreakdown()
		b.KnowledgeConfidence = 0.5
		Derive(b, false)

		status := EvaluateGates(b, true)
		assert.False(t, status.Allowed)
		assert.Contains(t, status.BlockedReasons, "Evidence insufficient")
	})

	t.Run("genotype quality too low", func(t *testing.T) {
		b := pgx.NewConfidenceBreakdown()
		b.AlleleCoverage = 0.1
		b.CNVEvaluation = 0.1
		b.VariantQuality = 0.1
		b.GenomeBuildValidity = 0.1
		Derive(b, false)

		status := EvaluateGates(b, true)
		assert.False(t, status.Allowed)
		assert.Contains(t, status.BlockedReasons, "Genotype quality too low")
	})

	t.Run("gene-drug pair not confirmed", func(t *testing.T) {
		b := pgx.NewConfidenceBreakdown()
		Derive(b, false)

		status := EvaluateGates(b, false)
		assert.False(t, status.Allowed)
		assert.Contains(t, status.BlockedReasons, "Gene-drug pair not confirmed")
	})

	t.Run("multiple gates block simultaneously", func(t *testing.T) {
		b := pgx.NewConfidenceBreakdown()
		b.DiplotypeDeterminism = 0
		b.KnowledgeConfidence = 0.2
		Derive(b, false)

		status := EvaluateGates(b, false)
		assert.False(t, status.Allowed)
		assert.Len(t, status.BlockedReasons, 3)
	})
}
