package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgxengine/core/internal/corpus"
	"github.com/pgxengine/core/internal/pgx"
	"github.com/pgxengine/core/internal/population"
)

func TestResolve_UnsupportedGene(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()

	r := Resolve(c, pop, "NOTAGENE", nil, nil, population.Global, DefaultPenalties())

	assert.Equal(t, pgx.DiplotypeUnknown, r.Diplotype)
	assert.Equal(t, pgx.PhenotypeUnknown, r.Phenotype)
	assert.Equal(t, pgx.ReasonUnsupportedGene, r.Reason)
	assert.Equal(t, 0.0, r.Breakdown.DiplotypeDeterminism)
}

func TestResolve_EmptyVariantsYieldsWildtype(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()

	r := Resolve(c, pop, "CYP2D6", nil, nil, population.Global, DefaultPenalties())

	assert.Equal(t, pgx.DiplotypeWildtype, r.Diplotype)
	assert.Equal(t, pgx.PhenotypeNormalMetabolizer, r.Phenotype)
	assert.Equal(t, pgx.ReasonNone, r.Reason)
}

// A single fully-observed HomAlt defining variant takes the
// allHomAltForSingleAllele branch rather than the generic
// single-candidate threshold check, yielding the highest determinism
// (0.95).
func TestResolve_HomozygousDefiningVariant(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "G", Zygosity: pgx.ZygosityHomAlt},
	}
	covered := map[int]struct{}{42126611: {}, 42126963: {}, 42127941: {}}

	r := Resolve(c, pop, "CYP2D6", variants, covered, population.Global, DefaultPenalties())

	assert.Equal(t, "*4/*4", r.Diplotype)
	assert.Equal(t, pgx.PhenotypePoorMetabolizer, r.Phenotype)
	assert.Equal(t, 0.95, r.Breakdown.DiplotypeDeterminism)
}

// A single heterozygous defining variant scores 1.0, below the
// homozygous threshold (2.0), so it resolves against *1 at the lower
// single-candidate determinism (0.85).
func TestResolve_SingleHeterozygousBelowThreshold(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42127941, Ref: "C", Alt: "T", Zygosity: pgx.ZygosityHet},
	}
	covered := map[int]struct{}{42126611: {}, 42126963: {}, 42127941: {}}

	r := Resolve(c, pop, "CYP2D6", variants, covered, population.Global, DefaultPenalties())

	assert.Equal(t, "*1/*41", r.Diplotype)
	assert.Equal(t, 0.85, r.Breakdown.DiplotypeDeterminism)
}

// Two distinct heterozygous defining variants each scoring >= the
// compound-het minimum select the two-allele tie-break branch. Unphased,
// the determinism comes from the (a+b)/4 formula plus the HWE trans
// bonus, and a phase_resolution penalty is recorded.
func TestResolve_CompoundHetUnphased(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "G", Zygosity: pgx.ZygosityHet},
		{Pos: 42126963, Ref: "G", Alt: "A", Zygosity: pgx.ZygosityHet},
	}
	covered := map[int]struct{}{42126611: {}, 42126963: {}, 42127941: {}}

	r := Resolve(c, pop, "CYP2D6", variants, covered, population.Global, DefaultPenalties())

	assert.Equal(t, "*4/*10", r.Diplotype)
	assert.Equal(t, pgx.PhenotypePoorMetabolizer, r.Phenotype)
	assert.InDelta(t, 0.50, r.Breakdown.DiplotypeDeterminism, 1e-9)
	assert.Contains(t, r.Notes, "unphased")
	assert.Contains(t, r.Breakdown.PenaltiesApplied, "phase_resolution: unphased compound het")
}

// A phased het pair of defining variants takes the higher-determinism
// phased branch and records no phase_resolution penalty.
func TestResolve_CompoundHetPhased(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "G", Zygosity: pgx.ZygosityHet, Phased: true},
		{Pos: 42126963, Ref: "G", Alt: "A", Zygosity: pgx.ZygosityHet, Phased: true},
	}
	covered := map[int]struct{}{42126611: {}, 42126963: {}, 42127941: {}}

	r := Resolve(c, pop, "CYP2D6", variants, covered, population.Global, DefaultPenalties())

	assert.Equal(t, "*4/*10", r.Diplotype)
	assert.Equal(t, 0.90, r.Breakdown.DiplotypeDeterminism)
	assert.Contains(t, r.Notes, "phased")
}

// A variant at a position with no matching allele definition leaves
// zero scored candidates, which resolves to an indeterminate diplotype
// flagged as novel-variant rather than a pipeline error.
func TestResolve_NoCandidatesYieldsIndeterminate(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "A", Zygosity: pgx.ZygosityHet},
	}

	r := Resolve(c, pop, "CYP2D6", variants, nil, population.Global, DefaultPenalties())

	assert.Equal(t, pgx.DiplotypeIndeterminate, r.Diplotype)
	assert.Equal(t, pgx.ReasonNovelVariants, r.Reason)
	assert.Equal(t, 0.0, r.Breakdown.DiplotypeDeterminism)
	assert.LessOrEqual(t, r.Breakdown.AlleleCoverage, 0.3)
	assert.LessOrEqual(t, r.Breakdown.CNVEvaluation, 0.5)
}

// CYP2D6 is CNV-required; absent a live CNV-calling collaborator, every
// resolution for it takes the cnv_evaluation deduction unconditionally.
func TestResolve_CNVRequiredGeneAlwaysPenalized(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()

	r := Resolve(c, pop, "CYP2D6", nil, nil, population.Global, DefaultPenalties())

	assert.InDelta(t, 0.80, r.Breakdown.CNVEvaluation, 1e-9)
	assert.Contains(t, r.Breakdown.PenaltiesApplied, "cnv_evaluation: CNV not evaluated for CYP2D6")
}

// A gene outside the CNV-required set never takes the deduction.
func TestResolve_NonCNVGeneUnpenalized(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()

	r := Resolve(c, pop, "CYP2C19", nil, nil, population.Global, DefaultPenalties())

	assert.Equal(t, 1.0, r.Breakdown.CNVEvaluation)
}

func TestResolve_CoverageAdjustment_NilCoverageAppliesPenalty(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "G", Zygosity: pgx.ZygosityHomAlt},
	}

	r := Resolve(c, pop, "CYP2D6", variants, nil, population.Global, DefaultPenalties())

	assert.Less(t, r.Breakdown.AlleleCoverage, 1.0)
	assert.Contains(t, r.Breakdown.PenaltiesApplied, "allele_coverage: no coverage data supplied")
}

// scoreCandidates flags a candidate whose allele definition spans more
// than one defining position but only some of them were observed.
func TestScoreCandidates_PartialMatchFlagged(t *testing.T) {
	alleles := map[string]pgx.Allele{
		"*17": {Name: "*17", DefiningVariants: map[string]struct{}{
			"100:C:T": {},
			"200:G:A": {},
		}},
	}
	variants := []pgx.Variant{
		{Pos: 100, Ref: "C", Alt: "T", Zygosity: pgx.ZygosityHet},
	}

	candidates := scoreCandidates(alleles, variants, DefaultPenalties())

	if assert.Len(t, candidates, 1) {
		assert.True(t, candidates[0].partial)
	}
}

// With RequireCompleteMatch enabled, a candidate whose completeness
// falls below CompletenessThreshold is dropped rather than penalized.
func TestScoreCandidates_RequireCompleteMatchDropsPartial(t *testing.T) {
	alleles := map[string]pgx.Allele{
		"*17": {Name: "*17", DefiningVariants: map[string]struct{}{
			"100:C:T": {},
			"200:G:A": {},
			"300:T:A": {},
		}},
	}
	variants := []pgx.Variant{
		{Pos: 100, Ref: "C", Alt: "T", Zygosity: pgx.ZygosityHet},
	}
	penalties := DefaultPenalties()
	penalties.RequireCompleteMatch = true
	penalties.CompletenessThreshold = 0.8

	candidates := scoreCandidates(alleles, variants, penalties)

	assert.Empty(t, candidates)
}

// A fully-observed allele is never flagged as a partial match.
func TestScoreCandidates_CompleteMatchNotFlagged(t *testing.T) {
	alleles := map[string]pgx.Allele{
		"*17": {Name: "*17", DefiningVariants: map[string]struct{}{
			"100:C:T": {},
		}},
	}
	variants := []pgx.Variant{
		{Pos: 100, Ref: "C", Alt: "T", Zygosity: pgx.ZygosityHet},
	}

	candidates := scoreCandidates(alleles, variants, DefaultPenalties())

	if assert.Len(t, candidates, 1) {
		assert.False(t, candidates[0].partial)
	}
}

// The single-candidate fallback surfaces PartialMatch when its winning
// candidate's allele definition was only incompletely observed.
func TestSelectDiplotype_SingleCandidatePartialMatch(t *testing.T) {
	breakdown := pgx.NewConfidenceBreakdown()
	candidates := []candidate{{allele: "*17", score: 0.35, partial: true}}
	variants := []pgx.Variant{{Pos: 100, Ref: "C", Alt: "T", Zygosity: pgx.ZygosityHet}}

	_, reason, _ := selectDiplotype(candidates, nil, nil, variants, breakdown, population.NewStore(), "CYP2D6", population.Global, DefaultPenalties())

	assert.Equal(t, pgx.ReasonPartialMatch, reason)
}

// Two candidates tying exactly on score, neither reaching the
// compound-het minimum, make the *1/top fallback assignment a genuine
// tie-break rather than a resolved call.
func TestSelectDiplotype_TiedCandidatesAreAmbiguous(t *testing.T) {
	breakdown := pgx.NewConfidenceBreakdown()
	candidates := []candidate{
		{allele: "*10", score: 0.5},
		{allele: "*41", score: 0.5},
	}

	_, reason, _ := selectDiplotype(candidates, nil, nil, nil, breakdown, population.NewStore(), "CYP2D6", population.Global, DefaultPenalties())

	assert.Equal(t, pgx.ReasonAmbiguous, reason)
}

func TestResolve_CoverageAdjustment_PartialCoverageNoIssueFlag(t *testing.T) {
	c := corpus.Load()
	pop := population.NewStore()
	variants := []pgx.Variant{
		{Pos: 42126611, Ref: "C", Alt: "G", Zygosity: pgx.ZygosityHomAlt},
	}
	covered := map[int]struct{}{42126611: {}, 42126963: {}}

	r := Resolve(c, pop, "CYP2D6", variants, covered, population.Global, DefaultPenalties())

	assert.Less(t, r.Breakdown.AlleleCoverage, 1.0)
	assert.False(t, r.HasCoverageIssues)
}
