// Package resolver implements C3, the Diplotype Resolver: it turns a
// clean variant set and a gene into a diplotype call, a phenotype, an
// indeterminate reason, and the genotype-side components of a
// ConfidenceBreakdown.
package resolver

import (
	"sort"

	"github.com/pgxengine/core/internal/corpus"
	"github.com/pgxengine/core/internal/pgx"
	"github.com/pgxengine/core/internal/population"
)

// Penalties holds the configurable deduction constants from §6.
type Penalties struct {
	MissingKeyPosition    float64
	UnphasedHeterozygote  float64
	PartialAlleleMatch    float64
	NoCoverageData        float64
	HomozygousThreshold   float64
	CompoundHetMin        float64
	CNVNotEvaluated       float64
	RequireCompleteMatch  bool
	CompletenessThreshold float64
}

// DefaultPenalties matches the spec's defaults.
func DefaultPenalties() Penalties {
	return Penalties{
		MissingKeyPosition:   0.8,
		UnphasedHeterozygote: 0.9,
		PartialAlleleMatch:   0.7,
		NoCoverageData:       0.9,
		HomozygousThreshold:   2.0,
		CompoundHetMin:        1.0,
		CNVNotEvaluated:       0.80,
		RequireCompleteMatch:  false,
		CompletenessThreshold: 0.8,
	}
}

// indeterminateCoverageCeiling and indeterminateCNVCeiling are the §3
// invariant ceilings: once a diplotype is Unresolved/Indeterminate, or
// the mapped phenotype is Indeterminate, allele_coverage and
// cnv_evaluation can never read as more confident than these values,
// regardless of what the coverage/CNV adjustments alone would produce.
const (
	indeterminateCoverageCeiling = 0.3
	indeterminateCNVCeiling      = 0.5
)

// Result is the full output of one resolution.
type Result struct {
	Diplotype           string
	Phenotype           pgx.Phenotype
	Breakdown           *pgx.ConfidenceBreakdown
	Reason              pgx.IndeterminateReason
	HasCoverageIssues   bool
	Notes               []string
}

type candidate struct {
	allele  string
	score   float64
	partial bool
}

// Resolve runs the full §4.3 algorithm.
func Resolve(c *corpus.Corpus, popStore *population.Store, gene string, variants []pgx.Variant, coveredPositions map[int]struct{}, popCode population.Code, penalties Penalties) Result {
	breakdown := pgx.NewConfidenceBreakdown()

	g, ok := c.GeneByName(gene)
	if !ok {
		breakdown.DiplotypeDeterminism = 0
		return Result{
			Diplotype: pgx.DiplotypeUnknown,
			Phenotype: pgx.PhenotypeUnknown,
			Breakdown: zeroBreakdown(),
			Reason:    pgx.ReasonUnsupportedGene,
		}
	}

	if len(variants) == 0 {
		phenotype, _ := c.DiplotypePhenotype(gene, pgx.DiplotypeWildtype)
		if phenotype == "" {
			phenotype = pgx.PhenotypeNormalMetabolizer
		}
		applyCNVPenalty(breakdown, g, penalties)
		return Result{
			Diplotype: pgx.DiplotypeWildtype,
			Phenotype: phenotype,
			Breakdown: breakdown,
			Reason:    pgx.ReasonNone,
		}
	}

	alleles := c.AlleleDefinitions(gene)
	observed := observedPositionKeys(variants)
	candidates := scoreCandidates(alleles, variants, penalties)

	diplotype, reason, notes := selectDiplotype(candidates, alleles, observed, variants, breakdown, popStore, gene, popCode, penalties)

	phenotype := mapPhenotype(c, gene, diplotype, breakdown)

	applyCoverageAdjustment(breakdown, g, coveredPositions, penalties)
	hasCoverageIssues := breakdown.AlleleCoverage < 1.0 && coverageMissCount(g, coveredPositions) > 2
	applyCNVPenalty(breakdown, g, penalties)

	finalReason := classifyReason(reason, hasCoverageIssues, breakdown)

	clampIndeterminate(breakdown, diplotype, phenotype)

	return Result{
		Diplotype:         diplotype,
		Phenotype:         phenotype,
		Breakdown:         breakdown,
		Reason:            finalReason,
		HasCoverageIssues: hasCoverageIssues,
		Notes:             notes,
	}
}

func zeroBreakdown() *pgx.ConfidenceBreakdown {
	b := pgx.NewConfidenceBreakdown()
	b.DiplotypeDeterminism = 0
	b.AlleleCoverage = 0
	b.GenomeBuildValidity = 0
	b.VariantQuality = 0
	b.CNVEvaluation = 0
	return b
}

func observedPositionKeys(variants []pgx.Variant) map[string]struct{} {
	set := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Zygosity == pgx.ZygosityHet || v.Zygosity == pgx.ZygosityHomAlt {
			set[v.PositionKey()] = struct{}{}
		}
	}
	return set
}

// scoreCandidates implements §4.3 step 3: +2.0 per observed HomAlt
// defining variant, +1.0 per observed Het defining variant, normalized
// by completeness when the allele is only partially observed. When
// RequireCompleteMatch is set (§6), a candidate whose completeness falls
// below CompletenessThreshold is dropped rather than merely penalized.
func scoreCandidates(alleles map[string]pgx.Allele, variants []pgx.Variant, penalties Penalties) []candidate {
	byPos := make(map[string]pgx.Variant, len(variants))
	for _, v := range variants {
		byPos[v.PositionKey()] = v
	}

	var out []candidate
	for name, a := range alleles {
		if len(a.DefiningVariants) == 0 {
			continue // wildtype-style alleles never compete as candidates
		}
		raw := 0.0
		observedCount := 0
		for posKey := range a.DefiningVariants {
			v, ok := byPos[posKey]
			if !ok {
				continue
			}
			observedCount++
			switch v.Zygosity {
			case pgx.ZygosityHomAlt:
				raw += 2.0
			case pgx.ZygosityHet:
				raw += 1.0
			}
		}
		if observedCount == 0 {
			continue
		}
		score := raw
		partial := observedCount < len(a.DefiningVariants)
		if partial {
			completeness := float64(observedCount) / float64(len(a.DefiningVariants))
			if penalties.RequireCompleteMatch && completeness < penalties.CompletenessThreshold {
				continue
			}
			score = raw * completeness * penalties.PartialAlleleMatch
		}
		out = append(out, candidate{allele: name, score: score, partial: partial})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].allele < out[j].allele
	})
	return out
}

// selectDiplotype implements §4.3 step 4's tie-break ordering.
func selectDiplotype(candidates []candidate, alleles map[string]pgx.Allele, observed map[string]struct{}, variants []pgx.Variant, breakdown *pgx.ConfidenceBreakdown, popStore *population.Store, gene string, popCode population.Code, penalties Penalties) (string, pgx.IndeterminateReason, []string) {
	if len(candidates) == 0 {
		breakdown.DiplotypeDeterminism = 0
		return pgx.DiplotypeIndeterminate, pgx.ReasonNovelVariants, nil
	}

	if allHomAltForSingleAllele(candidates, alleles, observed, variants) {
		diplotype := pgx.CanonicalDiplotype(candidates[0].allele, candidates[0].allele)
		breakdown.DiplotypeDeterminism = 0.95
		return diplotype, pgx.ReasonNone, nil
	}

	if len(candidates) == 1 {
		top := candidates[0]
		reason := partialMatchReason(top)
		if top.score >= penalties.HomozygousThreshold {
			breakdown.DiplotypeDeterminism = 0.90
			return pgx.CanonicalDiplotype(top.allele, top.allele), reason, nil
		}
		breakdown.DiplotypeDeterminism = 0.85
		return pgx.CanonicalDiplotype("*1", top.allele), reason, nil
	}

	a, b := candidates[0], candidates[1]
	if a.score >= penalties.CompoundHetMin && b.score >= penalties.CompoundHetMin {
		diplotype := pgx.CanonicalDiplotype(a.allele, b.allele)
		reason := pgx.PreferReason(partialMatchReason(a), partialMatchReason(b))
		anyPhased := false
		for _, v := range variants {
			if v.Phased {
				anyPhased = true
				break
			}
		}
		var notes []string
		if anyPhased {
			breakdown.DiplotypeDeterminism = 0.90
			notes = append(notes, "phased")
		} else {
			base := min(0.8, (a.score+b.score)/4) * penalties.UnphasedHeterozygote
			_, phase := popStore.TransCisProbability(gene, a.allele, b.allele, popCode)
			if phase == population.PhaseTrans {
				base += 0.05
			}
			breakdown.DiplotypeDeterminism = base
			breakdown.PhaseResolution = 1.0 - 0.10
			breakdown.AddPenalty("phase_resolution: unphased compound het")
			notes = append(notes, "unphased")
		}
		return diplotype, reason, notes
	}

	top := candidates[0]
	breakdown.DiplotypeDeterminism = 0.80
	reason := partialMatchReason(top)
	if a.score == b.score {
		// Neither candidate outscores the other on the primary axis, so
		// the *1/top fallback assignment is a tie-break, not a resolved
		// call: the caller should see it flagged as ambiguous.
		reason = pgx.ReasonAmbiguous
	}
	return pgx.CanonicalDiplotype("*1", top.allele), reason, nil
}

// partialMatchReason flags a winning candidate whose allele definition
// was only incompletely observed (§4.3 step 7's PartialMatch).
func partialMatchReason(c candidate) pgx.IndeterminateReason {
	if c.partial {
		return pgx.ReasonPartialMatch
	}
	return pgx.ReasonNone
}

func allHomAltForSingleAllele(candidates []candidate, alleles map[string]pgx.Allele, observed map[string]struct{}, variants []pgx.Variant) bool {
	if len(candidates) != 1 {
		return false
	}
	for _, v := range variants {
		if v.Zygosity != pgx.ZygosityHomAlt {
			return false
		}
	}
	a := alleles[candidates[0].allele]
	return a.CompletelyMatched(observed)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// mapPhenotype implements §4.3 step 5: direct lookup first, then
// activity-score binning.
func mapPhenotype(c *corpus.Corpus, gene, diplotype string, breakdown *pgx.ConfidenceBreakdown) pgx.Phenotype {
	if diplotype == pgx.DiplotypeIndeterminate || diplotype == pgx.DiplotypeUnresolved || diplotype == pgx.DiplotypeUnknown {
		return pgx.PhenotypeIndeterminate
	}
	if p, ok := c.DiplotypePhenotype(gene, diplotype); ok {
		return p
	}

	alleleA, alleleB := splitDiplotype(diplotype)
	score := c.ActivityScore(gene, alleleA) + c.ActivityScore(gene, alleleB)
	poorMax, intermediateMax, normalMax := c.ActivityCutoffs(gene)

	switch {
	case score < poorMax:
		return pgx.PhenotypePoorMetabolizer
	case score < intermediateMax:
		return pgx.PhenotypeIntermediateMetabolizer
	case score < normalMax:
		return pgx.PhenotypeNormalMetabolizer
	default:
		return pgx.PhenotypeUltrarapidMetabolizer
	}
}

func splitDiplotype(d string) (string, string) {
	for i := 0; i < len(d); i++ {
		if d[i] == '/' {
			return d[:i], d[i+1:]
		}
	}
	return d, d
}

// applyCoverageAdjustment implements §4.3 step 6.
func applyCoverageAdjustment(breakdown *pgx.ConfidenceBreakdown, g pgx.Gene, covered map[int]struct{}, penalties Penalties) {
	if covered == nil {
		breakdown.AlleleCoverage *= penalties.NoCoverageData
		breakdown.AddPenalty("allele_coverage: no coverage data supplied")
		return
	}
	n := coverageMissCount(g, covered)
	if n == 0 {
		return
	}
	capped := n
	if capped > 10 {
		capped = 10
	}
	factor := 1.0
	for i := 0; i < capped; i++ {
		factor *= penalties.MissingKeyPosition
	}
	breakdown.AlleleCoverage *= factor
	breakdown.AddPenalty("allele_coverage: missing key positions")
}

// applyCNVPenalty implements §4.4's additional cnv_evaluation penalty:
// this engine has no live CNV-calling collaborator, so any gene in the
// CNV-required set (§6) always takes the deduction — it is never
// skipped based on input, only ever applicable or not.
func applyCNVPenalty(breakdown *pgx.ConfidenceBreakdown, g pgx.Gene, penalties Penalties) {
	if !g.CNVRequired {
		return
	}
	breakdown.CNVEvaluation *= penalties.CNVNotEvaluated
	breakdown.AddPenalty("cnv_evaluation: CNV not evaluated for " + g.Symbol)
}

// clampIndeterminate enforces §3's invariant: once resolution could not
// settle on a genotype or phenotype, allele_coverage and cnv_evaluation
// may never read as more confident than the ceilings below, regardless
// of what the coverage/CNV adjustments alone computed.
func clampIndeterminate(breakdown *pgx.ConfidenceBreakdown, diplotype string, phenotype pgx.Phenotype) {
	switch diplotype {
	case pgx.DiplotypeUnresolved, pgx.DiplotypeIndeterminate, pgx.DiplotypeUnknown:
	default:
		if !phenotype.IsUnresolved() {
			return
		}
	}
	if breakdown.AlleleCoverage > indeterminateCoverageCeiling {
		breakdown.AlleleCoverage = indeterminateCoverageCeiling
		breakdown.AddPenalty("allele_coverage: capped for unresolved call")
	}
	if breakdown.CNVEvaluation > indeterminateCNVCeiling {
		breakdown.CNVEvaluation = indeterminateCNVCeiling
		breakdown.AddPenalty("cnv_evaluation: capped for unresolved call")
	}
}

func coverageMissCount(g pgx.Gene, covered map[int]struct{}) int {
	if covered == nil {
		return len(g.KeyPositions)
	}
	n := 0
	for pos := range g.KeyPositions {
		if _, ok := covered[pos]; !ok {
			n++
		}
	}
	return n
}

// classifyReason implements §4.3 step 7's priority ordering.
func classifyReason(reason pgx.IndeterminateReason, hasCoverageIssues bool, breakdown *pgx.ConfidenceBreakdown) pgx.IndeterminateReason {
	current := reason
	if hasCoverageIssues {
		current = pgx.PreferReason(current, pgx.ReasonNoCoverage)
	}
	if breakdown.DiplotypeDeterminism < 0.5 {
		current = pgx.PreferReason(current, pgx.ReasonLowQuality)
	}
	return current
}
