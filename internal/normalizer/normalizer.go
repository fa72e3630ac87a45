// Package normalizer implements C2, the Variant Normalizer: it turns a
// heterogeneous input variant list into a clean, deduplicated,
// quality-tagged set plus a structured list of rejections.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/pgxengine/core/internal/pgx"
)

// Thresholds holds the configurable QC thresholds from §6.
type Thresholds struct {
	MinQuality          float64
	MinAlleleDepthRatio float64
}

// DefaultThresholds matches the spec's defaults: qual >= 20.0, depth
// ratio >= 0.2.
func DefaultThresholds() Thresholds {
	return Thresholds{MinQuality: 20.0, MinAlleleDepthRatio: 0.2}
}

// QCResult is the per-variant, per-criterion QC outcome. A variant may
// fail QUAL or depth and still remain in the clean set — those failures
// surface later as confidence penalties, not rejections.
type QCResult struct {
	Variant         pgx.Variant
	PassesFilter    bool
	QualityAdequate bool
	DepthAdequate   bool
	GenotypeClear   bool
}

// Rejection records a variant dropped from the clean set and why.
type Rejection struct {
	Variant pgx.Variant
	Reason  string
}

// BuildValidation is the non-fatal cross-reference of observed positions
// against known anchor positions for expected vs. other builds.
type BuildValidation struct {
	ExpectedBuild string
	Warning       string
}

// Result is everything C2 produces for one normalization pass.
type Result struct {
	CleanVariants      []pgx.Variant
	Rejections         []Rejection
	QCResults          []QCResult
	Build              BuildValidation
	ChromNormalized    int
	DuplicatesRemoved  int
}

// anchorPositions maps known genome builds to a representative set of
// positions seen in that build's coordinate system, for the heuristic
// build-validation check in step 2.
var anchorPositions = map[string]map[int]struct{}{
	"GRCh38": {42126611: {}, 94781859: {}, 94942290: {}, 18143955: {}, 97915614: {}, 21331549: {}},
	"GRCh37": {42130692: {}, 94852738: {}, 96702047: {}},
}

// Normalize runs the full §4.2 pipeline in strict order over raw.
func Normalize(raw []pgx.Variant, expectedBuild string, thresholds Thresholds) Result {
	if expectedBuild == "" {
		expectedBuild = "GRCh38"
	}

	chromNormalized := 0
	step1 := make([]pgx.Variant, len(raw))
	for i, v := range raw {
		normalized, changed := normalizeChrom(v.Chrom)
		if changed {
			chromNormalized++
		}
		v.Chrom = normalized
		step1[i] = v
	}

	build := validateBuild(step1, expectedBuild)

	qcResults := make([]QCResult, len(step1))
	for i, v := range step1 {
		qcResults[i] = evaluateQC(v, thresholds)
	}

	var clean []pgx.Variant
	var rejections []Rejection
	for _, qc := range qcResults {
		if !qc.GenotypeClear {
			rejections = append(rejections, Rejection{Variant: qc.Variant, Reason: "genotype unclear"})
			continue
		}
		if !qc.PassesFilter {
			rejections = append(rejections, Rejection{Variant: qc.Variant, Reason: fmt.Sprintf("filter failed: %s", qc.Variant.Filter)})
			continue
		}
		clean = append(clean, qc.Variant)
	}

	clean = dropHomRef(clean)

	deduped, removed := deduplicate(clean)

	return Result{
		CleanVariants:     deduped,
		Rejections:        rejections,
		QCResults:         qcResults,
		Build:             build,
		ChromNormalized:   chromNormalized,
		DuplicatesRemoved: removed,
	}
}

// normalizeChrom strips a leading chr/CHR prefix, remaps M<->MT, and
// upper-cases X/Y. Reports whether anything changed.
func normalizeChrom(chrom string) (string, bool) {
	original := chrom
	c := chrom
	if strings.HasPrefix(c, "chr") || strings.HasPrefix(c, "CHR") {
		c = c[3:]
	}
	switch strings.ToUpper(c) {
	case "M":
		c = "MT"
	case "X", "Y":
		c = strings.ToUpper(c)
	}
	return c, c != original
}

// validateBuild is a heuristic, non-fatal cross-reference: if observed
// positions match a non-expected build and none match the expected one,
// record a warning without aborting.
func validateBuild(variants []pgx.Variant, expectedBuild string) BuildValidation {
	expectedAnchors := anchorPositions[expectedBuild]
	matchesExpected := false
	matchesOther := ""
	for _, v := range variants {
		if _, ok := expectedAnchors[v.Pos]; ok {
			matchesExpected = true
			continue
		}
		for build, anchors := range anchorPositions {
			if build == expectedBuild {
				continue
			}
			if _, ok := anchors[v.Pos]; ok {
				matchesOther = build
			}
		}
	}
	if !matchesExpected && matchesOther != "" {
		return BuildValidation{
			ExpectedBuild: expectedBuild,
			Warning:       fmt.Sprintf("observed positions match build %s, not expected build %s", matchesOther, expectedBuild),
		}
	}
	return BuildValidation{ExpectedBuild: expectedBuild}
}

func evaluateQC(v pgx.Variant, t Thresholds) QCResult {
	passesFilter := v.Filter == pgx.FilterPass || v.Filter == pgx.FilterDot || v.Filter == pgx.FilterAbsent
	qualityAdequate := v.Quality >= t.MinQuality
	depthAdequate := true
	if v.Depth != nil && v.Depth.Total() > 0 {
		depthAdequate = v.Depth.AltRatio() >= t.MinAlleleDepthRatio
	}
	genotypeClear := v.Zygosity != pgx.ZygosityUnknown && v.Zygosity != ""
	return QCResult{
		Variant:         v,
		PassesFilter:    passesFilter,
		QualityAdequate: qualityAdequate,
		DepthAdequate:   depthAdequate,
		GenotypeClear:   genotypeClear,
	}
}

// dropHomRef removes HomRef rows: they are not evidence of a variant
// allele.
func dropHomRef(variants []pgx.Variant) []pgx.Variant {
	out := make([]pgx.Variant, 0, len(variants))
	for _, v := range variants {
		if v.Zygosity == pgx.ZygosityHomRef {
			continue
		}
		out = append(out, v)
	}
	return out
}

// deduplicate collapses variants sharing an identity key to the
// highest-QUAL record, preserving first-seen order among survivors.
func deduplicate(variants []pgx.Variant) ([]pgx.Variant, int) {
	best := make(map[string]pgx.Variant)
	order := make([]string, 0, len(variants))
	for _, v := range variants {
		key := v.Key()
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = v
			continue
		}
		if v.Quality > existing.Quality {
			best[key] = v
		}
	}
	removed := len(variants) - len(order)
	out := make([]pgx.Variant, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out, removed
}
