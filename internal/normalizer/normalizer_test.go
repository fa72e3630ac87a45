package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pgxengine/core/internal/pgx"
)

func TestNormalizeChrom(t *testing.T) {
	cases := map[string]string{
		"chr1":  "1",
		"CHR2":  "2",
		"chrM":  "MT",
		"chrx":  "X",
		"chrY":  "Y",
		"22":    "22",
	}
	for in, want := range cases {
		got, _ := normalizeChrom(in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalize_DropsHomRefAndDedupes(t *testing.T) {
	raw := []pgx.Variant{
		{Chrom: "chr22", Pos: 1, Ref: "A", Alt: "A", Zygosity: pgx.ZygosityHomRef, Quality: 60, Filter: pgx.FilterPass},
		{Chrom: "chr22", Pos: 2, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityHet, Quality: 30, Filter: pgx.FilterPass},
		{Chrom: "chr22", Pos: 2, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityHet, Quality: 55, Filter: pgx.FilterPass},
	}

	result := Normalize(raw, "GRCh38", DefaultThresholds())

	assert.Len(t, result.CleanVariants, 1)
	assert.Equal(t, 1, result.DuplicatesRemoved)
	assert.Equal(t, 55.0, result.CleanVariants[0].Quality)
	assert.Equal(t, 3, result.ChromNormalized)
}

func TestNormalize_RejectsUnclearGenotypeAndFailedFilter(t *testing.T) {
	raw := []pgx.Variant{
		{Chrom: "1", Pos: 10, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityUnknown, Quality: 60, Filter: pgx.FilterPass},
		{Chrom: "1", Pos: 11, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityHet, Quality: 60, Filter: pgx.FilterOther},
	}

	result := Normalize(raw, "GRCh38", DefaultThresholds())

	assert.Empty(t, result.CleanVariants)
	assert.Len(t, result.Rejections, 2)
	assert.Equal(t, "genotype unclear", result.Rejections[0].Reason)
	assert.Contains(t, result.Rejections[1].Reason, "filter failed")
}

func TestNormalize_LowQualityAndDepthStayCleanButFlagged(t *testing.T) {
	raw := []pgx.Variant{
		{
			Chrom: "1", Pos: 12, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityHet,
			Quality: 5, Filter: pgx.FilterPass,
			Depth: &pgx.AlleleDepth{RefDepth: 95, AltDepth: 5},
		},
	}

	result := Normalize(raw, "GRCh38", DefaultThresholds())

	assert.Len(t, result.CleanVariants, 1)
	assert.False(t, result.QCResults[0].QualityAdequate)
	assert.False(t, result.QCResults[0].DepthAdequate)
}

func TestValidateBuild_WarnsOnMismatch(t *testing.T) {
	raw := []pgx.Variant{{Chrom: "1", Pos: 94852738, Ref: "A", Alt: "T", Zygosity: pgx.ZygosityHet, Quality: 60, Filter: pgx.FilterPass}}

	result := Normalize(raw, "GRCh38", DefaultThresholds())

	assert.NotEmpty(t, result.Build.Warning)
	assert.Contains(t, result.Build.Warning, "GRCh37")
}
