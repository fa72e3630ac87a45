package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgxengine/core/internal/corpus"
	"github.com/pgxengine/core/internal/pgx"
)

func TestClassifyRiskLabel(t *testing.T) {
	cases := []struct {
		name     string
		summary  string
		impl     string
		severity pgx.Severity
		want     pgx.RiskLabel
	}{
		{"avoid wins over standard text", "Avoid codeine use due to lack of efficacy.", "", pgx.SeverityCritical, pgx.RiskAvoid},
		{"toxicity phrase", "Monitor closely.", "life-threatening respiratory depression", pgx.SeverityCritical, pgx.RiskToxic},
		{"lack of efficacy", "Consider alternative due to lack of efficacy.", "", pgx.SeverityHigh, pgx.RiskIneffective},
		{"alternative therapy", "Use an alternative antiplatelet therapy.", "", pgx.SeverityHigh, pgx.RiskUseAlternative},
		{"dose reduction", "Reduce dose by 20-50% of standard starting dose.", "", pgx.SeverityHigh, pgx.RiskAdjustDosage},
		{"standard dosing, severity none", "Use standard dose and standard label recommended dosing.", "", pgx.SeverityNone, pgx.RiskStandardDosing},
		{"standard-dose keywords ignored at critical severity", "Use standard dose.", "", pgx.SeverityCritical, pgx.RiskUnknown},
		{"no keyword match, severity none", "Nothing of note.", "", pgx.SeverityNone, pgx.RiskStandardDosing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRiskLabel(tc.summary, tc.impl, tc.severity)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInvariantViolated(t *testing.T) {
	assert.True(t, invariantViolated(pgx.PhenotypeNormalMetabolizer, pgx.SeverityCritical))
	assert.False(t, invariantViolated(pgx.PhenotypeNormalMetabolizer, pgx.SeverityHigh))
	assert.False(t, invariantViolated(pgx.PhenotypePoorMetabolizer, pgx.SeverityCritical))
}

func TestEvaluate_WildtypeCodeineStandardDosing(t *testing.T) {
	c := corpus.Load()
	breakdown := pgx.NewConfidenceBreakdown()
	assessment, rec, err := Evaluate(c, "CYP2D6", "codeine", "*1/*1", pgx.PhenotypeNormalMetabolizer, breakdown, 1.0)

	assert.Nil(t, err)
	assert.Equal(t, pgx.RiskStandardDosing, assessment.RiskLabel)
	assert.Equal(t, pgx.SeverityNone, assessment.Severity)
	assert.True(t, assessment.AutomationStatus.Allowed)
	assert.NotNil(t, rec)
}

func TestEvaluate_PoorMetabolizerAvoid(t *testing.T) {
	c := corpus.Load()
	breakdown := pgx.NewConfidenceBreakdown()
	assessment, _, err := Evaluate(c, "CYP2D6", "codeine", "*4/*4", pgx.PhenotypePoorMetabolizer, breakdown, 1.0)

	assert.Nil(t, err)
	assert.Equal(t, pgx.RiskAvoid, assessment.RiskLabel)
	assert.Equal(t, pgx.SeverityCritical, assessment.Severity)
}

func TestEvaluate_UnsupportedDrug(t *testing.T) {
	c := corpus.Load()
	breakdown := pgx.NewConfidenceBreakdown()
	assessment, rec, err := Evaluate(c, "CYP2D6", "ibuprofen", "*1/*1", pgx.PhenotypeNormalMetabolizer, breakdown, 1.0)

	assert.Nil(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, pgx.RiskDrugNotSupported, assessment.RiskLabel)
	assert.False(t, assessment.AutomationStatus.Allowed)
}

func TestEvaluate_UnconfirmedGeneDrug(t *testing.T) {
	c := corpus.Load()
	breakdown := pgx.NewConfidenceBreakdown()
	assessment, rec, err := Evaluate(c, "CYP2C19", "codeine", "*1/*1", pgx.PhenotypeNormalMetabolizer, breakdown, 1.0)

	assert.Nil(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, pgx.RiskNoSpecificRecommendation, assessment.RiskLabel)
	assert.False(t, assessment.AutomationStatus.Allowed)
	assert.Contains(t, assessment.AutomationStatus.BlockedReasons, "Gene-drug pair not confirmed")
}

// fakeKnowledgeBase lets the integrity-violation abort (§4.5 step 3,
// §8 scenario 6) be driven directly: the shipped corpus's literal data
// is self-consistent by construction and can never produce a
// confirmation whose stored drug disagrees with the lookup key.
type fakeKnowledgeBase struct {
	confirmation pgx.GeneDrugConfirmation
}

func (f fakeKnowledgeBase) ResolveDrugAlias(drug string) string { return drug }
func (f fakeKnowledgeBase) DrugSupported(drug string) bool      { return true }
func (f fakeKnowledgeBase) ConfirmGeneDrug(gene, drug string) pgx.GeneDrugConfirmation {
	return f.confirmation
}
func (f fakeKnowledgeBase) EvidenceLevel(gene, drug string) pgx.EvidenceLevel {
	return pgx.EvidenceLevel{Level: "1A", ConfidenceWeight: 1.0, AllowsAutomation: true}
}
func (f fakeKnowledgeBase) DrugRecommendation(drug string, phenotype pgx.Phenotype) (pgx.DrugRecommendation, bool) {
	return pgx.DrugRecommendation{}, false
}
func (f fakeKnowledgeBase) ClinicalAnnotations(gene, drug string) []pgx.ClinicalAnnotation {
	return nil
}

func TestEvaluate_GeneDrugIntegrityViolationAborts(t *testing.T) {
	kb := fakeKnowledgeBase{confirmation: pgx.GeneDrugConfirmation{Confirmed: true, Drug: "acetaminophen"}}
	breakdown := pgx.NewConfidenceBreakdown()

	assessment, rec, err := Evaluate(kb, "CYP2D6", "codeine", "*1/*1", pgx.PhenotypeNormalMetabolizer, breakdown, 1.0)

	assert.Nil(t, assessment)
	assert.Nil(t, rec)
	require.NotNil(t, err)
	assert.Equal(t, pgx.ErrIntegrityViolation, err.Kind)
}

func TestEvaluate_UnresolvedPhenotype(t *testing.T) {
	c := corpus.Load()
	breakdown := pgx.NewConfidenceBreakdown()
	assessment, rec, err := Evaluate(c, "CYP2D6", "codeine", pgx.DiplotypeIndeterminate, pgx.PhenotypeIndeterminate, breakdown, 1.0)

	assert.Nil(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, pgx.RiskNoSpecificRecommendation, assessment.RiskLabel)
	assert.Equal(t, pgx.SeverityUndetermined, assessment.Severity)
	assert.Contains(t, assessment.AutomationStatus.BlockedReasons, "Phenotype unresolved")
}
