// Package corpus implements C1, the Reference Corpus: an immutable,
// constant-time lookup bundle of allele definitions, diplotype/phenotype
// maps, activity scores, drug guidance and gene-drug evidence. It is
// loaded once at process start (see Load) and never written to again —
// every exported method is a pure read.
package corpus

import (
	"strings"

	"github.com/pgxengine/core/internal/pgx"
)

type geneDrugRelationship struct {
	confirmed     bool
	drug          string
	evidenceTypes []string
	rawAssociations []string
	pmids         []string
	evidenceLevel string
}

// Corpus is the loaded, immutable knowledge bundle. Build one with Load
// and share it by read-only reference across every request worker.
type Corpus struct {
	genes               map[string]pgx.Gene
	alleles             map[string]map[string]pgx.Allele
	diplotypePhenotype  map[string]map[string]pgx.Phenotype
	activityScores      map[string]map[string]float64
	activityCutoffs     map[string]activityCutoff
	drugGeneMap         map[string]string
	drugAliases         map[string]string
	drugRecommendations map[string]map[pgx.Phenotype]pgx.DrugRecommendation
	geneDrugRelations   map[string]map[string]geneDrugRelationship
	clinicalAnnotations map[string]map[string][]pgx.ClinicalAnnotation
}

type activityCutoff struct {
	poorMax         float64
	intermediateMax float64
	normalMax       float64
}

// evidenceLevelWeights gives the knowledge_confidence weight and
// automation eligibility per evidence level, per §4.1.
var evidenceLevelWeights = map[string]pgx.EvidenceLevel{
	"1A":   {Level: "1A", ConfidenceWeight: 1.00, AllowsAutomation: true},
	"1B":   {Level: "1B", ConfidenceWeight: 1.00, AllowsAutomation: true},
	"2A":   {Level: "2A", ConfidenceWeight: 0.85, AllowsAutomation: true},
	"2B":   {Level: "2B", ConfidenceWeight: 0.80, AllowsAutomation: true},
	"3":    {Level: "3", ConfidenceWeight: 0.65, AllowsAutomation: false},
	"4":    {Level: "4", ConfidenceWeight: 0.50, AllowsAutomation: false},
	"none": {Level: "none", ConfidenceWeight: 0.50, AllowsAutomation: false},
}

// GeneByName returns the gene record and whether it is supported.
func (c *Corpus) GeneByName(gene string) (pgx.Gene, bool) {
	g, ok := c.genes[gene]
	return g, ok
}

// AlleleDefinitions returns allele -> defining variant key set for a gene.
func (c *Corpus) AlleleDefinitions(gene string) map[string]pgx.Allele {
	return c.alleles[gene]
}

// KeyPositions returns the gene's key coverage positions.
func (c *Corpus) KeyPositions(gene string) map[int]struct{} {
	g, ok := c.genes[gene]
	if !ok {
		return nil
	}
	return g.KeyPositions
}

// DiplotypePhenotype looks up phenotype by gene and diplotype, trying
// both the original and canonicalized diplotype string (§4.1).
func (c *Corpus) DiplotypePhenotype(gene, diplotype string) (pgx.Phenotype, bool) {
	table, ok := c.diplotypePhenotype[gene]
	if !ok {
		return "", false
	}
	if p, ok := table[diplotype]; ok {
		return p, true
	}
	canon := pgx.CanonicalizeDiplotypeString(diplotype)
	if p, ok := table[canon]; ok {
		return p, true
	}
	return "", false
}

// ActivityScore returns the activity score for an allele. Unknown alleles
// default to 1.0, the conservative wildtype assumption.
func (c *Corpus) ActivityScore(gene, allele string) float64 {
	scores, ok := c.activityScores[gene]
	if !ok {
		return 1.0
	}
	if s, ok := scores[allele]; ok {
		return s
	}
	return 1.0
}

// ActivityCutoffs returns the gene-specific activity-score binning
// cutoffs used to derive phenotype when no direct diplotype map entry
// exists.
func (c *Corpus) ActivityCutoffs(gene string) (poorMax, intermediateMax, normalMax float64) {
	cut, ok := c.activityCutoffs[gene]
	if !ok {
		return 0.5, 1.5, 2.5
	}
	return cut.poorMax, cut.intermediateMax, cut.normalMax
}

// PrimaryGeneForDrug returns the canonical gene for a drug, if known.
func (c *Corpus) PrimaryGeneForDrug(drug string) (string, bool) {
	g, ok := c.drugGeneMap[normalizeDrugKey(drug)]
	return g, ok
}

// ResolveDrugAlias normalizes a drug name (lowercase, trim) and applies
// the identity-preserving alias map. Never renames to a different active
// ingredient.
func (c *Corpus) ResolveDrugAlias(drug string) string {
	key := normalizeDrugKey(drug)
	if alias, ok := c.drugAliases[key]; ok {
		return alias
	}
	return key
}

func normalizeDrugKey(drug string) string {
	return strings.ToLower(strings.TrimSpace(drug))
}

// DrugSupported reports whether the evidence store contains at least one
// gene-drug relationship with evidence level in {1A,1B} for this drug,
// aggregated across all genes.
func (c *Corpus) DrugSupported(drug string) bool {
	key := normalizeDrugKey(drug)
	for _, byDrug := range c.geneDrugRelations {
		rel, ok := byDrug[key]
		if !ok {
			continue
		}
		if rel.evidenceLevel == "1A" || rel.evidenceLevel == "1B" {
			return true
		}
	}
	return false
}

// ConfirmGeneDrug returns the knowledge-base confirmation record for a
// gene-drug pair, including the drug name AS STORED in the knowledge
// base (callers must verify this matches their normalized input drug —
// see §4.5 step 3).
func (c *Corpus) ConfirmGeneDrug(gene, drug string) pgx.GeneDrugConfirmation {
	key := normalizeDrugKey(drug)
	byDrug, ok := c.geneDrugRelations[gene]
	if !ok {
		return pgx.GeneDrugConfirmation{Confirmed: false}
	}
	rel, ok := byDrug[key]
	if !ok {
		return pgx.GeneDrugConfirmation{Confirmed: false}
	}
	association := classifyAssociation(rel)
	return pgx.GeneDrugConfirmation{
		Confirmed:     rel.confirmed,
		Drug:          rel.drug,
		EvidenceTypes: rel.evidenceTypes,
		Association:   association,
		PMIDs:         rel.pmids,
		EvidenceLevel: rel.evidenceLevel,
	}
}

// classifyAssociation implements the §4.1 decision tree, evaluated in
// order.
func classifyAssociation(rel geneDrugRelationship) string {
	if !rel.confirmed {
		return "unconfirmed"
	}
	hasAssociated, hasNotAssociated := false, false
	for _, a := range rel.rawAssociations {
		switch a {
		case "associated":
			hasAssociated = true
		case "not associated":
			hasNotAssociated = true
		}
	}
	if hasAssociated && hasNotAssociated {
		return "conflicting"
	}
	if rel.evidenceLevel == "1A" || rel.evidenceLevel == "1B" {
		for _, et := range rel.evidenceTypes {
			if strings.Contains(et, "Guideline") {
				return "established"
			}
		}
	}
	if rel.evidenceLevel == "2A" || rel.evidenceLevel == "2B" {
		return "moderate"
	}
	if rel.evidenceLevel == "3" && len(rel.evidenceTypes) >= 3 {
		return "emerging"
	}
	return "limited"
}

// EvidenceLevel returns the evidence-level weight record for a gene-drug
// pair.
func (c *Corpus) EvidenceLevel(gene, drug string) pgx.EvidenceLevel {
	key := normalizeDrugKey(drug)
	level := "none"
	if byDrug, ok := c.geneDrugRelations[gene]; ok {
		if rel, ok := byDrug[key]; ok {
			level = rel.evidenceLevel
		}
	}
	if w, ok := evidenceLevelWeights[level]; ok {
		return w
	}
	return evidenceLevelWeights["none"]
}

// ClinicalAnnotations returns the deduplicated, harmonized clinical
// annotations for a gene-drug pair (§4.1, §4.1.1).
func (c *Corpus) ClinicalAnnotations(gene, drug string) []pgx.ClinicalAnnotation {
	key := normalizeDrugKey(drug)
	byDrug, ok := c.clinicalAnnotations[gene]
	if !ok {
		return nil
	}
	anns, ok := byDrug[key]
	if !ok {
		return nil
	}
	deduped := dedupeAnnotations(anns)
	confirmation := c.ConfirmGeneDrug(gene, drug)
	return HarmonizeAnnotations(deduped, confirmation.Association)
}

func dedupeAnnotations(anns []pgx.ClinicalAnnotation) []pgx.ClinicalAnnotation {
	seen := make(map[string]struct{}, len(anns))
	out := make([]pgx.ClinicalAnnotation, 0, len(anns))
	for _, a := range anns {
		k := a.AnnotationID + "|" + a.EvidenceType
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	pgx.SortAnnotations(out)
	return out
}

// HarmonizeAnnotations rewrites nested annotation associations to stay
// consistent with a top-level classification (§4.1.1). It is a pure
// function: harmonize(harmonize(x, top), top) == harmonize(x, top).
func HarmonizeAnnotations(anns []pgx.ClinicalAnnotation, topLevel string) []pgx.ClinicalAnnotation {
	if topLevel == "conflicting" || topLevel == "unconfirmed" {
		out := make([]pgx.ClinicalAnnotation, len(anns))
		copy(out, anns)
		return out
	}
	out := make([]pgx.ClinicalAnnotation, len(anns))
	for i, a := range anns {
		harmonized := a
		switch a.Association {
		case "associated", "ambiguous":
			harmonized.Association = "supporting"
		case "not associated":
			// preserved
		default:
			if a.EvidenceType != "" {
				harmonized.Association = "supporting"
			}
		}
		out[i] = harmonized
	}
	return out
}

// DrugRecommendation returns the CPIC guidance record for a drug and
// phenotype, matched case-insensitively after trimming the drug name.
func (c *Corpus) DrugRecommendation(drug string, phenotype pgx.Phenotype) (pgx.DrugRecommendation, bool) {
	key := normalizeDrugKey(drug)
	byPhenotype, ok := c.drugRecommendations[key]
	if !ok {
		return pgx.DrugRecommendation{}, false
	}
	rec, ok := byPhenotype[phenotype]
	return rec, ok
}
