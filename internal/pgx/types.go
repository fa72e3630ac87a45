// Package pgx holds the shared data model for the pharmacogenomic decision
// engine: variants, genes, alleles, diplotypes, phenotypes, confidence
// breakdowns and risk assessments. Nothing in this package performs I/O.
package pgx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Zygosity describes the observed genotype call for a variant.
type Zygosity string

const (
	ZygosityHomRef  Zygosity = "HomRef"
	ZygosityHet     Zygosity = "Het"
	ZygosityHomAlt  Zygosity = "HomAlt"
	ZygosityUnknown Zygosity = "Unknown"
)

// FilterTag is the VCF-style filter status of a variant record.
type FilterTag string

const (
	FilterPass   FilterTag = "PASS"
	FilterDot    FilterTag = "."
	FilterOther  FilterTag = "other"
	FilterAbsent FilterTag = ""
)

// AlleleDepth is the optional ref/alt read-depth pair for a variant.
type AlleleDepth struct {
	RefDepth int
	AltDepth int
}

// Total returns the combined depth across both alleles.
func (d AlleleDepth) Total() int {
	return d.RefDepth + d.AltDepth
}

// AltRatio returns alt depth over total depth. Returns 0 when total is 0.
func (d AlleleDepth) AltRatio() float64 {
	total := d.Total()
	if total == 0 {
		return 0
	}
	return float64(d.AltDepth) / float64(total)
}

// Variant is a single observed genomic call. It is created once from an
// external parse and never mutated afterward; C2 produces new Variant
// values rather than editing these in place.
type Variant struct {
	Chrom    string
	Pos      int
	Ref      string
	Alt      string
	DbSNPID  string
	StarTag  string
	Zygosity Zygosity
	Quality  float64
	Filter   FilterTag
	Depth    *AlleleDepth
	PhaseSet string
	Phased   bool
}

// Key is the identity key used for deduplication and allele matching:
// (chrom, pos, ref, alt).
func (v Variant) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", v.Chrom, v.Pos, v.Ref, v.Alt)
}

// PositionKey matches the defining-variant-key shape used by the
// reference corpus: pos:ref:alt (gene-scoped, so chrom is implicit).
func (v Variant) PositionKey() string {
	return fmt.Sprintf("%d:%s:%s", v.Pos, v.Ref, v.Alt)
}

// Gene describes a pharmacogene: its key coverage positions and whether
// copy-number variation must be separately evaluated for it.
type Gene struct {
	Symbol        string
	KeyPositions  map[int]struct{}
	CNVRequired   bool
}

// HasKeyPosition reports whether pos is one of the gene's key positions.
func (g Gene) HasKeyPosition(pos int) bool {
	_, ok := g.KeyPositions[pos]
	return ok
}

// Allele is a named star-haplotype and the exact set of variant keys that
// define it (gene-scoped position keys, i.e. pos:ref:alt).
type Allele struct {
	Name             string
	DefiningVariants map[string]struct{}
}

// CompletelyMatched reports whether every defining variant of the allele
// is present in observed (a set of PositionKey strings).
func (a Allele) CompletelyMatched(observed map[string]struct{}) bool {
	for k := range a.DefiningVariants {
		if _, ok := observed[k]; !ok {
			return false
		}
	}
	return true
}

// ObservedCount returns how many of the allele's defining variants are in
// observed, and the allele's total defining-variant count.
func (a Allele) ObservedCount(observed map[string]struct{}) (int, int) {
	count := 0
	for k := range a.DefiningVariants {
		if _, ok := observed[k]; ok {
			count++
		}
	}
	return count, len(a.DefiningVariants)
}

// Special terminal diplotype values.
const (
	DiplotypeUnresolved   = "Unresolved"
	DiplotypeIndeterminate = "Indeterminate"
	DiplotypeUnknown      = "Unknown"
	DiplotypeWildtype     = "*1/*1"
)

// CanonicalDiplotype orders two allele names so the numerically-lower
// allele appears first, joined with "/". Special terminal values pass
// through unchanged. Canonicalization is idempotent and order-insensitive.
func CanonicalDiplotype(a, b string) string {
	if isTerminalDiplotype(a) {
		return a
	}
	if isTerminalDiplotype(b) {
		return b
	}
	na, nb := alleleNumber(a), alleleNumber(b)
	if na < nb || (na == nb && a <= b) {
		return a + "/" + b
	}
	return b + "/" + a
}

// CanonicalizeDiplotypeString re-canonicalizes an already-formed "A/B"
// string. Used to normalize caller-supplied diplotypes before lookups.
func CanonicalizeDiplotypeString(d string) string {
	if isTerminalDiplotype(d) {
		return d
	}
	parts := strings.SplitN(d, "/", 2)
	if len(parts) != 2 {
		return d
	}
	return CanonicalDiplotype(parts[0], parts[1])
}

func isTerminalDiplotype(d string) bool {
	switch d {
	case DiplotypeUnresolved, DiplotypeIndeterminate, DiplotypeUnknown:
		return true
	}
	return false
}

// alleleNumber extracts the numeric part of a star-allele name (e.g. "*4"
// -> 4) for ordering purposes. Non-numeric suffixes sort after numeric
// ones but compare lexically among themselves.
func alleleNumber(name string) float64 {
	trimmed := strings.TrimPrefix(name, "*")
	// Allow suffixes like "*36+*10" or "*4N" by taking the leading numeric run.
	end := 0
	for end < len(trimmed) && (trimmed[end] >= '0' && trimmed[end] <= '9' || trimmed[end] == '.') {
		end++
	}
	if end == 0 {
		return 1 << 30 // non-numeric names sort last, deterministically
	}
	n, err := strconv.ParseFloat(trimmed[:end], 64)
	if err != nil {
		return 1 << 30
	}
	return n
}

// Phenotype is the functional metabolizer/transporter class implied by a
// diplotype.
type Phenotype string

const (
	PhenotypePoorMetabolizer         Phenotype = "PM"
	PhenotypeIntermediateMetabolizer Phenotype = "IM"
	PhenotypeNormalMetabolizer       Phenotype = "NM"
	PhenotypeRapidMetabolizer        Phenotype = "RM"
	PhenotypeUltrarapidMetabolizer   Phenotype = "UM"
	PhenotypeIndeterminate           Phenotype = "Indeterminate"

	PhenotypePoorFunction       Phenotype = "Poor Function"
	PhenotypeDecreasedFunction  Phenotype = "Decreased Function"
	PhenotypeNormalFunction     Phenotype = "Normal Function"
	PhenotypeIncreasedFunction  Phenotype = "Increased Function"

	PhenotypeUnknown Phenotype = "Unknown"
)

// IsNormalFamily reports whether the phenotype belongs to the "normal"
// family that the safety invariant forbids pairing with critical severity.
func (p Phenotype) IsNormalFamily() bool {
	switch p {
	case PhenotypeNormalMetabolizer, PhenotypeNormalFunction:
		return true
	}
	return false
}

// IsUnresolved reports whether the phenotype represents an inability to
// resolve a call (as opposed to a resolved functional class).
func (p Phenotype) IsUnresolved() bool {
	return p == PhenotypeIndeterminate || p == PhenotypeUnknown
}

// IndeterminateReason enumerates why a diplotype call is not confident.
type IndeterminateReason string

const (
	ReasonNone             IndeterminateReason = "None"
	ReasonNoCoverage       IndeterminateReason = "NoCoverage"
	ReasonAmbiguous        IndeterminateReason = "Ambiguous"
	ReasonNovelVariants    IndeterminateReason = "NovelVariants"
	ReasonPartialMatch     IndeterminateReason = "PartialMatch"
	ReasonLowQuality       IndeterminateReason = "LowQuality"
	ReasonUnsupportedGene  IndeterminateReason = "UnsupportedGene"
)

// reasonPriority ranks reasons for the "most specific reason wins" rule in
// §4.3 step 7: UnsupportedGene > NovelVariants > NoCoverage > Ambiguous >
// PartialMatch > LowQuality > None.
var reasonPriority = map[IndeterminateReason]int{
	ReasonUnsupportedGene: 0,
	ReasonNovelVariants:   1,
	ReasonNoCoverage:      2,
	ReasonAmbiguous:       3,
	ReasonPartialMatch:    4,
	ReasonLowQuality:      5,
	ReasonNone:            6,
}

// PreferReason returns whichever of current/candidate has priority,
// preserving a more specific reason already assigned.
func PreferReason(current, candidate IndeterminateReason) IndeterminateReason {
	if current == "" {
		current = ReasonNone
	}
	if reasonPriority[candidate] < reasonPriority[current] {
		return candidate
	}
	return current
}

// RiskLabel is the fixed set of canonical risk labels the engine may emit.
type RiskLabel string

const (
	RiskToxic                      RiskLabel = "Toxic"
	RiskIneffective                RiskLabel = "Ineffective"
	RiskAvoid                      RiskLabel = "Avoid"
	RiskUseAlternative             RiskLabel = "Use Alternative"
	RiskAdjustDosage               RiskLabel = "Adjust Dosage"
	RiskStandardDosing             RiskLabel = "Standard dosing recommended"
	RiskSafe                       RiskLabel = "Safe"
	RiskUnknown                    RiskLabel = "Unknown"
	RiskNoSpecificRecommendation   RiskLabel = "No specific CPIC recommendation"
	RiskDrugNotSupported           RiskLabel = "Drug not currently supported by CPIC guidelines"
)

// Severity is the clinical severity tier of a risk assessment.
type Severity string

const (
	SeverityNone         Severity = "none"
	SeverityLow          Severity = "low"
	SeverityModerate     Severity = "moderate"
	SeverityHigh         Severity = "high"
	SeverityCritical     Severity = "critical"
	SeverityUndetermined Severity = "undetermined"
)

// AutomationStatus records whether a recommendation may be acted on
// without human review, and why not when it may not.
type AutomationStatus struct {
	Allowed        bool
	BlockedReasons []string
}

// Block appends a reason and marks the status as not allowed.
func (a *AutomationStatus) Block(reason string) {
	a.Allowed = false
	a.BlockedReasons = append(a.BlockedReasons, reason)
}

// GeneDrugConfirmation is the knowledge-base answer to "does this gene
// actually relate to this drug, and with what evidentiary support".
type GeneDrugConfirmation struct {
	Confirmed     bool
	Drug          string
	EvidenceTypes []string
	Association   string
	PMIDs         []string
	EvidenceLevel string
}

// EvidenceLevel carries the knowledge-confidence weight derived from a
// gene-drug evidence level.
type EvidenceLevel struct {
	Level            string
	ConfidenceWeight float64
	AllowsAutomation bool
}

// ClinicalAnnotation is a single deduplicated, harmonized piece of
// clinical evidence for a gene-drug pair.
type ClinicalAnnotation struct {
	AnnotationID  string
	EvidenceType  string
	Association   string
	Summary       string
}

// SortAnnotations is used wherever deterministic annotation ordering
// matters for idempotent output.
func SortAnnotations(anns []ClinicalAnnotation) {
	sort.Slice(anns, func(i, j int) bool {
		if anns[i].AnnotationID != anns[j].AnnotationID {
			return anns[i].AnnotationID < anns[j].AnnotationID
		}
		return anns[i].EvidenceType < anns[j].EvidenceType
	})
}

// DrugRecommendation is a single CPIC guidance record for a drug and
// phenotype.
type DrugRecommendation struct {
	Summary     string
	Implication string
	URL         string
	Severity    Severity
}
