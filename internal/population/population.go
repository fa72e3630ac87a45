// Package population implements the population-frequency collaborator
// the resolver consults for trans/cis phase probability (§4.3 step 4).
// Frequencies are literal per-population tables; Hardy-Weinberg
// equilibrium supplies the phase probability itself.
package population

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Code is one of the population codes enumerated in §6.
type Code string

const (
	Global Code = "global"
	EUR    Code = "eur"
	AFR    Code = "afr"
	EAS    Code = "eas"
	SAS    Code = "sas"
	AMR    Code = "amr"
)

// Phase is the resolved trans/cis preference for a compound-het call.
type Phase string

const (
	PhaseTrans      Phase = "trans"
	PhaseCis        Phase = "cis"
	PhaseIndeterminate Phase = "indeterminate"
)

// alleleFrequency is a (gene, allele, population) -> frequency table
// entry. Values are illustrative CPIC/gnomAD-style minor-allele
// frequencies, not a live feed.
type alleleFrequency struct {
	gene       string
	allele     string
	population Code
	frequency  float64
}

var frequencyTable = []alleleFrequency{
	{"CYP2D6", "*4", Global, 0.18}, {"CYP2D6", "*4", EUR, 0.20}, {"CYP2D6", "*4", AFR, 0.06}, {"CYP2D6", "*4", EAS, 0.01}, {"CYP2D6", "*4", SAS, 0.10}, {"CYP2D6", "*4", AMR, 0.12},
	{"CYP2D6", "*10", Global, 0.08}, {"CYP2D6", "*10", EAS, 0.42}, {"CYP2D6", "*10", EUR, 0.02},
	{"CYP2D6", "*41", Global, 0.09}, {"CYP2D6", "*41", EUR, 0.09}, {"CYP2D6", "*41", SAS, 0.15},
	{"CYP2C19", "*2", Global, 0.15}, {"CYP2C19", "*2", EUR, 0.15}, {"CYP2C19", "*2", EAS, 0.30}, {"CYP2C19", "*2", AFR, 0.17},
	{"CYP2C19", "*3", Global, 0.03}, {"CYP2C19", "*3", EAS, 0.08}, {"CYP2C19", "*3", EUR, 0.001},
	{"CYP2C9", "*2", Global, 0.12}, {"CYP2C9", "*2", EUR, 0.13}, {"CYP2C9", "*2", AFR, 0.01},
	{"CYP2C9", "*3", Global, 0.07}, {"CYP2C9", "*3", EUR, 0.07}, {"CYP2C9", "*3", EAS, 0.03},
}

// phaseResult bundles the cached outcome of a phase-probability lookup.
type phaseResult struct {
	transProb float64
	phase     Phase
}

// Store answers allele-frequency and phase-probability queries, caching
// the derived phase probability per (gene, alleleA, alleleB, population)
// since Hardy-Weinberg recomputation is pure but not free.
type Store struct {
	byKey map[string]float64
	cache *lru.Cache[string, phaseResult]
}

// NewStore builds the literal frequency store with an LRU cache sized
// for one process's worth of distinct compound-het phase lookups.
func NewStore() *Store {
	byKey := make(map[string]float64, len(frequencyTable))
	for _, f := range frequencyTable {
		byKey[key(f.gene, f.allele, f.population)] = f.frequency
	}
	cache, _ := lru.New[string, phaseResult](512)
	return &Store{byKey: byKey, cache: cache}
}

func key(gene, allele string, pop Code) string {
	return gene + "|" + allele + "|" + string(pop)
}

// Frequency returns the minor allele frequency for (gene, allele,
// population), falling back to Global, then to a conservative 0.10 when
// wholly unknown.
func (s *Store) Frequency(gene, allele string, pop Code) float64 {
	if f, ok := s.byKey[key(gene, allele, pop)]; ok {
		return f
	}
	if f, ok := s.byKey[key(gene, allele, Global)]; ok {
		return f
	}
	return 0.10
}

// TransCisProbability returns the most likely phase for two
// heterozygous defining alleles under Hardy-Weinberg equilibrium: given
// independent assortment, trans (one variant per homologous
// chromosome) is the product of the two allele frequencies assuming
// they arose on different haplotypes, while cis (both on the same
// chromosome) requires linkage disequilibrium the baseline model does
// not assume. Absent LD data, HWE favors trans whenever neither allele
// dominates the population (i.e. frequencies are comparable); a large
// frequency skew shifts weight toward cis, but only down to an even
// split: transProb stays in [0.5, 0.7], so the returned phase is always
// trans.
func (s *Store) TransCisProbability(gene, alleleA, alleleB string, pop Code) (transProb float64, phase Phase) {
	cacheKey := gene + "|" + alleleA + "|" + alleleB + "|" + string(pop)
	if s.cache != nil {
		if r, ok := s.cache.Get(cacheKey); ok {
			return r.transProb, r.phase
		}
	}
	fa := s.Frequency(gene, alleleA, pop)
	fb := s.Frequency(gene, alleleB, pop)
	transProb = 0.5 + skew(fa, fb)/2
	phase = PhaseTrans
	if transProb < 0.5 {
		phase = PhaseCis
	}
	if s.cache != nil {
		s.cache.Add(cacheKey, phaseResult{transProb: transProb, phase: phase})
	}
	return transProb, phase
}

// skew returns a value in [0, 0.4]: 0.4 when the two allele
// frequencies are equal (strongest trans preference), shrinking toward
// 0 as the frequencies diverge. It is never negative.
func skew(fa, fb float64) float64 {
	if fa == 0 && fb == 0 {
		return 0
	}
	diff := fa - fb
	if diff < 0 {
		diff = -diff
	}
	total := fa + fb
	if total == 0 {
		return 0
	}
	ratio := diff / total
	skewed := 0.4 * (1 - ratio)
	return skewed
}
