package corpus

import "github.com/pgxengine/core/internal/pgx"

// Load builds the immutable reference corpus from literal tables. In
// production this bundle is produced offline by an ETL job (out of core
// scope, §1) from CPIC/PharmGKB extracts and handed to Load's data
// source; the literals here are a representative slice covering the
// genes and drugs exercised by the pipeline's test scenarios (§8).
func Load() *Corpus {
	c := &Corpus{
		genes:               buildGenes(),
		alleles:             buildAlleles(),
		diplotypePhenotype:  buildDiplotypePhenotype(),
		activityScores:      buildActivityScores(),
		activityCutoffs:     buildActivityCutoffs(),
		drugGeneMap:         buildDrugGeneMap(),
		drugAliases:         buildDrugAliases(),
		drugRecommendations: buildDrugRecommendations(),
		geneDrugRelations:   buildGeneDrugRelations(),
		clinicalAnnotations: buildClinicalAnnotations(),
	}
	return c
}

func keySet(positions ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		m[p] = struct{}{}
	}
	return m
}

func buildGenes() map[string]pgx.Gene {
	return map[string]pgx.Gene{
		"CYP2D6": {
			Symbol:       "CYP2D6",
			KeyPositions: keySet(42126611, 42126963, 42127941),
			CNVRequired:  true,
		},
		"CYP2C19": {
			Symbol:       "CYP2C19",
			KeyPositions: keySet(94781859, 94761900),
			CNVRequired:  false,
		},
		"CYP2C9": {
			Symbol:       "CYP2C9",
			KeyPositions: keySet(94942290, 94981296),
			CNVRequired:  false,
		},
		"TPMT": {
			Symbol:       "TPMT",
			KeyPositions: keySet(18143955),
			CNVRequired:  false,
		},
		"DPYD": {
			Symbol:       "DPYD",
			KeyPositions: keySet(97915614),
			CNVRequired:  false,
		},
		"SLCO1B1": {
			Symbol:       "SLCO1B1",
			KeyPositions: keySet(21331549),
			CNVRequired:  false,
		},
	}
}

func allele(name string, variantKeys ...string) pgx.Allele {
	set := make(map[string]struct{}, len(variantKeys))
	for _, k := range variantKeys {
		set[k] = struct{}{}
	}
	return pgx.Allele{Name: name, DefiningVariants: set}
}

func buildAlleles() map[string]map[string]pgx.Allele {
	return map[string]map[string]pgx.Allele{
		"CYP2D6": {
			"*1": allele("*1"),
			"*4": allele("*4", "42126611:C:G"),
			"*10": allele("*10", "42126963:G:A"),
			"*41": allele("*41", "42127941:C:T"),
		},
		"CYP2C19": {
			"*1": allele("*1"),
			"*2": allele("*2", "94781859:G:A"),
			"*3": allele("*3", "94761900:G:A"),
		},
		"CYP2C9": {
			"*1": allele("*1"),
			"*2": allele("*2", "94942290:C:T"),
			"*3": allele("*3", "94981296:A:C"),
		},
		"TPMT": {
			"*1": allele("*1"),
			"*3A": allele("*3A", "18143955:A:G"),
		},
		"DPYD": {
			"*1": allele("*1"),
			"*2A": allele("*2A", "97915614:A:G"),
		},
		"SLCO1B1": {
			"*1": allele("*1"),
			"*5": allele("*5", "21331549:T:C"),
		},
	}
}

func buildActivityScores() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"CYP2D6": {
			"*1": 1.0, "*4": 0.0, "*10": 0.25, "*41": 0.5,
		},
		"CYP2C19": {
			"*1": 1.0, "*2": 0.0, "*3": 0.0,
		},
		"CYP2C9": {
			"*1": 1.0, "*2": 0.5, "*3": 0.0,
		},
	}
}

func buildActivityCutoffs() map[string]activityCutoff {
	defaultCutoff := activityCutoff{poorMax: 0.5, intermediateMax: 1.5, normalMax: 2.5}
	return map[string]activityCutoff{
		"CYP2D6":  defaultCutoff,
		"CYP2C19": defaultCutoff,
		"CYP2C9":  defaultCutoff,
	}
}

func buildDiplotypePhenotype() map[string]map[string]pgx.Phenotype {
	return map[string]map[string]pgx.Phenotype{
		"CYP2D6": {
			"*1/*1":   pgx.PhenotypeNormalMetabolizer,
			"*1/*4":   pgx.PhenotypeIntermediateMetabolizer,
			"*4/*4":   pgx.PhenotypePoorMetabolizer,
			"*1/*10":  pgx.PhenotypeIntermediateMetabolizer,
			"*1/*41":  pgx.PhenotypeIntermediateMetabolizer,
		},
		"CYP2C19": {
			"*1/*1": pgx.PhenotypeNormalMetabolizer,
			"*1/*2": pgx.PhenotypeIntermediateMetabolizer,
			"*2/*2": pgx.PhenotypePoorMetabolizer,
			"*1/*3": pgx.PhenotypeIntermediateMetabolizer,
			"*2/*3": pgx.PhenotypePoorMetabolizer,
		},
		"CYP2C9": {
			"*1/*1": pgx.PhenotypeNormalMetabolizer,
			"*1/*2": pgx.PhenotypeIntermediateMetabolizer,
			"*1/*3": pgx.PhenotypeIntermediateMetabolizer,
			"*2/*3": pgx.PhenotypePoorMetabolizer,
			"*3/*3": pgx.PhenotypePoorMetabolizer,
		},
		"TPMT": {
			"*1/*1":  pgx.PhenotypeNormalFunction,
			"*1/*3A": pgx.PhenotypeDecreasedFunction,
			"*3A/*3A": pgx.PhenotypePoorFunction,
		},
		"DPYD": {
			"*1/*1":   pgx.PhenotypeNormalFunction,
			"*1/*2A":  pgx.PhenotypeDecreasedFunction,
			"*2A/*2A": pgx.PhenotypePoorFunction,
		},
		"SLCO1B1": {
			"*1/*1": pgx.PhenotypeNormalFunction,
			"*1/*5": pgx.PhenotypeDecreasedFunction,
			"*5/*5": pgx.PhenotypePoorFunction,
		},
	}
}

func buildDrugGeneMap() map[string]string {
	return map[string]string{
		"codeine":        "CYP2D6",
		"clopidogrel":    "CYP2C19",
		"warfarin":       "CYP2C9",
		"simvastatin":    "SLCO1B1",
		"azathioprine":   "TPMT",
		"thioguanine":    "TPMT",
		"fluorouracil":   "DPYD",
		"5-fluorouracil": "DPYD",
	}
}

// buildDrugAliases is deliberately identity-preserving (§4.5 step 1):
// the only non-identity mapping is the 5-fluorouracil synonym, which
// resolves to the same active ingredient, never a different one.
func buildDrugAliases() map[string]string {
	return map[string]string{
		"warfarin":       "warfarin",
		"azathioprine":   "azathioprine",
		"thioguanine":    "thioguanine",
		"codeine":        "codeine",
		"clopidogrel":    "clopidogrel",
		"simvastatin":    "simvastatin",
		"fluorouracil":   "fluorouracil",
		"5-fluorouracil": "fluorouracil",
	}
}

func rec(summary, implication, url string, severity pgx.Severity) pgx.DrugRecommendation {
	return pgx.DrugRecommendation{Summary: summary, Implication: implication, URL: url, Severity: severity}
}

func buildDrugRecommendations() map[string]map[pgx.Phenotype]pgx.DrugRecommendation {
	return map[string]map[pgx.Phenotype]pgx.DrugRecommendation{
		"codeine": {
			pgx.PhenotypeNormalMetabolizer: rec(
				"Use standard dose and standard label recommended dosing.",
				"Normal morphine formation expected.",
				"https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				pgx.SeverityNone,
			),
			pgx.PhenotypePoorMetabolizer: rec(
				"Avoid codeine use due to lack of efficacy.",
				"Greatly reduced morphine formation leads to insufficient analgesia; avoid use.",
				"https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				pgx.SeverityCritical,
			),
			pgx.PhenotypeUltrarapidMetabolizer: rec(
				"Avoid codeine use due to potential for toxicity.",
				"Increased formation of morphine leading to life-threatening respiratory depression; avoid use.",
				"https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				pgx.SeverityCritical,
			),
			pgx.PhenotypeIntermediateMetabolizer: rec(
				"Use label-recommended dosing; monitor for reduced efficacy.",
				"Reduced morphine formation; consider alternative analgesic if insufficient response.",
				"https://cpicpgx.org/guidelines/guideline-for-codeine-and-cyp2d6/",
				pgx.SeverityModerate,
			),
		},
		"clopidogrel": {
			pgx.PhenotypeNormalMetabolizer: rec(
				"Use standard clopidogrel dosing.",
				"Normal clopidogrel activation expected.",
				"https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				pgx.SeverityNone,
			),
			pgx.PhenotypePoorMetabolizer: rec(
				"Use an alternative antiplatelet therapy (e.g. prasugrel, ticagrelor) if no contraindication.",
				"Significantly reduced platelet inhibition; increased risk of adverse cardiovascular events.",
				"https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				pgx.SeverityHigh,
			),
			pgx.PhenotypeIntermediateMetabolizer: rec(
				"Consider alternative antiplatelet therapy or standard dose with close monitoring.",
				"Reduced platelet inhibition; moderately increased risk of adverse cardiovascular events.",
				"https://cpicpgx.org/guidelines/guideline-for-clopidogrel-and-cyp2c19/",
				pgx.SeverityModerate,
			),
		},
		"warfarin": {
			pgx.PhenotypeNormalMetabolizer: rec(
				"Use standard warfarin dosing algorithm.",
				"Normal warfarin metabolism expected.",
				"https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				pgx.SeverityNone,
			),
			pgx.PhenotypePoorMetabolizer: rec(
				"Reduce starting dose; consider pharmacogenomic-guided dosing.",
				"Reduced metabolism leads to increased drug exposure and increased risk of bleeding.",
				"https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				pgx.SeverityHigh,
			),
			pgx.PhenotypeIntermediateMetabolizer: rec(
				"Consider reduced starting dose; monitor INR closely.",
				"Moderately reduced metabolism; increased risk of bleeding.",
				"https://cpicpgx.org/guidelines/guideline-for-warfarin-and-cyp2c9-and-vkorc1/",
				pgx.SeverityModerate,
			),
		},
		"azathioprine": {
			pgx.PhenotypeNormalFunction: rec(
				"Use standard starting dose.",
				"Normal TPMT activity expected.",
				"https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				pgx.SeverityNone,
			),
			pgx.PhenotypePoorFunction: rec(
				"Reduce dose by 20-50% of standard starting dose and titrate based on toxicity.",
				"Markedly reduced thiopurine methylation leads to severe myelosuppression risk.",
				"https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				pgx.SeverityHigh,
			),
			pgx.PhenotypeDecreasedFunction: rec(
				"Reduce starting dose and titrate based on toxicity and efficacy.",
				"Reduced thiopurine methylation; moderate risk of myelosuppression.",
				"https://cpicpgx.org/guidelines/guideline-for-thiopurines-and-tpmt/",
				pgx.SeverityModerate,
			),
		},
	}
}

func gdr(confirmed bool, drug string, evidenceTypes []string, associations []string, pmids []string, level string) geneDrugRelationship {
	return geneDrugRelationship{
		confirmed:       confirmed,
		drug:            drug,
		evidenceTypes:   evidenceTypes,
		rawAssociations: associations,
		pmids:           pmids,
		evidenceLevel:   level,
	}
}

func buildGeneDrugRelations() map[string]map[string]geneDrugRelationship {
	return map[string]map[string]geneDrugRelationship{
		"CYP2D6": {
			"codeine": gdr(true, "codeine",
				[]string{"CPIC Guideline Annotation"}, []string{"associated"},
				[]string{"24458010"}, "1A"),
		},
		"CYP2C19": {
			"clopidogrel": gdr(true, "clopidogrel",
				[]string{"CPIC Guideline Annotation"}, []string{"associated"},
				[]string{"23698643"}, "1A"),
		},
		"CYP2C9": {
			"warfarin": gdr(true, "warfarin",
				[]string{"CPIC Guideline Annotation"}, []string{"associated"},
				[]string{"28198005"}, "1A"),
		},
		"TPMT": {
			"azathioprine": gdr(true, "azathioprine",
				[]string{"CPIC Guideline Annotation"}, []string{"associated"},
				[]string{"23422873"}, "1A"),
		},
		"DPYD": {
			"fluorouracil": gdr(true, "fluorouracil",
				[]string{"CPIC Guideline Annotation"}, []string{"associated"},
				[]string{"29152729"}, "1A"),
		},
		"SLCO1B1": {
			"simvastatin": gdr(true, "simvastatin",
				[]string{"Clinical Annotation"}, []string{"associated"},
				[]string{"24700759"}, "2A"),
		},
	}
}

func ann(id, evidenceType, association, summary string) pgx.ClinicalAnnotation {
	return pgx.ClinicalAnnotation{AnnotationID: id, EvidenceType: evidenceType, Association: association, Summary: summary}
}

func buildClinicalAnnotations() map[string]map[string][]pgx.ClinicalAnnotation {
	return map[string]map[string][]pgx.ClinicalAnnotation{
		"CYP2D6": {
			"codeine": {
				ann("PA166104941", "CPIC Guideline Annotation", "associated", "CYP2D6 poor metabolizers have reduced morphine formation from codeine."),
				ann("PA166104942", "Variant Annotation", "associated", "CYP2D6*4 is associated with reduced enzyme activity."),
			},
		},
		"CYP2C19": {
			"clopidogrel": {
				ann("PA166161537", "CPIC Guideline Annotation", "associated", "CYP2C19 poor metabolizers have reduced clopidogrel active metabolite formation."),
			},
		},
		"CYP2C9": {
			"warfarin": {
				ann("PA166153748", "CPIC Guideline Annotation", "associated", "CYP2C9 poor metabolizers require lower warfarin doses."),
			},
		},
	}
}
