// Package pipeline implements C6, the Pipeline Orchestrator: the linear
// composition of drug validation, variant normalization, diplotype
// resolution and risk evaluation into one request/response cycle.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgxengine/core/internal/confidence"
	"github.com/pgxengine/core/internal/corpus"
	"github.com/pgxengine/core/internal/normalizer"
	"github.com/pgxengine/core/internal/pgx"
	"github.com/pgxengine/core/internal/population"
	"github.com/pgxengine/core/internal/resolver"
	"github.com/pgxengine/core/internal/risk"
)

// FeedbackStore is the optional collaborator keyed by (gene, diplotype)
// returning a multiplicative prior. Absent entirely, the pipeline uses
// 1.0 (§6).
type FeedbackStore interface {
	Prior(ctx context.Context, gene, diplotype string) (float64, error)
}

// Request is the single input surface described in §6.
type Request struct {
	PatientID      string
	Drug           string
	Gene           string
	Variants       []pgx.Variant
	ExpectedBuild  string
	Population     population.Code
	CoveredPositions map[int]struct{}
}

// QualityMetrics mirrors §6's quality_metrics block.
type QualityMetrics struct {
	ParsedVariantCount int
	CleanVariantCount  int
	RejectedCount      int
	DuplicatesRemoved  int
	ChromNormalized    int
	BuildWarning       string
}

// PharmacogenomicProfile mirrors §6's pharmacogenomic_profile block.
type PharmacogenomicProfile struct {
	PrimaryGene       string
	Diplotype         string
	Phenotype         pgx.Phenotype
	DetectedVariants  []pgx.Variant
	VariantAnnotations []normalizer.QCResult
}

// Response is the single output envelope described in §6.
type Response struct {
	PatientID              string
	Drug                   string
	Gene                   string
	Timestamp              time.Time
	RiskAssessment         *pgx.RiskAssessment
	PharmacogenomicProfile PharmacogenomicProfile
	ClinicalRecommendation *pgx.ClinicalRecommendation
	QualityMetrics         QualityMetrics
	Err                    *pgx.PipelineError
}

// Pipeline wires C1-C5 collaborators together. Every field is read-only
// after construction; Run performs no synchronization because each
// request runs to completion on one worker (§5).
type Pipeline struct {
	Corpus     *corpus.Corpus
	Population *population.Store
	Feedback   FeedbackStore
	Penalties  resolver.Penalties
	Thresholds normalizer.Thresholds
	Log        *logrus.Logger
}

// New builds a Pipeline with default penalties and thresholds.
func New(c *corpus.Corpus, pop *population.Store, feedback FeedbackStore, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		Corpus:     c,
		Population: pop,
		Feedback:   feedback,
		Penalties:  resolver.DefaultPenalties(),
		Thresholds: normalizer.DefaultThresholds(),
		Log:        log,
	}
}

// Run executes one end-to-end pipeline invocation (§4.6): validate drug
// -> normalize variants -> resolve diplotype -> evaluate risk. It never
// synthesizes a phenotype on a hard validation failure.
func (p *Pipeline) Run(ctx context.Context, req Request) Response {
	requestID := uuid.New().String()
	log := p.Log.WithFields(logrus.Fields{"request_id": requestID, "drug": req.Drug, "gene": req.Gene})

	resp := Response{
		PatientID: req.PatientID,
		Drug:      p.Corpus.ResolveDrugAlias(req.Drug),
		Gene:      req.Gene,
		Timestamp: requestTimestamp(),
	}

	gene := req.Gene
	if gene == "" {
		if g, ok := p.Corpus.PrimaryGeneForDrug(resp.Drug); ok {
			gene = g
		}
	}
	resp.Gene = gene

	if !p.Corpus.DrugSupported(resp.Drug) {
		log.Warn("drug not supported by corpus")
		resp.RiskAssessment = &pgx.RiskAssessment{
			RiskLabel: pgx.RiskDrugNotSupported,
			Severity:  pgx.SeverityNone,
		}
		resp.RiskAssessment.AutomationStatus.Block("Drug not currently supported by CPIC guidelines")
		return resp
	}

	norm := normalizer.Normalize(req.Variants, req.ExpectedBuild, p.Thresholds)
	resp.QualityMetrics = QualityMetrics{
		ParsedVariantCount: len(req.Variants),
		CleanVariantCount:  len(norm.CleanVariants),
		RejectedCount:      len(norm.Rejections),
		DuplicatesRemoved:  norm.DuplicatesRemoved,
		ChromNormalized:    norm.ChromNormalized,
		BuildWarning:       norm.Build.Warning,
	}
	if norm.Build.Warning != "" {
		log.WithField("warning", norm.Build.Warning).Warn("genome build validation warning")
	}

	resolution := resolver.Resolve(p.Corpus, p.Population, gene, norm.CleanVariants, req.CoveredPositions, req.Population, p.Penalties)
	applyQCPenalties(resolution.Breakdown, norm.QCResults)
	confidence.Derive(resolution.Breakdown, false)

	resp.PharmacogenomicProfile = PharmacogenomicProfile{
		PrimaryGene:        gene,
		Diplotype:          resolution.Diplotype,
		Phenotype:          resolution.Phenotype,
		DetectedVariants:   norm.CleanVariants,
		VariantAnnotations: norm.QCResults,
	}

	feedbackPrior := p.lookupFeedbackPrior(ctx, gene, resolution.Diplotype, log)

	assessment, recommendation, pipelineErr := risk.Evaluate(p.Corpus, gene, req.Drug, resolution.Diplotype, resolution.Phenotype, resolution.Breakdown, feedbackPrior)
	if pipelineErr != nil {
		log.WithField("error_kind", pipelineErr.Kind).Error("hard pipeline failure")
		resp.Err = pipelineErr
		return resp
	}

	resp.RiskAssessment = assessment
	resp.ClinicalRecommendation = recommendation
	return resp
}

// lookupFeedbackPrior reads the optional feedback collaborator once per
// request under its own snapshot; the core never writes to it (§5).
func (p *Pipeline) lookupFeedbackPrior(ctx context.Context, gene, diplotype string, log *logrus.Entry) float64 {
	if p.Feedback == nil {
		return 1.0
	}
	prior, err := p.Feedback.Prior(ctx, gene, diplotype)
	if err != nil {
		log.WithError(err).Warn("feedback prior lookup failed, defaulting to neutral prior")
		return 1.0
	}
	if prior < 0.80 {
		prior = 0.80
	}
	if prior > 1.50 {
		prior = 1.50
	}
	return prior
}

// applyQCPenalties folds per-variant QUAL/depth QC failures into
// variant_quality, per §4.2 step 4 / §4.4.
func applyQCPenalties(breakdown *pgx.ConfidenceBreakdown, results []normalizer.QCResult) {
	failed := 0
	for _, r := range results {
		if !r.QualityAdequate || !r.DepthAdequate {
			failed++
		}
	}
	if failed == 0 {
		return
	}
	capped := failed
	if capped > 5 {
		capped = 5
	}
	factor := 1.0
	for i := 0; i < capped; i++ {
		factor *= 0.9
	}
	breakdown.VariantQuality *= factor
	breakdown.AddPenalty("variant_quality: QUAL/depth threshold not met")
}

// requestTimestamp is isolated so tests can observe it is always UTC;
// wall-clock time is an external input, not pipeline state.
func requestTimestamp() time.Time {
	return time.Now().UTC()
}
