// Command engine runs one pharmacogenomic pipeline invocation against a
// JSON request file and prints the response envelope to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pgxengine/core/internal/config"
	"github.com/pgxengine/core/internal/corpus"
	"github.com/pgxengine/core/internal/feedback"
	"github.com/pgxengine/core/internal/pgx"
	"github.com/pgxengine/core/internal/pipeline"
	"github.com/pgxengine/core/internal/population"
)

// variantInput is the wire shape of one variant in a request file;
// pgx.Variant itself carries no json tags since nothing else in the
// core serializes it.
type variantInput struct {
	Chrom    string  `json:"chrom"`
	Pos      int     `json:"pos"`
	Ref      string  `json:"ref"`
	Alt      string  `json:"alt"`
	DbSNPID  string  `json:"dbsnp_id"`
	StarTag  string  `json:"star_tag"`
	Zygosity string  `json:"zygosity"`
	Quality  float64 `json:"quality"`
	Filter   string  `json:"filter"`
	Phased   bool    `json:"phased"`
	PhaseSet string  `json:"phase_set"`
}

type requestInput struct {
	PatientID        string         `json:"patient_id"`
	Drug             string         `json:"drug"`
	Gene             string         `json:"gene"`
	ExpectedBuild    string         `json:"expected_build"`
	Population       string         `json:"population"`
	Variants         []variantInput `json:"variants"`
	CoveredPositions []int          `json:"covered_positions"`
}

func main() {
	requestPath := flag.String("request", "", "path to a JSON pipeline request file")
	flag.Parse()

	if *requestPath == "" {
		fmt.Fprintln(os.Stderr, "usage: engine -request request.json")
		os.Exit(2)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfgManager, err := config.NewManager()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfgManager.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg := cfgManager.GetConfig()
	log.SetLevel(logLevel(cfg.Logging.Level))

	raw, err := os.ReadFile(*requestPath)
	if err != nil {
		log.WithError(err).Fatal("failed to read request file")
	}
	var in requestInput
	if err := json.Unmarshal(raw, &in); err != nil {
		log.WithError(err).Fatal("failed to parse request file")
	}

	store, err := newFeedbackStore(cfg.Feedback)
	if err != nil {
		log.WithError(err).Warn("feedback store unavailable, continuing with neutral priors")
		store = nil
	}
	var fb pipeline.FeedbackStore
	if store != nil {
		fb = feedback.NewResilientStore(store)
	}

	p := pipeline.New(corpus.Load(), population.NewStore(), fb, log)
	p.Penalties.MissingKeyPosition = cfg.Resolver.MissingKeyPosition
	p.Penalties.UnphasedHeterozygote = cfg.Resolver.UnphasedHeterozygote
	p.Penalties.PartialAlleleMatch = cfg.Resolver.PartialAlleleMatch
	p.Penalties.NoCoverageData = cfg.Resolver.NoCoverageData
	p.Penalties.HomozygousThreshold = cfg.Resolver.HomozygousThreshold
	p.Penalties.CompoundHetMin = cfg.Resolver.CompoundHetMin
	p.Penalties.CNVNotEvaluated = cfg.Resolver.CNVNotEvaluated
	p.Penalties.RequireCompleteMatch = cfg.Resolver.RequireCompleteMatch
	p.Penalties.CompletenessThreshold = cfg.Resolver.CompletenessThreshold
	p.Thresholds.MinQuality = cfg.Normalizer.MinQuality
	p.Thresholds.MinAlleleDepthRatio = cfg.Normalizer.MinAlleleDepthRatio

	resp := p.Run(context.Background(), toRequest(in))

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		log.WithError(err).Fatal("failed to marshal response")
	}
	fmt.Println(string(out))

	if resp.Err != nil {
		os.Exit(1)
	}
}

func toRequest(in requestInput) pipeline.Request {
	variants := make([]pgx.Variant, 0, len(in.Variants))
	for _, v := range in.Variants {
		variants = append(variants, pgx.Variant{
			Chrom:    v.Chrom,
			Pos:      v.Pos,
			Ref:      v.Ref,
			Alt:      v.Alt,
			DbSNPID:  v.DbSNPID,
			StarTag:  v.StarTag,
			Zygosity: pgx.Zygosity(v.Zygosity),
			Quality:  v.Quality,
			Filter:   pgx.FilterTag(v.Filter),
			Phased:   v.Phased,
			PhaseSet: v.PhaseSet,
		})
	}

	covered := make(map[int]struct{}, len(in.CoveredPositions))
	for _, pos := range in.CoveredPositions {
		covered[pos] = struct{}{}
	}

	return pipeline.Request{
		PatientID:        in.PatientID,
		Drug:             in.Drug,
		Gene:             in.Gene,
		Variants:         variants,
		ExpectedBuild:    in.ExpectedBuild,
		Population:       population.Code(in.Population),
		CoveredPositions: covered,
	}
}

func newFeedbackStore(cfg config.FeedbackConfig) (feedback.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return feedback.NewPostgresStoreFromURL(cfg.DSN)
	case "sqlite", "":
		return feedback.NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported feedback driver: %s", cfg.Driver)
	}
}

func logLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
