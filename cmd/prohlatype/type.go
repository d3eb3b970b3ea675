package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/philloidin/prohlatype/internal/align"
	"github.com/philloidin/prohlatype/internal/cache"
	"github.com/philloidin/prohlatype/internal/fastq"
	"github.com/philloidin/prohlatype/internal/output"
	"github.com/philloidin/prohlatype/internal/store"
)

type typeFlags struct {
	alignment   string
	numAlt      int
	regex       string
	specific    []string
	without     []string
	kmerSize    int
	joinSameSeq bool
	noCache     bool
	cacheDir    string

	mismatches    bool
	misList       bool
	likelihood    bool
	logLikelihood bool
	phredLlhd     bool

	filterMatches  int
	filterFraction float64

	printTop       int
	doNotNormalize bool
	doNotBucket    bool
	likelihoodErr  float64
	outputFile     string
	resultsDB      string
	npyFile        string
	workers        int
}

func newTypeCmd() *cobra.Command {
	var f typeFlags

	cmd := &cobra.Command{
		Use:   "type [flags] <fastq>",
		Short: "Type a sample's HLA alleles from a FASTQ file",
		Example: `  prohlatype type --alignment A_gen.txt sample.fastq
  prohlatype type --alignment A_gen.txt --log-likelihood --print-top 10 sample.fastq.gz
  prohlatype type --alignment A_gen.txt --filter-matches 8 --results-db runs.duckdb sample.fastq`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runType(cmd, &f, args[0])
		},
	}

	cmd.Flags().StringVar(&f.alignment, "alignment", "", "IMGT/HLA alignment file (required)")
	cmd.Flags().IntVar(&f.numAlt, "num-alt", 0, "limit the number of alternate alleles (0 = all)")
	cmd.Flags().StringVar(&f.regex, "regex", "", "keep only alternate alleles matching this regex")
	cmd.Flags().StringSliceVar(&f.specific, "specific", nil, "keep only these alternate alleles")
	cmd.Flags().StringSliceVar(&f.without, "without", nil, "drop these alternate alleles")
	cmd.Flags().IntVar(&f.kmerSize, "kmer-size", 10, "k-mer size for read anchoring")
	cmd.Flags().BoolVar(&f.joinSameSeq, "join-same-seq", true, "share nodes between alleles with identical fragments")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "skip the on-disk graph/index cache")
	cmd.Flags().StringVar(&f.cacheDir, "cache-dir", cache.DefaultDir, "cache directory for prebuilt graphs and indices")

	cmd.Flags().BoolVar(&f.mismatches, "mismatches", false, "score alleles by summed mismatch counts (default)")
	cmd.Flags().BoolVar(&f.misList, "mis-list", false, "score alleles by per-position mismatch lists")
	cmd.Flags().BoolVar(&f.likelihood, "likelihood", false, "score alleles by likelihood under a uniform error rate")
	cmd.Flags().BoolVar(&f.logLikelihood, "log-likelihood", false, "score alleles by log-likelihood under a uniform error rate")
	cmd.Flags().BoolVar(&f.phredLlhd, "phred-llhd", false, "score alleles by Phred-weighted log-likelihood")

	cmd.Flags().IntVar(&f.filterMatches, "filter-matches", -1, "stop aligning a read once any allele has more than N mismatches (-1 = never)")
	cmd.Flags().Float64Var(&f.filterFraction, "filter-fraction", 0, "additional mismatch budget as a fraction of read length")

	cmd.Flags().IntVar(&f.printTop, "print-top", 0, "print only the best N alleles (0 = all)")
	cmd.Flags().BoolVar(&f.doNotNormalize, "do-not-normalize", false, "keep raw likelihood scores instead of probabilities")
	cmd.Flags().BoolVar(&f.doNotBucket, "do-not-bucket", false, "do not give equal-score alleles equal ranks")
	cmd.Flags().Float64Var(&f.likelihoodErr, "likelihood-error", align.DefaultErrRate, "uniform per-base error rate for the likelihood models")
	cmd.Flags().StringVarP(&f.outputFile, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&f.resultsDB, "results-db", "", "record the ranked result in this DuckDB database")
	cmd.Flags().StringVar(&f.npyFile, "npy", "", "export the ranked scores as a NumPy array")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "alignment worker count (0 = number of CPUs)")

	cobra.CheckErr(cmd.MarkFlagRequired("alignment"))

	return cmd
}

func (f *typeFlags) model() (align.Model, error) {
	selected := 0
	model := align.ModelMismatches
	for _, sel := range []struct {
		on bool
		m  align.Model
	}{
		{f.mismatches, align.ModelMismatches},
		{f.misList, align.ModelMisList},
		{f.likelihood, align.ModelLikelihood},
		{f.logLikelihood, align.ModelLogLikelihood},
		{f.phredLlhd, align.ModelPhred},
	} {
		if sel.on {
			selected++
			model = sel.m
		}
	}
	if selected > 1 {
		return 0, fmt.Errorf("choose at most one of --mismatches, --mis-list, --likelihood, --log-likelihood, --phred-llhd")
	}
	return model, nil
}

func (f *typeFlags) earlyStop() align.EarlyStop {
	if f.filterMatches < 0 {
		return align.NoEarlyStop()
	}
	return align.EarlyStop{MaxMismatches: f.filterMatches, Fraction: f.filterFraction}
}

func runType(cmd *cobra.Command, f *typeFlags, fastqPath string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Config-file values apply when the flag was not given explicitly.
	if !cmd.Flags().Changed("kmer-size") {
		f.kmerSize = viper.GetInt("kmer.size")
	}
	if !cmd.Flags().Changed("cache-dir") {
		f.cacheDir = viper.GetString("cache.dir")
	}
	if !cmd.Flags().Changed("likelihood-error") {
		f.likelihoodErr = viper.GetFloat64("likelihood.error")
	}

	model, err := f.model()
	if err != nil {
		return err
	}

	g, ix, err := loadGraphAndIndex(f.alignment, f.graphOptions(), f.kmerSize, f.noCache, f.cacheDir, logger)
	if err != nil {
		return err
	}

	reader, err := fastq.NewReader(fastqPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	typer := align.NewTyper(g, ix, align.Config{
		Model:     model,
		EarlyStop: f.earlyStop(),
		ErrRate:   f.likelihoodErr,
		Workers:   f.workers,
	})
	typer.SetLogger(logger)

	totals, err := typer.Run(reader)
	if err != nil {
		return err
	}
	logger.Info("typed sample",
		zap.String("fastq", fastqPath),
		zap.Int("reads", totals.Reads),
		zap.Int("readErrors", len(totals.Errors)))

	report := output.NewReport(g.Alleles, totals, output.Options{
		Normalize: !f.doNotNormalize,
		Bucket:    !f.doNotBucket,
		TopN:      f.printTop,
	})

	out := os.Stdout
	if f.outputFile != "" {
		out, err = os.Create(f.outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
	}
	if err := output.NewTabWriter(out, model).WriteAll(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if f.npyFile != "" {
		if err := output.WriteNpy(f.npyFile, report); err != nil {
			return err
		}
	}

	if f.resultsDB != "" {
		if err := recordRun(f, fastqPath, model, totals, report); err != nil {
			return err
		}
	}

	return nil
}

func recordRun(f *typeFlags, fastqPath string, model align.Model, totals *align.Totals, report *output.Report) error {
	db, err := store.Open(f.resultsDB)
	if err != nil {
		return err
	}
	defer db.Close()

	scores := make([]store.AlleleScore, len(report.Entries))
	for i, e := range report.Entries {
		scores[i] = store.AlleleScore{Rank: e.Rank, Allele: e.Allele, Score: e.Score}
	}

	_, err = db.RecordRun(store.RunMeta{
		Fastq:      fastqPath,
		Alignment:  f.alignment,
		Model:      model.String(),
		Reads:      totals.Reads,
		ReadErrors: len(totals.Errors),
	}, scores)
	return err
}
