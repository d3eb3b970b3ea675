package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/philloidin/prohlatype/internal/cache"
	"github.com/philloidin/prohlatype/internal/graph"
	"github.com/philloidin/prohlatype/internal/index"
	"github.com/philloidin/prohlatype/internal/msa"
)

func newBuildCmd() *cobra.Command {
	var (
		alignment   string
		numAlt      int
		regex       string
		specific    []string
		without     []string
		kmerSize    int
		joinSameSeq bool
		cacheDir    string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Prebuild and cache the allele graph and k-mer index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if !cmd.Flags().Changed("kmer-size") {
				kmerSize = viper.GetInt("kmer.size")
			}
			if !cmd.Flags().Changed("cache-dir") {
				cacheDir = viper.GetString("cache.dir")
			}

			opts := graph.Options{
				NumAlt:      numAlt,
				Regex:       regex,
				Specific:    specific,
				Without:     without,
				JoinSameSeq: joinSameSeq,
			}
			g, ix, err := buildGraphAndIndex(alignment, opts, kmerSize, logger)
			if err != nil {
				return err
			}

			fp, err := cache.Fingerprint(alignment)
			if err != nil {
				return err
			}
			st := cache.New(cacheDir)
			key := cache.GraphKey(alignment, opts)
			if err := st.WriteGraph(key, fp, g); err != nil {
				return err
			}
			if err := st.WriteIndex(cache.IndexKey(key, kmerSize), fp, ix); err != nil {
				return err
			}

			fmt.Printf("cached graph %s (%d alleles, %d nodes, %d k-mers)\n",
				key, g.Alleles.Size(), g.NumNodes(), ix.NumKmers())
			return nil
		},
	}

	cmd.Flags().StringVar(&alignment, "alignment", "", "IMGT/HLA alignment file (required)")
	cmd.Flags().IntVar(&numAlt, "num-alt", 0, "limit the number of alternate alleles (0 = all)")
	cmd.Flags().StringVar(&regex, "regex", "", "keep only alternate alleles matching this regex")
	cmd.Flags().StringSliceVar(&specific, "specific", nil, "keep only these alternate alleles")
	cmd.Flags().StringSliceVar(&without, "without", nil, "drop these alternate alleles")
	cmd.Flags().IntVar(&kmerSize, "kmer-size", 10, "k-mer size for read anchoring")
	cmd.Flags().BoolVar(&joinSameSeq, "join-same-seq", true, "share nodes between alleles with identical fragments")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", cache.DefaultDir, "cache directory for prebuilt graphs and indices")

	cobra.CheckErr(cmd.MarkFlagRequired("alignment"))

	return cmd
}

// graphOptions converts type-command flags into builder options.
func (f *typeFlags) graphOptions() graph.Options {
	return graph.Options{
		NumAlt:      f.numAlt,
		Regex:       f.regex,
		Specific:    f.specific,
		Without:     f.without,
		JoinSameSeq: f.joinSameSeq,
	}
}

// buildGraphAndIndex parses the alignment and constructs graph and index.
func buildGraphAndIndex(alignment string, opts graph.Options, kmerSize int, logger *zap.Logger) (*graph.Graph, *index.Index, error) {
	parser, err := msa.NewParser(alignment)
	if err != nil {
		return nil, nil, err
	}
	defer parser.Close()
	parser.SetLogger(logger)

	res, err := parser.Parse()
	if err != nil {
		return nil, nil, err
	}

	builder := graph.NewBuilder(opts)
	builder.SetLogger(logger)
	g, err := builder.Build(res)
	if err != nil {
		return nil, nil, err
	}

	ix, err := index.Build(g, kmerSize)
	if err != nil {
		return nil, nil, err
	}
	return g, ix, nil
}

// loadGraphAndIndex returns the cached graph and index for the arguments,
// rebuilding and re-caching on a miss.
func loadGraphAndIndex(alignment string, opts graph.Options, kmerSize int, noCache bool, cacheDir string, logger *zap.Logger) (*graph.Graph, *index.Index, error) {
	if noCache {
		return buildGraphAndIndex(alignment, opts, kmerSize, logger)
	}

	fp, err := cache.Fingerprint(alignment)
	if err != nil {
		return nil, nil, err
	}

	st := cache.New(cacheDir)
	graphKey := cache.GraphKey(alignment, opts)
	indexKey := cache.IndexKey(graphKey, kmerSize)

	if g, ok := st.LoadGraph(graphKey, fp); ok {
		if ix, ok := st.LoadIndex(indexKey, fp); ok {
			logger.Debug("loaded graph and index from cache", zap.String("key", graphKey))
			return g, ix, nil
		}
	}

	g, ix, err := buildGraphAndIndex(alignment, opts, kmerSize, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := st.WriteGraph(graphKey, fp, g); err != nil {
		logger.Warn("could not cache graph", zap.Error(err))
	} else if err := st.WriteIndex(indexKey, fp, ix); err != nil {
		logger.Warn("could not cache index", zap.Error(err))
	}
	return g, ix, nil
}
