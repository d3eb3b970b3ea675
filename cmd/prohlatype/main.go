// Package main provides the prohlatype command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/philloidin/prohlatype/internal/align"
	"github.com/philloidin/prohlatype/internal/cache"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "prohlatype",
		Short:         "HLA typing by aligning reads against an allele graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	cmd.AddCommand(newTypeCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("prohlatype version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig loads ~/.prohlatype.yaml and sets the defaults the commands
// read through viper.
func initConfig() error {
	viper.SetConfigName(".prohlatype")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")

	viper.SetDefault("cache.dir", cache.DefaultDir)
	viper.SetDefault("kmer.size", 10)
	viper.SetDefault("likelihood.error", align.DefaultErrRate)

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the CLI logger; library code gets it injected.
func newLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
