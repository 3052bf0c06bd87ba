package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/opera/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "opera",
	Short: "Opera is a UCI chess engine",
	Long: `Opera speaks the Universal Chess Interface on stdin/stdout.
Point your chess GUI at this binary; logs go to stderr.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := runOptions(cmd)
		if err != nil {
			return err
		}
		opts.NoBanner, _ = cmd.Flags().GetBool("no-banner")
		return cli.Execute(cmd.Context(), opts)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOptions collects the persistent flags. Only flags the user actually
// set override the configuration.
func runOptions(cmd *cobra.Command) (cli.RunOptions, error) {
	flags := cmd.Flags()
	opts := cli.RunOptions{}
	opts.ConfigPath, _ = flags.GetString("config")
	opts.EnvFile, _ = flags.GetString("env-file")

	stringFlags := map[string]**string{
		"log-level":   &opts.Overrides.LogLevel,
		"log-format":  &opts.Overrides.LogFormat,
		"time-policy": &opts.Overrides.Policy,
		"cache":       &opts.Overrides.CacheBackend,
		"redis-addr":  &opts.Overrides.RedisAddr,
		"diagnostics": &opts.Overrides.Diagnostics,
	}
	for name, dst := range stringFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return opts, err
		}
		*dst = &v
	}

	intFlags := map[string]**int{
		"hash":    &opts.Overrides.Hash,
		"threads": &opts.Overrides.Threads,
	}
	for name, dst := range intFlags {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			return opts, err
		}
		*dst = &v
	}
	return opts, nil
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("config", "opera.yaml", "Configuration file (missing file means defaults)")
	pf.String("env-file", ".env", "Optional dotenv file with OPERA_* overrides")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("time-policy", "standard", "Time policy: standard, fixed or infinite")
	pf.String("cache", "memory", "Analysis cache backend: memory or redis")
	pf.String("redis-addr", "localhost:6379", "Redis address for the redis cache")
	pf.String("diagnostics", "", "Serve /metrics, /healthz and /statz on this address")
	pf.Int("hash", 16, "Initial Hash size in MB")
	pf.Int("threads", 1, "Initial search threads")

	rootCmd.Flags().Bool("no-banner", false, "Do not print the banner on a terminal")
}
