package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nxapi",
	Short: "nxapi - OpenAI-compatible gateway over consumer web chat backends",
	Long: `Nxapi is an OpenAI-compatible chat gateway. It accepts standard
/v1/chat/completions requests and serves them through the private web
APIs of consumer chat products, handling per-vendor authentication
(proof-of-work, request signing, session cookies) and normalizing every
upstream stream into OpenAI chunk format.

Supported vendors: deepseek, zhipu, kimi, qwen, doubao, metaso, minimax.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
