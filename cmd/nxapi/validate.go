package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"nxapi-hq/nxapi/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

The validate command applies defaults, environment overrides and
token_file resolution exactly as "nxapi run" would, then reports the
effective configuration. It checks:
  - Listen address and timeout syntax
  - Vendor names against the supported set
  - Presence of a credential (token or token_file) per vendor
  - Readability of every referenced token file

Examples:
  # Validate the default config file
  nxapi validate

  # Validate a specific file
  nxapi validate --config /etc/nxapi/config.yaml

  # Machine-readable report
  nxapi validate --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// providerReport is one vendor's line in the validation report.
type providerReport struct {
	Vendor          string `json:"vendor"`
	CredentialFrom  string `json:"credential_from"`
	BaseURLOverride bool   `json:"base_url_override"`
	Timeout         string `json:"timeout"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if validateFlags.format == "json" {
			out, _ := json.MarshalIndent(map[string]string{"error": err.Error()}, "", "  ")
			fmt.Fprintln(os.Stdout, string(out))
		}
		return fmt.Errorf("configuration invalid: %w", err)
	}

	reports := make([]providerReport, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		from := "inline token"
		if p.TokenFile != "" {
			from = fmt.Sprintf("token file %s", p.TokenFile)
		}
		reports = append(reports, providerReport{
			Vendor:          name,
			CredentialFrom:  from,
			BaseURLOverride: p.BaseURL != "",
			Timeout:         p.Timeout.String(),
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Vendor < reports[j].Vendor })

	if validateFlags.format == "json" {
		out, err := json.MarshalIndent(map[string]any{
			"valid":          true,
			"listen_address": cfg.Server.ListenAddress,
			"providers":      reports,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("Logging: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Println()
	fmt.Printf("Providers (%d):\n", len(reports))
	for _, r := range reports {
		fmt.Printf("  %-10s %s, timeout %s", r.Vendor, r.CredentialFrom, r.Timeout)
		if r.BaseURLOverride {
			fmt.Print(", custom base URL")
		}
		fmt.Println()
	}
	return nil
}
