// Package cmd provides command-line interface commands for Argus.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"argus/components"
	"argus/config"
	"argus/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xeipuuv/gojsonschema"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags for components commands
var (
	outputJSON bool
	noColor    bool
)

// NewComponentsCmd creates the root components command with all subcommands.
func NewComponentsCmd() *cobra.Command {
	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "Inspect and validate platform components",
		Long: `Inspect the component catalog and validate the component configuration
without starting the platform.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	componentsCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	componentsCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	componentsCmd.AddCommand(newListCmd())
	componentsCmd.AddCommand(newValidateCmd())

	return componentsCmd
}

// builtinCatalog builds the catalog the server would start with.
func builtinCatalog() *core.Catalog {
	cat := core.NewCatalog()
	components.RegisterBuiltins(cat)
	return cat
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available components and domains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := builtinCatalog()

			if outputJSON {
				out := map[string][]string{
					"components": cat.ComponentNames(),
					"domains":    cat.DomainNames(),
				}
				encoded, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(encoded))
				return nil
			}

			headerColor.Println("Available components:")
			for _, name := range cat.ComponentNames() {
				fmt.Printf("  %s\n", name)
			}
			if domains := cat.DomainNames(); len(domains) > 0 {
				headerColor.Println("Available domains:")
				for _, name := range domains {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the component configuration",
		Long: `Load the configuration and check every configured component against
the catalog and its declared schema. Exits non-zero when any component
is unknown or misconfigured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				errorColor.Fprintf(os.Stderr, "Config load failed: %v\n", err)
				return err
			}

			cat := builtinCatalog()
			problems := validateComponents(cfg, cat)

			if len(problems) == 0 {
				successColor.Printf("All %d configured components are valid\n", len(cfg.Components))
				return nil
			}
			for _, p := range problems {
				errorColor.Fprintf(os.Stderr, "%s\n", p)
			}
			return fmt.Errorf("%d component(s) failed validation", len(problems))
		},
	}
}

// validateComponents checks every configured component key against the
// catalog and, where a schema is declared, against that schema.
func validateComponents(cfg *config.Config, cat *core.Catalog) []string {
	keys := make([]string, 0, len(cfg.Components))
	for key := range cfg.Components {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var problems []string
	for _, key := range keys {
		base := key
		if i := strings.IndexByte(key, ' '); i >= 0 {
			base = key[:i]
		}

		factory, ok := cat.Component(base)
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unknown component %q", key, base))
			continue
		}

		provider, ok := factory().(core.SchemaProvider)
		if !ok {
			continue
		}
		raw := cfg.Components[key]
		if raw == nil {
			raw = map[string]interface{}{}
		}
		result, err := gojsonschema.Validate(
			gojsonschema.NewBytesLoader(provider.ConfigSchema()),
			gojsonschema.NewGoLoader(raw))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: schema error: %v", key, err))
			continue
		}
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", key, desc))
		}
	}
	return problems
}
