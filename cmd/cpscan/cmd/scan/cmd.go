// Package scan implements cpscan's "scan" subcommand.
package scan

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cpscan/cpscan/internal/log"
	"github.com/cpscan/cpscan/pkg/discovery"
	"github.com/cpscan/cpscan/pkg/query"
	pkgscan "github.com/cpscan/cpscan/pkg/scan"
	"github.com/cpscan/cpscan/pkg/scanspec"
)

const (
	flagOutput          = "output"
	flagModules         = "modules"
	flagSystemModules   = "system-modules"
	flagExtendUpward    = "extend-upward"
	flagNoScan          = "no-scan"
	flagRemoveTemp      = "remove-temp-files"
	flagParallelism     = "parallelism"
	flagIncludePackage  = "include-package"
	flagExcludePackage  = "exclude-package"
	flagIncludeModule   = "include-module"
	flagExcludeModule   = "exclude-module"
	flagIncludeResource = "include-resource"
	flagExcludeResource = "exclude-resource"
)

// New builds the "scan" subcommand.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [classpath-entry ...]",
		Short: "Scan a classpath and print the linked type information graph",
		Long: `Scan discovers every code-containing location on the given classpath
entries, parses the classfiles they contain, and prints a summary of
the resulting linked type information graph.

If no classpath entries are given on the command line, cpscan falls
back to the CPSCAN_CLASSPATH environment variable.`,
		RunE: runScan,
	}

	cmd.Flags().String(flagOutput, "table", `output format: "table" or "json"`)
	cmd.Flags().Bool(flagModules, false, "enable scanning of module classpath elements")
	cmd.Flags().Bool(flagSystemModules, false, "also scan system modules when no module is explicitly included")
	cmd.Flags().Bool(flagExtendUpward, false, "schedule referenced types outside the include filters if present on the classpath")
	cmd.Flags().Bool(flagNoScan, false, "stop after computing the final element order, without scanning contents")
	cmd.Flags().Bool(flagRemoveTemp, true, "remove nested-archive extraction temp files once the scan completes")
	cmd.Flags().Int(flagParallelism, 0, "number of workers per scan phase (0 = automatic)")
	cmd.Flags().StringSlice(flagIncludePackage, nil, "glob pattern for packages to include (repeatable)")
	cmd.Flags().StringSlice(flagExcludePackage, nil, "glob pattern for packages to exclude (repeatable)")
	cmd.Flags().StringSlice(flagIncludeModule, nil, "glob pattern for module names to include (repeatable)")
	cmd.Flags().StringSlice(flagExcludeModule, nil, "glob pattern for module names to exclude (repeatable)")
	cmd.Flags().StringSlice(flagIncludeResource, nil, "glob pattern for resource paths to include (repeatable)")
	cmd.Flags().StringSlice(flagExcludeResource, nil, "glob pattern for resource paths to exclude (repeatable)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	baseLogger, err := log.BaseLoggerFromCommand(cmd)
	if err != nil {
		return err
	}
	root := log.Root(baseLogger)

	disc := discovery.Discover(discovery.Overrides{RawPaths: args})

	spec, err := specFromFlags(cmd)
	if err != nil {
		return err
	}

	result, err := pkgscan.Scan(cmd.Context(), pkgscan.Input{
		RawPaths:            disc.RawPaths,
		ClassLoaderContexts: disc.ClassLoaderContexts,
		SystemModules:       disc.SystemModules,
		NonSystemModules:    disc.NonSystemModules,
		Spec:                spec,
		Logger:              root,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	defer result.Close()

	output, err := cmd.Flags().GetString(flagOutput)
	if err != nil {
		return err
	}
	return render(cmd, output, result)
}

func specFromFlags(cmd *cobra.Command) (*scanspec.ScanSpec, error) {
	spec := scanspec.New()

	var err error
	if spec.ScanModules, err = cmd.Flags().GetBool(flagModules); err != nil {
		return nil, err
	}
	if spec.EnableSystemJarsAndModules, err = cmd.Flags().GetBool(flagSystemModules); err != nil {
		return nil, err
	}
	if spec.ExtendScanningUpwardsToExternalClasses, err = cmd.Flags().GetBool(flagExtendUpward); err != nil {
		return nil, err
	}
	noScan, err := cmd.Flags().GetBool(flagNoScan)
	if err != nil {
		return nil, err
	}
	spec.PerformScan = !noScan
	if spec.RemoveTemporaryFilesAfterScan, err = cmd.Flags().GetBool(flagRemoveTemp); err != nil {
		return nil, err
	}
	if spec.Parallelism, err = cmd.Flags().GetInt(flagParallelism); err != nil {
		return nil, err
	}

	if spec.Filters.IncludePackages, err = cmd.Flags().GetStringSlice(flagIncludePackage); err != nil {
		return nil, err
	}
	if spec.Filters.ExcludePackages, err = cmd.Flags().GetStringSlice(flagExcludePackage); err != nil {
		return nil, err
	}
	if spec.Filters.IncludeModules, err = cmd.Flags().GetStringSlice(flagIncludeModule); err != nil {
		return nil, err
	}
	if spec.Filters.ExcludeModules, err = cmd.Flags().GetStringSlice(flagExcludeModule); err != nil {
		return nil, err
	}
	if spec.Filters.IncludeResourcePaths, err = cmd.Flags().GetStringSlice(flagIncludeResource); err != nil {
		return nil, err
	}
	if spec.Filters.ExcludeResourcePaths, err = cmd.Flags().GetStringSlice(flagExcludeResource); err != nil {
		return nil, err
	}

	return spec, nil
}

func render(cmd *cobra.Command, format string, result *pkgscan.Result) error {
	switch format {
	case "table":
		return renderTable(cmd, result)
	case "json":
		return renderJSON(cmd, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTable(cmd *cobra.Command, result *pkgscan.Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Element", "Kind", "Skipped", "Resources", "Classfiles"})
	for _, el := range result.FinalOrder {
		t.AppendRow(table.Row{el.String(), el.Kind.String(), el.Skip, len(el.Resources), len(el.WhitelistedClassfileResources)})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()

	if result.Graph == nil {
		return nil
	}

	q := query.New(result.Graph)
	classes := q.AllClasses()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d linked classes, %d packages, %d modules\n",
		len(classes), len(result.Graph.Packages), len(result.Graph.Modules))
	return nil
}

func renderJSON(cmd *cobra.Command, result *pkgscan.Result) error {
	var b strings.Builder
	b.WriteString("{\"elements\":[")
	for i, el := range result.FinalOrder {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "{\"id\":%q,\"kind\":%q,\"skipped\":%t}", el.String(), el.Kind.String(), el.Skip)
	}
	b.WriteString("]")
	if result.Graph != nil {
		fmt.Fprintf(&b, ",\"classes\":%d,\"packages\":%d,\"modules\":%d",
			len(result.Graph.Classes), len(result.Graph.Packages), len(result.Graph.Modules))
	}
	b.WriteString("}\n")
	_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}
