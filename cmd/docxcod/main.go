// Package main provides the docxcod command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stania/kraken-docxcod/pkg/docxcod"
	dxml "github.com/stania/kraken-docxcod/pkg/docxcod/xml"
)

const version = "0.1.0"

var (
	dataPath   string
	outputPath string
	configPath string
	logLevel   string
	strict     bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docxcod",
		Short: "Render DOCX templates written in merge fields",
		Long: `docxcod renders Word templates whose loops and conditions are written
as MERGEFIELD directives. Charts inside loops are cloned per iteration
together with their embedded workbooks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel != "" {
				docxcod.SetLogger(docxcod.NewLogger(os.Stderr, docxcod.ParseLogLevel(logLevel)))
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, off")

	renderCmd := &cobra.Command{
		Use:   "render <template.docx>",
		Short: "Render a template with a JSON or YAML data file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	renderCmd.Flags().StringVarP(&dataPath, "data", "d", "", "Data file (JSON or YAML)")
	renderCmd.Flags().StringVarP(&outputPath, "output", "o", "output.docx", "Output file path")
	renderCmd.Flags().StringVar(&configPath, "config", "", "TOML configuration file")
	renderCmd.Flags().BoolVar(&strict, "strict", false, "Fail when a chart cannot be duplicated")

	directivesCmd := &cobra.Command{
		Use:   "directives <template.docx>",
		Short: "List the merge-field directives of a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runDirectives,
	}

	relsCmd := &cobra.Command{
		Use:   "rels <template.docx>",
		Short: "Print the relationship tree of a package",
		Args:  cobra.ExactArgs(1),
		RunE:  runRels,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docxcod version %s\n", version)
		},
	}

	rootCmd.AddCommand(renderCmd, directivesCmd, relsCmd, versionCmd)
	return rootCmd
}

func runRender(cmd *cobra.Command, args []string) error {
	config := docxcod.ConfigFromEnvironment()
	if configPath != "" {
		loaded, err := docxcod.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		config = loaded
	}
	if strict {
		config.StrictMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}

	data, err := loadData(dataPath)
	if err != nil {
		return err
	}

	engine := docxcod.NewWithConfig(config)
	tmpl, err := engine.PrepareFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to prepare template: %w", err)
	}
	defer tmpl.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	if err := tmpl.RenderTo(out, data); err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s to %s\n", args[0], outputPath)
	return nil
}

// loadData decodes a data file. YAML is a superset of JSON, so one decoder serves both.
func loadData(path string) (docxcod.TemplateData, error) {
	data := docxcod.TemplateData{}
	if path == "" {
		return data, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	return data, nil
}

func runDirectives(cmd *cobra.Command, args []string) error {
	pkg, err := docxcod.OpenPackageFile(args[0])
	if err != nil {
		return err
	}
	doc, err := pkg.XMLPart(docxcod.MainDocumentPart)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	directives := docxcod.ScanDirectives(doc)
	for i, d := range directives {
		fmt.Fprintf(w, "%3d  %-40s %s\n", i+1, d.Text, dxml.Path(d.Anchor))
	}

	report := docxcod.PlaceMergeFields(directives, docxcod.GetLogger())
	fmt.Fprintf(w, "\n%d directives, %d placeable, %d malformed\n", len(directives), report.Placed, report.Skipped)
	for _, warning := range report.Warnings.Errors() {
		fmt.Fprintf(w, "  %v\n", warning)
	}
	return nil
}

func runRels(cmd *cobra.Command, args []string) error {
	pkg, err := docxcod.OpenPackageFile(args[0])
	if err != nil {
		return err
	}
	root, err := docxcod.LoadRelationshipTree(pkg)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), root.Summary())
	return nil
}
