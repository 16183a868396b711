// docref builds and validates the reference graph of a project's
// documentation: features, interfaces, glossary terms and the code they cite.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/docref/internal/config"
	"github.com/phobologic/docref/internal/graph"
	"github.com/phobologic/docref/internal/linkcheck"
	"github.com/phobologic/docref/internal/model"
	"github.com/phobologic/docref/internal/server"
	"github.com/phobologic/docref/internal/toon"
	"github.com/phobologic/docref/internal/workspace"
)

var version = "dev"

// errFindings is returned when a report fails; the report itself has
// already been written to stdout.
var errFindings = errors.New("validation failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := rootCmd(stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	format     string
	logLevel   string
	strict     bool

	stdout io.Writer
	stderr io.Writer
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "docref",
		Short: "Documentation reference graph builder and validator",
		Long: `docref indexes feature, interface and shared-type documents together with
the glossary terms and code files they reference, then validates the result:
term definitions and references, interface file naming, provide/use symmetry
and namespace coverage, and source files nothing documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch g.format {
			case "toon", "json":
			default:
				return fmt.Errorf("unsupported format %q, expected toon or json", g.format)
			}
			_, err := parseLevel(g.logLevel)
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file path (default <root>/docref.yaml)")
	flags.StringVarP(&g.format, "format", "f", "toon", "output format (toon, json)")
	flags.StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&g.strict, "strict", false, "treat warnings as failures")

	cmd.AddCommand(
		indexCmd(g),
		termsCmd(g),
		namingCmd(g),
		orphansCmd(g),
		linksCmd(g),
		rankCmd(g),
		checkCmd(g),
		serveCmd(g),
		initCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				_, _ = fmt.Fprintf(g.stdout, "docref %s\n", version)
			},
		},
	)
	return cmd
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// workspace resolves the project root from args and loads its configuration.
func (g *globals) workspace(args []string) (*workspace.Workspace, error) {
	level, err := parseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{Level: level}))

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	ws, err := workspace.Open(root, nil, logger)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader(logger).Load(ws.Root, g.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	ws, err = workspace.Open(ws.Root, cfg, logger)
	if err != nil {
		return nil, err
	}
	if g.configPath != "" {
		abs, err := filepath.Abs(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		ws.ConfigFiles = append(ws.ConfigFiles, abs)
	}
	return ws, nil
}

// emit writes v as JSON, or as the TOON document built by encode.
func (g *globals) emit(v any, encode func(*toon.Doc)) error {
	if g.format == "json" {
		enc := json.NewEncoder(g.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	doc := toon.New()
	encode(doc)
	_, err := fmt.Fprintln(g.stdout, doc.String())
	return err
}

// verdict fails on errors, and on warnings under --strict.
func (g *globals) verdict(is model.Issues) error {
	if len(is.Errors) > 0 || (g.strict && len(is.Warnings) > 0) {
		return errFindings
	}
	return nil
}

func indexCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "index [root]",
		Short: "Build the reference index and write the snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			res, err := ws.Build()
			if err != nil {
				return err
			}

			var is model.Issues
			problems := make([]string, 0, len(res.Problems))
			for _, p := range res.Problems {
				problems = append(problems, p.Error())
				is.Warnf("document", p.Path, 0, "%s", p.Err.Error())
			}
			out := struct {
				Snapshot string   `json:"snapshot"`
				Stats    any      `json:"stats"`
				Problems []string `json:"problems"`
			}{ws.SnapshotPath(), res.Stats, problems}

			if err := g.emit(out, func(d *toon.Doc) {
				s := res.Stats
				d.Field("snapshot", out.Snapshot).
					Field("features", s.Features).
					Field("code_files", s.CodeFiles).
					Field("interfaces", s.Interfaces).
					Field("terms", s.Terms).
					Field("term_references", s.TermReferences).
					Field("edges", s.Edges).
					Field("parsed", s.Parsed).
					Field("skipped", s.Skipped).
					Field("duration", s.Duration).
					List("problems", problems)
			}); err != nil {
				return err
			}
			return g.verdict(is)
		},
	}
}

func termsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "terms [root]",
		Short: "Validate glossary term definitions and [[Term]] references",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			rep, err := ws.Terms()
			if err != nil {
				return err
			}
			if err := g.emit(rep, func(d *toon.Doc) {
				s := rep.Stats
				d.Field("success", rep.Success).
					Field("definitions", s.TotalDefinitions).
					Field("global", s.GlobalDefinitions).
					Field("document", s.DocumentDefinitions).
					Field("references", s.TotalReferences).
					Field("unique_references", s.UniqueReferences).
					Field("undefined", s.UndefinedTerms).
					Field("unused", s.UnusedTerms).
					Field("isolated", s.IsolatedTerms).
					Issues(rep.Issues)
			}); err != nil {
				return err
			}
			return g.verdict(rep.Issues)
		},
	}
}

func namingCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "naming [root]",
		Short: "Validate interface and shared-type document names",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			rep, err := ws.Naming()
			if err != nil {
				return err
			}
			if err := g.emit(rep, func(d *toon.Doc) {
				d.Field("success", rep.Success).
					Field("interface_docs", rep.Stats.InterfaceDocs).
					Field("shared_docs", rep.Stats.SharedDocs).
					Issues(rep.Issues)
			}); err != nil {
				return err
			}
			return g.verdict(rep.Issues)
		},
	}
}

func orphansCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans [root]",
		Short: "List source files no document references and no file imports",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			res, err := ws.Orphans()
			if err != nil {
				return err
			}
			if err := g.emit(res, func(d *toon.Doc) {
				d.Field("total_files", res.TotalFiles).
					Field("referenced_files", res.ReferencedFiles).
					List("orphans", res.OrphanFiles)
			}); err != nil {
				return err
			}
			if g.strict && len(res.OrphanFiles) > 0 {
				return errFindings
			}
			return nil
		},
	}
}

func linksCmd(g *globals) *cobra.Command {
	var filters linkcheck.Filters
	cmd := &cobra.Command{
		Use:   "links [root]",
		Short: "Validate interface provide/use symmetry and namespace coverage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			rep, err := ws.Links(filters)
			if err != nil {
				return err
			}
			if err := g.emit(rep, func(d *toon.Doc) { encodeLinks(d, rep) }); err != nil {
				return err
			}
			return g.verdict(rep.Issues)
		},
	}
	cmd.Flags().StringVar(&filters.Feature, "feature", "", "only report interfaces this feature provides or uses")
	cmd.Flags().StringVar(&filters.Namespace, "namespace", "", "only report interface ids in this namespace")
	return cmd
}

func encodeLinks(d *toon.Doc, rep *linkcheck.Report) {
	linkRows := func(links []linkcheck.Link) [][]string {
		var rows [][]string
		for _, l := range links {
			rows = append(rows, []string{l.Interface, strings.Join(l.Features, " ")})
		}
		return rows
	}
	var coverage [][]string
	for _, c := range rep.IncompleteCoverage {
		coverage = append(coverage, []string{c.Feature, c.Namespace, strings.Join(c.Provided, " "), strings.Join(c.Missing, " ")})
	}

	d.Field("success", rep.Success).
		Field("features_checked", rep.Summary.FeaturesChecked).
		Field("interfaces_checked", rep.Summary.InterfacesChecked).
		Table("missing_providers", []string{"interface", "used_by"}, linkRows(rep.Bidirectional.MissingProviders)).
		Table("unused_interfaces", []string{"interface", "provided_by"}, linkRows(rep.Bidirectional.UnusedInterfaces)).
		Table("incomplete_coverage", []string{"feature", "namespace", "provided", "missing"}, coverage)
}

func rankCmd(g *globals) *cobra.Command {
	var (
		opts workspace.RankOptions
		kind string
	)
	cmd := &cobra.Command{
		Use:   "rank [root]",
		Short: "Rank features and code files by PageRank over the reference graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Kind = graph.NodeKind(kind)
			switch opts.Kind {
			case "", graph.FeatureNode, graph.CodeNode:
			default:
				return fmt.Errorf("unsupported kind %q, expected feature or code", kind)
			}
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			ranked, err := ws.Rank(opts)
			if err != nil {
				return err
			}
			return g.emit(ranked, func(d *toon.Doc) { d.Graph(ranked) })
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "max-nodes", "n", 0, "maximum number of nodes to include")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only rank feature or code nodes")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only nodes whose id contains this text, plus their neighbors")
	return cmd
}

func checkCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check [root]",
		Short: "Rebuild the index and run every validator",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			rep, err := ws.Check()
			if err != nil {
				return err
			}
			if err := g.emit(rep, func(d *toon.Doc) {
				d.Field("success", rep.Success).
					Field("features", rep.Index.Features).
					Field("code_files", rep.Index.CodeFiles).
					Field("interfaces", rep.Index.Interfaces).
					Field("terms", rep.Index.Terms).
					Field("orphans", len(rep.Orphans.OrphanFiles)).
					Issues(rep.Issues)
			}); err != nil {
				return err
			}
			return g.verdict(rep.Issues)
		},
	}
}

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve the docref tools over MCP on stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := g.workspace(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(ws, version, generateSection()).Run(ctx)
		},
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
