package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/unbound-force/shrinkowners/internal/compress"
	"github.com/unbound-force/shrinkowners/internal/config"
	"github.com/unbound-force/shrinkowners/internal/diff"
	"github.com/unbound-force/shrinkowners/internal/filelist"
	"github.com/unbound-force/shrinkowners/internal/ownership"
	"github.com/unbound-force/shrinkowners/internal/report"
	"github.com/unbound-force/shrinkowners/internal/rules"
	"github.com/unbound-force/shrinkowners/internal/scaffold"
)

// logger is the application-wide structured logger (writes to stderr).
var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: false,
})

// Set by build flags.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "shrinkowners",
		Short: "shrinkowners: fit a CODEOWNERS file into a size budget",
		Long: `shrinkowners evaluates a CODEOWNERS file against the repository's
file list and regenerates an equivalent, smaller file that fits within
a byte budget, spending bytes on the largest subtrees first.`,
		Version: version,
	}

	root.AddCommand(newCompressCmd())
	root.AddCommand(newDiffCmd())
	root.AddCommand(newLintCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSchemaCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// fileSource says where the repository file list comes from.
type fileSource struct {
	// list is a newline-separated file list path, "-" for stdin.
	list string
	// root is walked when list is empty.
	root    string
	include []string
	exclude []string
	stdin   io.Reader
}

// gatherFiles reads the file list, or walks the source tree when no list
// is given.
func gatherFiles(ctx context.Context, src fileSource) ([]string, error) {
	switch src.list {
	case "":
		logger.Debug("walking source tree", "root", src.root)
		return filelist.Walk(ctx, os.DirFS(src.root), filelist.Filter{
			Include: src.include,
			Exclude: append(slices.Clone(src.exclude), ownership.CacheGlob),
		})
	case "-":
		return filelist.Read(src.stdin)
	default:
		f, err := os.Open(src.list)
		if err != nil {
			return nil, fmt.Errorf("opening file list: %w", err)
		}
		defer f.Close()
		return filelist.Read(f)
	}
}

func addFileFlags(cmd *cobra.Command, src *fileSource) {
	cmd.Flags().StringVarP(&src.list, "files", "f", "",
		"newline-separated file list, - for stdin (default: walk --root)")
	cmd.Flags().StringVar(&src.root, "root", "",
		"source tree to walk when no file list is given")
	cmd.Flags().StringSliceVar(&src.include, "include", nil,
		"only walk files matching these globs")
	cmd.Flags().StringSliceVar(&src.exclude, "exclude", nil,
		"skip files matching these globs while walking")
}

// applyFileConfig fills file source settings the flags left unset.
func applyFileConfig(cmd *cobra.Command, src *fileSource, cfg *config.Config) {
	if !cmd.Flags().Changed("root") {
		src.root = cfg.Files.Root
	}
	if !cmd.Flags().Changed("include") {
		src.include = cfg.Files.Include
	}
	if !cmd.Flags().Changed("exclude") {
		src.exclude = cfg.Files.Exclude
	}
}

func setVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}
}

// ---------------------------------------------------------------------------
// compress
// ---------------------------------------------------------------------------

// compressParams holds the parsed flags for the compress command.
type compressParams struct {
	input  string
	output string
	format string
	cfg    *config.Config
	debug  bool
	files  fileSource
	stdout io.Writer
	stderr io.Writer
}

// runCompress is the extracted, testable body of the compress command.
func runCompress(ctx context.Context, p compressParams) error {
	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}

	src, err := os.ReadFile(p.input)
	if err != nil {
		return fmt.Errorf("reading CODEOWNERS: %w", err)
	}
	if err := validateRules(string(src)); err != nil {
		return err
	}

	files, err := gatherFiles(ctx, p.files)
	if err != nil {
		return err
	}
	logger.Info("building ownership tree", "files", len(files))

	tree, err := ownership.Build(ctx, files, string(src), ownership.Options{
		Cache:    p.cfg.Cache.Enabled,
		CacheDir: p.cfg.Cache.Dir,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("compressing", "nodes", tree.Len(), "budget", p.cfg.Compress.Budget)
	res, err := compress.Compress(tree, compress.Options{
		Lossy1:   p.cfg.Compress.Lossy1,
		Lossy2:   p.cfg.Compress.Lossy2,
		Budget:   p.cfg.Compress.Budget,
		UseGlobs: p.cfg.Compress.Globs,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if err := os.WriteFile(p.output, []byte(res.Render()), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if p.debug {
		if _, err := io.WriteString(p.stderr, res.RenderDebug()); err != nil {
			return fmt.Errorf("writing debug output: %w", err)
		}
	}
	logger.Info("compression complete", "rules", res.Stats.Rules, "bytes", res.Stats.Bytes)

	switch p.format {
	case "json":
		return report.WriteCompressJSON(p.stdout, res, version)
	default:
		return report.WriteCompressSummary(p.stdout, res.Stats)
	}
}

// validateRules rejects a CODEOWNERS file with malformed directives
// before any tree is built.
func validateRules(src string) error {
	parsed, err := rules.ParseString(src)
	if err != nil {
		return err
	}
	if err := rules.Validate(parsed); err != nil {
		var verr *rules.ValidationError
		if errors.As(err, &verr) {
			for _, f := range verr.Failures {
				logger.Error("invalid CODEOWNERS", "line", f.Line, "problem", f.Message)
			}
		}
		return err
	}
	return nil
}

// compressOverrides holds compress flags that were explicitly set.
type compressOverrides struct {
	lossy1   *float64
	lossy2   *float64
	budget   *int
	globs    *bool
	noCache  bool
	cacheDir string
}

// loadConfig reads the config file and applies explicitly-set flags on
// top. Flag values are validated separately from file values so errors
// name their source.
func loadConfig(path string, o compressOverrides) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.lossy1 != nil {
		cfg.Compress.Lossy1 = *o.lossy1
	}
	if o.lossy2 != nil {
		cfg.Compress.Lossy2 = *o.lossy2
	}
	if o.budget != nil {
		cfg.Compress.Budget = *o.budget
	}
	if o.globs != nil {
		cfg.Compress.Globs = *o.globs
	}
	if o.noCache {
		cfg.Cache.Enabled = false
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("command-line flags: %w", err)
	}
	return cfg, nil
}

func newCompressCmd() *cobra.Command {
	var (
		lossy1     float64
		lossy2     float64
		budget     int
		globs      bool
		debug      bool
		noCache    bool
		cacheDir   string
		configPath string
		format     string
		verbose    bool
		files      fileSource
	)

	cmd := &cobra.Command{
		Use:   "compress <input> <output>",
		Short: "Regenerate a CODEOWNERS file within a size budget",
		Long: `Evaluate the input CODEOWNERS against the repository's files and
write an equivalent CODEOWNERS to output whose size does not exceed
the budget. Larger subtrees are described first; lossy thresholds
drop minority owners to save space.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbose(verbose)

			var o compressOverrides
			if cmd.Flags().Changed("lossy1") {
				o.lossy1 = &lossy1
			}
			if cmd.Flags().Changed("lossy2") {
				o.lossy2 = &lossy2
			}
			if cmd.Flags().Changed("budget") {
				o.budget = &budget
			}
			if cmd.Flags().Changed("globs") {
				o.globs = &globs
			}
			o.noCache = noCache
			o.cacheDir = cacheDir

			cfg, err := loadConfig(configPath, o)
			if err != nil {
				return err
			}
			applyFileConfig(cmd, &files, cfg)
			files.stdin = os.Stdin

			return runCompress(cmd.Context(), compressParams{
				input:  args[0],
				output: args[1],
				format: format,
				cfg:    cfg,
				debug:  debug,
				files:  files,
				stdout: os.Stdout,
				stderr: os.Stderr,
			})
		},
	}

	cmd.Flags().Float64Var(&lossy1, "lossy1", compress.DefaultLossy1,
		"drop owners with fewer files than this fraction of the largest owner (0..1)")
	cmd.Flags().Float64Var(&lossy2, "lossy2", compress.DefaultLossy2,
		"drop owners with fewer files than this multiple of all other owners combined")
	cmd.Flags().IntVarP(&budget, "budget", "b", compress.DefaultBudget,
		"maximum output size in bytes")
	cmd.Flags().BoolVarP(&globs, "globs", "g", false,
		"abbreviate paths with * globs")
	cmd.Flags().BoolVar(&debug, "debug", false,
		"also write an annotated copy of the output to stderr")
	cmd.Flags().BoolVar(&noCache, "no-cache", false,
		"do not read or write the ownership tree cache")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "",
		"directory for ownership tree cache files (default: config or .)")
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: ./"+config.FileName+" if present)")
	cmd.Flags().StringVar(&format, "format", "text",
		"summary format: text or json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"log every compression step")
	addFileFlags(cmd, &files)

	return cmd
}

// ---------------------------------------------------------------------------
// diff
// ---------------------------------------------------------------------------

// diffParams holds the parsed flags for the diff command.
type diffParams struct {
	original    string
	test        string
	path        string
	team        string
	format      string
	interactive bool
	cfg         *config.Config
	files       fileSource
	stdout      io.Writer
	stderr      io.Writer
}

// runDiff is the extracted, testable body of the diff command.
func runDiff(ctx context.Context, p diffParams) error {
	if p.format != "text" && p.format != "json" {
		return fmt.Errorf("invalid format %q: must be 'text' or 'json'", p.format)
	}
	if strings.HasPrefix(p.team, "#") || strings.HasPrefix(p.team, "@") {
		return fmt.Errorf("team %q should be given without a leading # or @", p.team)
	}

	originalText, err := os.ReadFile(p.original)
	if err != nil {
		return fmt.Errorf("reading original CODEOWNERS: %w", err)
	}
	testText, err := os.ReadFile(p.test)
	if err != nil {
		return fmt.Errorf("reading test CODEOWNERS: %w", err)
	}

	var files []string
	if p.path != "" {
		files = []string{p.path}
	} else if files, err = gatherFiles(ctx, p.files); err != nil {
		return err
	}

	opts := ownership.Options{
		Cache:    p.cfg.Cache.Enabled,
		CacheDir: p.cfg.Cache.Dir,
		Logger:   logger,
	}
	original, test, err := diff.Trees(ctx, files, string(originalText), string(testText), opts)
	if err != nil {
		return err
	}

	if p.path != "" {
		d, err := diff.CompareFile(original, test, p.path)
		if err != nil {
			return err
		}
		return report.WriteFileDiffText(p.stdout, d)
	}

	r, err := diff.Compare(original, test)
	if err != nil {
		return err
	}
	logger.Info("diff complete", "files", r.Files, "teams", len(r.Teams))

	if p.interactive {
		return runInteractiveDiff(r, p.team)
	}
	switch p.format {
	case "json":
		return report.WriteDiffJSON(p.stdout, r, version)
	default:
		return report.WriteDiffText(p.stdout, r, p.team)
	}
}

func newDiffCmd() *cobra.Command {
	var (
		team        string
		format      string
		interactive bool
		noCache     bool
		configPath  string
		verbose     bool
		files       fileSource
	)

	cmd := &cobra.Command{
		Use:   "diff <original> <test> [path]",
		Short: "Compare the ownership two CODEOWNERS files produce",
		Long: `Evaluate two CODEOWNERS files against the same file list and report,
per team, how many files each one lost and gained. With a path, only
that file's owners are compared.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			setVerbose(verbose)

			cfg, err := loadConfig(configPath, compressOverrides{noCache: noCache})
			if err != nil {
				return err
			}
			applyFileConfig(cmd, &files, cfg)
			files.stdin = os.Stdin

			p := diffParams{
				original:    args[0],
				test:        args[1],
				team:        team,
				format:      format,
				interactive: interactive,
				cfg:         cfg,
				files:       files,
				stdout:      os.Stdout,
				stderr:      os.Stderr,
			}
			if len(args) == 3 {
				p.path = args[2]
			}
			return runDiff(cmd.Context(), p)
		},
	}

	cmd.Flags().StringVarP(&team, "team", "t", "",
		"list the files this team lost and gained (without # or @)")
	cmd.Flags().StringVar(&format, "format", "text",
		"output format: text or json")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false,
		"launch interactive TUI for browsing the diff")
	cmd.Flags().BoolVar(&noCache, "no-cache", false,
		"do not read or write the ownership tree cache")
	cmd.Flags().StringVar(&configPath, "config", "",
		"path to config file (default: ./"+config.FileName+" if present)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
	addFileFlags(cmd, &files)

	return cmd
}

// ---------------------------------------------------------------------------
// lint
// ---------------------------------------------------------------------------

// lintParams holds the parsed flags for the lint command.
type lintParams struct {
	input string
	// files enables the unmatched-pattern and unused-team warnings.
	files  *fileSource
	stdout io.Writer
}

// runLint is the extracted, testable body of the lint command.
func runLint(ctx context.Context, p lintParams) error {
	src, err := os.ReadFile(p.input)
	if err != nil {
		return fmt.Errorf("reading CODEOWNERS: %w", err)
	}
	parsed, err := rules.ParseString(string(src))
	if err != nil {
		return err
	}

	var failures []rules.Failure
	if err := rules.Validate(parsed); err != nil {
		var verr *rules.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		failures = verr.Failures
	}

	var warnings []rules.Failure
	if p.files != nil && len(failures) == 0 {
		files, err := gatherFiles(ctx, *p.files)
		if err != nil {
			return err
		}
		rs, err := rules.Compile(parsed)
		if err != nil {
			return err
		}
		res, err := rs.Find(ctx, files)
		if err != nil {
			return err
		}
		warnings = rules.Diagnose(parsed, res)
	}

	if err := report.WriteLintText(p.stdout, failures, warnings); err != nil {
		return err
	}
	if len(failures) > 0 {
		return fmt.Errorf("%s: %d error(s)", p.input, len(failures))
	}
	return nil
}

func newLintCmd() *cobra.Command {
	var (
		check bool
		files fileSource
	)

	cmd := &cobra.Command{
		Use:   "lint <input>",
		Short: "Validate a CODEOWNERS file",
		Long: `Check a CODEOWNERS file for malformed patterns and owners and for
owners that reference undeclared teams. With --check, also warn about
patterns that match no file and declared teams that own nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := lintParams{input: args[0], stdout: os.Stdout}
			if check {
				defaults := config.DefaultConfig().Files
				if files.list == "" && files.root == "" {
					files.root = defaults.Root
				}
				if !cmd.Flags().Changed("exclude") {
					files.exclude = defaults.Exclude
				}
				files.stdin = os.Stdin
				p.files = &files
			}
			return runLint(cmd.Context(), p)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false,
		"evaluate against the file list and warn about unused patterns and teams")
	addFileFlags(cmd, &files)

	return cmd
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and CI workflow",
		Long: `Write ` + config.FileName + ` and a GitHub Actions workflow that keeps
.github/CODEOWNERS generated from CODEOWNERS.source. Existing files
are kept unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := scaffold.Run(scaffold.Options{
				Force:   force,
				Version: version,
				Stdout:  cmd.OutOrStdout(),
			})
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for shrinkowners JSON output",
		Long: `Print the JSON Schema (Draft 2020-12) that documents the
structure of diff --format=json output, or of compress --format=json
output with --kind=compress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch kind {
			case "diff":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), report.Schema)
				return err
			case "compress":
				_, err := fmt.Fprintln(cmd.OutOrStdout(), report.CompressSchema)
				return err
			default:
				return fmt.Errorf("invalid kind %q: must be 'diff' or 'compress'", kind)
			}
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "diff", "schema to print: diff or compress")
	return cmd
}
