package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unbound-force/shrinkowners/internal/config"
	"github.com/unbound-force/shrinkowners/internal/ownership"
	"github.com/unbound-force/shrinkowners/internal/rules"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

const sampleCodeowners = `
/web/ @web
/api/ @backend
`

const sampleFiles = `web/a.js
web/b.js
api/main.go
`

// writeFixture writes name under dir and returns its path.
func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func noCacheConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = false
	return cfg
}

// ---------------------------------------------------------------------------
// runCompress tests
// ---------------------------------------------------------------------------

func TestRunCompress_InvalidFormat(t *testing.T) {
	err := runCompress(context.Background(), compressParams{
		format: "yaml",
		cfg:    noCacheConfig(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), `invalid format "yaml"`) {
		t.Errorf("unexpected error message: %s", err)
	}
}

func TestRunCompress_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)
	list := writeFixture(t, dir, "files.txt", sampleFiles)
	output := filepath.Join(dir, "CODEOWNERS.out")

	var stdout, stderr bytes.Buffer
	err := runCompress(context.Background(), compressParams{
		input:  input,
		output: output,
		format: "text",
		cfg:    noCacheConfig(),
		files:  fileSource{list: list},
		stdout: &stdout,
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("runCompress: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := "/ #web\n/api/main.go #backend\n"
	if string(got) != want {
		t.Errorf("output =\n%s\nwant\n%s", got, want)
	}
	if !strings.Contains(stdout.String(), "Rules emitted") {
		t.Errorf("expected summary table on stdout, got:\n%s", stdout.String())
	}
}

func TestRunCompress_JSONSummary(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)
	output := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := runCompress(context.Background(), compressParams{
		input:  input,
		output: output,
		format: "json",
		cfg:    noCacheConfig(),
		files:  fileSource{list: "-", stdin: strings.NewReader(sampleFiles)},
		stdout: &stdout,
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runCompress: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput:\n%s", err, stdout.String())
	}
	for _, key := range []string{"version", "stats", "rules"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("JSON output missing %q key", key)
		}
	}
}

func TestRunCompress_RejectsInvalidCodeowners(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "CODEOWNERS", "@web alice\n/web/ @web\n/api/ @ghost\n")

	err := runCompress(context.Background(), compressParams{
		input:  input,
		output: filepath.Join(dir, "out"),
		format: "text",
		cfg:    noCacheConfig(),
		files:  fileSource{list: "-", stdin: strings.NewReader(sampleFiles)},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	})
	if !errors.Is(err, rules.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out")); statErr == nil {
		t.Error("no output should be written for an invalid CODEOWNERS")
	}
}

func TestRunCompress_WalksRoot(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	for _, f := range []string{"web/a.js", "api/main.go"} {
		path := filepath.Join(repo, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		writeFixture(t, filepath.Dir(path), filepath.Base(path), "x")
	}
	input := writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)
	output := filepath.Join(dir, "out")

	err := runCompress(context.Background(), compressParams{
		input:  input,
		output: output,
		format: "text",
		cfg:    noCacheConfig(),
		files:  fileSource{root: repo},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runCompress: %v", err)
	}
	got, _ := os.ReadFile(output)
	if !strings.Contains(string(got), "#web") || !strings.Contains(string(got), "#backend") {
		t.Errorf("output missing owners:\n%s", got)
	}
}

func TestRunCompress_ReusesCacheInWalkedRoot(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	for _, f := range []string{"web/a.js", "api/main.go"} {
		path := filepath.Join(repo, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		writeFixture(t, filepath.Dir(path), filepath.Base(path), "x")
	}
	input := writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)

	cfg := config.DefaultConfig()
	cfg.Cache.Dir = repo

	var outputs []string
	for i := range 2 {
		output := filepath.Join(dir, fmt.Sprintf("out%d", i))
		err := runCompress(context.Background(), compressParams{
			input:  input,
			output: output,
			format: "text",
			cfg:    cfg,
			files:  fileSource{root: repo, exclude: cfg.Files.Exclude},
			stdout: &bytes.Buffer{},
			stderr: &bytes.Buffer{},
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		got, _ := os.ReadFile(output)
		outputs = append(outputs, string(got))
	}

	caches, err := filepath.Glob(filepath.Join(repo, ownership.CacheGlob))
	if err != nil {
		t.Fatal(err)
	}
	if len(caches) != 1 {
		t.Errorf("expected the second run to hit the first run's cache, found %d cache files: %v", len(caches), caches)
	}
	if outputs[0] != outputs[1] {
		t.Errorf("cached run changed the output:\n%s\nvs\n%s", outputs[0], outputs[1])
	}
}

func TestRunCompress_DebugGoesToStderr(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)
	list := writeFixture(t, dir, "files.txt", sampleFiles)
	output := filepath.Join(dir, "out")

	cfg := noCacheConfig()
	cfg.Compress.Budget = 40

	var stderr bytes.Buffer
	err := runCompress(context.Background(), compressParams{
		input:  input,
		output: output,
		format: "text",
		cfg:    cfg,
		debug:  true,
		files:  fileSource{list: list},
		stdout: &bytes.Buffer{},
		stderr: &stderr,
	})
	if err != nil {
		t.Fatalf("runCompress: %v", err)
	}

	got, _ := os.ReadFile(output)
	if strings.Contains(string(got), "# [") {
		t.Errorf("output file should not carry debug annotations:\n%s", got)
	}
	if len(got) > cfg.Compress.Budget {
		t.Errorf("output is %d bytes, budget %d", len(got), cfg.Compress.Budget)
	}
	if !strings.Contains(stderr.String(), "# [0] / files=3") {
		t.Errorf("stderr missing debug annotations:\n%s", stderr.String())
	}
}

// ---------------------------------------------------------------------------
// loadConfig tests
// ---------------------------------------------------------------------------

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := writeFixture(t, t.TempDir(), config.FileName, "compress:\n  lossy1: 0.5\n  budget: 100\n")

	budget := 42
	cfg, err := loadConfig(path, compressOverrides{budget: &budget, noCache: true, cacheDir: "/tmp/x"})
	if err != nil {
		t.Fatalf("loadConfig error: %v", err)
	}
	if cfg.Compress.Budget != 42 {
		t.Errorf("budget = %d, want 42 (flag)", cfg.Compress.Budget)
	}
	if cfg.Compress.Lossy1 != 0.5 {
		t.Errorf("lossy1 = %g, want 0.5 (file)", cfg.Compress.Lossy1)
	}
	if cfg.Cache.Enabled || cfg.Cache.Dir != "/tmp/x" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
}

func TestLoadConfig_InvalidFlagRejected(t *testing.T) {
	lossy1 := 2.0
	_, err := loadConfig(writeFixture(t, t.TempDir(), config.FileName, ""), compressOverrides{lossy1: &lossy1})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "command-line flags") {
		t.Errorf("error should name the flags as the source, got: %s", err)
	}
}

func TestLoadConfig_InvalidFileRejected(t *testing.T) {
	path := writeFixture(t, t.TempDir(), config.FileName, "compress:\n  budget: -1\n")
	_, err := loadConfig(path, compressOverrides{})
	if err == nil {
		t.Fatal("expected error for negative budget in config file")
	}
	if !strings.Contains(err.Error(), "config file") {
		t.Errorf("error should mention 'config file', got: %s", err)
	}
}

// ---------------------------------------------------------------------------
// runDiff tests
// ---------------------------------------------------------------------------

func diffFixtures(t *testing.T) (original, test, list string) {
	t.Helper()
	dir := t.TempDir()
	original = writeFixture(t, dir, "CODEOWNERS", sampleCodeowners)
	test = writeFixture(t, dir, "CODEOWNERS.test", "/ #web\n")
	list = writeFixture(t, dir, "files.txt", sampleFiles)
	return original, test, list
}

func TestRunDiff_RejectsPrefixedTeam(t *testing.T) {
	for _, team := range []string{"#web", "@web"} {
		err := runDiff(context.Background(), diffParams{
			format: "text",
			team:   team,
			cfg:    noCacheConfig(),
			stdout: &bytes.Buffer{},
		})
		if err == nil || !strings.Contains(err.Error(), "without a leading") {
			t.Errorf("team %q: got %v, want prefix error", team, err)
		}
	}
}

func TestRunDiff_Text(t *testing.T) {
	original, test, list := diffFixtures(t)

	var stdout bytes.Buffer
	err := runDiff(context.Background(), diffParams{
		original: original,
		test:     test,
		format:   "text",
		team:     "backend",
		cfg:      noCacheConfig(),
		files:    fileSource{list: list},
		stdout:   &stdout,
		stderr:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"#web", "#backend", "Total ownership change:", "Team #backend ownership change:", "/api/main.go"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunDiff_JSON(t *testing.T) {
	original, test, list := diffFixtures(t)

	var stdout bytes.Buffer
	err := runDiff(context.Background(), diffParams{
		original: original,
		test:     test,
		format:   "json",
		cfg:      noCacheConfig(),
		files:    fileSource{list: list},
		stdout:   &stdout,
		stderr:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	var parsed struct {
		Files  int `json:"files"`
		Lost   int `json:"lost"`
		Gained int `json:"gained"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed.Files != 3 || parsed.Lost != 1 || parsed.Gained != 1 {
		t.Errorf("parsed = %+v, want 3 files, 1 lost, 1 gained", parsed)
	}
}

func TestRunDiff_SingleFile(t *testing.T) {
	original, test, _ := diffFixtures(t)

	var stdout bytes.Buffer
	err := runDiff(context.Background(), diffParams{
		original: original,
		test:     test,
		path:     "web/a.js",
		format:   "text",
		cfg:      noCacheConfig(),
		stdout:   &stdout,
		stderr:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	if got := stdout.String(); got != "Ownership hasn't changed!\n" {
		t.Errorf("output = %q", got)
	}

	stdout.Reset()
	err = runDiff(context.Background(), diffParams{
		original: original,
		test:     test,
		path:     "api/main.go",
		format:   "text",
		cfg:      noCacheConfig(),
		stdout:   &stdout,
		stderr:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("runDiff: %v", err)
	}
	if !strings.Contains(stdout.String(), "- #backend") || !strings.Contains(stdout.String(), "+ #web") {
		t.Errorf("expected owner change, got:\n%s", stdout.String())
	}
}

// ---------------------------------------------------------------------------
// runLint tests
// ---------------------------------------------------------------------------

func TestRunLint_Failures(t *testing.T) {
	input := writeFixture(t, t.TempDir(), "CODEOWNERS", "@web alice\n/web/ @web\n/api/ @ghost\n")

	var stdout bytes.Buffer
	err := runLint(context.Background(), lintParams{input: input, stdout: &stdout})
	if err == nil {
		t.Fatal("expected lint to fail")
	}
	if !strings.Contains(stdout.String(), "line 3:") {
		t.Errorf("expected failure on line 3, got:\n%s", stdout.String())
	}
}

func TestRunLint_Warnings(t *testing.T) {
	dir := t.TempDir()
	input := writeFixture(t, dir, "CODEOWNERS", "@web alice\n@idle bob\n/web/ @web\n/old/ @web\n")

	var stdout bytes.Buffer
	err := runLint(context.Background(), lintParams{
		input:  input,
		files:  &fileSource{list: "-", stdin: strings.NewReader(sampleFiles)},
		stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("warnings alone should not fail lint: %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, `no files matched for pattern "/old/"`) {
		t.Errorf("expected unmatched pattern warning, got:\n%s", out)
	}
	if !strings.Contains(out, `team "idle" is never referenced`) {
		t.Errorf("expected unused team warning, got:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// schema
// ---------------------------------------------------------------------------

func TestSchemaCmd(t *testing.T) {
	for _, kind := range []string{"diff", "compress"} {
		cmd := newSchemaCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--kind", kind})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("schema --kind %s: %v", kind, err)
		}
		var parsed map[string]any
		if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
			t.Errorf("schema --kind %s is not valid JSON: %v", kind, err)
		}
	}
}

func TestGatherFiles_Stdin(t *testing.T) {
	files, err := gatherFiles(context.Background(), fileSource{list: "-", stdin: strings.NewReader("# comment\na\n\nb/c\n")})
	if err != nil {
		t.Fatalf("gatherFiles: %v", err)
	}
	if len(files) != 2 || files[0] != "a" || files[1] != "b/c" {
		t.Errorf("files = %v", files)
	}
}

func TestInitCmd(t *testing.T) {
	t.Chdir(t.TempDir())
	cmd := newInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(config.FileName); err != nil {
		t.Errorf("expected %s to be written: %v", config.FileName, err)
	}
	if !strings.Contains(out.String(), "created:") {
		t.Errorf("unexpected init output:\n%s", out.String())
	}
}
