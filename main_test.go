package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sethvargo/go-githubactions"
	"github.com/spf13/cobra"

	"github.com/garbanzo-i18n/garbanzo/config"
)

// withAction replaces the GitHub Actions environment for one test and
// returns the buffer workflow commands are written to.
func withAction(t *testing.T, env map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := action
	action = newActionEnv(func(k string) string { return env[k] }, githubactions.WithWriter(&buf))
	t.Cleanup(func() { action = old })
	return &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.Execute()
}

func TestResolvePrecedence(t *testing.T) {
	withAction(t, map[string]string{
		"GITHUB_ACTIONS":  "true",
		"INPUT_FILE-PATH": "from-input",
	})
	t.Setenv("GARBANZO_TEST_PATH", "from-env")

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("file-path", "", "")

	if got := resolve(cmd, "file-path", "file-path", "GARBANZO_TEST_PATH", "fallback"); got != "from-input" {
		t.Fatalf("input: got %q", got)
	}
	if got := resolve(cmd, "file-path", "other", "GARBANZO_TEST_PATH", "fallback"); got != "from-env" {
		t.Fatalf("env: got %q", got)
	}
	if got := resolve(cmd, "file-path", "", "", "fallback"); got != "fallback" {
		t.Fatalf("fallback: got %q", got)
	}
	if got := resolve(cmd, "missing-flag", "", "", "fallback"); got != "fallback" {
		t.Fatalf("unknown flag: got %q", got)
	}

	if err := cmd.Flags().Set("file-path", "from-flag"); err != nil {
		t.Fatal(err)
	}
	if got := resolve(cmd, "file-path", "file-path", "GARBANZO_TEST_PATH", "fallback"); got != "from-flag" {
		t.Fatalf("flag: got %q", got)
	}
}

func TestInputsIgnoredOutsideActions(t *testing.T) {
	withAction(t, map[string]string{"INPUT_SORT": "true"})
	cmd := &cobra.Command{Use: "x"}
	if resolveBool(cmd, "sort", "sort", false) {
		t.Fatal("input read although GITHUB_ACTIONS is not set")
	}
}

func TestResolveBool(t *testing.T) {
	withAction(t, map[string]string{"GITHUB_ACTIONS": "true", "INPUT_SORT": "true", "INPUT_COMMIT": "maybe"})
	cmd := &cobra.Command{Use: "x"}
	if !resolveBool(cmd, "sort", "sort", false) {
		t.Fatal("sort input not applied")
	}
	if resolveBool(cmd, "commit", "commit", false) {
		t.Fatal("invalid boolean should fall back")
	}
}

func TestActionOutputs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "output")
	buf := withAction(t, map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_OUTPUT":     out,
		"GITHUB_REPOSITORY": "acme/app",
		"GITHUB_REF_NAME":   "main",
	})

	action.setOutput("pushed", "true")
	if got := readFile(t, out); !strings.Contains(got, "pushed<<") || !strings.Contains(got, "true") {
		t.Fatalf("output file = %q", got)
	}

	action.mask("s3cret")
	if !strings.Contains(buf.String(), "::add-mask::s3cret") {
		t.Fatalf("mask not issued: %q", buf.String())
	}

	owner, repo := action.repository()
	if owner != "acme" || repo != "app" {
		t.Fatalf("repository = %s/%s", owner, repo)
	}
	if got := action.currentBranch(); got != "main" {
		t.Fatalf("currentBranch = %q", got)
	}
}

func TestActionDisabled(t *testing.T) {
	buf := withAction(t, map[string]string{"GITHUB_HEAD_REF": "feature/x"})

	// Without GITHUB_OUTPUT these must not panic.
	action.setOutput("k", "v")
	action.summary("# summary")
	action.mask("secret")
	if buf.Len() != 0 {
		t.Fatalf("commands written outside Actions: %q", buf.String())
	}
	if got := action.currentBranch(); got != "feature/x" {
		t.Fatalf("currentBranch = %q, want the pull request head", got)
	}
}

func TestReadArg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	writeFile(t, path, `{"a":"b"}`)

	data, err := readArg("@" + path)
	if err != nil || string(data) != `{"a":"b"}` {
		t.Fatalf("readArg(@file) = %q, %v", data, err)
	}
	data, err = readArg(`{"x":1}`)
	if err != nil || string(data) != `{"x":1}` {
		t.Fatalf("readArg(literal) = %q, %v", data, err)
	}
	if _, err := readArg("@" + filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("readArg of a missing file succeeded")
	}
}

func TestAPIHost(t *testing.T) {
	tests := map[string]string{
		"":                                "",
		"https://api.github.com":          "",
		"https://api.github.com/":         "",
		"https://ghe.example.com/api/v3/": "ghe.example.com",
		"not a url":                       "",
	}
	for in, want := range tests {
		if got := apiHost(in); got != want {
			t.Errorf("apiHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSelectBranches(t *testing.T) {
	branches := []config.Branch{
		{Name: "main", Languages: []string{"en"}},
		{Name: "dev"},
	}
	got := selectBranches(branches, []string{"main", "extra"})
	want := []config.Branch{
		{Name: "main", Languages: []string{"en"}},
		{Name: "extra"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("selectBranches() = %#v, want %#v", got, want)
	}
}

func TestJoinOrNone(t *testing.T) {
	if got := joinOrNone(nil); got != "-" {
		t.Fatalf("joinOrNone(nil) = %q", got)
	}
	if got := joinOrNone([]string{"en", "fr"}); got != "en, fr" {
		t.Fatalf("joinOrNone() = %q", got)
	}
}

func TestLoadConfigAppliesFlags(t *testing.T) {
	withAction(t, nil)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), "file_path: a.json\nscope: base\n")

	old := rootDir
	rootDir = dir
	t.Cleanup(func() { rootDir = old })

	cmd := &cobra.Command{Use: "x"}
	addFileFlags(cmd)
	cmd.Flags().String("scope", "", "")
	if err := cmd.Flags().Set("file-path", "b.json"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.FilePath != "b.json" || cfg.SourcePath != "b.json" {
		t.Errorf("paths = %q, %q, want b.json for both", cfg.FilePath, cfg.SourcePath)
	}
	if cfg.Scope != config.ScopeBase {
		t.Errorf("scope = %q, want base from the file", cfg.Scope)
	}

	if err := cmd.Flags().Set("scope", "everything"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Fatal("loadConfig accepted an unknown scope")
	}
}

func TestLoadBranchesFromSecretsContext(t *testing.T) {
	withAction(t, nil)
	secrets := filepath.Join(t.TempDir(), "secrets.json")
	writeFile(t, secrets, `{
		"MAIN_GARBANZO": "{\"branchName\":\"main\",\"selectedLanguages\":[\"en\",\"es\"]}",
		"BROKEN_GARBANZO": "[1]",
		"UNRELATED": "x"
	}`)

	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("secrets-context", "", "")
	if err := cmd.Flags().Set("secrets-context", "@"+secrets); err != nil {
		t.Fatal(err)
	}

	branches, err := loadBranches(cmd, config.Defaults())
	if err != nil {
		t.Fatalf("loadBranches: %v", err)
	}
	want := []config.Branch{{Name: "main", Languages: []string{"en", "es"}}}
	if !reflect.DeepEqual(branches, want) {
		t.Fatalf("branches = %#v, want %#v", branches, want)
	}
}

func TestMergeCommand(t *testing.T) {
	withAction(t, nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "source.json")
	dst := filepath.Join(dir, "target.json")
	out := filepath.Join(dir, "out.json")
	writeFile(t, src, `{"base":{"en":{"a":"A","b":"B"},"fr":{"a":"Afr"}}}`)
	writeFile(t, dst, `{"base":{"en":{"a":"kept"}}}`)

	if err := run(t, "merge", src, dst, "--languages", "en", "-o", out); err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := "{\n  \"base\": {\n    \"en\": {\n      \"a\": \"kept\",\n      \"b\": \"B\"\n    }\n  }\n}\n"
	if got := readFile(t, out); got != want {
		t.Fatalf("merge output =\n%s\nwant\n%s", got, want)
	}

	if err := run(t, "merge", src, dst, "--write"); err != nil {
		t.Fatalf("merge --write: %v", err)
	}
	if got := readFile(t, dst); !strings.Contains(got, `"fr"`) || !strings.Contains(got, `"kept"`) {
		t.Fatalf("target after --write =\n%s", got)
	}

	if err := run(t, "merge", src, dst, "--scope", "nope"); err == nil {
		t.Fatal("merge accepted an unknown scope")
	}
}

func TestDiffCommand(t *testing.T) {
	withAction(t, nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "source.json")
	dst := filepath.Join(dir, "target.json")
	out := filepath.Join(dir, "diff.json")
	writeFile(t, src, `{"base":{"en":{"a":"A","b":"B"}}}`)
	writeFile(t, dst, `{"base":{"en":{"a":"other"}}}`)

	err := run(t, "diff", src, dst, "--exit-code", "-o", out)
	if !errors.Is(err, errDifferences) {
		t.Fatalf("diff --exit-code error = %v", err)
	}
	want := "{\n  \"base\": {\n    \"en\": {\n      \"b\": \"B\"\n    }\n  }\n}\n"
	if got := readFile(t, out); got != want {
		t.Fatalf("diff output =\n%s", got)
	}

	if err := run(t, "diff", src, src, "--exit-code", "-o", out); err != nil {
		t.Fatalf("diff of identical files: %v", err)
	}
	if got := readFile(t, out); got != "{}\n" {
		t.Fatalf("empty diff output = %q", got)
	}
}

func TestTranscodeCommand(t *testing.T) {
	withAction(t, nil)
	dir := t.TempDir()
	in := filepath.Join(dir, "server.json")
	out := filepath.Join(dir, "named.json")
	writeFile(t, in, `{"base":{"en":[{"key":"k","value":"v"}]},"specific":{"7":{"en":[]}}}`)

	if err := run(t, "transcode", in, "--to", "named", "-o", out); err != nil {
		t.Fatalf("transcode: %v", err)
	}
	want := "{\n  \"base\": {\n    \"en\": {\n      \"k\": \"v\"\n    }\n  },\n  \"7\": {\n    \"en\": {}\n  }\n}\n"
	if got := readFile(t, out); got != want {
		t.Fatalf("transcode output =\n%s", got)
	}

	if err := run(t, "transcode", in, "--to", "xml"); err == nil {
		t.Fatal("transcode accepted an unknown shape")
	}
	writeFile(t, in, `{"base":{}}`)
	if err := run(t, "transcode", in, "--to", "named", "-o", out); err == nil {
		t.Fatal("transcode accepted a store without specific")
	}
}

func TestUpdateServerCommand(t *testing.T) {
	withAction(t, nil)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	var pushed []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-SERVICE-TOKEN") != "svc" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, `{"data":{"base":{"en":[{"key":"a","value":"A"}]},"specific":{}}}`)
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			pushed = append(pushed, r.URL.RawQuery+" "+string(body))
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFilePath), `{"base":{"en":{"a":"A","b":"B"},"es":{"a":"Aes"}}}`)
	backup := filepath.Join(dir, "backup.json")

	args := []string{
		"update-server", "--root", dir,
		"--branch", "develop",
		"--endpoint", srv.URL + "/features/1?env=dev",
		"--service-token", "svc", "--bearer-token", "bear",
		"--backup-path", backup,
	}
	if err := run(t, append(args, "--dry-run")...); err != nil {
		t.Fatalf("update-server --dry-run: %v", err)
	}
	if len(pushed) != 0 {
		t.Fatalf("dry run pushed %v", pushed)
	}

	if err := run(t, args...); err != nil {
		t.Fatalf("update-server: %v", err)
	}
	want := `env=dev {"specific":{},"base":{"en":[{"key":"b","value":"B"}],"es":[{"key":"a","value":"Aes"}]}}`
	if len(pushed) != 1 || pushed[0] != want {
		t.Fatalf("pushed = %v, want %s", pushed, want)
	}
	if got := readFile(t, backup); got != `{"base":{"en":{"a":"A"}}}` {
		t.Fatalf("backup = %s", got)
	}
}

func TestUpdateServerSkipsUnknownBranch(t *testing.T) {
	withAction(t, nil)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFilePath), `{}`)

	err := run(t, "update-server", "--root", dir,
		"--branch", "develop",
		"--endpoint", "http://127.0.0.1:1/never-called",
		"--app-info", `[{"branchName":"main","serviceToken":"s","bearerToken":"b"}]`)
	if err != nil {
		t.Fatalf("update-server for a branch without descriptor: %v", err)
	}
}

func TestAuthCommands(t *testing.T) {
	withAction(t, nil)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := run(t, "auth", "login", "--token", "ghp_1234567890"); err != nil {
		t.Fatalf("auth login: %v", err)
	}
	if err := run(t, "auth", "login", "--branch", "develop", "--service-token", "s", "--bearer-token", "b"); err != nil {
		t.Fatalf("auth login --branch: %v", err)
	}
	if err := run(t, "auth", "login", "--branch", "develop"); err == nil {
		t.Fatal("auth login --branch without tokens succeeded")
	}
	if err := run(t, "auth", "list"); err != nil {
		t.Fatalf("auth list: %v", err)
	}
	if err := run(t, "auth", "logout", "--branch", "develop"); err != nil {
		t.Fatalf("auth logout --branch: %v", err)
	}
	if err := run(t, "auth", "logout"); err != nil {
		t.Fatalf("auth logout: %v", err)
	}
}
