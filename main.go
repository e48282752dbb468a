// garbanzo keeps JSON translation keys in sync across git branches and a
// translation-management server.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garbanzo-i18n/garbanzo/config"
	"github.com/garbanzo-i18n/garbanzo/ghrepo"
	"github.com/garbanzo-i18n/garbanzo/i18n"
	"github.com/garbanzo-i18n/garbanzo/lockfile"
	"github.com/garbanzo-i18n/garbanzo/merge"
	"github.com/garbanzo-i18n/garbanzo/partition"
	"github.com/garbanzo-i18n/garbanzo/pipeline"
	"github.com/garbanzo-i18n/garbanzo/server"
	"github.com/garbanzo-i18n/garbanzo/settings"
	"github.com/garbanzo-i18n/garbanzo/transcode"
	"github.com/garbanzo-i18n/garbanzo/tree"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

// logWarning and logError become workflow annotations inside GitHub Actions.
func logWarning(format string, args ...any) {
	if action.enabled {
		action.warningf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	if action.enabled {
		action.errorf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

func logDebug(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir string
	verbose bool
)

// errDifferences makes `garbanzo diff --exit-code` exit 1 without a message.
var errDifferences = errors.New("differences found")

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "garbanzo",
		Short: "Keep JSON translation keys in sync across branches and a translation server",
		Long: `garbanzo keeps JSON translation keys in sync.

A translation file holds a "base" partition and numbered variant partitions,
each mapping language codes to nested translation keys. garbanzo adds the
keys one copy lacks from another without ever overwriting existing values.

Workflow commands (usable as GitHub Actions steps):
  update-branches  Merge missing keys into branches and open pull requests
  update-server    Push missing keys to the translation server
  sort             Sort a translation file recursively
  download         Print the translation file of a branch

Offline commands:
  status           Show the detected translation file and settings
  merge            Merge missing keys of one file into another
  diff             Show the keys one file lacks from another
  transcode        Convert between named-key and key/value list shapes
  auth             Manage stored tokens`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			i18n.Init("")
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log HTTP retries and other details")

	root.AddCommand(
		newStatusCmd(),
		newUpdateBranchesCmd(),
		newUpdateServerCmd(),
		newSortCmd(),
		newDownloadCmd(),
		newMergeCmd(),
		newDiffCmd(),
		newTranscodeCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errDifferences) {
			logError("%v", err)
		}
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("garbanzo version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Configuration precedence: flag > action input > environment > file
// ---------------------------------------------------------------------------

// resolve returns the value of flag when it was set on the command line,
// then the action input, then the environment variable, then fallback.
// Empty input or env names are skipped.
func resolve(cmd *cobra.Command, flag, input, env, fallback string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return f.Value.String()
	}
	if v := action.input(input); v != "" {
		return v
	}
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return fallback
}

func resolveBool(cmd *cobra.Command, flag, input string, fallback bool) bool {
	v := resolve(cmd, flag, input, "", strconv.FormatBool(fallback))
	b, err := strconv.ParseBool(v)
	if err != nil {
		logWarning(i18n.T("Ignoring invalid boolean %q for %s"), v, flag)
		return fallback
	}
	return b
}

// loadConfig reads .garbanzo.yaml from the project root and applies the
// command's flags and action inputs on top of it.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}

	sourceFollowsFile := cfg.SourcePath == cfg.FilePath
	cfg.FilePath = resolve(cmd, "file-path", "file-path", "", cfg.FilePath)
	if sourceFollowsFile {
		cfg.SourcePath = cfg.FilePath
	}
	cfg.SourcePath = resolve(cmd, "source", "source-path", "", cfg.SourcePath)
	cfg.SecretSuffix = resolve(cmd, "secret-suffix", "secret-suffix", "", cfg.SecretSuffix)
	cfg.BranchSuffix = resolve(cmd, "branch-suffix", "branch-suffix", "", cfg.BranchSuffix)
	cfg.CommitMessage = resolve(cmd, "commit-message", "commit-message", "", cfg.CommitMessage)
	cfg.Scope = resolve(cmd, "scope", "scope", "", cfg.Scope)
	cfg.Sort = resolveBool(cmd, "sort", "sort", cfg.Sort)
	cfg.TrackUpdates = resolveBool(cmd, "track-updates", "track-updates", cfg.TrackUpdates)
	cfg.Server.Endpoint = resolve(cmd, "endpoint", "endpoint", "GARBANZO_ENDPOINT", cfg.Server.Endpoint)
	cfg.Server.QueryParams = resolve(cmd, "query-params", "query-params", "", cfg.Server.QueryParams)
	cfg.BackupPath = resolve(cmd, "backup-path", "backup-file-path", "", cfg.BackupPath)
	if v := resolve(cmd, "max-concurrent", "max-concurrent", "", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid max-concurrent %q", v)
		}
		cfg.MaxConcurrent = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readArg returns s, or the content of the file s names when it starts
// with "@".
func readArg(s string) ([]byte, error) {
	if name, ok := strings.CutPrefix(s, "@"); ok {
		return os.ReadFile(name)
	}
	return []byte(s), nil
}

// loadBranches reads branch descriptors from the secrets context, the app
// info or the config file, in that order.
func loadBranches(cmd *cobra.Command, cfg *config.File) ([]config.Branch, error) {
	var (
		branches []config.Branch
		skipped  []error
		err      error
	)
	if raw := resolve(cmd, "secrets-context", "secrets-context", "", ""); raw != "" {
		data, rerr := readArg(raw)
		if rerr != nil {
			return nil, rerr
		}
		branches, skipped, err = config.ParseSecretsContext(data, cfg.SecretSuffix)
	} else if raw := resolve(cmd, "app-info", "app-info", "", ""); raw != "" {
		data, rerr := readArg(raw)
		if rerr != nil {
			return nil, rerr
		}
		branches, skipped, err = config.ParseAppInfo(data)
	} else {
		branches = cfg.Branches
	}
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		logWarning(i18n.T("Skipping branch descriptor: %v"), s)
	}
	for _, b := range branches {
		action.mask(b.ServiceToken)
		action.mask(b.BearerToken)
		if bad := partition.CheckLanguageCodes(b.Languages); len(bad) > 0 {
			logWarning(i18n.T("Branch %s lists invalid language codes: %s"), b.Name, strings.Join(bad, ", "))
		}
	}
	return branches, nil
}

func currentBranch(cmd *cobra.Command) string {
	return resolve(cmd, "branch", "current-branch", "", action.currentBranch())
}

func loadSource(cfg *config.File) (tree.Value, error) {
	return tree.ParseFile(cfg.AbsSourcePath(rootDir))
}

// ---------------------------------------------------------------------------
// GitHub repository client
// ---------------------------------------------------------------------------

type repoFlags struct {
	owner   string
	repo    string
	token   string
	apiURL  string
	proxy   string
	timeout time.Duration
}

func (f *repoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "Repository owner (default: from config or GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&f.repo, "repo", "", "Repository name (default: from config or GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&f.token, "token", "", "GitHub token (default: GARBANZO_TOKEN, GITHUB_TOKEN or stored token)")
	cmd.Flags().StringVar(&f.apiURL, "api-url", "", "GitHub Enterprise API URL")
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "HTTP proxy URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 60*time.Second, "HTTP request timeout")
}

func (f *repoFlags) client(ctx context.Context, cmd *cobra.Command, cfg *config.File) (*ghrepo.Client, error) {
	envOwner, envRepo := action.repository()
	owner := resolve(cmd, "owner", "owner", "", cfg.Owner)
	repo := resolve(cmd, "repo", "repo", "", cfg.Repo)
	if owner == "" && repo == "" {
		owner, repo = envOwner, envRepo
	}
	if owner == "" || repo == "" {
		return nil, errors.New(i18n.T("repository is not set: use --owner and --repo, or set owner and repo in .garbanzo.yaml"))
	}

	apiURL := resolve(cmd, "api-url", "api-url", "GITHUB_API_URL", cfg.APIURL)
	host := apiHost(apiURL)
	if host == "" {
		apiURL = ""
	}
	token := settings.ResolveToken(host, resolve(cmd, "token", "token", "", ""))
	if token == "" {
		return nil, errors.New(i18n.T("no GitHub token: use --token, set GITHUB_TOKEN or run 'garbanzo auth login'"))
	}
	if apiURL == "" {
		if info := settings.Get(settings.GitHubID(host)); info != nil {
			apiURL = info.BaseURL
		}
	}
	action.mask(token)

	return ghrepo.New(ctx, ghrepo.Options{
		Owner:   owner,
		Repo:    repo,
		Token:   token,
		BaseURL: apiURL,
		Proxy:   f.proxy,
		Timeout: f.timeout,
	})
}

// apiHost returns the host of a GitHub Enterprise API URL, or "" for
// github.com and empty URLs.
func apiHost(apiURL string) string {
	if apiURL == "" {
		return ""
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if settings.GitHubID(u.Host) == settings.GitHubID("") {
		return ""
	}
	return u.Host
}

func pipelineOptions(cfg *config.File, dryRun bool) pipeline.Options {
	return pipeline.Options{
		Config:  cfg,
		DryRun:  dryRun,
		OnLog:   logInfo,
		OnError: logError,
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the detected translation file and settings",
		Long: `Show the translation file found in the project root, its partitions
and languages, the effective settings and the lock file summary. Does not
modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootDir)
			if err != nil {
				return err
			}
			proj := config.Detect(rootDir)

			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Project"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", i18n.T("Root:"), proj.Root)
			if !proj.Found() {
				fmt.Fprintf(os.Stderr, "  %-16s %s%s%s\n", i18n.T("File:"), colorRed, i18n.T("not found"), colorReset)
			} else {
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", i18n.T("File:"), proj.FilePath)
				fmt.Fprintf(os.Stderr, "  %-16s %v\n", i18n.T("Base:"), proj.HasBase)
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", i18n.T("Variants:"), joinOrNone(proj.Variants))
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", i18n.T("Languages:"), joinOrNone(proj.Languages))
			}

			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Settings"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", "file_path:", cfg.FilePath)
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", "source_path:", cfg.SourcePath)
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", "scope:", cfg.Scope)
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", "branch_suffix:", cfg.BranchSuffix)
			fmt.Fprintf(os.Stderr, "  %-16s %d\n", "branches:", len(cfg.Branches))
			if cfg.Server.Endpoint != "" {
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", "server:", cfg.Server.Endpoint)
			}

			if lf, err := lockfile.Load(rootDir); err == nil {
				fmt.Fprintf(os.Stderr, "  %-16s %s\n", lockfile.LockFileName+":", lf.Summary())
			}
			fmt.Fprintln(os.Stderr)
			return nil
		},
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// ---------------------------------------------------------------------------
// update-branches
// ---------------------------------------------------------------------------

func newUpdateBranchesCmd() *cobra.Command {
	var (
		rf     repoFlags
		only   []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "update-branches",
		Short: "Merge missing keys into branches and open pull requests",
		Long: `Merge the keys of the local source file that each branch's translation
file lacks. Existing values are never overwritten. The result is committed
to "<prefix><suffix>" (prefix is the branch name up to the first "/") and a
pull request into the branch is opened.

Branches come from --secrets-context (entries ending with --secret-suffix),
--app-info, or the branches list of .garbanzo.yaml.

Examples:
  garbanzo update-branches --secrets-context @secrets.json
  garbanzo update-branches --branch main --branch develop --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			branches, err := loadBranches(cmd, cfg)
			if err != nil {
				return err
			}
			if len(only) > 0 {
				branches = selectBranches(branches, only)
			}
			if len(branches) == 0 {
				logWarning(i18n.T("No branches to update"))
				return nil
			}

			source, err := loadSource(cfg)
			if err != nil {
				return err
			}
			repo, err := rf.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}

			logInfo(i18n.N("Updating %d branch of %s", "Updating %d branches of %s", len(branches)), len(branches), repo.FullName())
			results, err := pipeline.UpdateBranches(cmd.Context(), repo, source, branches, pipelineOptions(cfg, dryRun))
			reportBranches(results)
			if err != nil {
				// Each failure was already logged.
				failed := 0
				for _, r := range results {
					if r.Status == pipeline.StatusFailed {
						failed++
					}
				}
				return fmt.Errorf(i18n.N("%d branch failed", "%d branches failed", failed), failed)
			}
			return nil
		},
	}

	rf.register(cmd)
	addFileFlags(cmd)
	cmd.Flags().String("secrets-context", "", "JSON secrets context, or @file")
	cmd.Flags().String("secret-suffix", "", "Suffix of secrets holding branch descriptors (default "+config.DefaultSecretSuffix+")")
	cmd.Flags().String("app-info", "", "JSON array of branch descriptors, or @file")
	cmd.Flags().String("branch-suffix", "", "Suffix of work branches (default "+config.DefaultBranchSuffix+")")
	cmd.Flags().String("commit-message", "", "Commit message")
	cmd.Flags().String("scope", "", "Partitions to merge: all or base")
	cmd.Flags().Bool("sort", false, "Sort the merged file recursively")
	cmd.Flags().Int("max-concurrent", 0, "Branches processed at the same time")
	cmd.Flags().StringSliceVar(&only, "branch", nil, "Only update these branches")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute changes without writing")

	return cmd
}

func addFileFlags(cmd *cobra.Command) {
	cmd.Flags().String("file-path", "", "Translation file path in the repository (default "+config.DefaultFilePath+")")
	cmd.Flags().String("source", "", "Local source translation file (default: file-path under --root)")
}

func selectBranches(branches []config.Branch, names []string) []config.Branch {
	var out []config.Branch
	for _, name := range names {
		if b, ok := config.FindBranch(branches, name); ok {
			out = append(out, b)
		} else {
			out = append(out, config.Branch{Name: name})
		}
	}
	return out
}

func reportBranches(results []pipeline.BranchResult) {
	var prs, updated []string
	var summary strings.Builder
	summary.WriteString("| Branch | Status | Pull request |\n|---|---|---|\n")

	for _, r := range results {
		switch r.Status {
		case pipeline.StatusUpdated:
			logSuccess(i18n.T("%s: %d keys added, %s"), r.Branch, r.Added, r.PullRequest)
			prs = append(prs, r.PullRequest)
			updated = append(updated, r.Branch)
		case pipeline.StatusDryRun:
			logInfo(i18n.T("%s: would add %d keys via %s"), r.Branch, r.Added, r.WorkBranch)
		case pipeline.StatusUnchanged:
			logInfo(i18n.T("%s: up to date"), r.Branch)
		}
		fmt.Fprintf(&summary, "| %s | %s | %s |\n", r.Branch, r.Status, r.PullRequest)
	}

	action.setOutput("updated-branches", strings.Join(updated, "\n"))
	action.setOutput("pull-requests", strings.Join(prs, "\n"))
	action.summary(summary.String())
}

// ---------------------------------------------------------------------------
// update-server
// ---------------------------------------------------------------------------

func newUpdateServerCmd() *cobra.Command {
	var (
		serviceToken string
		bearerToken  string
		proxy        string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "update-server",
		Short: "Push missing keys to the translation server",
		Long: `Download the translation server's store for the current branch, compare it
with the local source file and push the keys the server lacks. Values the
server already has are never overwritten, unless --track-updates is set and
the local value changed since the last push (recorded in garbanzo.lock).

Tokens come from the branch descriptor (--secrets-context or --app-info),
from --service-token/--bearer-token, or from 'garbanzo auth login --branch'.

Examples:
  garbanzo update-server --branch develop --endpoint https://tm.example.com/api/features/42
  garbanzo update-server --app-info @apps.json --query-params files=true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			name := currentBranch(cmd)
			if name == "" {
				return errors.New(i18n.T("current branch is not set: use --branch"))
			}
			if cfg.Server.Endpoint == "" {
				return errors.New(i18n.T("server endpoint is not set: use --endpoint or server.endpoint in .garbanzo.yaml"))
			}

			branches, err := loadBranches(cmd, cfg)
			if err != nil {
				return err
			}
			branch, ok := config.FindBranch(branches, name)
			if !ok {
				if len(branches) > 0 {
					logWarning(i18n.T("No descriptor for branch %s, nothing to push"), name)
					return nil
				}
				branch = config.Branch{Name: name}
			}
			if serviceToken != "" {
				branch.ServiceToken = serviceToken
			}
			if bearerToken != "" {
				branch.BearerToken = bearerToken
			}
			if !branch.HasServerTokens() {
				if svc, bearer, ok := settings.GetServiceTokens(name); ok {
					branch.ServiceToken, branch.BearerToken = svc, bearer
				}
			}
			action.mask(branch.ServiceToken)
			action.mask(branch.BearerToken)

			timeout, err := cfg.ServerTimeout()
			if err != nil {
				return err
			}
			var onRetry func(string, ...any)
			if verbose {
				onRetry = logDebug
			}
			srv, err := server.New(server.Options{
				Endpoint:     cfg.Server.Endpoint,
				ServiceToken: branch.ServiceToken,
				BearerToken:  branch.BearerToken,
				RetryMax:     cfg.Server.RetryMax,
				Timeout:      timeout,
				Proxy:        proxy,
				OnLog:        onRetry,
			})
			if err != nil {
				return err
			}

			source, err := loadSource(cfg)
			if err != nil {
				return err
			}

			opts := pipeline.PushOptions{
				Options:    pipelineOptions(cfg, dryRun),
				Branch:     branch,
				Query:      cfg.Server.QueryParams,
				BackupPath: cfg.AbsBackupPath(rootDir),
			}
			var lock *lockfile.LockFile
			if cfg.TrackUpdates {
				if lock, err = lockfile.Load(rootDir); err != nil {
					return err
				}
				opts.Lock = lock
				opts.LockTarget = lockfile.TargetKey(name, cfg.FilePath)
			}

			logInfo(i18n.T("Comparing %s with the server store of %s"), cfg.SourcePath, name)
			res, err := pipeline.PushToServer(cmd.Context(), srv, source, opts)
			if err != nil {
				return err
			}
			if lock != nil && !dryRun {
				if err := lock.Save(); err != nil {
					return err
				}
			}

			if res.Pushed {
				logSuccess(i18n.T("Server store of %s updated"), name)
			}
			action.setOutput("pushed", strconv.FormatBool(res.Pushed))
			if payload, err := tree.Marshal(res.Payload); err == nil {
				action.setOutput("diff", string(payload))
			}
			return nil
		},
	}

	addFileFlags(cmd)
	cmd.Flags().String("branch", "", "Current branch (default: from the GitHub Actions environment)")
	cmd.Flags().String("endpoint", "", "Translation server endpoint (default: GARBANZO_ENDPOINT or server.endpoint)")
	cmd.Flags().String("query-params", "", "Query appended to the push request")
	cmd.Flags().String("backup-path", "", "Write the server store to this file")
	cmd.Flags().String("secrets-context", "", "JSON secrets context, or @file")
	cmd.Flags().String("secret-suffix", "", "Suffix of secrets holding branch descriptors (default "+config.DefaultSecretSuffix+")")
	cmd.Flags().String("app-info", "", "JSON array of branch descriptors, or @file")
	cmd.Flags().Bool("track-updates", false, "Also push values changed since the last push")
	cmd.Flags().StringVar(&serviceToken, "service-token", "", "Server service token")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", "", "Server bearer token")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP proxy URL")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the diff without pushing")

	return cmd
}

// ---------------------------------------------------------------------------
// sort
// ---------------------------------------------------------------------------

func newSortCmd() *cobra.Command {
	var (
		rf       repoFlags
		doCommit bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Sort a translation file recursively",
		Long: `Sort the keys of the local source file at every depth. Arrays keep their
order. With --commit the sorted file is committed to --branch instead of
being written locally; the commit message skips CI.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := pipeline.SortOptions{
				Options: pipelineOptions(cfg, dryRun),
				Path:    cfg.AbsSourcePath(rootDir),
			}

			var repo pipeline.Repository
			if resolveBool(cmd, "commit", "commit", doCommit) {
				opts.Branch = currentBranch(cmd)
				client, err := rf.client(cmd.Context(), cmd, cfg)
				if err != nil {
					return err
				}
				repo = client
			}

			changed, err := pipeline.SortFile(cmd.Context(), repo, opts)
			if err != nil {
				return err
			}
			action.setOutput("sorted", strconv.FormatBool(changed))
			return nil
		},
	}

	rf.register(cmd)
	addFileFlags(cmd)
	cmd.Flags().String("branch", "", "Branch to commit to (default: from the GitHub Actions environment)")
	cmd.Flags().BoolVar(&doCommit, "commit", false, "Commit the sorted file to the repository")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without writing")

	return cmd
}

// ---------------------------------------------------------------------------
// download
// ---------------------------------------------------------------------------

func newDownloadCmd() *cobra.Command {
	var (
		rf     repoFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Print the translation file of a branch",
		Long: `Fetch the translation file of a branch and print it indented. Inside
GitHub Actions it is also set as the downloaded-translations output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			branch := currentBranch(cmd)
			if branch == "" {
				return errors.New(i18n.T("current branch is not set: use --branch"))
			}
			repo, err := rf.client(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}
			data, err := pipeline.Download(cmd.Context(), repo, branch, pipelineOptions(cfg, false))
			if err != nil {
				return err
			}
			action.setOutput("downloaded-translations", strings.TrimSuffix(string(data), "\n"))
			return writeOutput(output, data)
		},
	}

	rf.register(cmd)
	cmd.Flags().String("file-path", "", "Translation file path in the repository (default "+config.DefaultFilePath+")")
	cmd.Flags().String("branch", "", "Branch to download from (default: from the GitHub Actions environment)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ---------------------------------------------------------------------------
// merge / diff / transcode (offline)
// ---------------------------------------------------------------------------

type offlineFlags struct {
	languages []string
	scope     string
	sort      bool
	output    string
}

// filterLanguages returns the languages to keep, or nil when --languages
// was not given.
func (f *offlineFlags) filterLanguages(cmd *cobra.Command) []string {
	if !cmd.Flags().Changed("languages") {
		return nil
	}
	langs := make([]string, 0, len(f.languages))
	for _, l := range f.languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if bad := partition.CheckLanguageCodes(langs); len(bad) > 0 {
		logWarning(i18n.T("Invalid language codes: %s"), strings.Join(bad, ", "))
	}
	return langs
}

func parseFiles(paths ...string) ([]tree.Value, error) {
	out := make([]tree.Value, len(paths))
	for i, p := range paths {
		v, err := tree.ParseFile(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newMergeCmd() *cobra.Command {
	var f offlineFlags
	var write bool

	cmd := &cobra.Command{
		Use:   "merge SOURCE TARGET",
		Short: "Merge missing keys of one file into another",
		Long: `Add the keys of SOURCE that TARGET lacks, keeping every existing value of
TARGET. The result is printed, or written back to TARGET with --write.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := parseFiles(args[0], args[1])
			if err != nil {
				return err
			}
			if f.scope != config.ScopeAll && f.scope != config.ScopeBase {
				return fmt.Errorf(i18n.T("invalid scope %q (want all or base)"), f.scope)
			}
			merged, mismatches := pipeline.Reconcile(files[0], files[1], f.filterLanguages(cmd), f.scope, f.sort)
			for _, m := range mismatches {
				logWarning("%v", m)
			}
			if write {
				if tree.Equal(merged, files[1]) && (!f.sort || tree.IsSorted(files[1])) {
					logInfo(i18n.T("%s is up to date"), args[1])
					return nil
				}
				if err := tree.WriteFile(args[1], merged); err != nil {
					return err
				}
				logSuccess(i18n.T("Updated %s"), args[1])
				return nil
			}
			data, err := tree.MarshalIndent(merged)
			if err != nil {
				return err
			}
			return writeOutput(f.output, data)
		},
	}

	cmd.Flags().StringSliceVarP(&f.languages, "languages", "l", nil, "Only merge these languages of base and variant partitions")
	cmd.Flags().StringVar(&f.scope, "scope", config.ScopeAll, "Partitions to merge: all or base")
	cmd.Flags().BoolVar(&f.sort, "sort", false, "Sort the result recursively")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result to TARGET")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func newDiffCmd() *cobra.Command {
	var f offlineFlags
	var exitCode bool

	cmd := &cobra.Command{
		Use:   "diff SOURCE TARGET",
		Short: "Show the keys one file lacks from another",
		Long: `Print the keys of SOURCE that TARGET lacks, as a JSON subset of SOURCE.
Differing values of keys present in both are not reported.

With --exit-code, exit with status 1 when keys are missing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := parseFiles(args[0], args[1])
			if err != nil {
				return err
			}
			source := files[0]
			if langs := f.filterLanguages(cmd); langs != nil {
				var mismatches []*partition.TypeMismatchError
				source, mismatches = partition.FilterLanguages(source, langs)
				for _, m := range mismatches {
					logWarning("%v", m)
				}
			}
			var result tree.Value = merge.Diff(source, files[1])
			if f.sort {
				result = tree.Sort(result)
			}
			data, err := tree.MarshalIndent(result)
			if err != nil {
				return err
			}
			if err := writeOutput(f.output, data); err != nil {
				return err
			}
			if exitCode && !merge.IsEmpty(tree.AsMapping(result)) {
				return errDifferences
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&f.languages, "languages", "l", nil, "Only compare these languages of base and variant partitions")
	cmd.Flags().BoolVar(&f.sort, "sort", false, "Sort the result recursively")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Exit with status 1 when keys are missing")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

func newTranscodeCmd() *cobra.Command {
	var (
		to     string
		output string
	)

	cmd := &cobra.Command{
		Use:   "transcode FILE",
		Short: "Convert between named-key and key/value list shapes",
		Long: `Convert a translation store between the named-key shape used in
repositories and the key/value list shape used by the translation server.

  --to named   {"base":..,"specific":{"12":..}} with [{key,value}] lists
               becomes {"base":..,"12":..} with nested keys
  --to kv      the reverse; "timestamp" is dropped`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := tree.ParseFile(args[0])
			if err != nil {
				return err
			}
			var out tree.Value
			switch to {
			case "named":
				if out, err = transcode.ToNamedKey(store); err != nil {
					return err
				}
			case "kv":
				out = transcode.ToKeyValue(store)
			default:
				return fmt.Errorf(i18n.T("invalid --to %q (want named or kv)"), to)
			}
			data, err := tree.MarshalIndent(out)
			if err != nil {
				return err
			}
			return writeOutput(output, data)
		},
	}

	cmd.Flags().StringVar(&to, "to", "named", "Target shape: named or kv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage stored tokens",
		Long: `Manage the tokens garbanzo stores in $XDG_DATA_HOME/garbanzo/auth.json.

GitHub tokens are stored per host; translation server tokens per branch.

Examples:
  garbanzo auth login                                  Paste a github.com token
  garbanzo auth login --host ghe.example.com --base-url https://ghe.example.com/api/v3/
  garbanzo auth login --branch develop --service-token S --bearer-token B
  garbanzo auth logout --branch develop                Remove one branch's server tokens
  garbanzo auth logout                                 Remove everything
  garbanzo auth list                                   Show stored tokens`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthListCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var host, token, baseURL, branch, serviceToken, bearerToken string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a GitHub token or translation server tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if branch != "" {
				if serviceToken == "" || bearerToken == "" {
					return errors.New(i18n.T("--service-token and --bearer-token are required with --branch"))
				}
				if err := settings.SetServiceTokens(branch, serviceToken, bearerToken); err != nil {
					return err
				}
				logSuccess(i18n.T("Server tokens for %s saved to %s"), branch, settings.FilePath())
				return nil
			}

			if token == "" {
				fmt.Fprint(os.Stderr, i18n.T("GitHub token: "))
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New(i18n.T("no token given"))
			}
			if err := settings.SetToken(host, token, baseURL); err != nil {
				return err
			}
			logSuccess(i18n.T("Token for %s saved to %s"), settings.GitHubID(host), settings.FilePath())
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "GitHub Enterprise host (default github.com)")
	cmd.Flags().StringVar(&token, "token", "", "GitHub token (default: read from stdin)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "GitHub Enterprise API URL for this host")
	cmd.Flags().StringVar(&branch, "branch", "", "Store translation server tokens for this branch")
	cmd.Flags().StringVar(&serviceToken, "service-token", "", "Server service token")
	cmd.Flags().StringVar(&bearerToken, "bearer-token", "", "Server bearer token")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	var host, branch string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored tokens",
		Long: `Remove the token of one host or branch. Without --host or --branch all
stored tokens are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case branch != "":
				if err := settings.Remove(settings.ServerID(branch)); err != nil {
					return err
				}
				logSuccess(i18n.T("Server tokens for %s removed"), branch)
			case cmd.Flags().Changed("host"):
				if err := settings.Remove(settings.GitHubID(host)); err != nil {
					return err
				}
				logSuccess(i18n.T("Token for %s removed"), settings.GitHubID(host))
			default:
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				logSuccess(i18n.T("All stored tokens removed"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "GitHub host whose token is removed")
	cmd.Flags().StringVar(&branch, "branch", "", "Branch whose server tokens are removed")

	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show stored tokens",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			fmt.Fprintf(os.Stderr, "\n%s%s%s\n", colorBlue, i18n.T("Stored Credentials"), colorReset)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			if len(store) == 0 {
				fmt.Fprintf(os.Stderr, "  %s%s%s\n", colorRed, i18n.T("none"), colorReset)
			}
			for _, id := range store.IDs() {
				info := store[id]
				switch {
				case info.IsToken():
					status := fmt.Sprintf("%s%s%s (%s)", colorGreen, i18n.T("token"), colorReset, settings.MaskKey(info.Token))
					if info.BaseURL != "" {
						status += fmt.Sprintf("\n  %24s endpoint: %s", "", info.BaseURL)
					}
					fmt.Fprintf(os.Stderr, "  %-24s %s\n", id, status)
				case info.IsService():
					fmt.Fprintf(os.Stderr, "  %-24s %s%s%s (service: %s, bearer: %s)\n", id,
						colorGreen, i18n.T("server tokens"), colorReset,
						settings.MaskKey(info.ServiceToken), settings.MaskKey(info.BearerToken))
				}
			}

			fmt.Fprintf(os.Stderr, "\n  %s%s%s\n", colorYellow, i18n.T("Environment Variables"), colorReset)
			for _, env := range settings.TokenEnvVars {
				if v := os.Getenv(env); v != "" {
					fmt.Fprintf(os.Stderr, "  %s: %s%s%s\n", env, colorGreen, settings.MaskKey(v), colorReset)
				} else {
					fmt.Fprintf(os.Stderr, "  %s: %s%s%s\n", env, colorRed, i18n.T("not set"), colorReset)
				}
			}
			fmt.Fprintln(os.Stderr)
		},
	}
}
