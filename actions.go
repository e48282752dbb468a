package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"
)

// actionEnv exposes the GitHub Actions runtime when garbanzo runs as a
// workflow step. Outside a workflow every method is a no-op.
type actionEnv struct {
	a       *githubactions.Action
	getenv  func(string) string
	enabled bool
}

var action = newActionEnv(os.Getenv)

func newActionEnv(getenv func(string) string, opts ...githubactions.Option) *actionEnv {
	enabled, _ := strconv.ParseBool(getenv("GITHUB_ACTIONS"))
	opts = append([]githubactions.Option{githubactions.WithGetenv(getenv)}, opts...)
	return &actionEnv{
		a:       githubactions.New(opts...),
		getenv:  getenv,
		enabled: enabled,
	}
}

// input returns the step input name, e.g. "file-path" reads
// INPUT_FILE-PATH.
func (e *actionEnv) input(name string) string {
	if !e.enabled || name == "" {
		return ""
	}
	return e.a.GetInput(name)
}

func (e *actionEnv) setOutput(name, value string) {
	if !e.enabled || e.getenv("GITHUB_OUTPUT") == "" {
		return
	}
	e.a.SetOutput(name, value)
}

func (e *actionEnv) mask(secret string) {
	if e.enabled && secret != "" {
		e.a.AddMask(secret)
	}
}

func (e *actionEnv) warningf(format string, args ...any) {
	e.a.Warningf(format, args...)
}

func (e *actionEnv) errorf(format string, args ...any) {
	e.a.Errorf(format, args...)
}

func (e *actionEnv) summary(markdown string) {
	if e.enabled && e.getenv("GITHUB_STEP_SUMMARY") != "" {
		e.a.AddStepSummary(markdown)
	}
}

// repository returns owner and name from GITHUB_REPOSITORY.
func (e *actionEnv) repository() (owner, repo string) {
	owner, repo, _ = strings.Cut(e.getenv("GITHUB_REPOSITORY"), "/")
	return owner, repo
}

// currentBranch returns the head branch of a pull request run, or the
// branch the workflow runs on.
func (e *actionEnv) currentBranch() string {
	if ref := e.getenv("GITHUB_HEAD_REF"); ref != "" {
		return ref
	}
	if e.getenv("GITHUB_REF_TYPE") == "tag" {
		return ""
	}
	return e.getenv("GITHUB_REF_NAME")
}
