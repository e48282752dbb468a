// Package ghrepo reads and writes the translation file of a GitHub
// repository: file contents per branch, branch creation, commits through the
// contents API and pull requests.
package ghrepo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/garbanzo-i18n/garbanzo/httpclient"
)

// Errors returned for conditions callers usually tolerate.
var (
	ErrNotFound          = errors.New("not found")
	ErrBranchExists      = errors.New("branch already exists")
	ErrPullRequestExists = errors.New("pull request already exists")
)

// Options configures a Client.
type Options struct {
	Owner string
	Repo  string
	Token string
	// BaseURL is the GitHub Enterprise API URL. Empty means github.com.
	BaseURL string
	// Proxy overrides HTTP_PROXY / HTTPS_PROXY.
	Proxy   string
	Timeout time.Duration
	// HTTPClient replaces the default transport. The token is still applied.
	HTTPClient *http.Client
}

// Client is a repository collaborator bound to one owner/repo.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// New creates a Client. The context is only used to build the OAuth2
// transport.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("repository owner and name are required")
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpclient.New(opts.Proxy, opts.Timeout)
	}
	if opts.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(ctx, ts)
	}

	gh := github.NewClient(hc)
	if opts.BaseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.BaseURL, err)
		}
	}

	return &Client{gh: gh, owner: opts.Owner, repo: opts.Repo}, nil
}

// FullName returns "owner/repo".
func (c *Client) FullName() string {
	return c.owner + "/" + c.repo
}

// GetFile returns the content and blob SHA of path on branch.
func (c *Client) GetFile(ctx context.Context, branch, path string) ([]byte, string, error) {
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, "", wrap(err, "getting %s@%s", path, branch)
	}
	if file == nil {
		return nil, "", fmt.Errorf("getting %s@%s: path is a directory", path, branch)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s@%s: %w", path, branch, err)
	}
	return []byte(content), file.GetSHA(), nil
}

// BranchSHA returns the commit SHA the branch points to.
func (c *Client) BranchSHA(ctx context.Context, branch string) (string, error) {
	ref, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+branch)
	if err != nil {
		return "", wrap(err, "getting ref of %s", branch)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("getting ref of %s: empty SHA", branch)
	}
	return sha, nil
}

// CreateBranch creates branch name at sha. An existing branch yields
// ErrBranchExists.
func (c *Client) CreateBranch(ctx context.Context, name, sha string) error {
	_, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.Ptr(sha)},
	})
	if err == nil {
		return nil
	}
	if hasStatus(err, http.StatusUnprocessableEntity) {
		return fmt.Errorf("creating branch %s: %w", name, ErrBranchExists)
	}
	return wrap(err, "creating branch %s", name)
}

// UpdateFile commits content to path on branch. sha is the blob SHA of the
// file being replaced; an empty sha creates the file.
func (c *Client) UpdateFile(ctx context.Context, branch, path string, content []byte, sha, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}
	var err error
	if sha == "" {
		_, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		opts.SHA = github.Ptr(sha)
		_, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return wrap(err, "committing %s@%s", path, branch)
	}
	return nil
}

// CreatePullRequest opens a pull request from head into base and returns
// its URL. When one is already open, its URL is returned together with
// ErrPullRequestExists.
func (c *Client) CreatePullRequest(ctx context.Context, head, base, title string) (string, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err == nil {
		return pr.GetHTMLURL(), nil
	}
	if !hasStatus(err, http.StatusUnprocessableEntity) {
		return "", wrap(err, "opening pull request %s -> %s", head, base)
	}

	open, _, listErr := c.gh.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  c.owner + ":" + head,
		Base:  base,
	})
	if listErr == nil && len(open) > 0 {
		return open[0].GetHTMLURL(), fmt.Errorf("opening pull request %s -> %s: %w", head, base, ErrPullRequestExists)
	}
	return "", wrap(err, "opening pull request %s -> %s", head, base)
}

func hasStatus(err error, code int) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == code
}

// wrap adds context to err and maps 404 responses to ErrNotFound.
func wrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w", msg, errors.Join(ErrNotFound, err))
	}
	return fmt.Errorf("%s: %w", msg, err)
}
