package gitops

import (
	"context"
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// PullRequests opens sprint review PRs against the configured repository.
type PullRequests struct {
	svc    *Service
	client *github.Client
	cfg    config.VCSConfig
	logger *zap.Logger
}

// NewPullRequests builds a GitHub client from the configured token.
func NewPullRequests(ctx context.Context, svc *Service, cfg config.VCSConfig, logger *zap.Logger) (*PullRequests, error) {
	if !cfg.GitHubToken.IsSet() {
		return nil, errors.New("github token not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken.Value()})
	return &PullRequests{
		svc:    svc,
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Open pushes branch and opens a pull request for it. An existing open PR
// for the same head is reused, keeping the call safe to repeat.
func (p *PullRequests) Open(ctx context.Context, branch, title, body string) (string, error) {
	var url string
	err := p.svc.rec.Execute(ctx, recovery.ClassCommit, func(ctx context.Context) error {
		if err := p.push(ctx, branch); err != nil {
			return err
		}

		existing, _, err := p.client.PullRequests.List(ctx, p.cfg.GitHubOwner, p.cfg.GitHubRepo, &github.PullRequestListOptions{
			Head:  fmt.Sprintf("%s:%s", p.cfg.GitHubOwner, branch),
			State: "open",
		})
		if err != nil {
			return recovery.MarkTransient(fmt.Errorf("list pull requests: %w", err))
		}
		if len(existing) > 0 {
			url = existing[0].GetHTMLURL()
			return nil
		}

		pr, _, err := p.client.PullRequests.Create(ctx, p.cfg.GitHubOwner, p.cfg.GitHubRepo, &github.NewPullRequest{
			Title: github.String(title),
			Body:  github.String(body),
			Head:  github.String(branch),
			Base:  github.String(p.cfg.BaseBranch),
		})
		if err != nil {
			return recovery.MarkTransient(fmt.Errorf("create pull request: %w", err))
		}
		url = pr.GetHTMLURL()
		p.logger.Info("opened pull request", zap.String("url", url))
		return nil
	}, nil)
	return url, err
}

func (p *PullRequests) push(ctx context.Context, branch string) error {
	remoteURL := fmt.Sprintf("https://github.com/%s/%s.git", p.cfg.GitHubOwner, p.cfg.GitHubRepo)
	if err := p.svc.ensureRemote("origin", remoteURL); err != nil {
		return recovery.MarkResource(fmt.Errorf("configure remote: %w", err))
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := p.svc.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth: &http.BasicAuth{
			Username: "x-access-token",
			Password: p.cfg.GitHubToken.Value(),
		},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	if err != nil {
		return recovery.MarkTransient(fmt.Errorf("push %s: %w", branch, err))
	}
	return nil
}
