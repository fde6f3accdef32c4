// Package gitops is the version-control collaborator: branch and commit
// calls over the project working tree. Both operations are idempotent:
// repeating a call with identical arguments is a recorded no-op, which is
// what makes them safe to retry through the recovery manager.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

// Service wraps one repository. Calls are issued by the single orchestration
// loop, so there is no internal locking.
type Service struct {
	repo    *git.Repository
	workDir string
	author  object.Signature
	rec     *recovery.Manager
	logger  *zap.Logger

	clock func() object.Signature
}

// Open opens the repository at cfg workDir, initializing one if the
// directory is not yet under version control.
func Open(workDir string, cfg config.VCSConfig, rec *recovery.Manager, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo, err := git.PlainOpen(workDir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(workDir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Service{
		repo:    repo,
		workDir: workDir,
		author:  object.Signature{Name: cfg.AuthorName, Email: cfg.AuthorEmail},
		rec:     rec,
		logger:  logger,
	}, nil
}

// Branch checks out name, creating it from HEAD if it does not exist.
// Calling it again for the current branch is a no-op.
func (s *Service) Branch(ctx context.Context, name string) error {
	return s.rec.Execute(ctx, recovery.ClassCommit, func(ctx context.Context) error {
		ref := plumbing.NewBranchReferenceName(name)

		if head, err := s.repo.Head(); err == nil && head.Name() == ref {
			return nil
		}

		wt, err := s.repo.Worktree()
		if err != nil {
			return recovery.MarkResource(fmt.Errorf("worktree: %w", err))
		}

		_, err = s.repo.Reference(ref, true)
		create := errors.Is(err, plumbing.ErrReferenceNotFound)

		if err := wt.Checkout(&git.CheckoutOptions{Branch: ref, Create: create}); err != nil {
			return recovery.MarkResource(fmt.Errorf("checkout %s: %w", name, err))
		}
		s.logger.Info("switched branch", zap.String("branch", name), zap.Bool("created", create))
		return nil
	}, nil)
}

// Commit stages everything and records a commit with message. A clean tree
// means the content is already committed: the call returns the current HEAD
// hash without creating a second commit.
func (s *Service) Commit(ctx context.Context, message string) (string, error) {
	var hash string
	err := s.rec.Execute(ctx, recovery.ClassCommit, func(ctx context.Context) error {
		var err error
		hash, err = s.commitOnce(message)
		return err
	}, &recovery.Options{
		AlreadyApplied: func(ctx context.Context) (bool, error) {
			return s.committed(message)
		},
		Rollback: func(ctx context.Context) error {
			return s.resetHard()
		},
	})
	return hash, err
}

func (s *Service) commitOnce(message string) (string, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return "", recovery.MarkResource(fmt.Errorf("worktree: %w", err))
	}

	status, err := wt.Status()
	if err != nil {
		return "", recovery.MarkResource(fmt.Errorf("status: %w", err))
	}
	if status.IsClean() {
		head, err := s.repo.Head()
		if err != nil {
			return "", recovery.MarkResource(fmt.Errorf("head: %w", err))
		}
		s.logger.Debug("nothing to commit", zap.String("head", head.Hash().String()))
		return head.Hash().String(), nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", recovery.MarkResource(fmt.Errorf("stage changes: %w", err))
	}

	sig := s.signature()
	commit, err := wt.Commit(message, &git.CommitOptions{Author: &sig})
	if err != nil {
		return "", recovery.MarkResource(fmt.Errorf("commit: %w", err))
	}

	s.logger.Info("committed", zap.String("hash", commit.String()), zap.String("message", message))
	return commit.String(), nil
}

// committed reports whether HEAD already carries message over a clean tree,
// the idempotency check used before any commit retry.
func (s *Service) committed(message string) (bool, error) {
	wt, err := s.repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	if !status.IsClean() {
		return false, nil
	}
	head, err := s.repo.Head()
	if err != nil {
		return false, nil
	}
	obj, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return false, err
	}
	return obj.Message == message, nil
}

// resetHard drops staged and unstaged changes, restoring HEAD's tree.
func (s *Service) resetHard() error {
	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	head, err := s.repo.Head()
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.Warn("rolled back working tree", zap.String("head", head.Hash().String()))
	return nil
}

// Head returns the current HEAD hash, or empty on an unborn branch.
func (s *Service) Head() string {
	head, err := s.repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

func (s *Service) signature() object.Signature {
	if s.clock != nil {
		return s.clock()
	}
	sig := s.author
	sig.When = time.Now()
	return sig
}

// ensureRemote registers a remote when pushing PRs; kept separate so local
// runs never touch remote config.
func (s *Service) ensureRemote(name, url string) error {
	_, err := s.repo.Remote(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, git.ErrRemoteNotFound) {
		return err
	}
	_, err = s.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	return err
}
