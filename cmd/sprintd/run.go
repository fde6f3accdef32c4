package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/sprintd/internal/buildrun"
	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/contextstore"
	"github.com/fyrsmithlabs/sprintd/internal/embeddings"
	"github.com/fyrsmithlabs/sprintd/internal/engine"
	"github.com/fyrsmithlabs/sprintd/internal/gitops"
	"github.com/fyrsmithlabs/sprintd/internal/llm"
	"github.com/fyrsmithlabs/sprintd/internal/logging"
	"github.com/fyrsmithlabs/sprintd/internal/policy"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
	"github.com/fyrsmithlabs/sprintd/internal/secrets"
	"github.com/fyrsmithlabs/sprintd/internal/server"
	"github.com/fyrsmithlabs/sprintd/internal/watch"
)

// maxIndexFileSize bounds what the initial index pass reads per file.
const maxIndexFileSize = 256 * 1024

// skipDirs are tree roots the initial index pass never descends into.
var skipDirs = map[string]struct{}{
	".git": {}, ".sprintd": {}, "node_modules": {}, "vendor": {},
	"dist": {}, "build": {}, "__pycache__": {},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured number of sprints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted run from its last snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), true)
	},
}

func execute(parent context.Context, resume bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Project.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	rec := recovery.NewManager(cfg.Recovery, logger, nil)

	emb, err := embeddings.NewService(cfg.Embeddings, rec)
	if err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	store, err := openStore(cfg, emb, logger)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	chunker := contextstore.NewChunker(cfg.Context.MaxDocTokens, cfg.Context.ChunkOverlap)
	indexer := contextstore.NewIndexer(store, chunker, nil, logger)

	tracker, err := watch.NewTracker(ctx, cfg.Project.WorkDir, logger)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer tracker.Close() //nolint:errcheck

	deps := engine.Deps{
		Store:    store,
		Indexer:  indexer,
		Recovery: rec,
		Tracker:  tracker,
		Runner:   buildrun.NewRunner(cfg.Project.WorkDir, time.Duration(cfg.Build.Timeout), logger),
	}

	deps.Completer, err = newCompleter(cfg, rec)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	deps.Policy = loadPolicy(cfg, logger)
	deps.Scrubber, err = newScrubber(cfg, logger)
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	if cfg.VCS.AutoCommit {
		git, err := gitops.Open(cfg.Project.WorkDir, cfg.VCS, rec, logger)
		if err != nil {
			return fmt.Errorf("gitops: %w", err)
		}
		deps.VCS = git
		if cfg.VCS.CreatePR {
			deps.PRs, err = gitops.NewPullRequests(ctx, git, cfg.VCS, logger)
			if err != nil {
				return fmt.Errorf("gitops: %w", err)
			}
		}
	}

	if err := initialIndex(ctx, cfg, indexer, deps.Scrubber, logger); err != nil {
		return fmt.Errorf("initial index: %w", err)
	}

	eng := engine.New(*cfg, deps, logger)

	if cfg.Server.Enabled {
		srv, err := server.New(cfg.Server, eng, logger)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("observer server failed", zap.Error(err))
			}
		}()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("observer shutdown failed", zap.Error(err))
			}
		}()
	}

	if resume {
		err = eng.Resume(ctx)
	} else {
		err = eng.Run(ctx)
	}
	if err != nil {
		return err
	}

	scrumDir := filepath.Join(cfg.Project.WorkDir, "scrum")
	return engine.WriteRunReport(scrumDir, cfg.Project.Name, cfg.Project.NumSprints)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := logging.NewDefaultConfig()
	if cfg.Logging.Level != "" {
		lc.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	return logging.New(lc)
}

func newCompleter(cfg *config.Config, rec *recovery.Manager) (llm.Completer, error) {
	if cfg.LLM.Mock {
		return llm.NewMock(nil), nil
	}
	return llm.New(cfg.LLM, rec)
}

func loadPolicy(cfg *config.Config, logger *zap.Logger) *policy.Policy {
	path := cfg.Policy.StorePath
	if path == "" {
		path = filepath.Join(cfg.Project.WorkDir, "scrum", "policy.json")
	}
	return policy.Load(path, cfg.Policy, logger)
}

func newScrubber(cfg *config.Config, logger *zap.Logger) (*secrets.Scrubber, error) {
	if !cfg.Context.ScrubSecrets {
		return nil, nil
	}
	var allow *secrets.Allowlist
	if cfg.Context.AllowlistPath != "" {
		var err error
		allow, err = secrets.LoadAllowlist(cfg.Context.AllowlistPath)
		if err != nil {
			return nil, err
		}
	}
	return secrets.NewScrubber(allow, logger)
}

func openStore(cfg *config.Config, emb contextstore.Embedder, logger *zap.Logger) (contextstore.Store, error) {
	if cfg.Context.Path == "" {
		cfg.Context.Path = filepath.Join(cfg.Project.WorkDir, ".sprintd", "vectors")
	}
	store, err := contextstore.New(cfg.Context, emb, logger)
	if err != nil {
		return nil, fmt.Errorf("context store: %w", err)
	}
	return store, nil
}

// initialIndex walks the working tree once so the first sprint starts with
// a populated retrieval index. Later passes are incremental, driven by the
// file watcher at phase boundaries.
func initialIndex(ctx context.Context, cfg *config.Config, indexer *contextstore.Indexer, scrubber *secrets.Scrubber, logger *zap.Logger) error {
	root := cfg.Project.WorkDir
	indexed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxIndexFileSize {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		text := string(data)
		if scrubber != nil {
			text, _ = scrubber.Scrub(rel, text)
		}
		if err := indexer.Index(ctx, rel, text, info.ModTime()); err != nil {
			return err
		}
		indexed++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("initial index complete", zap.Int("files", indexed))
	return nil
}
