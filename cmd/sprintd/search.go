package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/sprintd/internal/config"
	"github.com/fyrsmithlabs/sprintd/internal/embeddings"
	"github.com/fyrsmithlabs/sprintd/internal/engine"
	"github.com/fyrsmithlabs/sprintd/internal/recovery"
)

var searchTopK int

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top", "k", 0, "number of results (default from config)")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Query the retrieval index",
	Long: `Search the semantic index built over the project working tree.

Examples:
  sprintd search "where is the retry loop"
  sprintd search -k 10 "http handler registration"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

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

	topK := searchTopK
	if topK <= 0 {
		topK = cfg.Context.TopK
	}

	query := strings.Join(args, " ")
	hits, err := store.Query(cmd.Context(), query, topK)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("no results")
		return nil
	}

	for _, h := range hits {
		fmt.Printf("%.4f  %s\n", h.Score, h.ChunkID)
		for _, line := range strings.Split(strings.TrimRight(h.Text, "\n"), "\n") {
			fmt.Printf("    %s\n", line)
		}
		fmt.Println()
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent sprint snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		scrumDir := filepath.Join(cfg.Project.WorkDir, "scrum")
		state, err := engine.LoadLatestSnapshot(scrumDir)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("no sprints recorded yet")
				return nil
			}
			return err
		}
		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}
