package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/braind/internal/appinit"
	"github.com/fyrsmithlabs/braind/internal/config"
	"github.com/fyrsmithlabs/braind/internal/indexer"
	"github.com/fyrsmithlabs/braind/internal/logging"
)

// setup loads configuration, builds a quiet logger (warnings and above
// only, so one-shot CLI invocations stay script-friendly), and wires the
// full dependency graph. Callers must call deps.Close() when done.
func setup(ctx context.Context) (*appinit.Deps, *zap.Logger, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = zapcore.WarnLevel
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	zl := logger.Underlying()

	deps, err := appinit.Build(ctx, cfg, zl)
	if err != nil {
		return nil, nil, fmt.Errorf("build dependencies: %w", err)
	}
	return deps, zl, nil
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

var (
	overrideProject string
	preserveProject bool
	projectFilter   string
	limitFlag       int
	repoPath        string
	repoName        string
	productionTargs string
	repoFilter      string
)

var indexSessionCmd = &cobra.Command{
	Use:   "index-session <session_id>",
	Short: "Run the session indexer pipeline for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}

		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		outcome, err := deps.Indexer.IndexSession(cmd.Context(), sessionID, indexer.IndexOptions{
			OverrideProject: overrideProject,
			PreserveProject: preserveProject,
		})
		if err != nil {
			return fmt.Errorf("index session: %w", err)
		}
		return printJSON(outcome)
	},
}

var refreshMemoryCmd = &cobra.Command{
	Use:   "refresh-memory <session_id>",
	Short: "Alias of index-session",
	Args:  cobra.ExactArgs(1),
	RunE:  indexSessionCmd.RunE,
}

var listMemoriesCmd = &cobra.Command{
	Use:   "list-memories",
	Short: "List memory records, optionally filtered by project",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		limit := limitFlag
		if limit <= 0 {
			limit = 50
		}
		records, err := deps.Indexer.ListMemories(cmd.Context(), projectFilter, limit)
		if err != nil {
			return fmt.Errorf("list memories: %w", err)
		}
		return printJSON(records)
	},
}

var viewMemoryCmd = &cobra.Command{
	Use:   "view-memory <session_id>",
	Short: "Fetch a single memory record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}

		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		rec, err := deps.Indexer.ViewMemory(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("view memory: %w", err)
		}
		return printJSON(rec)
	},
}

var deleteMemoryCmd = &cobra.Command{
	Use:   "delete-memory <session_id>",
	Short: "Hard-delete a memory record (session itself is untouched)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}

		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		deleted, err := deps.Indexer.DeleteMemory(cmd.Context(), sessionID)
		if err != nil {
			return fmt.Errorf("delete memory: %w", err)
		}
		if !deleted {
			return fmt.Errorf("no memory record found for session %s", sessionID)
		}
		fmt.Println("deleted")
		return nil
	},
}

var backfillEmbeddingsCmd = &cobra.Command{
	Use:   "backfill-embeddings",
	Short: "Recompute missing embeddings for memory records in batches of 50, sleeping 1s between batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, zl, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		total := 0
		for {
			n, err := deps.Indexer.BackfillEmbeddings(cmd.Context(), projectFilter)
			if err != nil {
				return fmt.Errorf("backfill embeddings: %w", err)
			}
			total += n
			zl.Info("backfill batch complete", zap.Int("batch_size", n), zap.Int("total", total))
			if n == 0 {
				break
			}
			time.Sleep(time.Second)
		}
		fmt.Printf("backfilled %d memory record embeddings\n", total)
		return nil
	},
}

var indexCodeCmd = &cobra.Command{
	Use:   "index-code",
	Short: "Walk, chunk, embed, and persist a repository's code",
	RunE: func(cmd *cobra.Command, args []string) error {
		if repoPath == "" || repoName == "" {
			return fmt.Errorf("--path and --name are required")
		}

		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		var targets []string
		if productionTargs != "" {
			for _, t := range strings.Split(productionTargs, ",") {
				if t = strings.TrimSpace(t); t != "" {
					targets = append(targets, t)
				}
			}
		}

		stats, err := deps.CodeIndex.IndexRepository(cmd.Context(), repoPath, repoName, targets)
		if err != nil {
			return fmt.Errorf("index code: %w", err)
		}
		return printJSON(stats)
	},
}

var backfillCodeEmbeddingsCmd = &cobra.Command{
	Use:   "backfill-code-embeddings",
	Short: "Recompute missing embeddings for code chunks",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		n, err := deps.CodeIndex.BackfillCodeEmbeddings(cmd.Context(), repoFilter)
		if err != nil {
			return fmt.Errorf("backfill code embeddings: %w", err)
		}
		fmt.Printf("backfilled %d code chunk embeddings\n", n)
		return nil
	},
}

var getProjectKnowledgeCmd = &cobra.Command{
	Use:   "get-project-knowledge <project>",
	Short: "Read-only projection of a project's hand-curated knowledge descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, _, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close()

		knowledge, found, err := deps.Store.GetProjectKnowledge(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get project knowledge: %w", err)
		}
		if !found {
			return fmt.Errorf("no project knowledge found for %q", args[0])
		}
		return printJSON(knowledge)
	},
}

func init() {
	indexSessionCmd.Flags().StringVar(&overrideProject, "override-project", "", "project tag to apply if the session's own tag is general")
	indexSessionCmd.Flags().BoolVar(&preserveProject, "preserve-project", false, "keep the session tagged general regardless of what the organizer LLM proposes")

	listMemoriesCmd.Flags().StringVar(&projectFilter, "project", "", "filter by project tag")
	listMemoriesCmd.Flags().IntVar(&limitFlag, "limit", 50, "maximum records to return")

	backfillEmbeddingsCmd.Flags().StringVar(&projectFilter, "project", "", "filter by project tag")

	indexCodeCmd.Flags().StringVar(&repoPath, "path", "", "repository filesystem path (required)")
	indexCodeCmd.Flags().StringVar(&repoName, "name", "", "repository name to index under (required)")
	indexCodeCmd.Flags().StringVar(&productionTargs, "production-targets", "", "comma-separated production target tags")

	backfillCodeEmbeddingsCmd.Flags().StringVar(&repoFilter, "repository", "", "filter by repository name")
}
