package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cnclabs/transe/internal/export"
	"github.com/cnclabs/transe/internal/logger"
	"github.com/cnclabs/transe/internal/models/transe"
	"github.com/cnclabs/transe/pkg/embedding"
	"github.com/cnclabs/transe/pkg/knowledge"
)

// scoreSource names where the embeddings come from. norm is only used
// when normSet is true; otherwise the norm the run was trained with wins.
type scoreSource struct {
	entities  string
	relations string
	sqlite    string
	run       string
	norm      int
	normSet   bool
}

var scoreFlags scoreSource

var scoreCmd = &cobra.Command{
	Use:   "score <head_id> <tail_id> <relation_id>",
	Short: "Score a triple against saved embeddings (lower is more plausible)",
	Long: `Scores a triple with the norm recorded for the run (the runs table for --sqlite,
manifest.yaml next to --entities otherwise). An explicit --norm overrides it.`,
	Example: `  transe score --entities ../res/entity_dim50_batch400 --relations ../res/relation_dim50_batch400 12 7 3
  transe score --sqlite runs.db --run 3f1c... 12 7 3`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ids [3]int64
		for i, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", a, err)
			}
			ids[i] = id
		}

		src := scoreFlags
		src.normSet = cmd.Flags().Changed("norm")
		entities, relations, norm, err := src.load(cmd.Context(), logger.L())
		if err != nil {
			return err
		}

		triple := knowledge.Triple{Head: ids[0], Tail: ids[1], Relation: ids[2]}
		score, err := transe.ScoreTriple(entities, relations, triple, norm)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%d\t%d\t%g\n", triple.Head, triple.Tail, triple.Relation, score)
		return nil
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreFlags.entities, "entities", "", "entity embedding file")
	f.StringVar(&scoreFlags.relations, "relations", "", "relation embedding file")
	f.StringVar(&scoreFlags.sqlite, "sqlite", "", "SQLite file written by train --sqlite")
	f.StringVar(&scoreFlags.run, "run", "", "run id inside the SQLite file")
	f.IntVar(&scoreFlags.norm, "norm", 1, "1 for L1, 2 for L2 (default: the run's norm)")
}

// load returns both tables and the norm to score with
func (s scoreSource) load(ctx context.Context, log *zap.Logger) (*embedding.Table, *embedding.Table, int, error) {
	load := func() (*embedding.Table, *embedding.Table, int, error) { return s.loadText(log) }
	if s.sqlite != "" {
		load = func() (*embedding.Table, *embedding.Table, int, error) { return s.loadSQLite(ctx) }
	}
	entities, relations, norm, err := load()
	if err != nil {
		return nil, nil, 0, err
	}

	if s.normSet {
		norm = s.norm
	}
	if norm != 1 && norm != 2 {
		return nil, nil, 0, fmt.Errorf("norm must be 1 or 2, got %d", norm)
	}
	log.Debug("scoring", zap.Int("norm", norm), zap.Bool("norm_flag", s.normSet))
	return entities, relations, norm, nil
}

func (s scoreSource) loadSQLite(ctx context.Context) (*embedding.Table, *embedding.Table, int, error) {
	if s.run == "" {
		return nil, nil, 0, errors.New("--run is required with --sqlite")
	}
	db, err := export.OpenSQLite(ctx, s.sqlite, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	defer db.Close()

	run, err := db.LoadRun(ctx, s.run)
	if err != nil {
		return nil, nil, 0, err
	}
	entities, err := db.LoadTable(ctx, s.run, export.KindEntity)
	if err != nil {
		return nil, nil, 0, err
	}
	relations, err := db.LoadTable(ctx, s.run, export.KindRelation)
	if err != nil {
		return nil, nil, 0, err
	}
	return entities, relations, run.Norm, nil
}

func (s scoreSource) loadText(log *zap.Logger) (*embedding.Table, *embedding.Table, int, error) {
	if s.entities == "" || s.relations == "" {
		return nil, nil, 0, errors.New("either --entities and --relations or --sqlite and --run are required")
	}
	entities, err := readTable(s.entities)
	if err != nil {
		return nil, nil, 0, err
	}
	relations, err := readTable(s.relations)
	if err != nil {
		return nil, nil, 0, err
	}
	if entities.Dim() != relations.Dim() {
		return nil, nil, 0, fmt.Errorf("%w: entities %d, relations %d", embedding.ErrDimension, entities.Dim(), relations.Dim())
	}

	norm := 1
	manifest := filepath.Join(filepath.Dir(s.entities), export.ManifestName)
	run, err := export.ReadManifest(manifest)
	switch {
	case err == nil:
		norm = run.Norm
	case errors.Is(err, fs.ErrNotExist):
		log.Debug("no manifest next to embeddings, defaulting to L1", zap.String("path", manifest))
	default:
		return nil, nil, 0, err
	}
	return entities, relations, norm, nil
}

func readTable(path string) (*embedding.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()
	return embedding.ReadText(f, 0)
}
