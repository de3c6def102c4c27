package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cnclabs/transe/internal/config"
	"github.com/cnclabs/transe/internal/export"
	"github.com/cnclabs/transe/internal/logger"
	"github.com/cnclabs/transe/internal/metrics"
	"github.com/cnclabs/transe/internal/models/transe"
	"github.com/cnclabs/transe/internal/storage"
	"github.com/cnclabs/transe/pkg/knowledge"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train entity and relation embeddings",
	Example: `  transe train --data_dir ../data/FB15k --output_dir ../res --epochs 100
  transe train --embed_dim 100 --norm 2 --nbatches 100 --seed 7 --sqlite runs.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		log, err := logger.Init(cfg.Log.Level, cfg.Log.Dev)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer logger.Sync()

		return runTrain(cmd.Context(), cfg, log)
	},
}

func init() {
	f := trainCmd.Flags()
	f.String("data_dir", "", "dataset directory")
	f.String("mode", "", "triple file to train on: train, valid or test")
	f.String("output_dir", "", "directory for the loss log, checkpoints and embeddings")
	f.Int("embed_dim", 0, "embedding dimension (default 50)")
	f.Float64("lr", 0, "learning rate (default 0.01)")
	f.Float64("margin", 0, "hinge margin (default 1.0)")
	f.Int("norm", 0, "1 for L1, 2 for L2 (default 1)")
	f.Int("epochs", 0, "training epochs (default 1)")
	f.Int("nbatches", 0, "batches per epoch (default 400)")
	f.Int64("seed", 0, "random seed, 0 seeds from the clock")
	f.Int("max_neg_retries", 0, "bound negative sampling draws, 0 is unbounded")
	f.String("sqlite", "", "also store the run and final embeddings in this SQLite file")
	f.String("metrics_textfile", "", "write Prometheus metrics to this file after training")
	f.String("log_level", "", "debug, info, warn or error")

	bind := map[string]string{
		"data_dir":         "data.dir",
		"mode":             "data.mode",
		"output_dir":       "train.output_dir",
		"embed_dim":        "train.embed_dim",
		"lr":               "train.lr",
		"margin":           "train.margin",
		"norm":             "train.norm",
		"epochs":           "train.epochs",
		"nbatches":         "train.nbatches",
		"seed":             "train.seed",
		"max_neg_retries":  "train.max_neg_retries",
		"sqlite":           "sqlite.path",
		"metrics_textfile": "metrics.textfile",
		"log_level":        "log.level",
	}
	for flag, key := range bind {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func runTrain(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	startTime := time.Now()

	ds, err := knowledge.NewLoader(log).LoadData(cfg.Data.Dir, cfg.Data.Mode)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	loadTime := time.Since(startTime)

	opts := cfg.TrainerOptions()
	seed := cfg.Seed()
	recorder := metrics.NewRecorder()

	model, err := transe.New(opts, ds.Entities, ds.Relations, ds.Triples,
		transe.WithLogger(log),
		transe.WithRand(rand.New(rand.NewSource(seed))),
		transe.WithObserver(recorder))
	if err != nil {
		return err
	}

	trainStart := time.Now()
	model.Init()
	if err := model.Train(); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	trainTime := time.Since(trainStart)

	opts = model.Options()
	paths := transe.ArtifactPaths(opts.OutputDir, opts.EmbedDim, opts.Batches)
	run := export.NewRun(opts, seed)
	run.Entities = len(ds.Entities)
	run.Relations = len(ds.Relations)
	run.Triples = len(ds.Triples)
	run.Loss = model.Loss()
	run.Artifacts = existing(paths.Files())

	manifest := filepath.Join(opts.OutputDir, export.ManifestName)
	if err := export.WriteManifest(manifest, run); err != nil {
		return err
	}

	if cfg.SQLite.Path != "" {
		if err := exportSQLite(ctx, cfg.SQLite.Path, run, model, log); err != nil {
			return err
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	if cfg.Storage.Endpoint != "" {
		if err := mirror(ctx, cfg.Storage, run.ID, append(run.Artifacts, manifest), log); err != nil {
			return err
		}
	}

	log.Info("timing summary",
		zap.String("run_id", run.ID),
		zap.Duration("loading", loadTime),
		zap.Duration("training", trainTime),
		zap.Duration("total", time.Since(startTime)))
	return nil
}

func exportSQLite(ctx context.Context, path string, run *export.Run, model *transe.TransE, log *zap.Logger) error {
	db, err := export.OpenSQLite(ctx, path, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := db.SaveTable(ctx, run.ID, export.KindEntity, model.Entities()); err != nil {
		return err
	}
	if err := db.SaveTable(ctx, run.ID, export.KindRelation, model.Relations()); err != nil {
		return err
	}
	log.Info("run exported", zap.String("sqlite", path), zap.String("run_id", run.ID))
	return nil
}

func mirror(ctx context.Context, sc config.StorageConfig, runID string, files []string, log *zap.Logger) error {
	m, err := storage.NewMirror(storage.Config{
		Endpoint:  sc.Endpoint,
		AccessKey: sc.AccessKey,
		SecretKey: sc.SecretKey,
		Bucket:    sc.Bucket,
		Prefix:    sc.Prefix,
		UseSSL:    sc.UseSSL,
	}, log)
	if err != nil {
		return err
	}
	if err := m.Init(ctx); err != nil {
		return err
	}
	return m.Upload(ctx, runID, files...)
}

// existing filters out artifacts that were not written, such as the
// checkpoints of a zero-epoch run
func existing(files []string) []string {
	var out []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		out = append(out, f)
	}
	return out
}
