package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cnclabs/transe/internal/config"
	"github.com/cnclabs/transe/internal/export"
	"github.com/cnclabs/transe/internal/models/transe"
)

func writeDataset(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"entity2id.txt":   "alice\t0\nbob\t1\ncarol\t2\ndave\t3\nbad line\n",
		"relation2id.txt": "knows\t0\nworks_with\t1\n",
		"train.txt": strings.Join([]string{
			"alice\tbob\tknows",
			"bob\tcarol\tknows",
			"carol\tdave\tworks_with",
			"dave\talice\tworks_with",
			"alice\tcarol",
		}, "\n") + "\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestRunTrain(t *testing.T) {
	dataDir, outDir := t.TempDir(), t.TempDir()
	writeDataset(t, dataDir)

	v := viper.New()
	v.Set("data.dir", dataDir)
	v.Set("train.output_dir", outDir)
	v.Set("train.embed_dim", 3)
	v.Set("train.nbatches", 2)
	v.Set("train.epochs", 11)
	v.Set("train.seed", 5)
	v.Set("sqlite.path", filepath.Join(outDir, "runs.db"))
	v.Set("metrics.textfile", filepath.Join(outDir, "transe.prom"))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	require.NoError(t, runTrain(context.Background(), cfg, zap.NewNop()))

	paths := transe.ArtifactPaths(outDir, 3, 2)
	for _, f := range paths.Files() {
		assert.FileExists(t, f)
	}
	assert.FileExists(t, filepath.Join(outDir, "transe.prom"))

	run, err := export.ReadManifest(filepath.Join(outDir, export.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, 4, run.Entities)
	assert.Equal(t, 2, run.Relations)
	assert.Equal(t, 4, run.Triples)
	assert.Equal(t, int64(5), run.Seed)
	assert.Len(t, run.Artifacts, 5)

	db, err := export.OpenSQLite(context.Background(), filepath.Join(outDir, "runs.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	entities, err := db.LoadTable(context.Background(), run.ID, export.KindEntity)
	require.NoError(t, err)
	assert.Equal(t, 4, entities.Len())

	lossLog, err := os.ReadFile(paths.LossLog)
	require.NoError(t, err)
	assert.Equal(t, 11, strings.Count(string(lossLog), "\n"))
}

func TestRunTrainMissingData(t *testing.T) {
	v := viper.New()
	v.Set("data.dir", filepath.Join(t.TempDir(), "absent"))
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Error(t, runTrain(context.Background(), cfg, zap.NewNop()))
}

func TestExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(present, nil, 0o644))
	assert.Equal(t, []string{present}, existing([]string{present, filepath.Join(dir, "b")}))
}
