package transe

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cnclabs/transe/pkg/embedding"
)

// Artifacts names the files a training run writes
type Artifacts struct {
	LossLog            string
	EntityCheckpoint   string
	RelationCheckpoint string
	EntityFinal        string
	RelationFinal      string
}

// ArtifactPaths returns the artifact locations under dir. Final file names
// carry the dimension and the batch count.
func ArtifactPaths(dir string, dim, batches int) Artifacts {
	return Artifacts{
		LossLog:            filepath.Join(dir, "epoch_loss"),
		EntityCheckpoint:   filepath.Join(dir, "e_embs_per_10_epoch"),
		RelationCheckpoint: filepath.Join(dir, "r_embs_per_10_epoch"),
		EntityFinal:        filepath.Join(dir, fmt.Sprintf("entity_dim%d_batch%d", dim, batches)),
		RelationFinal:      filepath.Join(dir, fmt.Sprintf("relation_dim%d_batch%d", dim, batches)),
	}
}

// Files lists every artifact path
func (a Artifacts) Files() []string {
	return []string{a.LossLog, a.EntityCheckpoint, a.RelationCheckpoint, a.EntityFinal, a.RelationFinal}
}

func appendLoss(path string, epoch int, loss float64) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open loss log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "epoch: %d\tloss: %s\n", epoch, formatLoss(loss)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write loss log: %w", err)
	}
	return f.Close()
}

// formatLoss prints the shortest representation, keeping a decimal point on
// integral values
func formatLoss(loss float64) string {
	s := strconv.FormatFloat(loss, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}

func (te *TransE) save(entityFile, relationFile string) error {
	if err := writeTable(entityFile, te.entities); err != nil {
		return fmt.Errorf("failed to save entities: %w", err)
	}
	if err := writeTable(relationFile, te.relations); err != nil {
		return fmt.Errorf("failed to save relations: %w", err)
	}
	return nil
}

func writeTable(path string, t *embedding.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := embedding.WriteText(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
