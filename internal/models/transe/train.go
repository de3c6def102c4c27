package transe

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/cnclabs/transe/pkg/embedding"
	"github.com/cnclabs/transe/pkg/knowledge"
)

type pair struct {
	pos knowledge.Triple
	neg knowledge.Triple
}

// Train runs the configured number of epochs, appending to the loss log
// after each one, overwriting the periodic checkpoint every 10th epoch and
// writing the final embeddings at the end
func (te *TransE) Train() error {
	if !te.initialized {
		return errors.New("transe: Init must be called before Train")
	}
	if err := os.MkdirAll(te.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	paths := ArtifactPaths(te.opts.OutputDir, te.opts.EmbedDim, te.opts.Batches)

	batchSize := len(te.triples) / te.opts.Batches
	te.logger.Info("start training",
		zap.Int("epochs", te.opts.Epochs),
		zap.Int("nbatches", te.opts.Batches),
		zap.Int("batch_size", batchSize))

	for epoch := 0; epoch < te.opts.Epochs; epoch++ {
		start := time.Now()
		if err := te.runEpoch(epoch, batchSize); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
		elapsed := time.Since(start)

		te.logger.Info("epoch done",
			zap.Int("epoch", epoch),
			zap.Float64("loss", te.loss),
			zap.Duration("cost", elapsed))
		if te.observer != nil {
			te.observer.OnEpoch(EpochStats{Epoch: epoch, Loss: te.loss, Duration: elapsed})
		}

		if err := appendLoss(paths.LossLog, epoch, te.loss); err != nil {
			return err
		}
		if epoch%10 == 0 {
			if err := te.save(paths.EntityCheckpoint, paths.RelationCheckpoint); err != nil {
				return err
			}
			te.logger.Debug("checkpoint written", zap.Int("epoch", epoch))
		}
	}

	if err := te.save(paths.EntityFinal, paths.RelationFinal); err != nil {
		return err
	}
	te.logger.Info("embeddings saved",
		zap.String("entities", paths.EntityFinal),
		zap.String("relations", paths.RelationFinal))
	return nil
}

func (te *TransE) runEpoch(epoch, batchSize int) error {
	te.accum = 0
	te.loss = 0
	for b := 0; b < te.opts.Batches; b++ {
		stats, err := te.runBatch(b, batchSize)
		if err != nil {
			return fmt.Errorf("batch %d: %w", b, err)
		}
		if te.observer != nil {
			stats.Epoch = epoch
			te.observer.OnBatch(stats)
		}
	}
	return nil
}

// runBatch trains on one batch of batchSize triples drawn without
// replacement. Reads go to the pre-batch tables, writes to a shadow copy
// that is normalised and committed once every pair is processed.
func (te *TransE) runBatch(b, batchSize int) (BatchStats, error) {
	idx := te.drawBatch(batchSize)
	pairs := make([]pair, len(idx))
	for i, k := range idx {
		pos := te.triples[k]
		neg, err := te.sampler.Corrupt(pos)
		if err != nil {
			return BatchStats{}, err
		}
		pairs[i] = pair{pos: pos, neg: neg}
	}

	snapEntities, snapRelations := te.entities, te.relations
	shadowEntities, shadowRelations := snapEntities.Clone(), snapRelations.Clone()

	stats := BatchStats{Batch: b, Pairs: len(pairs)}
	for _, p := range pairs {
		loss, err := te.updatePair(p, snapEntities, snapRelations, shadowEntities, shadowRelations)
		if err != nil {
			return BatchStats{}, err
		}
		if loss > 0 {
			te.accum += loss
			stats.BatchLoss += loss
			stats.Updates++
		}
	}

	shadowEntities.Normalize(te.opts.Norm)
	shadowRelations.Normalize(te.opts.Norm)
	te.entities, te.relations = shadowEntities, shadowRelations

	te.loss = te.accum / float64(b+1)
	stats.RunningLoss = te.loss
	return stats, nil
}

// drawBatch returns n distinct triple indices using a partial Fisher-Yates
// shuffle of the scratch permutation. Each call is an independent draw.
func (te *TransE) drawBatch(n int) []int {
	total := len(te.perm)
	for i := 0; i < n; i++ {
		j := i + te.rng.Intn(total-i)
		te.perm[i], te.perm[j] = te.perm[j], te.perm[i]
	}
	out := make([]int, n)
	copy(out, te.perm[:n])
	return out
}

// updatePair scores p against the snapshot and, when the hinge loss is
// positive, applies the gradient step to the shadow tables
func (te *TransE) updatePair(p pair, snapE, snapR, shadowE, shadowR *embedding.Table) (float64, error) {
	ph, pt, pr, err := lookup(snapE, snapR, p.pos)
	if err != nil {
		return 0, err
	}
	nh, nt, nr, err := lookup(snapE, snapR, p.neg)
	if err != nil {
		return 0, err
	}

	posScore := Score(ph, pt, pr, te.opts.Norm)
	negScore := Score(nh, nt, nr, te.opts.Norm)
	loss := HingeLoss(posScore, negScore, te.opts.Margin)
	if loss <= 0 {
		return 0, nil
	}

	te.gradient(te.posGrad, ph, pt, pr)
	te.gradient(te.negGrad, nh, nt, nr)

	lr := te.opts.LearningRate
	sh, st, sr, err := lookup(shadowE, shadowR, p.pos)
	if err != nil {
		return 0, err
	}
	floats.AddScaled(sh, -lr, te.posGrad)
	floats.AddScaled(st, lr, te.posGrad)
	floats.AddScaled(sr, -lr, te.posGrad)

	sh, st, sr, err = lookup(shadowE, shadowR, p.neg)
	if err != nil {
		return 0, err
	}
	floats.AddScaled(sh, lr, te.negGrad)
	floats.AddScaled(st, -lr, te.negGrad)
	floats.AddScaled(sr, lr, te.negGrad)

	return loss, nil
}

// gradient writes 2(h + r - t) into dst. Under L1 every element becomes its
// sign, with zero mapped to -1.
func (te *TransE) gradient(dst, h, t, r []float64) {
	for d := range dst {
		g := 2 * (h[d] + r[d] - t[d])
		if te.opts.Norm == 1 {
			if g > 0 {
				g = 1
			} else {
				g = -1
			}
		}
		dst[d] = g
	}
}
