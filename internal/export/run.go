package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/cnclabs/transe/internal/models/transe"
)

// Run describes one training run for the manifest and the SQLite export
type Run struct {
	ID        string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`

	EmbedDim     int     `yaml:"embed_dim"`
	LearningRate float64 `yaml:"lr"`
	Margin       float64 `yaml:"margin"`
	Norm         int     `yaml:"norm"`
	Epochs       int     `yaml:"epochs"`
	Batches      int     `yaml:"nbatches"`
	Seed         int64   `yaml:"seed"`

	Entities  int `yaml:"entities"`
	Relations int `yaml:"relations"`
	Triples   int `yaml:"triples"`

	Loss      float64  `yaml:"loss"`
	Artifacts []string `yaml:"artifacts,omitempty"`
}

// NewRun starts a run record with a fresh id
func NewRun(opts transe.Options, seed int64) *Run {
	return &Run{
		ID:           uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		EmbedDim:     opts.EmbedDim,
		LearningRate: opts.LearningRate,
		Margin:       opts.Margin,
		Norm:         opts.Norm,
		Epochs:       opts.Epochs,
		Batches:      opts.Batches,
		Seed:         seed,
	}
}
