package transe

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/cnclabs/transe/pkg/embedding"
	"github.com/cnclabs/transe/pkg/knowledge"
)

// ErrInvalidOptions is returned by Options.Validate
var ErrInvalidOptions = errors.New("invalid training options")

// Options holds the hyper-parameters fixed for the lifetime of a trainer
type Options struct {
	EmbedDim     int     // vector length
	LearningRate float64 // gradient step size
	Margin       float64 // hinge threshold
	Norm         int     // 1 (L1) or 2 (L2), used for scoring and normalisation
	Epochs       int
	Batches      int // batches per epoch

	// MaxNegRetries bounds negative sampling; 0 means unbounded
	MaxNegRetries int

	// OutputDir receives the loss log, checkpoints and final embeddings
	OutputDir string
}

// DefaultOptions returns the reference settings
func DefaultOptions() Options {
	return Options{
		EmbedDim:     50,
		LearningRate: 0.01,
		Margin:       1.0,
		Norm:         1,
		Epochs:       1,
		Batches:      400,
		OutputDir:    "res",
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	switch {
	case o.EmbedDim <= 0:
		return fmt.Errorf("%w: embed_dim must be positive, got %d", ErrInvalidOptions, o.EmbedDim)
	case o.LearningRate <= 0:
		return fmt.Errorf("%w: lr must be positive, got %g", ErrInvalidOptions, o.LearningRate)
	case o.Margin < 0:
		return fmt.Errorf("%w: margin must be non-negative, got %g", ErrInvalidOptions, o.Margin)
	case o.Norm != 1 && o.Norm != 2:
		return fmt.Errorf("%w: norm must be 1 or 2, got %d", ErrInvalidOptions, o.Norm)
	case o.Epochs < 0:
		return fmt.Errorf("%w: epochs must be non-negative, got %d", ErrInvalidOptions, o.Epochs)
	case o.Batches <= 0:
		return fmt.Errorf("%w: nbatches must be positive, got %d", ErrInvalidOptions, o.Batches)
	case o.MaxNegRetries < 0:
		return fmt.Errorf("%w: max negative retries must be non-negative, got %d", ErrInvalidOptions, o.MaxNegRetries)
	}
	return nil
}

// TransE learns translation embeddings: h + r ≈ t
type TransE struct {
	opts      Options
	triples   []knowledge.Triple
	entities  *embedding.Table
	relations *embedding.Table

	sampler  *knowledge.Sampler
	rng      *rand.Rand
	logger   *zap.Logger
	observer Observer

	initialized bool
	perm        []int // scratch permutation for batch draws

	accum float64 // sum of positive hinge losses in the current epoch
	loss  float64 // accum / batches processed so far

	posGrad []float64
	negGrad []float64
}

// Option configures a TransE
type Option func(*TransE)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(te *TransE) {
		te.logger = logger
	}
}

// WithRand sets the random source used for initialisation, batch draws and
// negative sampling
func WithRand(rng *rand.Rand) Option {
	return func(te *TransE) {
		te.rng = rng
	}
}

// WithObserver registers a callback for batch and epoch statistics
func WithObserver(o Observer) Option {
	return func(te *TransE) {
		te.observer = o
	}
}

// New creates a trainer over the given id sets and triples. Every id used by
// a triple must be present in the id sets.
func New(opts Options, entities, relations []int64, triples []knowledge.Triple, options ...Option) (*TransE, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: empty entity set", ErrInvalidOptions)
	}

	te := &TransE{
		opts:      opts,
		triples:   triples,
		entities:  embedding.New(entities, opts.EmbedDim),
		relations: embedding.New(relations, opts.EmbedDim),
		logger:    zap.NewNop(),
		perm:      make([]int, len(triples)),
		posGrad:   make([]float64, opts.EmbedDim),
		negGrad:   make([]float64, opts.EmbedDim),
	}
	for _, opt := range options {
		opt(te)
	}
	if te.rng == nil {
		te.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for i, t := range triples {
		if !te.entities.Has(t.Head) || !te.entities.Has(t.Tail) || !te.relations.Has(t.Relation) {
			return nil, fmt.Errorf("triple %d %+v: %w", i, t, embedding.ErrUnknownID)
		}
	}
	for i := range te.perm {
		te.perm[i] = i
	}

	var err error
	te.sampler, err = knowledge.NewSampler(
		knowledge.NewKnownSet(triples),
		te.entities.IDs(),
		te.rng,
		knowledge.WithMaxRetries(opts.MaxNegRetries),
	)
	if err != nil {
		return nil, err
	}
	return te, nil
}

// Init draws a random unit vector for every entity and relation
func (te *TransE) Init() {
	te.entities.Init(te.rng, te.opts.Norm)
	te.relations.Init(te.rng, te.opts.Norm)
	te.initialized = true

	te.logger.Info("model setting",
		zap.Int("dimension", te.opts.EmbedDim),
		zap.Float64("lr", te.opts.LearningRate),
		zap.Float64("margin", te.opts.Margin),
		zap.String("norm", normName(te.opts.Norm)),
		zap.Int("entities", te.entities.Len()),
		zap.Int("relations", te.relations.Len()),
		zap.Int("triples", len(te.triples)))
}

func normName(p int) string {
	if p == 1 {
		return "L1"
	}
	return "L2"
}

// Options returns the trainer's options
func (te *TransE) Options() Options {
	return te.opts
}

// Entities returns the live entity table
func (te *TransE) Entities() *embedding.Table {
	return te.entities
}

// Relations returns the live relation table
func (te *TransE) Relations() *embedding.Table {
	return te.relations
}

// Loss returns the running loss reported after the most recent batch
func (te *TransE) Loss() float64 {
	return te.loss
}

// Predict scores a triple against the current embeddings.
// Lower is more plausible.
func (te *TransE) Predict(head, tail, relation int64) (float64, error) {
	return ScoreTriple(te.entities, te.relations,
		knowledge.Triple{Head: head, Tail: tail, Relation: relation}, te.opts.Norm)
}
