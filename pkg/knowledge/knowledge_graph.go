package knowledge

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Triple is a (head, tail, relation) fact. Head and Tail are entity ids,
// Relation is a relation id.
type Triple struct {
	Head     int64
	Tail     int64
	Relation int64
}

// Dataset is what the trainer consumes: the entity and relation ids that
// occur in the triples, and the triples themselves
type Dataset struct {
	Entities  []int64
	Relations []int64
	Triples   []Triple
}

// Loader reads name/id dictionaries and tab separated triple files
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger discards diagnostics.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadDict reads a name\tid dictionary.
// Lines that do not split into two fields, or whose id is not an integer,
// are skipped.
func (l *Loader) LoadDict(path string) (map[string]int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("dictionary file does not exist", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrMissingPath, path)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	dict := make(map[string]int64)
	skipped := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(parts) != 2 {
			skipped++
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			skipped++
			continue
		}
		dict[parts[0]] = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}

	l.logger.Debug("dictionary loaded",
		zap.String("path", path),
		zap.Int("entries", len(dict)),
		zap.Int("skipped", skipped))
	return dict, nil
}

// LoadTriples reads head\ttail\trelation lines and maps the names to ids.
// Lines with a field count other than three are skipped; a name missing
// from its dictionary aborts the load.
func (l *Loader) LoadTriples(path string, entities, relations map[string]int64) ([]Triple, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("triple file does not exist", zap.String("path", path))
			return nil, fmt.Errorf("%w: %s", ErrMissingPath, path)
		}
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	var triples []Triple
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		parts := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(parts) != 3 {
			skipped++
			continue
		}

		head, ok := entities[parts[0]]
		if !ok {
			return nil, fmt.Errorf("%s:%d: %w: entity %q", path, lineNo, ErrUnknownName, parts[0])
		}
		tail, ok := entities[parts[1]]
		if !ok {
			return nil, fmt.Errorf("%s:%d: %w: entity %q", path, lineNo, ErrUnknownName, parts[1])
		}
		relation, ok := relations[parts[2]]
		if !ok {
			return nil, fmt.Errorf("%s:%d: %w: relation %q", path, lineNo, ErrUnknownName, parts[2])
		}

		triples = append(triples, Triple{Head: head, Tail: tail, Relation: relation})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", path, err)
	}

	l.logger.Debug("triples loaded",
		zap.String("path", path),
		zap.Int("triples", len(triples)),
		zap.Int("skipped", skipped))
	return triples, nil
}

// LoadData reads entity2id.txt, relation2id.txt and <mode>.txt from dir.
// mode is one of train, valid or test.
func (l *Loader) LoadData(dir, mode string) (*Dataset, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("data directory does not exist", zap.String("dir", dir))
			return nil, fmt.Errorf("%w: %s", ErrMissingPath, dir)
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}

	entities, err := l.LoadDict(filepath.Join(dir, "entity2id.txt"))
	if err != nil {
		return nil, err
	}
	relations, err := l.LoadDict(filepath.Join(dir, "relation2id.txt"))
	if err != nil {
		return nil, err
	}
	triples, err := l.LoadTriples(filepath.Join(dir, mode+".txt"), entities, relations)
	if err != nil {
		return nil, err
	}

	ds := NewDataset(triples)
	l.logger.Info("knowledge graph loaded",
		zap.String("dir", dir),
		zap.String("mode", mode),
		zap.Int("entities", len(ds.Entities)),
		zap.Int("relations", len(ds.Relations)),
		zap.Int("triples", len(ds.Triples)))
	return ds, nil
}

// NewDataset collects the entity and relation ids referenced by triples
func NewDataset(triples []Triple) *Dataset {
	entitySet := make(map[int64]struct{})
	relationSet := make(map[int64]struct{})
	for _, t := range triples {
		entitySet[t.Head] = struct{}{}
		entitySet[t.Tail] = struct{}{}
		relationSet[t.Relation] = struct{}{}
	}
	return &Dataset{
		Entities:  sortedKeys(entitySet),
		Relations: sortedKeys(relationSet),
		Triples:   triples,
	}
}

func sortedKeys(set map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// KnownSet is a membership oracle over the positive triples
type KnownSet map[Triple]struct{}

// NewKnownSet indexes triples
func NewKnownSet(triples []Triple) KnownSet {
	known := make(KnownSet, len(triples))
	for _, t := range triples {
		known[t] = struct{}{}
	}
	return known
}

// Contains reports whether t is a known positive
func (k KnownSet) Contains(t Triple) bool {
	_, ok := k[t]
	return ok
}
