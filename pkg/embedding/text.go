package embedding

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteText writes one line per id in ascending id order:
//
//	<id>\t[<v0>, <v1>, ...]
func WriteText(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32*t.dim)
	for i, id := range t.ids {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, id, 10)
		buf = append(buf, '\t', '[')
		for d, v := range t.rows[i] {
			if d > 0 {
				buf = append(buf, ',', ' ')
			}
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, ']', '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write embedding %d: %w", id, err)
		}
	}
	return bw.Flush()
}

// ReadText parses the format produced by WriteText. Lines that do not parse,
// or whose length differs from dim, are skipped. A dim of 0 takes the length
// of the first valid line.
func ReadText(r io.Reader, dim int) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		ids  []int64
		vecs [][]float64
	)
	for scanner.Scan() {
		id, vec, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			continue
		}
		ids = append(ids, id)
		vecs = append(vecs, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading embeddings: %w", err)
	}

	t := New(ids, dim)
	for i, id := range ids {
		if err := t.Set(id, vecs[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseLine(line string) (int64, []float64, bool) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) != 2 {
		return 0, nil, false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, nil, false
	}
	body := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return 0, nil, false
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, "["), "]")
	if strings.TrimSpace(body) == "" {
		return 0, nil, false
	}
	fields := strings.Split(body, ",")
	vec := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return 0, nil, false
		}
		vec[i] = v
	}
	return id, vec, true
}
