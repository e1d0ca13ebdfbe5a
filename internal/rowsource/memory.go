package rowsource

import "context"

// Memory is an in-memory Source. It backs unit tests and lets callers
// profile already-materialized row sets; PartitionCount controls how the
// rows are dealt out so merge behavior can be exercised deterministically.
type Memory struct {
	Cols []string
	Rows []Row

	// PartitionCount splits Rows round-robin into this many partitions.
	// Zero or one means a single partition.
	PartitionCount int
}

// Columns implements Source.
func (m *Memory) Columns(ctx context.Context) ([]string, error) {
	return m.Cols, nil
}

// Partitions implements Source.
func (m *Memory) Partitions(ctx context.Context) ([]Partition, error) {
	n := m.PartitionCount
	if n <= 1 {
		return []Partition{&memoryPartition{rows: m.Rows}}, nil
	}

	buckets := make([][]Row, n)
	for i, r := range m.Rows {
		buckets[i%n] = append(buckets[i%n], r)
	}

	parts := make([]Partition, 0, n)
	for _, b := range buckets {
		parts = append(parts, &memoryPartition{rows: b})
	}
	return parts, nil
}

// Close implements Source.
func (m *Memory) Close() error { return nil }

type memoryPartition struct {
	rows []Row
	next int
}

func (p *memoryPartition) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.next >= len(p.rows) {
		return nil, nil
	}
	r := p.rows[p.next]
	p.next++
	return r, nil
}

func (p *memoryPartition) Close() error { return nil }
