package cache

import (
	"sort"

	"github.com/biogo/store/interval"
)

// Index answers CDS overlap queries with one interval tree per chromosome.
// Transcripts are inserted once and the index is read-only afterwards.
type Index struct {
	trees map[string]*interval.IntTree
}

// cdsSpan is a transcript's CDS span as a half-open [start, end+1) range.
type cdsSpan struct {
	id         uintptr
	start, end int
	transcript *Transcript
}

func (s cdsSpan) ID() uintptr { return s.id }
func (s cdsSpan) Range() interval.IntRange {
	return interval.IntRange{Start: s.start, End: s.end}
}
func (s cdsSpan) Overlap(b interval.IntRange) bool {
	return s.end > b.Start && s.start < b.End
}

// BuildIndex indexes the CDS spans of all protein-coding transcripts in c.
func BuildIndex(c *Cache) (*Index, error) {
	idx := &Index{trees: make(map[string]*interval.IntTree)}
	id := uintptr(1)
	for _, t := range c.All() {
		if !t.IsProteinCoding() {
			continue
		}
		tree, ok := idx.trees[t.Chrom]
		if !ok {
			tree = &interval.IntTree{}
			idx.trees[t.Chrom] = tree
		}
		span := cdsSpan{id: id, start: int(t.CDSStart), end: int(t.CDSEnd) + 1, transcript: t}
		if err := tree.Insert(span, true); err != nil {
			return nil, err
		}
		id++
	}
	for _, tree := range idx.trees {
		tree.AdjustRanges()
	}
	return idx, nil
}

// FindOverlaps returns the transcripts with a coding base in the 1-based
// inclusive range [start, end], ordered by transcript ID.
func (x *Index) FindOverlaps(chrom string, start, end int64) []*Transcript {
	tree, ok := x.trees[NormalizeChrom(chrom)]
	if !ok {
		return nil
	}

	var result []*Transcript
	for _, hit := range tree.Get(cdsSpan{start: int(start), end: int(end) + 1}) {
		t := hit.(cdsSpan).transcript
		// The span includes introns.
		if t.OverlapsCDS(start, end) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Len returns the number of indexed transcripts.
func (x *Index) Len() int {
	n := 0
	for _, tree := range x.trees {
		n += tree.Len()
	}
	return n
}
