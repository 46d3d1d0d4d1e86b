package transcript

import (
	"slices"
	"sort"
)

// ExpressedEdits returns the point edits that are expressed in the 1-based
// inclusive range [start, end] once clipped to the CDS and with deletions
// applied, together with the resulting block boundaries.
//
// SNVs are expressed when their base lies inside a block. Insertions are
// expressed inside a block and also when anchored exactly on a block's
// opening boundary, so that sequence inserted right after an exon edge or a
// deletion is kept. ExpressedEdits panics if end < start.
func (t *Transcript) ExpressedEdits(start, end int64) (map[int64][]Edit, []Boundary) {
	return resolve(t.intervals, start, end, t.edits, t.deletions)
}

func resolve(intervals []int64, start, end int64, edits map[int64][]Edit, dels []deletion) (map[int64][]Edit, []Boundary) {
	if end < start {
		panic("transcript: range end before start")
	}

	expressed := make(map[int64][]Edit)
	blocks := clip(intervals, start-1, end-1)
	if len(blocks) == 0 {
		return expressed, nil
	}
	bounds := cutDeletions(blocks, coalesce(dels))

	for pos, list := range edits {
		idx := searchBoundaries(bounds, pos)
		inside := idx%2 == 1
		opening := !inside && idx < len(bounds) && bounds[idx].Pos == pos
		for _, e := range list {
			switch {
			case e.Kind == SNV && inside:
				expressed[pos] = append(expressed[pos], e)
			case e.Kind == Insertion && (inside || opening):
				expressed[pos] = append(expressed[pos], e)
			}
		}
	}
	return expressed, bounds
}

// clip restricts the CDS block list to the 0-based bases s..e and returns the
// flattened (exclusive start, inclusive end) pairs. Range ends falling in an
// intron snap to the neighbouring exon.
func clip(intervals []int64, s, e int64) []int64 {
	si, _ := slices.BinarySearch(intervals, s)
	if si%2 == 0 {
		// s lies in an intron or before the CDS; begin at the next exon.
		si++
		if si-1 >= len(intervals) {
			return nil
		}
		s = intervals[si-1] + 1
	}

	ei, _ := slices.BinarySearch(intervals, e)
	if ei%2 == 0 {
		if ei == 0 {
			return nil
		}
		e = intervals[ei-1]
		ei--
	}
	if e < s || si > ei {
		return nil
	}

	out := make([]int64, 0, ei-si+2)
	out = append(out, s-1)
	out = append(out, intervals[si:ei]...)
	out = append(out, e)
	return out
}

type span struct {
	start Boundary
	end   Boundary
}

// coalesce merges overlapping or touching deletions. Each endpoint keeps the
// origin of the deletion that defines it; on ties the earlier deletion wins.
func coalesce(dels []deletion) []span {
	if len(dels) == 0 {
		return nil
	}
	sorted := slices.Clone(dels)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end < sorted[j].end
	})

	out := make([]span, 0, len(sorted))
	for _, d := range sorted {
		if n := len(out); n > 0 && d.start <= out[n-1].end.Pos {
			if d.end > out[n-1].end.Pos {
				out[n-1].end = Boundary{Pos: d.end, Origin: d.origin}
			}
			continue
		}
		out = append(out, span{
			start: Boundary{Pos: d.start, Origin: d.origin},
			end:   Boundary{Pos: d.end, Origin: d.origin},
		})
	}
	return out
}

// cutDeletions splits blocks around deleted stretches. A cut keeps the
// deletion's origin when the deletion endpoint falls inside the block and is
// tagged Reference when the deletion runs past the block edge.
func cutDeletions(blocks []int64, dels []span) []Boundary {
	out := make([]Boundary, 0, len(blocks)+2*len(dels))
	j := 0
	for i := 0; i+1 < len(blocks); i += 2 {
		bs, be := blocks[i], blocks[i+1]
		out = append(out, Boundary{Pos: bs, Origin: Reference})

		for j < len(dels) && dels[j].end.Pos <= bs {
			j++
		}
		for k := j; k < len(dels) && dels[k].start.Pos < be; k++ {
			d := dels[k]
			lo := Boundary{Pos: bs, Origin: Reference}
			if d.start.Pos >= bs {
				lo = d.start
			}
			hi := Boundary{Pos: be, Origin: Reference}
			if d.end.Pos <= be {
				hi = d.end
			}
			if lo.Pos >= hi.Pos {
				continue
			}
			out = append(out, lo, hi)
		}

		out = append(out, Boundary{Pos: be, Origin: Reference})
	}
	return out
}

// searchBoundaries returns the index of the first boundary at or after pos.
func searchBoundaries(bounds []Boundary, pos int64) int {
	return sort.Search(len(bounds), func(i int) bool { return bounds[i].Pos >= pos })
}
