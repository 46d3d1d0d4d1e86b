package transcript

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AnnotatedSeq assembles the edited coding sequence for the 1-based
// inclusive range [start, end] as a list of fragments in transcript
// orientation. Adjacent fragments of the same origin are merged and each
// deletion appears as an empty fragment carrying its origin.
func (t *Transcript) AnnotatedSeq(start, end int64) ([]Fragment, error) {
	a, err := t.assemble(start, end, t.edits, t.deletions)
	if err != nil {
		return nil, err
	}
	return a.fragments, nil
}

// Sequence returns the edited coding sequence over the full CDS span.
func (t *Transcript) Sequence() (string, error) {
	start, end := t.Bounds()
	a, err := t.assemble(start, end, t.edits, t.deletions)
	if err != nil {
		return "", err
	}
	return a.sequence(), nil
}

type site struct {
	snv *Edit
	ins []Edit
}

type block struct {
	start, end Boundary
	sites      map[int]*site // keyed by base offset within the block
	trailing   []Edit        // insertions anchored on the next block's opening boundary
}

func (b *block) length() int {
	return int(b.end.Pos - b.start.Pos)
}

func (b *block) siteAt(off int) *site {
	if b.sites == nil {
		b.sites = make(map[int]*site)
	}
	st, ok := b.sites[off]
	if !ok {
		st = &site{}
		b.sites[off] = st
	}
	return st
}

func (t *Transcript) assemble(start, end int64, edits map[int64][]Edit, dels []deletion) (*assembly, error) {
	expressed, bounds := resolve(t.intervals, start, end, edits, dels)
	a := &assembly{}
	if len(bounds) == 0 {
		return a, nil
	}

	blocks := make([]block, 0, len(bounds)/2+1)
	for i := 0; i+1 < len(bounds); i += 2 {
		blocks = append(blocks, block{start: bounds[i], end: bounds[i+1]})
	}

	var leading []Edit
	for _, pos := range slices.Sorted(maps.Keys(expressed)) {
		list := expressed[pos]
		idx := searchBoundaries(bounds, pos)
		k := idx / 2
		if idx%2 == 1 {
			b := &blocks[k]
			st := b.siteAt(int(pos - b.start.Pos - 1))
			for _, e := range list {
				if e.Kind == SNV {
					st.snv = &e
				} else {
					st.ins = append(st.ins, e)
				}
			}
			continue
		}
		// Only insertions resolve onto an opening boundary. They belong
		// after the preceding block.
		if k == 0 {
			leading = append(leading, list...)
			continue
		}
		blocks[k-1].trailing = append(blocks[k-1].trailing, list...)
	}
	if len(leading) > 0 {
		virtual := block{
			start:    Boundary{Pos: -1, Origin: Reference},
			end:      Boundary{Pos: -1, Origin: Reference},
			trailing: leading,
		}
		blocks = append([]block{virtual}, blocks...)
	}

	for i := range blocks {
		b := &blocks[i]
		var seq string
		if n := b.length(); n > 0 {
			var err error
			seq, err = t.genome.Stretch(t.chrom, b.start.Pos+1, int64(n))
			if err != nil {
				return nil, fmt.Errorf("fetch %s:%d-%d: %w", t.chrom, b.start.Pos+2, b.end.Pos+1, err)
			}
			if len(seq) != n {
				return nil, fmt.Errorf("fetch %s:%d-%d: got %d bases, want %d", t.chrom, b.start.Pos+2, b.end.Pos+1, len(seq), n)
			}
		}
		a.addBlock(b, seq)
	}

	if t.reverse {
		a.reverseComplement()
	}
	return a, nil
}

// assembly is an assembled sequence with per-base provenance. pos holds the
// 0-based genome coordinate of each base, or -1 for inserted bases.
type assembly struct {
	fragments []Fragment
	pos       []int64
	origin    []Origin
	junctions []junction
}

// junction marks a deletion between bases at-1 and at.
type junction struct {
	at     int
	origin Origin
}

func (a *assembly) sequence() string {
	var sb strings.Builder
	sb.Grow(len(a.pos))
	for _, f := range a.fragments {
		sb.WriteString(f.Seq)
	}
	return sb.String()
}

func (a *assembly) addBlock(b *block, seq string) {
	if b.start.Origin != Reference {
		a.addEdit("", b.start.Origin, -1)
	}

	first := b.start.Pos + 1
	last := 0
	for _, off := range slices.Sorted(maps.Keys(b.sites)) {
		st := b.sites[off]
		a.addRef(seq[last:off], first+int64(last))
		if st.snv != nil {
			a.addEdit(st.snv.Seq, st.snv.Origin, first+int64(off))
		} else {
			a.addRef(seq[off:off+1], first+int64(off))
		}
		for _, e := range st.ins {
			a.addEdit(e.Seq, e.Origin, -1)
		}
		last = off + 1
	}
	a.addRef(seq[last:], first+int64(last))

	if b.end.Origin != Reference {
		a.addEdit("", b.end.Origin, -1)
	}
	for _, e := range b.trailing {
		a.addEdit(e.Seq, e.Origin, -1)
	}
}

func (a *assembly) addRef(seq string, firstPos int64) {
	for i := range len(seq) {
		a.pos = append(a.pos, firstPos+int64(i))
		a.origin = append(a.origin, Reference)
	}
	a.appendFragment(seq, Reference)
}

// addEdit appends edited sequence. anchor is the genome coordinate of the
// first base for substitutions and -1 for insertions.
func (a *assembly) addEdit(seq string, origin Origin, anchor int64) {
	if seq == "" && origin != Reference {
		a.junctions = append(a.junctions, junction{at: len(a.pos), origin: origin})
	}
	for i := range len(seq) {
		p := int64(-1)
		if i == 0 {
			p = anchor
		}
		a.pos = append(a.pos, p)
		a.origin = append(a.origin, origin)
	}
	a.appendFragment(seq, origin)
}

func (a *assembly) appendFragment(seq string, origin Origin) {
	if n := len(a.fragments); n > 0 && a.fragments[n-1].Origin == origin {
		a.fragments[n-1].Seq += seq
		return
	}
	if seq != "" || origin != Reference {
		a.fragments = append(a.fragments, Fragment{Seq: seq, Origin: origin})
	}
}

func (a *assembly) reverseComplement() {
	slices.Reverse(a.fragments)
	for i := range a.fragments {
		a.fragments[i].Seq = ReverseComplement(a.fragments[i].Seq)
	}
	slices.Reverse(a.pos)
	slices.Reverse(a.origin)

	n := len(a.pos)
	slices.Reverse(a.junctions)
	for i := range a.junctions {
		a.junctions[i].at = n - a.junctions[i].at
	}
}
