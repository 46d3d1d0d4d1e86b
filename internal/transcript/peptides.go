package transcript

import "strings"

// Peptide is a mutant peptide window paired with the reference window at the
// aligned position. Reference is empty when the reference protein has no
// aligned window, for example past a frameshift-induced extension.
type Peptide struct {
	Mutant    string
	Reference string
	Offset    int // residue offset of Mutant in the edited protein
	Origins   OriginSet

	// GenomeStart and GenomeEnd bound the reference bases coding the
	// window (1-based, inclusive); both are 0 when every base is inserted.
	GenomeStart, GenomeEnd int64
	// Shifted is set when part of the window is read in a shifted frame.
	Shifted bool
}

// Peptides returns the windows of the given size that contain a variant
// residue and differ from the reference.
func (t *Transcript) Peptides(size int) ([]Peptide, error) {
	return t.PeptideRange(size, size)
}

// PeptideRange is like Peptides for every window size in [minSize, maxSize].
// Both proteins are translated from the first ATG of their sequences up to
// the first stop codon. Windows containing an unknown residue are skipped and
// each (mutant, reference) pair is reported once, with the union of the
// origins of every occurrence.
func (t *Transcript) PeptideRange(minSize, maxSize int) ([]Peptide, error) {
	minSize = max(minSize, 2)
	if maxSize < minSize {
		return nil, nil
	}

	start, end := t.Bounds()
	ref, err := t.assemble(start, end, nil, nil)
	if err != nil {
		return nil, err
	}
	mut, err := t.assemble(start, end, t.edits, t.deletions)
	if err != nil {
		return nil, err
	}

	mutSeq := mut.sequence()
	mutStart := strings.Index(mutSeq, "ATG")
	if mutStart < 0 {
		return nil, nil
	}
	mutProt := Translate(mutSeq[mutStart:])

	refSeq := ref.sequence()
	refStart := strings.Index(refSeq, "ATG")
	var refProt string
	if refStart >= 0 {
		refProt = Translate(refSeq[refStart:])
	}

	res := classify(mut, ref, mutStart, refStart, len(mutProt))

	var out []Peptide
	seen := make(map[[2]string]int)
	for k := minSize; k <= maxSize; k++ {
		for i := 0; i+k <= len(mutProt); i++ {
			var origins OriginSet
			variant, shifted := false, false
			lo, hi := int64(-1), int64(-1)
			for _, r := range res[i : i+k] {
				if r.variant {
					variant = true
					origins |= r.origins
				}
				shifted = shifted || r.shifted
				if r.lo >= 0 && (lo < 0 || r.lo < lo) {
					lo = r.lo
				}
				hi = max(hi, r.hi)
			}
			if !variant {
				continue
			}
			w := mutProt[i : i+k]
			if strings.IndexByte(w, 'X') >= 0 {
				continue
			}
			refW := referenceWindow(res, refProt, i, k)
			if w == refW {
				continue
			}
			key := [2]string{w, refW}
			if j, ok := seen[key]; ok {
				out[j].Origins |= origins
				continue
			}
			seen[key] = len(out)
			pep := Peptide{Mutant: w, Reference: refW, Offset: i, Origins: origins, Shifted: shifted}
			if lo >= 0 {
				pep.GenomeStart, pep.GenomeEnd = lo+1, hi+1
			}
			out = append(out, pep)
		}
	}
	return out, nil
}

type residue struct {
	variant bool
	shifted bool
	origins OriginSet
	ref     int   // aligned reference residue, -1 when unknown
	lo, hi  int64 // 0-based genome span of mapped bases, -1 when none
}

// classify marks the residues of the mutant protein that differ in origin
// from the reference: residues built from edited bases, residues flanking a
// deletion and residues read in a shifted frame. It also aligns each residue
// to the reference protein through the genome coordinates of its bases.
func classify(mut, ref *assembly, mutStart, refStart, n int) []residue {
	res := make([]residue, n)
	for i := range res {
		res[i].ref, res[i].lo, res[i].hi = -1, -1, -1
	}
	residueAt := func(base int) int {
		if base < mutStart {
			return -1
		}
		if r := (base - mutStart) / 3; r < n {
			return r
		}
		return -1
	}
	mark := func(r int, o Origin) {
		if r >= 0 {
			res[r].variant = true
			res[r].origins = res[r].origins.Add(o)
		}
	}

	for _, j := range mut.junctions {
		mark(residueAt(j.at-1), j.origin)
		mark(residueAt(j.at), j.origin)
	}

	refIndex := make(map[int64]int, len(ref.pos))
	for i, p := range ref.pos {
		refIndex[p] = i
	}

	// shift tracks the origin of the closest upstream event, which is
	// credited for any frameshift downstream of it.
	shift := Reference
	ji := 0
	limit := min(len(mut.pos), mutStart+3*n)
	for q := 0; q < limit; q++ {
		for ji < len(mut.junctions) && mut.junctions[ji].at <= q {
			shift = mut.junctions[ji].origin
			ji++
		}
		if o := mut.origin[q]; o != Reference {
			shift = o
			mark(residueAt(q), o)
		}

		r := residueAt(q)
		p := mut.pos[q]
		if r < 0 || p < 0 {
			continue
		}
		if res[r].lo < 0 || p < res[r].lo {
			res[r].lo = p
		}
		res[r].hi = max(res[r].hi, p)

		ri, ok := refIndex[p]
		if !ok || refStart < 0 {
			continue
		}
		if d := (q - mutStart) - (ri - refStart); d%3 != 0 {
			mark(r, shift)
			res[r].shifted = true
		}
		if res[r].ref < 0 {
			if rr := ri - refStart - (q-mutStart)%3; rr >= 0 {
				res[r].ref = rr / 3
			}
		}
	}
	return res
}

func referenceWindow(res []residue, refProt string, i, k int) string {
	for j := i; j < i+k; j++ {
		if res[j].ref < 0 {
			continue
		}
		r0 := res[j].ref - (j - i)
		if r0 >= 0 && r0+k <= len(refProt) {
			return refProt[r0 : r0+k]
		}
		return ""
	}
	return ""
}
