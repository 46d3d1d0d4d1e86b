package transcript

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-neo/internal/genome"
)

// CDS is one coding-sequence record of a transcript.
type CDS struct {
	Chrom  string
	Start  int64 // 1-based, inclusive
	End    int64 // 1-based, inclusive
	Strand byte  // '+' or '-'
}

// ParseCDS parses a GTF line describing a CDS feature.
// Only the chromosome, start, end and strand columns are used.
func ParseCDS(line string) (CDS, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) < 9 {
		return CDS{}, fmt.Errorf("%w: expected 9 fields, got %d", ErrMalformedCDS, len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return CDS{}, fmt.Errorf("%w: parse start: %v", ErrMalformedCDS, err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return CDS{}, fmt.Errorf("%w: parse end: %v", ErrMalformedCDS, err)
	}
	if fields[6] != "+" && fields[6] != "-" {
		return CDS{}, fmt.Errorf("%w: invalid strand %q", ErrMalformedCDS, fields[6])
	}

	return CDS{
		Chrom:  fields[0],
		Start:  start,
		End:    end,
		Strand: fields[6][0],
	}, nil
}

type deletion struct {
	start  int64 // exclusive
	end    int64 // inclusive
	origin Origin
}

// Transcript is an editable transcript. It is not safe for concurrent use;
// the genome reader it holds may be shared.
type Transcript struct {
	genome    genome.Reader
	chrom     string
	reverse   bool
	intervals []int64

	edits     map[int64][]Edit
	deletions []deletion

	savedEdits     map[int64][]Edit
	savedDeletions []deletion
}

// New creates a transcript from its CDS records. All records must share a
// chromosome and strand and must not overlap. New panics if records is empty.
func New(g genome.Reader, records []CDS) (*Transcript, error) {
	if len(records) == 0 {
		panic("transcript: no CDS records")
	}

	first := records[0]
	t := &Transcript{
		genome:    g,
		chrom:     first.Chrom,
		reverse:   first.Strand == '-',
		intervals: make([]int64, 0, 2*len(records)),
		edits:     make(map[int64][]Edit),
	}

	for _, r := range records {
		if r.Chrom != first.Chrom {
			return nil, fmt.Errorf("%w: mixed chromosomes %s and %s", ErrMalformedCDS, first.Chrom, r.Chrom)
		}
		if r.Strand != first.Strand {
			return nil, fmt.Errorf("%w: mixed strands on %s", ErrMalformedCDS, first.Chrom)
		}
		if r.End < r.Start {
			return nil, fmt.Errorf("%w: end %d before start %d", ErrMalformedCDS, r.End, r.Start)
		}
		t.intervals = append(t.intervals, r.Start-2, r.End-1)
	}

	sorted := slices.Clone(records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start <= sorted[i-1].End {
			return nil, fmt.Errorf("%w: overlapping records at %s:%d", ErrMalformedCDS, first.Chrom, sorted[i].Start)
		}
	}
	slices.Sort(t.intervals)

	return t, nil
}

// Chrom returns the chromosome of the transcript.
func (t *Transcript) Chrom() string {
	return t.chrom
}

// ReverseStrand reports whether the transcript is on the reverse strand.
func (t *Transcript) ReverseStrand() bool {
	return t.reverse
}

// Bounds returns the 1-based inclusive genome span of the coding sequence.
func (t *Transcript) Bounds() (start, end int64) {
	return t.intervals[0] + 2, t.intervals[len(t.intervals)-1] + 1
}

// Edit adds an edit. pos is a 1-based genome coordinate: the substituted base
// for SNVs, the base directly before the inserted sequence for insertions,
// and the first deleted base for deletions. For deletions seq is either a
// decimal base count or a placeholder sequence of the deleted length.
//
// Edits are assumed to be phased and consistent; nothing prevents, say, an
// SNV inside a deleted stretch.
func (t *Transcript) Edit(seq string, pos int64, kind MutationKind, origin Origin) error {
	switch kind {
	case Deletion:
		n, err := strconv.Atoi(seq)
		if err != nil {
			n = len(seq)
		}
		return t.Delete(n, pos, origin)
	case SNV, Insertion:
		if err := checkOrigin(origin); err != nil {
			return err
		}
		t.edits[pos-1] = append(t.edits[pos-1], Edit{
			Seq:    strings.ToUpper(seq),
			Kind:   kind,
			Origin: origin,
		})
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedMutationKind, kind)
	}
}

// Delete removes n bases starting at the 1-based position pos.
func (t *Transcript) Delete(n int, pos int64, origin Origin) error {
	if err := checkOrigin(origin); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDeletion, n)
	}
	if n == 0 {
		return nil
	}
	t.deletions = append(t.deletions, deletion{
		start:  pos - 2,
		end:    pos + int64(n) - 2,
		origin: origin,
	})
	return nil
}

func checkOrigin(origin Origin) error {
	if origin != Germline && origin != Somatic {
		return fmt.Errorf("%w: %v", ErrUnsupportedOrigin, origin)
	}
	return nil
}

// Save records the current edits as the checkpoint restored by Reset(false).
func (t *Transcript) Save() {
	t.savedEdits = cloneEdits(t.edits)
	t.savedDeletions = slices.Clone(t.deletions)
}

// Reset discards edits. If toReference is true all edits are removed;
// otherwise the last checkpoint is restored, which is the edit-free state if
// Save was never called.
func (t *Transcript) Reset(toReference bool) {
	if toReference {
		t.edits = make(map[int64][]Edit)
		t.deletions = nil
		return
	}
	t.edits = cloneEdits(t.savedEdits)
	t.deletions = slices.Clone(t.savedDeletions)
}

func cloneEdits(edits map[int64][]Edit) map[int64][]Edit {
	out := make(map[int64][]Edit, len(edits))
	for pos, list := range maps.All(edits) {
		out[pos] = slices.Clone(list)
	}
	return out
}
