// Package transcript reconstructs edited coding sequences for one transcript.
//
// A Transcript holds the CDS boundaries of a single transcript, accumulates
// phased edits (SNVs, insertions, deletions) of germline or somatic origin,
// and assembles the spliced, edited sequence for any genomic range with the
// provenance of every base. Edits can be checkpointed with Save and rolled
// back with Reset, so several edit combinations can be explored on the same
// instance.
//
// Coordinates passed to the exported API are 1-based genome coordinates.
// Internally, blocks are stored as 0-based (exclusive start, inclusive end)
// pairs.
package transcript

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedMutationKind is returned by Edit for kinds other than
	// SNV, Insertion and Deletion.
	ErrUnsupportedMutationKind = errors.New("unsupported mutation kind")

	// ErrUnsupportedOrigin is returned by Edit for origins other than
	// Germline and Somatic.
	ErrUnsupportedOrigin = errors.New("unsupported edit origin")

	// ErrNegativeDeletion is returned by Delete for a negative base count.
	ErrNegativeDeletion = errors.New("negative deletion length")

	// ErrMalformedCDS is returned when CDS records cannot form a transcript.
	ErrMalformedCDS = errors.New("malformed CDS")
)

// Origin is the provenance of a stretch of sequence.
type Origin byte

const (
	Reference Origin = 'R'
	Germline  Origin = 'G'
	Somatic   Origin = 'S'
)

func (o Origin) String() string {
	switch o {
	case Reference:
		return "reference"
	case Germline:
		return "germline"
	case Somatic:
		return "somatic"
	default:
		return fmt.Sprintf("Origin(%q)", byte(o))
	}
}

// MutationKind is the kind of an edit.
type MutationKind byte

const (
	SNV       MutationKind = 'V'
	Insertion MutationKind = 'I'
	Deletion  MutationKind = 'D'
)

func (k MutationKind) String() string {
	switch k {
	case SNV:
		return "SNV"
	case Insertion:
		return "insertion"
	case Deletion:
		return "deletion"
	default:
		return fmt.Sprintf("MutationKind(%q)", byte(k))
	}
}

// Edit is a point edit: an SNV replacing one base, or an insertion placed
// after its anchor base.
type Edit struct {
	Seq    string
	Kind   MutationKind
	Origin Origin
}

// Fragment is a stretch of assembled sequence sharing one origin.
// An empty Seq with a non-reference Origin marks a deletion.
type Fragment struct {
	Seq    string
	Origin Origin
}

// Boundary is a block boundary in 0-based genome coordinates. In a boundary
// list, even-indexed entries are exclusive block starts and odd-indexed
// entries are inclusive block ends. Origin records whether the boundary comes
// from the CDS (Reference) or from a germline or somatic deletion.
type Boundary struct {
	Pos    int64
	Origin Origin
}

// OriginSet is a set of non-reference origins.
type OriginSet uint8

const (
	germlineBit OriginSet = 1 << iota
	somaticBit
)

// Add returns s with o added. Reference is ignored.
func (s OriginSet) Add(o Origin) OriginSet {
	switch o {
	case Germline:
		return s | germlineBit
	case Somatic:
		return s | somaticBit
	}
	return s
}

// Has reports whether o is in s.
func (s OriginSet) Has(o Origin) bool {
	switch o {
	case Germline:
		return s&germlineBit != 0
	case Somatic:
		return s&somaticBit != 0
	}
	return false
}

// String returns a comma-separated list such as "germline,somatic".
func (s OriginSet) String() string {
	var parts []string
	if s.Has(Germline) {
		parts = append(parts, Germline.String())
	}
	if s.Has(Somatic) {
		parts = append(parts, Somatic.String())
	}
	return strings.Join(parts, ",")
}
