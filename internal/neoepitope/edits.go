package neoepitope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/inodb/vibe-neo/internal/transcript"
	"github.com/inodb/vibe-neo/internal/vcf"
)

// ErrUnsupportedAllele is returned for symbolic or malformed alleles.
var ErrUnsupportedAllele = errors.New("unsupported allele")

// Edit is a single transcript edit derived from a variant.
type Edit struct {
	Seq    string // bases for SNV and insertion, base count for deletion
	Pos    int64
	Kind   transcript.MutationKind
	Origin transcript.Origin
}

// Apply records the edit on t.
func (e Edit) Apply(t *transcript.Transcript) error {
	return t.Edit(e.Seq, e.Pos, e.Kind, e.Origin)
}

// ToEdits converts a biallelic variant to transcript edits. An MNV becomes
// one SNV per changed base. Indels and complex alleles are trimmed of their
// shared prefix and suffix; what remains is a deletion of the reference
// bases followed by an insertion of the alternate bases. Either allele may
// be empty, as in MAF records, in which case Pos is the first base after
// the insertion point.
func ToEdits(v *vcf.Variant, origin transcript.Origin) ([]Edit, error) {
	ref, alt := strings.ToUpper(v.Ref), strings.ToUpper(v.Alt)
	if !isBases(ref) || !isBases(alt) || ref == alt {
		return nil, fmt.Errorf("%w: %s>%s", ErrUnsupportedAllele, v.Ref, v.Alt)
	}

	if len(ref) == len(alt) {
		var edits []Edit
		for i := range len(ref) {
			if ref[i] != alt[i] {
				edits = append(edits, Edit{Seq: alt[i : i+1], Pos: v.Pos + int64(i), Kind: transcript.SNV, Origin: origin})
			}
		}
		return edits, nil
	}

	pos, r, a := TrimAlleles(v.Pos, ref, alt)
	var edits []Edit
	if r != "" {
		edits = append(edits, Edit{Seq: strconv.Itoa(len(r)), Pos: pos, Kind: transcript.Deletion, Origin: origin})
	}
	if a != "" {
		// Inserted after the base preceding the trimmed alleles.
		edits = append(edits, Edit{Seq: a, Pos: pos - 1, Kind: transcript.Insertion, Origin: origin})
	}
	return edits, nil
}

// TrimAlleles removes the bases ref and alt share at either end and returns
// the position of the first remaining base. Either allele may come back
// empty.
func TrimAlleles(pos int64, ref, alt string) (int64, string, string) {
	p := 0
	for p < len(ref) && p < len(alt) && ref[p] == alt[p] {
		p++
	}
	s := 0
	for s < len(ref)-p && s < len(alt)-p && ref[len(ref)-1-s] == alt[len(alt)-1-s] {
		s++
	}
	return pos + int64(p), ref[p : len(ref)-s], alt[p : len(alt)-s]
}

// MutationType names the kind of change a variant makes.
func MutationType(v *vcf.Variant) string {
	switch {
	case v.IsSNV():
		return "snv"
	case v.IsMNV():
		return "mnv"
	}
	_, r, a := TrimAlleles(v.Pos, strings.ToUpper(v.Ref), strings.ToUpper(v.Alt))
	switch {
	case r == "":
		return "insertion"
	case a == "":
		return "deletion"
	default:
		return "complex"
	}
}

func isBases(s string) bool {
	for i := range len(s) {
		switch s[i] {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return false
		}
	}
	return true
}
