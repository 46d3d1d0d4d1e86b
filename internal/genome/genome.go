// Package genome provides random access to reference genome sequence.
package genome

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownContig is returned when a chromosome is not present in the reference.
var ErrUnknownContig = errors.New("unknown contig")

// Reader retrieves stretches of reference sequence.
// Implementations must be safe for concurrent use.
type Reader interface {
	// Stretch returns length bases of chrom starting at the 0-based
	// coordinate start. Bases are uppercase.
	Stretch(chrom string, start, length int64) (string, error)
}

// Memory is a Reader backed by in-memory sequences keyed by chromosome name.
type Memory map[string]string

// Stretch implements Reader.
func (m Memory) Stretch(chrom string, start, length int64) (string, error) {
	name, ok := resolveName(chrom, func(n string) bool {
		_, ok := m[n]
		return ok
	})
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownContig, chrom)
	}
	seq := m[name]
	if start < 0 || length < 0 || start+length > int64(len(seq)) {
		return "", fmt.Errorf("range %d+%d out of bounds for %s (length %d)", start, length, chrom, len(seq))
	}
	return strings.ToUpper(seq[start : start+length]), nil
}

// resolveName finds the name under which chrom is stored, trying the name
// as given and then with the "chr" prefix added or removed.
func resolveName(chrom string, has func(string) bool) (string, bool) {
	if has(chrom) {
		return chrom, true
	}
	var alt string
	if strings.HasPrefix(chrom, "chr") {
		alt = chrom[3:]
	} else {
		alt = "chr" + chrom
	}
	if has(alt) {
		return alt, true
	}
	// Mitochondrial naming differs between GENCODE (chrM) and Ensembl (MT).
	switch chrom {
	case "MT", "chrMT":
		if has("chrM") {
			return "chrM", true
		}
	case "M", "chrM":
		if has("MT") {
			return "MT", true
		}
	}
	return "", false
}
