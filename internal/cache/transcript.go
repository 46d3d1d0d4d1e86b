// Package cache loads transcript models from GENCODE annotations.
package cache

import (
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/transcript"
)

// Transcript is a transcript model: GTF metadata plus its CDS records.
type Transcript struct {
	ID           string           // Transcript ID (e.g., ENST00000311936)
	GeneID       string           // Parent gene ID
	GeneName     string           // Parent gene symbol
	Chrom        string           // Chromosome, without "chr" prefix
	Start        int64            // Transcript start (1-based)
	End          int64            // Transcript end (1-based, inclusive)
	Strand       int8             // +1 or -1
	Biotype      string           // Transcript biotype
	IsCanonical  bool             // Ensembl canonical flag
	IsMANESelect bool             // MANE Select transcript
	CDS          []transcript.CDS // CDS records in genomic order
	CDSStart     int64            // CDS start (genomic, 1-based), 0 if non-coding
	CDSEnd       int64            // CDS end (genomic, 1-based), 0 if non-coding
}

// IsProteinCoding returns true if the transcript has a coding sequence.
// This includes protein_coding, nonsense_mediated_decay, IG/TR gene segments,
// and any other biotype with CDS features in GENCODE.
func (t *Transcript) IsProteinCoding() bool {
	return len(t.CDS) > 0 && t.CDSStart > 0 && t.CDSEnd > 0
}

// OverlapsCDS reports whether [start, end] touches a coding base.
func (t *Transcript) OverlapsCDS(start, end int64) bool {
	if !t.IsProteinCoding() || end < t.CDSStart || start > t.CDSEnd {
		return false
	}
	for _, c := range t.CDS {
		if start <= c.End && end >= c.Start {
			return true
		}
	}
	return false
}

// Editable returns a fresh editable transcript reading sequence from g.
func (t *Transcript) Editable(g genome.Reader) (*transcript.Transcript, error) {
	return transcript.New(g, t.CDS)
}
