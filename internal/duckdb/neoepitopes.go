package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-neo/internal/neoepitope"
)

// Record is one stored row: a neoepitope paired with one of the variants
// that produced it.
type Record struct {
	RunID        string
	Peptide      string
	Reference    string
	TranscriptID string
	GeneName     string
	Chrom        string
	Pos          int64
	Ref          string
	Alt          string
	MutationType string
	VAF          sql.NullFloat64
	Origin       string
	Haplotype    string // "block:copy"
}

// Records flattens a neoepitope into one record per contributing variant.
func Records(runID string, n *neoepitope.Neoepitope) []Record {
	out := make([]Record, 0, len(n.Alleles))
	for _, a := range n.Alleles {
		v := a.Variant
		r := Record{
			RunID:        runID,
			Peptide:      n.Peptide,
			Reference:    n.Reference,
			TranscriptID: n.Transcript.ID,
			GeneName:     n.Transcript.GeneName,
			Chrom:        v.NormalizeChrom(),
			Pos:          v.Pos,
			Ref:          v.Ref,
			Alt:          v.Alt,
			MutationType: neoepitope.MutationType(v),
			Origin:       "somatic",
			Haplotype:    strconv.Itoa(n.Block) + ":" + strconv.Itoa(n.Copy),
		}
		if f, ok := v.VAF(); ok {
			r.VAF = sql.NullFloat64{Float64: f, Valid: true}
		}
		if a.Germline {
			r.Origin = "germline"
		}
		out = append(out, r)
	}
	return out
}

// recordKey is the composite key for deduplicating records before writing.
type recordKey struct {
	runID, peptide, reference, transcriptID string
	chrom, ref, alt, haplotype              string
	pos                                     int64
}

// WriteRecords batch-inserts records into DuckDB using the Appender API.
// Duplicate records are written once.
func (s *Store) WriteRecords(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[recordKey]bool, len(records))
	deduped := make([]Record, 0, len(records))
	for _, r := range records {
		k := recordKey{r.RunID, r.Peptide, r.Reference, r.TranscriptID, r.Chrom, r.Ref, r.Alt, r.Haplotype, r.Pos}
		if !seen[k] {
			seen[k] = true
			deduped = append(deduped, r)
		}
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "neoepitopes")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		var vaf any
		if r.VAF.Valid {
			vaf = r.VAF.Float64
		}
		if err := appender.AppendRow(
			r.RunID, r.Peptide, r.Reference, r.TranscriptID, r.GeneName,
			r.Chrom, r.Pos, r.Ref, r.Alt, r.MutationType,
			vaf, r.Origin, r.Haplotype,
		); err != nil {
			return fmt.Errorf("append neoepitope: %w", err)
		}
	}

	return appender.Flush()
}

// LookupPeptide returns every stored record of a peptide across runs.
func (s *Store) LookupPeptide(peptide string) ([]Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+`
		FROM neoepitopes
		WHERE peptide=?
		ORDER BY run_id, transcript_id, chrom, pos`, strings.ToUpper(peptide))
	if err != nil {
		return nil, fmt.Errorf("query peptide: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RunNeoepitopes returns the records of one run ordered by peptide.
func (s *Store) RunNeoepitopes(runID string) ([]Record, error) {
	rows, err := s.db.Query(`SELECT `+recordColumns+`
		FROM neoepitopes
		WHERE run_id=?
		ORDER BY peptide, transcript_id, chrom, pos`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

const recordColumns = `run_id, peptide, reference, transcript_id, gene_name,
		chrom, pos, ref, alt, mutation_type, vaf, origin, haplotype`

// scanRecords scans rows into Record slices.
func scanRecords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.RunID, &r.Peptide, &r.Reference, &r.TranscriptID, &r.GeneName,
			&r.Chrom, &r.Pos, &r.Ref, &r.Alt, &r.MutationType,
			&r.VAF, &r.Origin, &r.Haplotype,
		); err != nil {
			return nil, fmt.Errorf("scan neoepitope: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neoepitopes: %w", err)
	}
	return records, nil
}

// RunWriter stores the neoepitopes of one run. It implements
// neoepitope.Writer; records are buffered until Flush.
type RunWriter struct {
	store   *Store
	runID   string
	pending []Record
}

// NewRunWriter returns a writer adding records to the given run.
func (s *Store) NewRunWriter(runID string) *RunWriter {
	return &RunWriter{store: s, runID: runID}
}

// Write buffers a neoepitope.
func (w *RunWriter) Write(n *neoepitope.Neoepitope) error {
	w.pending = append(w.pending, Records(w.runID, n)...)
	return nil
}

// Flush writes the buffered records.
func (w *RunWriter) Flush() error {
	if err := w.store.WriteRecords(w.pending); err != nil {
		return err
	}
	w.pending = nil
	return nil
}
