// Package maf reads somatic variants from MAF (Mutation Annotation Format)
// files as an alternative to VCF input.
package maf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-neo/internal/vcf"
)

// Standard MAF column names
const (
	ColChromosome         = "Chromosome"
	ColStartPosition      = "Start_Position"
	ColReferenceAllele    = "Reference_Allele"
	ColTumorSeqAllele2    = "Tumor_Seq_Allele2"
	ColTumorSampleBarcode = "Tumor_Sample_Barcode"
	ColMutationStatus     = "Mutation_Status"
	ColTRefCount          = "t_ref_count"
	ColTAltCount          = "t_alt_count"
)

// ColumnIndices holds the indices of the MAF columns the parser reads.
type ColumnIndices struct {
	Chromosome         int
	StartPosition      int
	ReferenceAllele    int
	TumorSeqAllele2    int
	TumorSampleBarcode int
	MutationStatus     int
	TRefCount          int
	TAltCount          int
}

// Parser reads variants from a MAF file. Records are returned as VCF
// variants with unanchored alleles: "-" becomes an empty allele, and an
// insertion is placed at the first base after its insertion point.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	columns    ColumnIndices

	sample       string
	germlineFlag string
}

// NewParser creates a new MAF parser for the given file.
// Supports both plain MAF and gzipped MAF (.maf.gz) files.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open maf file: %w", err)
	}

	p := &Parser{file: file, germlineFlag: "GERMLINE"}

	// Check for gzip magic bytes
	buf := make([]byte, 2)
	if _, err := io.ReadFull(file, buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("read maf header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek maf file: %w", err)
	}

	if buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	if err := p.parseHeader(); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader:       bufio.NewReader(r),
		germlineFlag: "GERMLINE",
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// SetSample keeps only records whose Tumor_Sample_Barcode is sample.
// An empty sample keeps every record.
func (p *Parser) SetSample(sample string) {
	p.sample = sample
}

// SetGermlineFlag sets the INFO flag raised on records whose
// Mutation_Status is Germline.
func (p *Parser) SetGermlineFlag(name string) {
	p.germlineFlag = name
}

// parseHeader skips comment lines and reads the column header.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return &ParseError{
					Line:    p.lineNumber,
					Message: "no header line found",
				}
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return p.parseColumnIndices(line)
	}
}

// parseColumnIndices parses the header line to find column indices.
func (p *Parser) parseColumnIndices(headerLine string) error {
	p.columns = ColumnIndices{
		Chromosome:         -1,
		StartPosition:      -1,
		ReferenceAllele:    -1,
		TumorSeqAllele2:    -1,
		TumorSampleBarcode: -1,
		MutationStatus:     -1,
		TRefCount:          -1,
		TAltCount:          -1,
	}

	for i, col := range strings.Split(headerLine, "\t") {
		switch col {
		case ColChromosome:
			p.columns.Chromosome = i
		case ColStartPosition:
			p.columns.StartPosition = i
		case ColReferenceAllele:
			p.columns.ReferenceAllele = i
		case ColTumorSeqAllele2:
			p.columns.TumorSeqAllele2 = i
		case ColTumorSampleBarcode:
			p.columns.TumorSampleBarcode = i
		case ColMutationStatus:
			p.columns.MutationStatus = i
		case ColTRefCount:
			p.columns.TRefCount = i
		case ColTAltCount:
			p.columns.TAltCount = i
		}
	}

	required := []struct {
		name string
		idx  int
	}{
		{ColChromosome, p.columns.Chromosome},
		{ColStartPosition, p.columns.StartPosition},
		{ColReferenceAllele, p.columns.ReferenceAllele},
		{ColTumorSeqAllele2, p.columns.TumorSeqAllele2},
	}
	for _, r := range required {
		if r.idx == -1 {
			return &ParseError{
				Line:    p.lineNumber,
				Message: fmt.Sprintf("required column '%s' not found in header", r.name),
			}
		}
	}
	return nil
}

// Next reads the next variant from the MAF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*vcf.Variant, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if p.sample != "" && field(fields, p.columns.TumorSampleBarcode) != p.sample {
			continue
		}
		return p.parseLine(fields)
	}
}

// parseLine converts the fields of one MAF record into a Variant.
func (p *Parser) parseLine(fields []string) (*vcf.Variant, error) {
	minCols := max(p.columns.Chromosome, p.columns.StartPosition, p.columns.ReferenceAllele, p.columns.TumorSeqAllele2)
	if len(fields) <= minCols {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", minCols+1, len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[p.columns.StartPosition], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[p.columns.StartPosition]),
		}
	}

	ref := fields[p.columns.ReferenceAllele]
	alt := fields[p.columns.TumorSeqAllele2]
	if alt == "-" {
		alt = ""
	}
	if ref == "-" {
		// Start_Position is the base before the inserted bases.
		ref = ""
		pos++
	}

	v := &vcf.Variant{
		Chrom:  fields[p.columns.Chromosome],
		Pos:    pos,
		ID:     ".",
		Ref:    ref,
		Alt:    alt,
		Filter: ".",
		Info:   make(map[string]interface{}),
	}

	if vaf, ok := alleleFraction(field(fields, p.columns.TRefCount), field(fields, p.columns.TAltCount)); ok {
		v.Info["AF"] = strconv.FormatFloat(vaf, 'f', -1, 64)
	}
	if p.germlineFlag != "" && strings.EqualFold(field(fields, p.columns.MutationStatus), "Germline") {
		v.Info[p.germlineFlag] = true
	}

	return v, nil
}

// alleleFraction computes alt / (ref + alt) from read counts.
func alleleFraction(refCount, altCount string) (float64, bool) {
	r, err := strconv.Atoi(refCount)
	if err != nil {
		return 0, false
	}
	a, err := strconv.Atoi(altCount)
	if err != nil || r+a == 0 {
		return 0, false
	}
	return float64(a) / float64(r+a), true
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

// Columns returns the parsed column indices.
func (p *Parser) Columns() ColumnIndices {
	return p.columns
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error during MAF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("maf parse error at line %d: %s", e.Line, e.Message)
}
