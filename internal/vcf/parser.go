package vcf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Parser reads variants from a VCF file. Records whose ALT alleles are all
// symbolic, breakends, spanning deletions or missing are skipped.
type Parser struct {
	reader      *bufio.Reader
	closers     []io.Closer
	lineNumber  int
	header      []string
	sampleNames []string // sample names from #CHROM header line
	sample      int      // sample column read by Variant.VAF
	skipped     int
}

// NewParser opens a plain or gzipped VCF file. A path of "-" reads stdin.
func NewParser(path string) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	p, err := NewParserFromReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.closers = append(p.closers, file)
	return p, nil
}

// NewParserFromReader reads VCF from r, decompressing it when it starts
// with the gzip magic bytes.
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{reader: bufio.NewReader(r)}

	if magic, err := p.reader.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(p.reader)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(gz)
		p.closers = append(p.closers, gz)
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator. A final line
// without a newline is still returned; io.EOF follows it.
func (p *Parser) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	p.lineNumber++
	return strings.TrimRight(line, "\r\n"), nil
}

// parseHeader stores the meta lines and the #CHROM line.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return &ParseError{Line: p.lineNumber, Message: "no #CHROM header line found"}
		}
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "##"):
			p.header = append(p.header, line)
		case strings.HasPrefix(line, "#CHROM"):
			p.header = append(p.header, line)
			if fields := strings.Split(line, "\t"); len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			return nil
		default:
			return &ParseError{Line: p.lineNumber, Message: "expected #CHROM header line"}
		}
	}
}

// SetSample selects the sample column whose FORMAT values are used for the
// variant allele fraction. The first sample is used by default.
func (p *Parser) SetSample(name string) error {
	for i, s := range p.sampleNames {
		if s == name {
			p.sample = i
			return nil
		}
	}
	return fmt.Errorf("sample %q not in VCF header (samples: %s)", name, strings.Join(p.sampleNames, ", "))
}

// Next reads the next variant. Returns nil, nil when there are no more
// variants.
func (p *Parser) Next() (*Variant, error) {
	for {
		line, err := p.readLine()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if line == "" {
			continue
		}

		v, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		if !anyApplicable(v.Alt) {
			p.skipped++
			continue
		}
		return v, nil
	}
}

// parseLine parses a single VCF data line into a Variant.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	v := &Variant{
		Chrom:   fields[0],
		Pos:     pos,
		ID:      fields[2],
		Ref:     fields[3],
		Alt:     fields[4],
		Qual:    qual,
		Filter:  fields[6],
		Info:    parseInfo(fields[7]),
		RawInfo: fields[7],
		Sample:  p.sample,
	}
	if len(fields) > 8 {
		v.SampleColumns = strings.Join(fields[8:], "\t")
	}
	return v, nil
}

// parseInfo parses the INFO field into a map. Flags map to true.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." {
		return result
	}
	for _, kv := range strings.Split(info, ";") {
		if key, val, ok := strings.Cut(kv, "="); ok {
			result[key] = val
		} else {
			result[key] = true
		}
	}
	return result
}

// applicable reports whether alt is a sequence allele that can be applied
// to a transcript.
func applicable(alt string) bool {
	return alt != "." && alt != "*" && !strings.ContainsAny(alt, "<>[]")
}

func anyApplicable(alts string) bool {
	for _, alt := range strings.Split(alts, ",") {
		if applicable(alt) {
			return true
		}
	}
	return false
}

// SplitMultiAllelic splits a multi-allelic variant into one variant per ALT
// allele. AltIndex records each allele's position in the original record.
func SplitMultiAllelic(v *Variant) []*Variant {
	alts := strings.Split(v.Alt, ",")
	if len(alts) == 1 {
		return []*Variant{v}
	}

	variants := make([]*Variant, len(alts))
	for i, alt := range alts {
		split := *v
		split.Alt = alt
		split.AltIndex = i
		variants[i] = &split
	}
	return variants
}

// Header returns the VCF header lines.
func (p *Parser) Header() []string {
	return p.header
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// Skipped returns the number of records dropped for having no applicable
// ALT allele.
func (p *Parser) Skipped() int {
	return p.skipped
}

// Close closes the decompressor and the underlying file.
func (p *Parser) Close() error {
	var err error
	for _, c := range p.closers {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
