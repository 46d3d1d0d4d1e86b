package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-neo/internal/neoepitope"
	"github.com/inodb/vibe-neo/internal/vcf"
)

// NEO sub-field names.
var neoFields = []string{
	"Allele",
	"Neoepitope",
	"Reference",
	"Transcript_ID",
	"Gene",
}

// VCFWriter writes the input variants back out with a NEO INFO field
// listing the neoepitopes each one contributes to. Neoepitopes are held
// until Flush, which writes the header and every variant in input order.
// Consecutive records at the same position are merged into one
// multi-allelic line.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
	variants    []*vcf.Variant

	entries map[string][]string // variant key -> NEO entries
	seen    map[string]bool     // variant key + entry
}

// NewVCFWriter creates a VCF writer for variants read with the given header.
func NewVCFWriter(w io.Writer, headerLines []string, variants []*vcf.Variant) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
		variants:    variants,
		entries:     make(map[string][]string),
		seen:        make(map[string]bool),
	}
}

// Write records n against each of its contributing variants.
func (vw *VCFWriter) Write(n *neoepitope.Neoepitope) error {
	for _, a := range n.Alleles {
		key := a.Variant.Key()
		entry := neoEntry(a.Variant.Alt, n)
		if vw.seen[key+"\x00"+entry] {
			continue
		}
		vw.seen[key+"\x00"+entry] = true
		vw.entries[key] = append(vw.entries[key], entry)
	}
	return nil
}

// Flush writes the header and every variant, then flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	if err := vw.writeHeader(); err != nil {
		return err
	}
	for i := 0; i < len(vw.variants); {
		j := i + 1
		for j < len(vw.variants) && samePosition(vw.variants[i], vw.variants[j]) {
			j++
		}
		if err := vw.writeRecord(vw.variants[i:j]); err != nil {
			return err
		}
		i = j
	}
	clear(vw.entries)
	clear(vw.seen)
	return vw.w.Flush()
}

// writeHeader writes the original header lines with the NEO INFO line
// inserted before #CHROM.
func (vw *VCFWriter) writeHeader() error {
	neoLine := fmt.Sprintf(
		"##INFO=<ID=NEO,Number=.,Type=String,Description=\"Neoepitopes from vibe-neo. Format: %s\">",
		strings.Join(neoFields, "|"),
	)

	lines := vw.headerLines
	if len(lines) == 0 {
		lines = []string{"##fileformat=VCFv4.2", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"}
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "##INFO=<ID=NEO,") {
			continue
		}
		if strings.HasPrefix(line, "#CHROM") {
			if _, err := vw.w.WriteString(neoLine + "\n"); err != nil {
				return err
			}
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// writeRecord writes variants sharing one position as a single VCF line.
func (vw *VCFWriter) writeRecord(vars []*vcf.Variant) error {
	v := vars[0]

	var alts, neo []string
	for _, x := range vars {
		alts = append(alts, x.Alt)
		neo = append(neo, vw.entries[x.Key()]...)
	}

	var lb strings.Builder
	lb.Grow(256)

	lb.WriteString(v.Chrom)
	lb.WriteByte('\t')
	lb.WriteString(strconv.FormatInt(v.Pos, 10))
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.ID))
	lb.WriteByte('\t')
	lb.WriteString(v.Ref)
	lb.WriteByte('\t')
	lb.WriteString(strings.Join(alts, ","))
	lb.WriteByte('\t')
	if v.Qual != 0 {
		lb.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
	} else {
		lb.WriteByte('.')
	}
	lb.WriteByte('\t')
	lb.WriteString(orDot(v.Filter))
	lb.WriteByte('\t')

	info := stripNEO(v.RawInfo)
	switch {
	case len(neo) == 0:
		lb.WriteString(info)
	case info == ".":
		lb.WriteString("NEO=")
		lb.WriteString(strings.Join(neo, ","))
	default:
		lb.WriteString(info)
		lb.WriteString(";NEO=")
		lb.WriteString(strings.Join(neo, ","))
	}

	if v.SampleColumns != "" {
		lb.WriteByte('\t')
		lb.WriteString(v.SampleColumns)
	}
	lb.WriteByte('\n')

	_, err := vw.w.WriteString(lb.String())
	return err
}

// neoEntry formats n as a pipe-delimited NEO entry for one ALT allele.
func neoEntry(alt string, n *neoepitope.Neoepitope) string {
	gene := n.Transcript.GeneName
	if gene == "" {
		gene = n.Transcript.GeneID
	}
	return strings.Join([]string{alt, n.Peptide, n.Reference, n.Transcript.ID, gene}, "|")
}

func samePosition(a, b *vcf.Variant) bool {
	return a.Chrom == b.Chrom && a.Pos == b.Pos && a.Ref == b.Ref
}

// stripNEO removes any existing NEO field from a raw INFO string.
func stripNEO(rawInfo string) string {
	if rawInfo == "" || rawInfo == "." {
		return "."
	}
	if !strings.Contains(rawInfo, "NEO") {
		return rawInfo
	}

	var kept []string
	for _, field := range strings.Split(rawInfo, ";") {
		if strings.HasPrefix(field, "NEO=") || field == "NEO" {
			continue
		}
		kept = append(kept, field)
	}
	if len(kept) == 0 {
		return "."
	}
	return strings.Join(kept, ";")
}

func orDot(s string) string {
	if s == "" {
		return "."
	}
	return s
}
