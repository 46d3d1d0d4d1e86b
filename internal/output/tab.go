// Package output provides neoepitope output formatters.
package output

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-neo/internal/neoepitope"
)

// Columns of the neoepitope table.
var Columns = []string{
	"Neoepitope",
	"Reference",
	"Chromosome",
	"Pos",
	"Ref",
	"Alt",
	"Mutation_type",
	"VAF",
	"Origin",
	"Transcript_ID",
	"Gene",
}

// TabWriter writes neoepitopes in tab-delimited format. Rows are held until
// Flush, which writes them sorted by peptide and transcript. A peptide
// produced by several haplotypes of a transcript from the same variants is
// written once.
type TabWriter struct {
	w    *bufio.Writer
	rows map[string][]string
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{
		w:    bufio.NewWriter(w),
		rows: make(map[string][]string),
	}
}

// Write buffers a single neoepitope.
func (tw *TabWriter) Write(n *neoepitope.Neoepitope) error {
	row := Row(n)
	key := strings.Join(row, "\t")
	tw.rows[key] = row
	return nil
}

// Flush writes the header and every buffered row.
func (tw *TabWriter) Flush() error {
	rows := make([][]string, 0, len(tw.rows))
	for _, row := range tw.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})

	if _, err := tw.w.WriteString(strings.Join(Columns, "\t") + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := tw.w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}
	clear(tw.rows)
	return tw.w.Flush()
}

// Row formats n as the fields of one table row. Per-variant fields list one
// value per contributing variant, separated by ";".
func Row(n *neoepitope.Neoepitope) []string {
	var chroms, positions, refs, alts, types, vafs, origins []string
	for _, a := range n.Alleles {
		v := a.Variant
		pos, ref, alt := neoepitope.TrimAlleles(v.Pos, strings.ToUpper(v.Ref), strings.ToUpper(v.Alt))
		if v.IsSNV() || v.IsMNV() {
			pos, ref, alt = v.Pos, v.Ref, v.Alt
		}

		chroms = append(chroms, v.Chrom)
		positions = append(positions, strconv.FormatInt(pos, 10))
		refs = append(refs, orStar(ref))
		alts = append(alts, orStar(alt))
		types = append(types, neoepitope.MutationType(v))

		vaf := "NA"
		if f, ok := v.VAF(); ok {
			vaf = strconv.FormatFloat(f, 'f', -1, 64)
		}
		vafs = append(vafs, vaf)

		origin := "somatic"
		if a.Germline {
			origin = "germline"
		}
		origins = append(origins, origin)
	}

	reference := n.Reference
	if reference == "" {
		reference = "NA"
	}
	gene := n.Transcript.GeneName
	if gene == "" {
		gene = n.Transcript.GeneID
	}

	return []string{
		n.Peptide,
		reference,
		strings.Join(chroms, ";"),
		strings.Join(positions, ";"),
		strings.Join(refs, ";"),
		strings.Join(alts, ";"),
		strings.Join(types, ";"),
		strings.Join(vafs, ";"),
		strings.Join(origins, ";"),
		n.Transcript.ID,
		orDash(gene),
	}
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
