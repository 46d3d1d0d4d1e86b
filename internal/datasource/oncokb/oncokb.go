// Package oncokb loads the OncoKB cancer gene list and restricts neoepitope
// output to the genes it names.
package oncokb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/inodb/vibe-neo/internal/neoepitope"
)

// Annotation holds OncoKB gene-level annotations.
type Annotation struct {
	HugoSymbol string
	GeneType   string // "ONCOGENE", "TSG", or "ONCOGENE,TSG"
}

// CancerGeneList maps Hugo Symbol to Annotation.
type CancerGeneList map[string]*Annotation

// IsCancerGene returns true if the gene is in the cancer gene list.
func (c CancerGeneList) IsCancerGene(gene string) bool {
	_, ok := c[gene]
	return ok
}

// LoadCancerGeneList loads an OncoKB cancerGeneList.tsv file.
// The TSV must have columns "Hugo Symbol" and "Gene Type" in the header.
func LoadCancerGeneList(path string) (CancerGeneList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cancer gene list: %w", err)
	}
	defer f.Close()

	return ParseCancerGeneList(f)
}

// ParseCancerGeneList reads a cancer gene list from r.
func ParseCancerGeneList(r io.Reader) (CancerGeneList, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, fmt.Errorf("cancer gene list: empty file")
	}
	header := strings.Split(scanner.Text(), "\t")

	hugoIdx := -1
	geneTypeIdx := -1
	for i, col := range header {
		switch col {
		case "Hugo Symbol":
			hugoIdx = i
		case "Gene Type":
			geneTypeIdx = i
		}
	}
	if hugoIdx < 0 {
		return nil, fmt.Errorf("cancer gene list: missing 'Hugo Symbol' column")
	}
	if geneTypeIdx < 0 {
		return nil, fmt.Errorf("cancer gene list: missing 'Gene Type' column")
	}

	cgl := make(CancerGeneList)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) <= hugoIdx || len(fields) <= geneTypeIdx {
			continue
		}
		hugo := strings.TrimSpace(fields[hugoIdx])
		if hugo == "" {
			continue
		}
		cgl[hugo] = &Annotation{
			HugoSymbol: hugo,
			GeneType:   strings.TrimSpace(fields[geneTypeIdx]),
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cancer gene list: %w", err)
	}

	return cgl, nil
}

// Filter is a neoepitope.Writer that forwards only neoepitopes from
// transcripts of cancer genes.
type Filter struct {
	genes CancerGeneList
	next  neoepitope.Writer

	dropped int
}

// NewFilter wraps next.
func NewFilter(genes CancerGeneList, next neoepitope.Writer) *Filter {
	return &Filter{genes: genes, next: next}
}

// Write implements neoepitope.Writer.
func (f *Filter) Write(n *neoepitope.Neoepitope) error {
	if !f.genes.IsCancerGene(n.Transcript.GeneName) {
		f.dropped++
		return nil
	}
	return f.next.Write(n)
}

// Flush implements neoepitope.Writer.
func (f *Filter) Flush() error {
	return f.next.Flush()
}

// Dropped returns the number of neoepitopes withheld so far.
func (f *Filter) Dropped() int {
	return f.dropped
}
