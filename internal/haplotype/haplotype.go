// Package haplotype reads phased variant blocks written by HapCUT2 and
// combines them with unphased VCF variants.
//
// HapCUT2 writes one block per phase set:
//
//	BLOCK: offset: 1 len: 2 phased: 2 SPAN: 14 fragments 3
//	1	0	1	chr1	100	A	G	0/1:...	0	.	100.0
//	2	1	0	chr1	114	C	T,G	1/2:...	0	.	100.0
//	********
//
// Columns are the VCF line index, the allele index on copy 1 and copy 2
// ("-" when unphased), chromosome, position, REF, comma-separated ALT and the
// genotype. A line ending in "*" marks a germline variant.
package haplotype

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

const blockSeparator = "********"

// Allele is one variant allele carried by a haplotype.
type Allele struct {
	Variant  *vcf.Variant // Alt is the allele on this copy
	Germline bool
}

// Haplotype is the set of alleles found together on one chromosome copy.
type Haplotype struct {
	Block   int // 0-based block index in input order
	Copy    int // 1 or 2; 0 for an unphased singleton
	Alleles []Allele
}

// ParseError represents an error during haplotype parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("haplotype parse error at line %d: %s", e.Line, e.Message)
}

// ReadFile parses a HapCUT2 output file, gzipped or plain.
func ReadFile(path string) ([]Haplotype, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open haplotype file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	return Parse(r)
}

// Parse reads HapCUT2 blocks from r. Each block yields up to two haplotypes,
// one per chromosome copy that carries at least one non-reference allele.
func Parse(r io.Reader) ([]Haplotype, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		haps       []Haplotype
		copies     [2][]Allele
		block      int
		open       bool
		lineNumber int
	)
	flush := func() {
		if !open {
			return
		}
		for i, alleles := range copies {
			if len(alleles) > 0 {
				haps = append(haps, Haplotype{Block: block, Copy: i + 1, Alleles: alleles})
			}
		}
		copies = [2][]Allele{}
		block++
		open = false
	}

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, blockSeparator):
			flush()
			continue
		case strings.HasPrefix(line, "BLOCK"):
			flush()
			open = true
			continue
		}

		germline := strings.HasSuffix(line, "*")
		fields := strings.Fields(strings.TrimSuffix(line, "*"))
		if len(fields) < 7 {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("expected at least 7 columns, found %d", len(fields))}
		}
		pos, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("invalid position: %s", fields[4])}
		}
		alts := strings.Split(fields[6], ",")

		open = true
		for i, field := range fields[1:3] {
			if field == "-" || field == "0" {
				continue
			}
			idx, err := strconv.Atoi(field)
			if err != nil || idx < 1 || idx > len(alts) {
				return nil, &ParseError{Line: lineNumber, Message: fmt.Sprintf("invalid allele %q for copy %d", field, i+1)}
			}
			copies[i] = append(copies[i], Allele{
				Variant: &vcf.Variant{
					Chrom: fields[3],
					Pos:   pos,
					Ref:   fields[5],
					Alt:   alts[idx-1],
				},
				Germline: germline,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan haplotypes: %w", err)
	}
	flush()
	return haps, nil
}

// AddUnphased attaches VCF records to the phased alleles they describe and
// appends every remaining VCF variant as its own unphased haplotype. A
// variant is germline when its INFO column sets germlineFlag.
func AddUnphased(haps []Haplotype, variants []*vcf.Variant, germlineFlag string) []Haplotype {
	byKey := make(map[string]*vcf.Variant, len(variants))
	for _, v := range variants {
		byKey[v.Key()] = v
	}

	phased := make(map[string]bool)
	nextBlock := 0
	for i := range haps {
		nextBlock = max(nextBlock, haps[i].Block+1)
		for j := range haps[i].Alleles {
			a := &haps[i].Alleles[j]
			key := a.Variant.Key()
			phased[key] = true
			if v, ok := byKey[key]; ok {
				a.Variant = v
				a.Germline = a.Germline || (germlineFlag != "" && v.HasFlag(germlineFlag))
			}
		}
	}

	for _, v := range variants {
		key := v.Key()
		if phased[key] {
			continue
		}
		phased[key] = true
		haps = append(haps, Haplotype{
			Block: nextBlock,
			Alleles: []Allele{{
				Variant:  v,
				Germline: germlineFlag != "" && v.HasFlag(germlineFlag),
			}},
		})
		nextBlock++
	}
	return haps
}

// FromVCF makes every variant its own unphased haplotype.
func FromVCF(variants []*vcf.Variant, germlineFlag string) []Haplotype {
	return AddUnphased(nil, variants, germlineFlag)
}
