package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CanonicalOverrides maps gene symbol -> canonical transcript ID.
type CanonicalOverrides map[string]string

// Genome Nexus canonical transcript file URLs.
const (
	canonicalFileGRCh38 = "https://raw.githubusercontent.com/genome-nexus/genome-nexus-importer/master/data/grch38_ensembl95/export/ensembl_biomart_canonical_transcripts_per_hgnc.txt"
	canonicalFileGRCh37 = "https://raw.githubusercontent.com/genome-nexus/genome-nexus-importer/master/data/grch37_ensembl92/export/ensembl_biomart_canonical_transcripts_per_hgnc.txt"

	// CanonicalFileName is the local name of the downloaded overrides file.
	CanonicalFileName = "ensembl_biomart_canonical_transcripts_per_hgnc.txt"
)

// CanonicalFileURL returns the URL for the canonical transcript file for the given assembly.
func CanonicalFileURL(assembly string) string {
	if strings.EqualFold(assembly, "GRCh37") {
		return canonicalFileGRCh37
	}
	return canonicalFileGRCh38
}

// LoadCanonicalOverrides loads canonical transcript overrides from a Genome Nexus TSV file.
// The file has columns: hgnc_symbol (col 0) and genome_nexus_canonical_transcript (col 4).
func LoadCanonicalOverrides(path string) (CanonicalOverrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open canonical overrides file: %w", err)
	}
	defer f.Close()

	return parseCanonicalOverrides(f)
}

func parseCanonicalOverrides(reader io.Reader) (CanonicalOverrides, error) {
	overrides := make(CanonicalOverrides)
	scanner := bufio.NewScanner(reader)

	// header
	if !scanner.Scan() {
		return overrides, scanner.Err()
	}

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) < 5 {
			continue
		}
		gene, id := fields[0], fields[4]
		if gene == "" || id == "" || id == "nan" {
			continue
		}
		overrides[gene] = stripVersion(id)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan canonical overrides: %w", err)
	}
	return overrides, nil
}

// Apply re-flags canonical transcripts. A transcript whose gene has an
// override is canonical only if it is the named transcript; genes without
// an override keep the Ensembl flag.
func (o CanonicalOverrides) Apply(transcripts map[string]*Transcript) {
	for id, t := range transcripts {
		if want, ok := o[t.GeneName]; ok {
			t.IsCanonical = id == want
		}
	}
}
