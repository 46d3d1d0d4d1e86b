package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/inodb/vibe-neo/internal/transcript"
)

// LoadOptions restricts which transcripts a GTFLoader keeps.
type LoadOptions struct {
	// Chrom, if set, keeps a single chromosome.
	Chrom string
	// CanonicalOnly keeps Ensembl canonical transcripts only.
	CanonicalOnly bool
	// IncludeNonCoding keeps transcripts without CDS features.
	IncludeNonCoding bool
	// CanonicalFile, if set, is a Genome Nexus canonical transcript table
	// that replaces the Ensembl canonical flag for the genes it lists.
	CanonicalFile string
}

// GTFLoader loads transcript models from GENCODE GTF files.
type GTFLoader struct {
	path      string
	opts      LoadOptions
	overrides CanonicalOverrides
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string, opts LoadOptions) *GTFLoader {
	return &GTFLoader{path: path, opts: opts}
}

// Path returns the GTF file path.
func (l *GTFLoader) Path() string {
	return l.path
}

// Load loads all selected transcripts from the GTF file into the cache.
func (l *GTFLoader) Load(c *Cache) error {
	if l.opts.CanonicalFile != "" {
		overrides, err := LoadCanonicalOverrides(l.opts.CanonicalFile)
		if err != nil {
			return err
		}
		l.overrides = overrides
	}

	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	transcripts, err := l.parseGTF(reader)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(transcripts))
	for id := range transcripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.AddTranscript(transcripts[id])
	}
	return nil
}

// gtfFeature represents a parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	attributes  map[string]string
}

// parseGTF parses GTF content and returns the selected transcripts by ID.
func (l *GTFLoader) parseGTF(reader io.Reader) (map[string]*Transcript, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	filterChrom := NormalizeChrom(l.opts.Chrom)
	transcripts := make(map[string]*Transcript)
	cdsByTranscript := make(map[string][]transcript.CDS)

	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		if feat.featureType != "transcript" && feat.featureType != "CDS" {
			continue
		}
		if filterChrom != "" && feat.chrom != filterChrom {
			continue
		}

		transcriptID := stripVersion(feat.attributes["transcript_id"])
		if transcriptID == "" {
			continue
		}

		switch feat.featureType {
		case "transcript":
			tags := feat.attributes["tag"]
			transcripts[transcriptID] = &Transcript{
				ID:           transcriptID,
				GeneID:       stripVersion(feat.attributes["gene_id"]),
				GeneName:     feat.attributes["gene_name"],
				Chrom:        feat.chrom,
				Start:        feat.start,
				End:          feat.end,
				Strand:       parseStrand(feat.strand),
				Biotype:      feat.attributes["transcript_type"],
				IsCanonical:  strings.Contains(tags, "Ensembl_canonical"),
				IsMANESelect: strings.Contains(tags, "MANE_Select"),
			}

		case "CDS":
			cdsByTranscript[transcriptID] = append(cdsByTranscript[transcriptID], transcript.CDS{
				Chrom:  feat.chrom,
				Start:  feat.start,
				End:    feat.end,
				Strand: feat.strand[0],
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	l.overrides.Apply(transcripts)

	for id, t := range transcripts {
		if l.opts.CanonicalOnly && !t.IsCanonical {
			delete(transcripts, id)
			continue
		}

		records := cdsByTranscript[id]
		if len(records) == 0 {
			if !l.opts.IncludeNonCoding {
				delete(transcripts, id)
			}
			continue
		}

		sort.Slice(records, func(i, j int) bool {
			return records[i].Start < records[j].Start
		})
		t.CDS = records
		t.CDSStart = records[0].Start
		t.CDSEnd = records[len(records)-1].End
	}

	return transcripts, nil
}

// parseLine parses a single GTF line.
func parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	if fields[6] != "+" && fields[6] != "-" {
		return nil, fmt.Errorf("invalid strand %q", fields[6])
	}

	return &gtfFeature{
		chrom:       NormalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
// Repeated keys such as tag are joined with commas.
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Find the first space to separate key from value
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), "\"")

		if prev, ok := attrs[key]; ok {
			attrs[key] = prev + "," + value
			continue
		}
		attrs[key] = value
	}

	return attrs
}

// parseStrand converts strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

// NormalizeChrom normalizes chromosome names by removing the "chr" prefix.
// GENCODE uses "chr1" while VCFs often use "1".
func NormalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}
