package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-neo/internal/transcript"
)

const testGTF = `##description: Test GTF
chr12	HAVANA	gene	25205246	25250929	.	-	.	gene_id "ENSG00000133703.14"; gene_type "protein_coding"; gene_name "KRAS";
chr12	HAVANA	transcript	25205246	25250929	.	-	.	gene_id "ENSG00000133703.14"; transcript_id "ENST00000311936.8"; gene_name "KRAS"; transcript_type "protein_coding"; tag "basic"; tag "Ensembl_canonical"; tag "MANE_Select";
chr12	HAVANA	exon	25250751	25250929	.	-	.	gene_id "ENSG00000133703.14"; transcript_id "ENST00000311936.8"; gene_name "KRAS"; exon_number "1";
chr12	HAVANA	CDS	25250751	25250808	.	-	0	gene_id "ENSG00000133703.14"; transcript_id "ENST00000311936.8"; gene_name "KRAS"; exon_number "1";
chr12	HAVANA	CDS	25245274	25245395	.	-	2	gene_id "ENSG00000133703.14"; transcript_id "ENST00000311936.8"; gene_name "KRAS"; exon_number "2";
chr12	HAVANA	stop_codon	25245271	25245273	.	-	0	gene_id "ENSG00000133703.14"; transcript_id "ENST00000311936.8"; gene_name "KRAS";
chr12	HAVANA	transcript	25209000	25250929	.	-	.	gene_id "ENSG00000133703.14"; transcript_id "ENST00000256078.9"; gene_name "KRAS"; transcript_type "protein_coding"; tag "basic";
chr12	HAVANA	CDS	25245274	25245395	.	-	2	gene_id "ENSG00000133703.14"; transcript_id "ENST00000256078.9"; gene_name "KRAS"; exon_number "2";
chr1	HAVANA	transcript	100000	200000	.	+	.	gene_id "ENSG00000000001.1"; transcript_id "ENST00000000001.1"; gene_name "TEST"; transcript_type "lncRNA"; tag "Ensembl_canonical";
chr1	HAVANA	exon	100000	100100	.	+	.	gene_id "ENSG00000000001.1"; transcript_id "ENST00000000001.1"; exon_number "1";
chr1	HAVANA	CDS	not_a_number	100100	.	+	.	transcript_id "ENST00000000001.1";
`

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:  "basic attributes",
			input: `gene_id "ENSG00000133703"; transcript_id "ENST00000311936"; gene_name "KRAS";`,
			expected: map[string]string{
				"gene_id":       "ENSG00000133703",
				"transcript_id": "ENST00000311936",
				"gene_name":     "KRAS",
			},
		},
		{
			name:  "repeated tags",
			input: `gene_id "ENSG00000133703"; tag "Ensembl_canonical"; tag "MANE_Select";`,
			expected: map[string]string{
				"gene_id": "ENSG00000133703",
				"tag":     "Ensembl_canonical,MANE_Select",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseAttributes(tt.input)
			for key, want := range tt.expected {
				assert.Equal(t, want, result[key], "parseAttributes()[%q]", key)
			}
		})
	}
}

func TestStripVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"ENST00000311936.8", "ENST00000311936"},
		{"ENSG00000133703.14", "ENSG00000133703"},
		{"ENST00000311936", "ENST00000311936"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, stripVersion(tt.input), "stripVersion(%q)", tt.input)
	}
}

func TestParseStrand(t *testing.T) {
	assert.Equal(t, int8(1), parseStrand("+"))
	assert.Equal(t, int8(-1), parseStrand("-"))
}

func TestGTFLoader_ParseGTF(t *testing.T) {
	loader := NewGTFLoader("", LoadOptions{})
	transcripts, err := loader.parseGTF(strings.NewReader(testGTF))
	require.NoError(t, err)

	// The lncRNA has no valid CDS line and is dropped.
	require.Len(t, transcripts, 2)

	tr := transcripts["ENST00000311936"]
	require.NotNil(t, tr)

	assert.Equal(t, "KRAS", tr.GeneName)
	assert.Equal(t, "ENSG00000133703", tr.GeneID)
	assert.Equal(t, "12", tr.Chrom)
	assert.Equal(t, int8(-1), tr.Strand)
	assert.True(t, tr.IsCanonical)
	assert.True(t, tr.IsMANESelect)
	assert.Equal(t, "protein_coding", tr.Biotype)

	assert.Equal(t, []transcript.CDS{
		{Chrom: "12", Start: 25245274, End: 25245395, Strand: '-'},
		{Chrom: "12", Start: 25250751, End: 25250808, Strand: '-'},
	}, tr.CDS)
	assert.Equal(t, int64(25245274), tr.CDSStart)
	assert.Equal(t, int64(25250808), tr.CDSEnd)
	assert.True(t, tr.IsProteinCoding())
}

func TestGTFLoader_Options(t *testing.T) {
	tests := []struct {
		name string
		opts LoadOptions
		want []string
	}{
		{"default", LoadOptions{}, []string{"ENST00000256078", "ENST00000311936"}},
		{"canonical only", LoadOptions{CanonicalOnly: true}, []string{"ENST00000311936"}},
		{"non-coding kept", LoadOptions{IncludeNonCoding: true}, []string{"ENST00000000001", "ENST00000256078", "ENST00000311936"}},
		{"chromosome filter", LoadOptions{Chrom: "chr1", IncludeNonCoding: true}, []string{"ENST00000000001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcripts, err := NewGTFLoader("", tt.opts).parseGTF(strings.NewReader(testGTF))
			require.NoError(t, err)

			var got []string
			for id := range transcripts {
				got = append(got, id)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestGTFLoader_LoadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gtf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testGTF))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	c := New()
	require.NoError(t, NewGTFLoader(path, LoadOptions{}).Load(c))

	assert.Equal(t, 2, c.TranscriptCount())
	assert.Equal(t, []string{"12"}, c.Chromosomes())

	assert.Len(t, c.FindTranscriptsByChrom("chr12"), 2)
	assert.Empty(t, c.FindTranscriptsByChrom("1"))
	for _, tr := range c.All() {
		assert.Equal(t, "KRAS", tr.GeneName)
	}
}

func TestGTFLoader_MissingFile(t *testing.T) {
	err := NewGTFLoader(filepath.Join(t.TempDir(), "missing.gtf"), LoadOptions{}).Load(New())
	assert.Error(t, err)
}

func TestTranscriptOverlapsCDS(t *testing.T) {
	tr := &Transcript{
		ID:       "T1",
		Chrom:    "1",
		Start:    1,
		End:      100,
		CDSStart: 11,
		CDSEnd:   60,
		CDS: []transcript.CDS{
			{Chrom: "1", Start: 11, End: 20, Strand: '+'},
			{Chrom: "1", Start: 51, End: 60, Strand: '+'},
		},
	}

	assert.True(t, tr.OverlapsCDS(20, 20))
	assert.True(t, tr.OverlapsCDS(5, 11))
	assert.True(t, tr.OverlapsCDS(25, 55))
	assert.False(t, tr.OverlapsCDS(21, 50), "intronic")
	assert.False(t, tr.OverlapsCDS(61, 90))
}
