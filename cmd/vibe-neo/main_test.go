package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inodb/vibe-neo/internal/config"
	"github.com/inodb/vibe-neo/internal/duckdb"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/output"
)

const (
	testFASTA = ">chr1\nCCCCCCCCCCATGGCTGCTGCTAAATAACCCCCCCCCC\n"

	testGTF = `chr1	HAVANA	transcript	1	38	.	+	.	gene_id "ENSG00000000042.1"; transcript_id "ENST00000000042.1"; gene_name "TOY"; transcript_type "protein_coding"; tag "Ensembl_canonical";
chr1	HAVANA	CDS	11	28	.	+	0	gene_id "ENSG00000000042.1"; transcript_id "ENST00000000042.1"; gene_name "TOY";
`

	testVCF = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	TUMOR
1	21	.	C	A	60	PASS	DP=50	GT:AF	0/1:0.4
`
)

func writeInputs(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	fasta := write("genome.fa", testFASTA)
	_, err := genome.BuildIndex(fasta)
	require.NoError(t, err)

	return config.Config{
		Genome:       fasta,
		GTF:          write("annotation.gtf", testGTF),
		VCF:          write("tumor.vcf", testVCF),
		Peptide:      config.PeptideConfig{MinSize: 4, MaxSize: 4},
		Workers:      1,
		GermlineFlag: "GERMLINE",
		CacheDir:     filepath.Join(dir, "cache"),
	}
}

func TestRunPredict(t *testing.T) {
	cfg := writeInputs(t)
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	require.NoError(t, runPredict(cfg, &out, zap.NewNop()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Neoepitope\tReference\t"))
	assert.True(t, strings.HasPrefix(lines[1], "AADK\tAAAK\t"))
	assert.True(t, strings.HasPrefix(lines[2], "MAAD\tMAAA\t"))
	assert.Contains(t, lines[2], "ENST00000000042")
	assert.Contains(t, lines[2], "TOY")

	// The first run leaves a snapshot that the second run reads.
	fp, err := duckdb.StatFile(cfg.GTF)
	require.NoError(t, err)
	assert.True(t, duckdb.NewTranscriptCache(cfg.CacheDir).Valid(fp, cfg.LoadOptions()))

	var again bytes.Buffer
	require.NoError(t, runPredict(cfg, &again, zap.NewNop()))
	assert.Equal(t, out.String(), again.String())
}

func TestRunPredictVCF(t *testing.T) {
	cfg := writeInputs(t)
	cfg.OutputFormat = config.FormatVCF

	var out bytes.Buffer
	require.NoError(t, runPredict(cfg, &out, zap.NewNop()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "##INFO=<ID=NEO,"))
	assert.Equal(t, "1\t21\t.\tC\tA\t60\tPASS\tDP=50;"+
		"NEO=A|MAAD|MAAA|ENST00000000042|TOY,A|AADK|AAAK|ENST00000000042|TOY\tGT:AF\t0/1:0.4", lines[3])
}

func TestRunPredictMAF(t *testing.T) {
	cfg := writeInputs(t)
	cfg.VCF = ""
	cfg.MAF = filepath.Join(t.TempDir(), "tumor.maf")
	cfg.Sample = "TUMOR"
	require.NoError(t, os.WriteFile(cfg.MAF, []byte(
		"Hugo_Symbol\tChromosome\tStart_Position\tReference_Allele\tTumor_Seq_Allele2\tTumor_Sample_Barcode\tt_ref_count\tt_alt_count\n"+
			"TOY\t1\t21\tC\tA\tTUMOR\t6\t4\n"+
			"TOY\t1\t24\tC\tA\tNORMAL\t6\t4\n"), 0644))
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	require.NoError(t, runPredict(cfg, &out, zap.NewNop()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "MAAD\tMAAA\t1\t21\tC\tA\tsnv\t0.4\tsomatic\t"))
}

func TestRunPredictCancerGenes(t *testing.T) {
	cfg := writeInputs(t)
	cfg.CancerGeneList = filepath.Join(t.TempDir(), "cancerGeneList.tsv")
	require.NoError(t, os.WriteFile(cfg.CancerGeneList, []byte("Hugo Symbol\tGene Type\nKRAS\tONCOGENE\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, runPredict(cfg, &out, zap.NewNop()))
	assert.Equal(t, strings.Join(output.Columns, "\t")+"\n", out.String())
}

func TestRunPredictDatabase(t *testing.T) {
	cfg := writeInputs(t)
	cfg.DB = filepath.Join(t.TempDir(), "neo.duckdb")
	cfg.Sample = "TUMOR"
	cfg.Output = filepath.Join(t.TempDir(), "neo.tsv")

	require.NoError(t, runPredict(cfg, nil, zap.NewNop()))

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MAAD\tMAAA\t")

	store, err := duckdb.Open(cfg.DB)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "TUMOR", runs[0].Sample)

	recs, err := store.LookupPeptide("maad")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(21), recs[0].Pos)
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"predict", "index", "download", "config"})
}

func TestGENCODEURLs(t *testing.T) {
	gtf, fasta := getGENCODEURLs("GRCh38")
	assert.True(t, strings.HasSuffix(gtf, "/gencode.v46.annotation.gtf.gz"))
	assert.True(t, strings.HasSuffix(fasta, "/GRCh38.primary_assembly.genome.fa.gz"))

	gtf, fasta = getGENCODEURLs("grch37")
	assert.Contains(t, gtf, "GRCh37_mapping/gencode.v46lift37")
	assert.Contains(t, fasta, "GRCh37_mapping/GRCh37.primary_assembly")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.in))
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	require.NoError(t, writeAtomic(path, strings.NewReader("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
