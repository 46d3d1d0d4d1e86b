package oncokb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/neoepitope"
)

const testGeneList = "Hugo Symbol\tEntrez Gene ID\tGene Type\n" +
	"KRAS\t3845\tONCOGENE\n" +
	"TP53\t7157\tTSG\n" +
	"BRCA1\t672\tTSG\n" +
	"\t0\tONCOGENE\n" +
	"SHORT\n"

func TestParseCancerGeneList(t *testing.T) {
	cgl, err := ParseCancerGeneList(strings.NewReader(testGeneList))
	require.NoError(t, err)
	require.Len(t, cgl, 3)

	tests := []struct {
		gene     string
		geneType string
	}{
		{"KRAS", "ONCOGENE"},
		{"TP53", "TSG"},
		{"BRCA1", "TSG"},
	}
	for _, tt := range tests {
		t.Run(tt.gene, func(t *testing.T) {
			ann, ok := cgl[tt.gene]
			require.True(t, ok, "gene %s should be in cancer gene list", tt.gene)
			assert.Equal(t, tt.gene, ann.HugoSymbol)
			assert.Equal(t, tt.geneType, ann.GeneType)
		})
	}
}

func TestParseCancerGeneList_BadHeader(t *testing.T) {
	_, err := ParseCancerGeneList(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseCancerGeneList(strings.NewReader("Hugo Symbol\tEntrez Gene ID\n"))
	assert.ErrorContains(t, err, "Gene Type")

	_, err = ParseCancerGeneList(strings.NewReader("Gene Type\n"))
	assert.ErrorContains(t, err, "Hugo Symbol")
}

func TestLoadCancerGeneList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cancerGeneList.tsv")
	require.NoError(t, os.WriteFile(path, []byte(testGeneList), 0644))

	cgl, err := LoadCancerGeneList(path)
	require.NoError(t, err)
	assert.True(t, cgl.IsCancerGene("KRAS"))
}

func TestLoadCancerGeneList_NotFound(t *testing.T) {
	_, err := LoadCancerGeneList("/nonexistent/path.tsv")
	assert.Error(t, err)
}

func TestCancerGeneList_IsCancerGene(t *testing.T) {
	cgl := CancerGeneList{
		"TP53": &Annotation{HugoSymbol: "TP53", GeneType: "TSG"},
	}
	assert.True(t, cgl.IsCancerGene("TP53"))
	assert.False(t, cgl.IsCancerGene("UNKNOWN"))
}

func TestFilter(t *testing.T) {
	var out neoepitope.Collector
	f := NewFilter(CancerGeneList{"KRAS": {HugoSymbol: "KRAS", GeneType: "ONCOGENE"}}, &out)

	kras := &cache.Transcript{ID: "ENST00000311936", GeneName: "KRAS"}
	other := &cache.Transcript{ID: "ENST00000000001", GeneName: "OR4F5"}
	require.NoError(t, f.Write(&neoepitope.Neoepitope{Peptide: "VVGACGVGK", Transcript: kras}))
	require.NoError(t, f.Write(&neoepitope.Neoepitope{Peptide: "MKLLF", Transcript: other}))
	require.NoError(t, f.Flush())

	require.Len(t, out.Neoepitopes, 1)
	assert.Equal(t, "VVGACGVGK", out.Neoepitopes[0].Peptide)
	assert.Equal(t, 1, f.Dropped())
}
