package transcript

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-neo/internal/genome"
)

// chrom1 is 200 bases of repeating ACGT.
var chrom1 = strings.Repeat("ACGT", 50)

func testGenome() genome.Memory {
	return genome.Memory{"1": chrom1}
}

func newTranscript(t *testing.T, strand byte, spans ...[2]int64) *Transcript {
	t.Helper()
	var records []CDS
	for _, s := range spans {
		records = append(records, CDS{Chrom: "1", Start: s[0], End: s[1], Strand: strand})
	}
	tr, err := New(testGenome(), records)
	require.NoError(t, err)
	return tr
}

func TestParseCDS(t *testing.T) {
	line := "chr1\tHAVANA\tCDS\t100\t130\t.\t-\t0\tgene_id \"ENSG1\"; transcript_id \"ENST1\";"
	got, err := ParseCDS(line)
	require.NoError(t, err)
	assert.Equal(t, CDS{Chrom: "chr1", Start: 100, End: 130, Strand: '-'}, got)

	for _, bad := range []string{
		"chr1\tHAVANA\tCDS\t100\t130",
		"chr1\tHAVANA\tCDS\tabc\t130\t.\t+\t0\t",
		"chr1\tHAVANA\tCDS\t100\t130\t.\t.\t0\t",
	} {
		_, err := ParseCDS(bad)
		assert.True(t, errors.Is(err, ErrMalformedCDS), bad)
	}
}

func TestNew(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{31, 40}, [2]int64{11, 20})
	start, end := tr.Bounds()
	assert.Equal(t, int64(11), start)
	assert.Equal(t, int64(40), end)
	assert.Equal(t, []int64{9, 19, 29, 39}, tr.intervals)
	assert.Equal(t, "1", tr.Chrom())
	assert.False(t, tr.ReverseStrand())

	_, err := New(testGenome(), []CDS{
		{Chrom: "1", Start: 11, End: 20, Strand: '+'},
		{Chrom: "2", Start: 31, End: 40, Strand: '+'},
	})
	assert.True(t, errors.Is(err, ErrMalformedCDS))

	_, err = New(testGenome(), []CDS{
		{Chrom: "1", Start: 11, End: 20, Strand: '+'},
		{Chrom: "1", Start: 31, End: 40, Strand: '-'},
	})
	assert.True(t, errors.Is(err, ErrMalformedCDS))

	_, err = New(testGenome(), []CDS{
		{Chrom: "1", Start: 11, End: 20, Strand: '+'},
		{Chrom: "1", Start: 15, End: 40, Strand: '+'},
	})
	assert.True(t, errors.Is(err, ErrMalformedCDS))

	assert.Panics(t, func() { _, _ = New(testGenome(), nil) })
}

func TestSequenceRoundTrip(t *testing.T) {
	spans := [][2]int64{{11, 20}, {31, 40}, {51, 60}}
	want := chrom1[10:20] + chrom1[30:40] + chrom1[50:60]

	t.Run("forward", func(t *testing.T) {
		tr := newTranscript(t, '+', spans...)
		got, err := tr.Sequence()
		require.NoError(t, err)
		assert.Equal(t, want, got)

		frags, err := tr.AnnotatedSeq(tr.Bounds())
		require.NoError(t, err)
		assert.Equal(t, []Fragment{{Seq: want, Origin: Reference}}, frags)
	})

	t.Run("reverse", func(t *testing.T) {
		tr := newTranscript(t, '-', spans...)
		got, err := tr.Sequence()
		require.NoError(t, err)
		assert.Equal(t, ReverseComplement(want), got)
	})
}

func TestAnnotatedSeqSNV(t *testing.T) {
	// chrom1[114] is G.
	before, after := chrom1[100:114], chrom1[115:130]

	t.Run("forward", func(t *testing.T) {
		tr := newTranscript(t, '+', [2]int64{100, 130})
		require.NoError(t, tr.Edit("T", 115, SNV, Somatic))

		frags, err := tr.AnnotatedSeq(101, 130)
		require.NoError(t, err)
		assert.Equal(t, []Fragment{
			{Seq: before, Origin: Reference},
			{Seq: "T", Origin: Somatic},
			{Seq: after, Origin: Reference},
		}, frags)

		total := 0
		for _, f := range frags {
			total += len(f.Seq)
		}
		assert.Equal(t, 30, total)
	})

	t.Run("reverse", func(t *testing.T) {
		tr := newTranscript(t, '-', [2]int64{100, 130})
		require.NoError(t, tr.Edit("T", 115, SNV, Somatic))

		frags, err := tr.AnnotatedSeq(101, 130)
		require.NoError(t, err)
		assert.Equal(t, []Fragment{
			{Seq: ReverseComplement(after), Origin: Reference},
			{Seq: "A", Origin: Somatic},
			{Seq: ReverseComplement(before), Origin: Reference},
		}, frags)
	})
}

func TestExpressedEditsExonBoundaries(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})

	require.NoError(t, tr.Edit("A", 20, SNV, Somatic)) // last base of exon 1
	require.NoError(t, tr.Edit("A", 21, SNV, Somatic)) // first intron base
	require.NoError(t, tr.Edit("A", 30, SNV, Somatic)) // last intron base
	require.NoError(t, tr.Edit("A", 31, SNV, Somatic)) // first base of exon 2

	edits, bounds := tr.ExpressedEdits(tr.Bounds())
	assert.Len(t, edits, 2)
	assert.Contains(t, edits, int64(19))
	assert.Contains(t, edits, int64(30))
	assert.Equal(t, []Boundary{{9, Reference}, {19, Reference}, {29, Reference}, {39, Reference}}, bounds)
}

func TestExpressedEditsClipping(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})

	tests := []struct {
		name       string
		start, end int64
		want       []Boundary
	}{
		{"whole transcript", 11, 40, []Boundary{{9, Reference}, {19, Reference}, {29, Reference}, {39, Reference}}},
		{"inside one exon", 13, 17, []Boundary{{11, Reference}, {16, Reference}}},
		{"start in intron", 25, 35, []Boundary{{29, Reference}, {34, Reference}}},
		{"end in intron", 15, 25, []Boundary{{13, Reference}, {19, Reference}}},
		{"before the transcript", 1, 5, nil},
		{"inside the intron", 22, 28, nil},
		{"after the transcript", 50, 60, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, bounds := tr.ExpressedEdits(tt.start, tt.end)
			assert.Equal(t, tt.want, bounds)
		})
	}

	assert.Panics(t, func() { tr.ExpressedEdits(20, 10) })
}

func TestDeletionCoalescing(t *testing.T) {
	tests := []struct {
		name string
		dels []deletion
		want []Boundary
	}{
		{
			name: "identical deletions keep the first origin",
			dels: []deletion{{19, 24, Germline}, {19, 24, Somatic}},
			want: []Boundary{{9, Reference}, {19, Germline}, {24, Germline}, {59, Reference}},
		},
		{
			name: "extending deletion takes over the end",
			dels: []deletion{{19, 24, Germline}, {21, 28, Somatic}},
			want: []Boundary{{9, Reference}, {19, Germline}, {28, Somatic}, {59, Reference}},
		},
		{
			name: "end tie keeps the first",
			dels: []deletion{{19, 24, Somatic}, {21, 24, Germline}},
			want: []Boundary{{9, Reference}, {19, Somatic}, {24, Somatic}, {59, Reference}},
		},
		{
			name: "touching deletions merge",
			dels: []deletion{{30, 35, Somatic}, {19, 30, Germline}},
			want: []Boundary{{9, Reference}, {19, Germline}, {35, Somatic}, {59, Reference}},
		},
		{
			name: "disjoint deletions stay apart",
			dels: []deletion{{19, 24, Germline}, {30, 35, Somatic}},
			want: []Boundary{{9, Reference}, {19, Germline}, {24, Germline}, {30, Somatic}, {35, Somatic}, {59, Reference}},
		},
		{
			name: "deletion outside the CDS is ignored",
			dels: []deletion{{100, 110, Somatic}},
			want: []Boundary{{9, Reference}, {59, Reference}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTranscript(t, '+', [2]int64{11, 60})
			tr.deletions = tt.dels
			_, bounds := tr.ExpressedEdits(tr.Bounds())
			assert.Equal(t, tt.want, bounds)
		})
	}
}

func TestDeletionSequence(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 60})
	require.NoError(t, tr.Delete(5, 21, Germline))
	require.NoError(t, tr.Edit("ACGTACG", 23, Deletion, Somatic))

	frags, err := tr.AnnotatedSeq(tr.Bounds())
	require.NoError(t, err)
	assert.Equal(t, []Fragment{
		{Seq: chrom1[10:20], Origin: Reference},
		{Seq: "", Origin: Germline},
		{Seq: "", Origin: Somatic},
		{Seq: chrom1[29:60], Origin: Reference},
	}, frags)
}

func TestDeletionAcrossIntron(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})
	require.NoError(t, tr.Edit("15", 18, Deletion, Somatic))

	_, bounds := tr.ExpressedEdits(tr.Bounds())
	require.Equal(t, 0, len(bounds)%2)
	assert.Equal(t, []Boundary{
		{9, Reference}, {16, Somatic}, {19, Reference}, {19, Reference},
		{29, Reference}, {29, Reference}, {31, Somatic}, {39, Reference},
	}, bounds)

	frags, err := tr.AnnotatedSeq(tr.Bounds())
	require.NoError(t, err)
	assert.Equal(t, []Fragment{
		{Seq: chrom1[10:17], Origin: Reference},
		{Seq: "", Origin: Somatic},
		{Seq: chrom1[32:40], Origin: Reference},
	}, frags)
}

func TestInsertionAtBlockStart(t *testing.T) {
	t.Run("second exon", func(t *testing.T) {
		tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})
		require.NoError(t, tr.Edit("ggg", 30, Insertion, Somatic))

		edits, _ := tr.ExpressedEdits(tr.Bounds())
		assert.Equal(t, map[int64][]Edit{29: {{Seq: "GGG", Kind: Insertion, Origin: Somatic}}}, edits)

		frags, err := tr.AnnotatedSeq(tr.Bounds())
		require.NoError(t, err)
		assert.Equal(t, []Fragment{
			{Seq: chrom1[10:20], Origin: Reference},
			{Seq: "GGG", Origin: Somatic},
			{Seq: chrom1[30:40], Origin: Reference},
		}, frags)
	})

	t.Run("first exon", func(t *testing.T) {
		tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})
		require.NoError(t, tr.Edit("TT", 10, Insertion, Germline))

		frags, err := tr.AnnotatedSeq(tr.Bounds())
		require.NoError(t, err)
		assert.Equal(t, []Fragment{
			{Seq: "TT", Origin: Germline},
			{Seq: chrom1[10:20] + chrom1[30:40], Origin: Reference},
		}, frags)
	})

	t.Run("after a deletion", func(t *testing.T) {
		tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})
		require.NoError(t, tr.Delete(3, 13, Somatic))
		require.NoError(t, tr.Edit("AA", 15, Insertion, Somatic))

		frags, err := tr.AnnotatedSeq(tr.Bounds())
		require.NoError(t, err)
		assert.Equal(t, []Fragment{
			{Seq: chrom1[10:12], Origin: Reference},
			{Seq: "AA", Origin: Somatic},
			{Seq: chrom1[15:20] + chrom1[30:40], Origin: Reference},
		}, frags)
	})

	t.Run("insertion inside an exon", func(t *testing.T) {
		tr := newTranscript(t, '+', [2]int64{11, 20})
		require.NoError(t, tr.Edit("C", 14, Insertion, Somatic))
		require.NoError(t, tr.Edit("G", 14, Insertion, Germline))

		got, err := tr.Sequence()
		require.NoError(t, err)
		assert.Equal(t, chrom1[10:14]+"CG"+chrom1[14:20], got)
	})
}

func TestEditErrors(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20})

	err := tr.Edit("A", 12, MutationKind('X'), Somatic)
	assert.True(t, errors.Is(err, ErrUnsupportedMutationKind))

	err = tr.Edit("A", 12, SNV, Reference)
	assert.True(t, errors.Is(err, ErrUnsupportedOrigin))

	err = tr.Delete(2, 12, Origin('Q'))
	assert.True(t, errors.Is(err, ErrUnsupportedOrigin))

	// An unknown kind is reported ahead of an unknown origin.
	err = tr.Edit("A", 12, MutationKind('X'), Reference)
	assert.True(t, errors.Is(err, ErrUnsupportedMutationKind))

	err = tr.Delete(-1, 12, Somatic)
	assert.True(t, errors.Is(err, ErrNegativeDeletion))

	err = tr.Edit("-3", 12, Deletion, Somatic)
	assert.True(t, errors.Is(err, ErrNegativeDeletion))

	assert.Empty(t, tr.edits)
	assert.Empty(t, tr.deletions)
}

func TestResetAndSave(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20}, [2]int64{31, 40})
	ref, err := tr.Sequence()
	require.NoError(t, err)

	require.NoError(t, tr.Edit("G", 12, SNV, Germline))
	tr.Save()
	withGermline, err := tr.Sequence()
	require.NoError(t, err)
	assert.NotEqual(t, ref, withGermline)

	require.NoError(t, tr.Edit("A", 33, SNV, Somatic))
	require.NoError(t, tr.Delete(2, 35, Somatic))
	require.NoError(t, tr.Edit("A", 12, SNV, Somatic))

	tr.Reset(false)
	got, err := tr.Sequence()
	require.NoError(t, err)
	assert.Equal(t, withGermline, got)

	// The checkpoint is not aliased by later edits.
	require.NoError(t, tr.Edit("C", 12, SNV, Somatic))
	tr.Reset(false)
	got, err = tr.Sequence()
	require.NoError(t, err)
	assert.Equal(t, withGermline, got)

	tr.Reset(true)
	got, err = tr.Sequence()
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	tr.Reset(true)
	got, err = tr.Sequence()
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}

func TestResetWithoutSave(t *testing.T) {
	tr := newTranscript(t, '+', [2]int64{11, 20})
	require.NoError(t, tr.Edit("T", 12, SNV, Somatic))
	tr.Reset(false)

	got, err := tr.Sequence()
	require.NoError(t, err)
	assert.Equal(t, chrom1[10:20], got)
}

func TestUnknownContig(t *testing.T) {
	tr, err := New(testGenome(), []CDS{{Chrom: "9", Start: 11, End: 20, Strand: '+'}})
	require.NoError(t, err)

	_, err = tr.AnnotatedSeq(tr.Bounds())
	assert.True(t, errors.Is(err, genome.ErrUnknownContig))

	_, err = tr.Peptides(8)
	assert.True(t, errors.Is(err, genome.ErrUnknownContig))
}

func TestOriginSet(t *testing.T) {
	var s OriginSet
	assert.Equal(t, "", s.String())

	s = s.Add(Somatic).Add(Reference)
	assert.True(t, s.Has(Somatic))
	assert.False(t, s.Has(Germline))
	assert.Equal(t, "somatic", s.String())

	s = s.Add(Germline)
	assert.Equal(t, "germline,somatic", s.String())
}
