package genome

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/biogo/hts/fai"
)

// Indexed reads reference sequence from a FASTA file with a samtools
// .fai index. Reads use ReadAt on the underlying file, so a single Indexed
// may be shared by many goroutines.
type Indexed struct {
	path  string
	file  *os.File
	index fai.Index
	fasta *fai.File
}

// IndexPath returns the conventional index path for a FASTA file.
func IndexPath(fastaPath string) string {
	return fastaPath + ".fai"
}

// OpenIndexed opens a FASTA file and its .fai index.
// If the index does not exist it is built in memory by scanning the FASTA.
func OpenIndexed(path string) (*Indexed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}

	idx, err := loadIndex(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Indexed{
		path:  path,
		file:  f,
		index: idx,
		fasta: fai.NewFile(f, idx),
	}, nil
}

func loadIndex(path string, f *os.File) (fai.Index, error) {
	idxFile, err := os.Open(IndexPath(path))
	if err == nil {
		defer idxFile.Close()
		idx, err := fai.ReadFrom(idxFile)
		if err != nil {
			return nil, fmt.Errorf("read FASTA index: %w", err)
		}
		return idx, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open FASTA index: %w", err)
	}

	idx, err := fai.NewIndex(f)
	if err != nil {
		return nil, fmt.Errorf("index FASTA: %w", err)
	}
	return idx, nil
}

// Stretch implements Reader.
func (g *Indexed) Stretch(chrom string, start, length int64) (string, error) {
	name, ok := resolveName(chrom, func(n string) bool {
		_, ok := g.index[n]
		return ok
	})
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownContig, chrom)
	}
	if length == 0 {
		return "", nil
	}

	seq, err := g.fasta.SeqRange(name, int(start), int(start+length))
	if err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", name, start, start+length, err)
	}
	b, err := io.ReadAll(seq)
	if err != nil {
		return "", fmt.Errorf("read %s:%d-%d: %w", name, start, start+length, err)
	}
	if int64(len(b)) != length {
		return "", fmt.Errorf("read %s:%d-%d: got %d bases", name, start, start+length, len(b))
	}
	return strings.ToUpper(string(b)), nil
}

// Contigs returns the sequence names in the index, sorted.
func (g *Indexed) Contigs() []string {
	names := make([]string, 0, len(g.index))
	for name := range g.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes the underlying FASTA file.
func (g *Indexed) Close() error {
	return g.file.Close()
}

// BuildIndex scans a FASTA file and writes its .fai index next to it.
// Returns the number of indexed sequences.
func BuildIndex(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	idx, err := fai.NewIndex(bufio.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("index FASTA: %w", err)
	}

	out, err := os.Create(IndexPath(path))
	if err != nil {
		return 0, fmt.Errorf("create FASTA index: %w", err)
	}
	bw := bufio.NewWriter(out)
	err = fai.WriteTo(bw, idx)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		out.Close()
		os.Remove(IndexPath(path))
		return 0, fmt.Errorf("write FASTA index: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("close FASTA index: %w", err)
	}
	return len(idx), nil
}
