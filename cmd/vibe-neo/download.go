package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/genome"
)

// GENCODE FTP URLs
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// getGENCODEURLs returns the GTF and genome FASTA URLs for the given assembly.
func getGENCODEURLs(assembly string) (gtfURL, genomeURL string) {
	switch strings.ToUpper(assembly) {
	case "GRCH37":
		gtfURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		genomeURL = gencodeBaseURL + "/GRCh37_mapping/GRCh37.primary_assembly.genome.fa.gz"
	default:
		gtfURL = fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		genomeURL = gencodeBaseURL + "/GRCh38.primary_assembly.genome.fa.gz"
	}
	return
}

func newDownloadCmd() *cobra.Command {
	var (
		assembly  string
		outputDir string
		gtfOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download GENCODE annotations and genome",
		Long: `Download the GENCODE GTF and primary assembly FASTA. The FASTA is
decompressed and indexed so that predict can read it directly.

Files downloaded:
  - gencode.v46.annotation.gtf.gz (~50MB for GRCh38)
  - ensembl_biomart_canonical_transcripts_per_hgnc.txt (Genome Nexus canonical transcripts)
  - GRCh38.primary_assembly.genome.fa.gz (~850MB for GRCh38, ~3GB decompressed)`,
		Example: `  vibe-neo download
  vibe-neo download --assembly GRCh37
  vibe-neo download --output /data/gencode --gtf-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.OutOrStdout(), assembly, outputDir, gtfOnly)
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.vibe-neo/)")
	cmd.Flags().BoolVar(&gtfOnly, "gtf-only", false, "Only download GTF annotations (skip the genome)")

	return cmd
}

func runDownload(w io.Writer, assembly, outputDir string, gtfOnly bool) error {
	destDir := defaultDataDir(assembly)
	if outputDir != "" {
		destDir = filepath.Join(outputDir, strings.ToLower(assembly))
	}
	if destDir == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", destDir, err)
	}

	gtfURL, genomeURL := getGENCODEURLs(assembly)

	fmt.Fprintf(w, "Downloading GENCODE %s files for %s...\n", gencodeVersion, assembly)
	fmt.Fprintf(w, "Destination: %s\n\n", destDir)

	gtfFile := filepath.Join(destDir, filepath.Base(gtfURL))
	if err := downloadFile(w, gtfURL, gtfFile); err != nil {
		return fmt.Errorf("download GTF: %w", err)
	}

	canonicalFile := filepath.Join(destDir, cache.CanonicalFileName)
	if err := downloadFile(w, cache.CanonicalFileURL(assembly), canonicalFile); err != nil {
		return fmt.Errorf("download canonical transcripts: %w", err)
	}

	if !gtfOnly {
		gzFile := filepath.Join(destDir, filepath.Base(genomeURL))
		if err := downloadFile(w, genomeURL, gzFile); err != nil {
			return fmt.Errorf("download genome: %w", err)
		}
		fastaFile := strings.TrimSuffix(gzFile, ".gz")
		if err := gunzipFile(w, gzFile, fastaFile); err != nil {
			return fmt.Errorf("decompress genome: %w", err)
		}
		if _, err := os.Stat(genome.IndexPath(fastaFile)); os.IsNotExist(err) {
			fmt.Fprintf(w, "  Indexing %s...\n", filepath.Base(fastaFile))
			n, err := genome.BuildIndex(fastaFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "    Done: %d sequences\n", n)
		}
	}

	fmt.Fprintf(w, "\nDownload complete!\n")
	fmt.Fprintf(w, "To predict neoepitopes, run:\n")
	fmt.Fprintf(w, "  vibe-neo predict --assembly %s --vcf input.vcf\n", assembly)
	fmt.Fprintf(w, "To restrict to Genome Nexus canonical transcripts, add:\n")
	fmt.Fprintf(w, "  --canonical-only --canonical-file %s\n", canonicalFile)
	return nil
}

// downloadFile downloads a file from URL to the destination path with progress.
func downloadFile(w io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(w, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(w, "  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 60 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	pw := &progressWriter{out: w, total: resp.ContentLength, lastPrint: time.Now()}
	if err := writeAtomic(destPath, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	fmt.Fprintf(w, "\n    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// gunzipFile decompresses src into dst unless dst already exists.
func gunzipFile(w io.Writer, src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	fmt.Fprintf(w, "  Decompressing %s...\n", filepath.Base(src))

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	return writeAtomic(dst, gz)
}

// writeAtomic copies r to a temporary file and renames it to path.
func writeAtomic(path string, r io.Reader) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	// Print progress every second
	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}

	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FindGENCODEFiles looks for downloaded files in the default location.
// Returns the GTF path, the decompressed genome path, and whether the GTF
// was found.
func FindGENCODEFiles(assembly string) (gtfPath, genomePath string, found bool) {
	dir := defaultDataDir(assembly)
	if dir == "" {
		return "", "", false
	}

	gtfPattern := "gencode.v*.annotation.gtf.gz"
	if strings.ToLower(assembly) == "grch37" {
		gtfPattern = "gencode.v*lift37.annotation.gtf.gz"
	}
	if matches, err := filepath.Glob(filepath.Join(dir, gtfPattern)); err == nil && len(matches) > 0 {
		gtfPath = matches[0]
		found = true
	}

	if matches, err := filepath.Glob(filepath.Join(dir, "*.primary_assembly.genome.fa")); err == nil && len(matches) > 0 {
		genomePath = matches[0]
	}
	return gtfPath, genomePath, found
}
