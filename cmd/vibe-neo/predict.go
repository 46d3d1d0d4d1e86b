package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/config"
	"github.com/inodb/vibe-neo/internal/datasource/oncokb"
	"github.com/inodb/vibe-neo/internal/duckdb"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/haplotype"
	"github.com/inodb/vibe-neo/internal/maf"
	"github.com/inodb/vibe-neo/internal/neoepitope"
	"github.com/inodb/vibe-neo/internal/output"
	"github.com/inodb/vibe-neo/internal/vcf"
)

func newPredictCmd() *cobra.Command {
	var (
		assembly string
		sizes    string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict neoepitopes from tumor variants",
		Long: `Apply each haplotype's variants to the transcripts they overlap and report
the mutant peptides that differ from the reference protein.

Without --haplotypes every VCF or MAF variant is treated as its own haplotype.
Without --gtf and --genome the files fetched by "vibe-neo download" are used.`,
		Example: `  vibe-neo predict --vcf tumor.vcf
  vibe-neo predict --vcf tumor.vcf --haplotypes hapcut2.txt -k 9 -o out.tsv
  vibe-neo predict --vcf tumor.vcf -f vcf -o tumor.neo.vcf
  vibe-neo predict --genome hg38.fa --gtf gencode.gtf.gz --vcf tumor.vcf --db neo.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sizes != "" {
				lo, hi, err := config.ParseSizes(sizes)
				if err != nil {
					return err
				}
				viper.Set("peptide.min-size", lo)
				viper.Set("peptide.max-size", hi)
			}

			cfg, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.GTF == "" || cfg.Genome == "" {
				gtf, fasta, _ := FindGENCODEFiles(assembly)
				if cfg.GTF == "" {
					cfg.GTF = gtf
				}
				if cfg.Genome == "" {
					cfg.Genome = fasta
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w\nHint: download annotations with: vibe-neo download --assembly %s", err, assembly)
			}

			logger := newLogger()
			defer logger.Sync()
			return runPredict(cfg, cmd.OutOrStdout(), logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&assembly, "assembly", "GRCh38", "Genome assembly used to find downloaded files: GRCh37 or GRCh38")
	flags.StringVarP(&sizes, "sizes", "k", "", "Peptide sizes, a range such as 8,11 or a single size (default from config: 8,11)")
	flags.String("genome", "", "Reference FASTA (a .fai index is used when present)")
	flags.String("gtf", "", "GENCODE GTF annotations")
	flags.String("vcf", "", "Somatic and germline variants")
	flags.String("maf", "", "Somatic variants in MAF format, instead of --vcf")
	flags.String("haplotypes", "", "HapCUT2 haplotype blocks")
	flags.StringP("output", "o", "", "Output file (default: stdout)")
	flags.StringP("output-format", "f", "tab", "Output format: tab or vcf")
	flags.String("db", "", "DuckDB database to store the run in")
	flags.String("sample", "", "Sample recorded with the run; selects the VCF sample column read for VAF, or the Tumor_Sample_Barcode of a MAF")
	flags.Int("workers", 0, "Number of workers (default: number of CPUs)")
	flags.String("germline-flag", "GERMLINE", "INFO flag marking germline variants")
	flags.Bool("include-germline", false, "Also report peptides made only of germline variants")
	flags.Bool("canonical-only", false, "Only use Ensembl canonical transcripts")
	flags.String("cancer-gene-list", "", "OncoKB cancerGeneList.tsv; only report neoepitopes in these genes")
	flags.String("canonical-file", "", "Genome Nexus canonical transcript table overriding the Ensembl flag")
	flags.String("cache-dir", "", "Directory for the transcript model snapshot (default: next to the GTF)")

	for _, name := range []string{
		"genome", "gtf", "vcf", "maf", "haplotypes", "output", "output-format", "db", "sample", "workers",
		"germline-flag", "include-germline", "canonical-only", "canonical-file", "cancer-gene-list", "cache-dir",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	return cmd
}

func runPredict(cfg config.Config, stdout io.Writer, logger *zap.Logger) error {
	c, err := loadTranscripts(cfg, logger)
	if err != nil {
		return err
	}
	idx, err := cache.BuildIndex(c)
	if err != nil {
		return fmt.Errorf("index transcripts: %w", err)
	}
	logger.Info("loaded transcripts",
		zap.Int("transcripts", c.TranscriptCount()),
		zap.Int("coding", idx.Len()))

	g, err := genome.OpenIndexed(cfg.Genome)
	if err != nil {
		return err
	}
	defer g.Close()

	in, err := readHaplotypes(cfg, logger)
	if err != nil {
		return err
	}

	out := stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	var writers neoepitope.MultiWriter
	if cfg.OutputFormat == config.FormatVCF {
		writers = append(writers, output.NewVCFWriter(out, in.header, in.variants))
	} else {
		writers = append(writers, output.NewTabWriter(out))
	}

	if cfg.DB != "" {
		store, err := duckdb.Open(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.StartRun(duckdb.Run{
			Sample:  cfg.Sample,
			GTF:     cfg.GTF,
			Genome:  cfg.Genome,
			MinSize: cfg.Peptide.MinSize,
			MaxSize: cfg.Peptide.MaxSize,
		})
		if err != nil {
			return err
		}
		logger.Info("started run", zap.String("run_id", run.ID), zap.String("db", cfg.DB))
		writers = append(writers, store.NewRunWriter(run.ID))
	}

	var sink neoepitope.Writer = writers
	var filter *oncokb.Filter
	if cfg.CancerGeneList != "" {
		genes, err := oncokb.LoadCancerGeneList(cfg.CancerGeneList)
		if err != nil {
			return err
		}
		filter = oncokb.NewFilter(genes, writers)
		sink = filter
	}

	p := neoepitope.NewPredictor(idx, g, cfg.Options())
	p.SetLogger(logger)

	stats, err := p.PredictAll(in.haplotypes, sink, cfg.Workers)
	if err != nil {
		return err
	}
	if filter != nil {
		logger.Info("withheld neoepitopes outside cancer genes", zap.Int("neoepitopes", filter.Dropped()))
	}
	logger.Info("prediction complete",
		zap.Int("haplotypes", len(in.haplotypes)),
		zap.Int("transcripts", stats.Transcripts),
		zap.Int("failed", stats.Failed),
		zap.Int("neoepitopes", stats.Neoepitopes))
	return nil
}

// loadTranscripts reads models from the gob snapshot when it matches the
// GTF and options, and otherwise parses the GTF and refreshes the snapshot.
func loadTranscripts(cfg config.Config, logger *zap.Logger) (*cache.Cache, error) {
	opts := cfg.LoadOptions()
	fp, err := duckdb.StatFile(cfg.GTF)
	if err != nil {
		return nil, fmt.Errorf("stat GTF: %w", err)
	}

	dir := cfg.CacheDir
	if dir == "" {
		dir = filepath.Dir(cfg.GTF)
	}
	tc := duckdb.NewTranscriptCache(dir)

	if tc.Valid(fp, opts) {
		c := cache.New()
		if err := tc.Load(c); err == nil {
			logger.Debug("loaded transcript snapshot", zap.String("dir", dir))
			return c, nil
		}
		logger.Warn("ignoring unreadable transcript snapshot", zap.String("dir", dir), zap.Error(err))
	}

	c := cache.New()
	logger.Info("parsing GTF", zap.String("path", cfg.GTF))
	if err := cache.NewGTFLoader(cfg.GTF, opts).Load(c); err != nil {
		return nil, err
	}
	if err := tc.Write(c, fp, opts); err != nil {
		logger.Warn("could not write transcript snapshot", zap.Error(err))
	}
	return c, nil
}

// predictInput holds the haplotypes to predict from and the records they came from.
type predictInput struct {
	haplotypes []haplotype.Haplotype
	variants   []*vcf.Variant
	header     []string
}

// readHaplotypes combines HapCUT2 blocks, when given, with the VCF or MAF records.
func readHaplotypes(cfg config.Config, logger *zap.Logger) (predictInput, error) {
	var in predictInput
	switch {
	case cfg.MAF != "":
		parser, err := maf.NewParser(cfg.MAF)
		if err != nil {
			return in, err
		}
		defer parser.Close()
		parser.SetSample(cfg.Sample)
		parser.SetGermlineFlag(cfg.GermlineFlag)
		in.variants, err = vcf.ReadAll(parser)
		if err != nil {
			return in, err
		}
		logger.Info("read MAF variants", zap.Int("variants", len(in.variants)))
	case cfg.VCF != "":
		parser, err := vcf.NewParser(cfg.VCF)
		if err != nil {
			return in, err
		}
		defer parser.Close()
		if cfg.Sample != "" {
			if err := parser.SetSample(cfg.Sample); err != nil {
				return in, err
			}
		}
		in.variants, err = vcf.ReadAll(parser)
		if err != nil {
			return in, err
		}
		in.header = parser.Header()
		logger.Info("read variants",
			zap.Int("variants", len(in.variants)),
			zap.Int("skipped_symbolic", parser.Skipped()))
	}

	if cfg.Haplotypes == "" {
		in.haplotypes = haplotype.FromVCF(in.variants, cfg.GermlineFlag)
		return in, nil
	}
	haps, err := haplotype.ReadFile(cfg.Haplotypes)
	if err != nil {
		return in, err
	}
	logger.Info("read haplotypes", zap.Int("haplotypes", len(haps)))
	in.haplotypes = haplotype.AddUnphased(haps, in.variants, cfg.GermlineFlag)
	return in, nil
}
