// Package config holds run settings unmarshalled from Viper: the config
// file, VIBE_NEO_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/neoepitope"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "VIBE_NEO"

// Output formats.
const (
	FormatTab = "tab"
	FormatVCF = "vcf"
)

// PeptideConfig sets the peptide window lengths.
type PeptideConfig struct {
	MinSize int `mapstructure:"min-size"`
	MaxSize int `mapstructure:"max-size"`
}

// Config is the root-level settings struct.
type Config struct {
	// reference FASTA, indexed by a .fai next to it
	Genome string `mapstructure:"genome"`
	// GENCODE GTF annotations, plain or gzipped
	GTF string `mapstructure:"gtf"`
	// somatic and germline variants
	VCF string `mapstructure:"vcf"`
	// MAF variants, used instead of a VCF
	MAF string `mapstructure:"maf"`
	// HapCUT2 phased blocks; optional
	Haplotypes string `mapstructure:"haplotypes"`

	// output path, stdout when empty
	Output string `mapstructure:"output"`
	// tab or vcf
	OutputFormat string `mapstructure:"output-format"`
	// DuckDB results database; optional
	DB     string `mapstructure:"db"`
	Sample string `mapstructure:"sample"`

	Peptide PeptideConfig `mapstructure:"peptide"`
	Workers int           `mapstructure:"workers"`

	// INFO flag marking germline variants
	GermlineFlag    string `mapstructure:"germline-flag"`
	IncludeGermline bool   `mapstructure:"include-germline"`
	CanonicalOnly   bool   `mapstructure:"canonical-only"`
	// Genome Nexus canonical transcript table; optional
	CanonicalFile string `mapstructure:"canonical-file"`
	// OncoKB cancer gene list; when set only its genes are reported
	CancerGeneList string `mapstructure:"cancer-gene-list"`

	// directory for the transcript model snapshot
	CacheDir string `mapstructure:"cache-dir"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("peptide.min-size", 8)
	v.SetDefault("peptide.max-size", 11)
	v.SetDefault("output-format", FormatTab)
	v.SetDefault("germline-flag", "GERMLINE")
	v.SetDefault("workers", 0)
}

// Load unmarshals v into a Config.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// Validate checks that the peptide sizes make sense and the required inputs
// are set.
func (c Config) Validate() error {
	var errs []error
	if c.Peptide.MinSize < 2 {
		errs = append(errs, fmt.Errorf("%w: peptide.min-size %d is below 2", ErrInvalid, c.Peptide.MinSize))
	}
	if c.Peptide.MaxSize < c.Peptide.MinSize {
		errs = append(errs, fmt.Errorf("%w: peptide.max-size %d is below min-size %d", ErrInvalid, c.Peptide.MaxSize, c.Peptide.MinSize))
	}
	if c.Genome == "" {
		errs = append(errs, fmt.Errorf("%w: genome is required", ErrInvalid))
	}
	if c.GTF == "" {
		errs = append(errs, fmt.Errorf("%w: gtf is required", ErrInvalid))
	}
	if c.VCF == "" && c.MAF == "" && c.Haplotypes == "" {
		errs = append(errs, fmt.Errorf("%w: vcf, maf or haplotypes is required", ErrInvalid))
	}
	if c.VCF != "" && c.MAF != "" {
		errs = append(errs, fmt.Errorf("%w: vcf and maf are mutually exclusive", ErrInvalid))
	}
	switch c.OutputFormat {
	case FormatTab, "":
	case FormatVCF:
		if c.VCF == "" {
			errs = append(errs, fmt.Errorf("%w: output-format vcf needs a vcf input", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown output-format %q", ErrInvalid, c.OutputFormat))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers %d is negative", ErrInvalid, c.Workers))
	}
	return errors.Join(errs...)
}

// Options returns the prediction options.
func (c Config) Options() neoepitope.Options {
	return neoepitope.Options{
		MinSize:         c.Peptide.MinSize,
		MaxSize:         c.Peptide.MaxSize,
		IncludeGermline: c.IncludeGermline,
	}
}

// LoadOptions returns the transcript model load options.
func (c Config) LoadOptions() cache.LoadOptions {
	return cache.LoadOptions{
		CanonicalOnly: c.CanonicalOnly,
		CanonicalFile: c.CanonicalFile,
	}
}

// ParseSizes parses a peptide size range such as "8,11" or a single size
// such as "9".
func ParseSizes(s string) (minSize, maxSize int, err error) {
	lo, hi, found := strings.Cut(s, ",")
	minSize, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: peptide size %q", ErrInvalid, lo)
	}
	if !found {
		return minSize, minSize, nil
	}
	maxSize, err = strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: peptide size %q", ErrInvalid, hi)
	}
	if maxSize < minSize {
		return 0, 0, fmt.Errorf("%w: size range %q is reversed", ErrInvalid, s)
	}
	return minSize, maxSize, nil
}
