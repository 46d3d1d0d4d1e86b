// Package vcf provides VCF file parsing functionality.
package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant represents a single genomic variant from a VCF file.
type Variant struct {
	Chrom         string                 // Chromosome name (e.g., "12", "chr12")
	Pos           int64                  // 1-based genomic position
	ID            string                 // Variant identifier (e.g., rs ID)
	Ref           string                 // Reference allele
	Alt           string                 // Alternate allele (single allele after splitting)
	Qual          float64                // Quality score
	Filter        string                 // Filter status (PASS or filter name)
	Info          map[string]interface{} // INFO field key-value pairs
	RawInfo       string                 // INFO column as read
	SampleColumns string                 // FORMAT and sample columns, tab-joined
	Sample        int                    // Sample column read by VAF, 0 for the first
	AltIndex      int                    // Index of Alt in the record's ALT column
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsMNV returns true if the variant substitutes several adjacent bases.
func (v *Variant) IsMNV() bool {
	return len(v.Ref) > 1 && len(v.Ref) == len(v.Alt)
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	return strings.TrimPrefix(v.Chrom, "chr")
}

// Key identifies the variant by normalized position and alleles.
func (v *Variant) Key() string {
	return fmt.Sprintf("%s:%d:%s:%s", v.NormalizeChrom(), v.Pos, v.Ref, v.Alt)
}

// HasFlag reports whether the INFO column sets the flag name.
func (v *Variant) HasFlag(name string) bool {
	val, ok := v.Info[name]
	if !ok {
		return false
	}
	switch x := val.(type) {
	case bool:
		return x
	case string:
		return x != "0" && !strings.EqualFold(x, "false")
	}
	return true
}

// VAF returns the variant allele fraction of the selected sample. It reads
// the FORMAT field FREQ (a percentage, as written by VarScan) or AF, and
// falls back to the INFO field AF. Per-allele AF values are indexed by
// AltIndex.
func (v *Variant) VAF() (float64, bool) {
	if f, ok := v.formatValue("FREQ"); ok {
		if pct, err := strconv.ParseFloat(strings.TrimSuffix(f, "%"), 64); err == nil {
			return pct / 100, true
		}
	}
	if f, ok := v.formatValue("AF"); ok {
		if af, err := strconv.ParseFloat(alleleValue(f, v.AltIndex), 64); err == nil {
			return af, true
		}
	}
	if s, ok := v.Info["AF"].(string); ok {
		if af, err := strconv.ParseFloat(alleleValue(s, v.AltIndex), 64); err == nil {
			return af, true
		}
	}
	return 0, false
}

// formatValue returns the selected sample's value for a FORMAT key.
func (v *Variant) formatValue(key string) (string, bool) {
	if v.SampleColumns == "" {
		return "", false
	}
	cols := strings.Split(v.SampleColumns, "\t")
	if len(cols) < 2+v.Sample {
		return "", false
	}
	keys := strings.Split(cols[0], ":")
	vals := strings.Split(cols[1+v.Sample], ":")
	for i, k := range keys {
		if k == key && i < len(vals) && vals[i] != "." && vals[i] != "" {
			return vals[i], true
		}
	}
	return "", false
}

// alleleValue returns the i-th comma-separated value of s, or s itself when
// it holds a single value.
func alleleValue(s string, i int) string {
	vals := strings.Split(s, ",")
	if len(vals) == 1 {
		return s
	}
	if i < len(vals) {
		return vals[i]
	}
	return ""
}
