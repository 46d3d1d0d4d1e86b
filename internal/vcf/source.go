package vcf

// Source yields variants one record at a time. Parser reads VCF and the
// maf package reads MAF into the same Variant type.
type Source interface {
	// Next returns the next variant, or nil, nil at the end of input.
	Next() (*Variant, error)
	Close() error
}

// ReadAll drains s, splitting multi-allelic records into one variant per
// applicable ALT allele.
func ReadAll(s Source) ([]*Variant, error) {
	var variants []*Variant
	for {
		v, err := s.Next()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return variants, nil
		}
		for _, split := range SplitMultiAllelic(v) {
			if applicable(split.Alt) {
				variants = append(variants, split)
			}
		}
	}
}
