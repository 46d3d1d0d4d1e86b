package vcf

import (
	"math"
	"testing"
)

func TestVariant_Classification(t *testing.T) {
	tests := []struct {
		name                      string
		ref, alt                  string
		snv, mnv, indel, ins, del bool
	}{
		{"SNV", "A", "G", true, false, false, false, false},
		{"MNV", "AT", "GC", false, true, false, false, false},
		{"deletion", "AT", "A", false, false, true, false, true},
		{"complex deletion", "ATGC", "G", false, false, true, false, true},
		{"insertion", "A", "AT", false, false, true, true, false},
		{"larger insertion", "A", "ATGC", false, false, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{Ref: tt.ref, Alt: tt.alt}
			if got := v.IsSNV(); got != tt.snv {
				t.Errorf("IsSNV() = %v, want %v", got, tt.snv)
			}
			if got := v.IsMNV(); got != tt.mnv {
				t.Errorf("IsMNV() = %v, want %v", got, tt.mnv)
			}
			if got := v.IsIndel(); got != tt.indel {
				t.Errorf("IsIndel() = %v, want %v", got, tt.indel)
			}
			if got := v.IsInsertion(); got != tt.ins {
				t.Errorf("IsInsertion() = %v, want %v", got, tt.ins)
			}
			if got := v.IsDeletion(); got != tt.del {
				t.Errorf("IsDeletion() = %v, want %v", got, tt.del)
			}
		})
	}
}

func TestVariant_NormalizeChrom(t *testing.T) {
	tests := []struct {
		chrom string
		want  string
	}{
		{"chr12", "12"},
		{"12", "12"},
		{"chrX", "X"},
		{"chrM", "M"},
		{"MT", "MT"},
		{"", ""},
	}

	for _, tt := range tests {
		v := &Variant{Chrom: tt.chrom}
		if got := v.NormalizeChrom(); got != tt.want {
			t.Errorf("NormalizeChrom(%q) = %v, want %v", tt.chrom, got, tt.want)
		}
	}

	v := &Variant{Chrom: "chr12", Pos: 25245351, Ref: "C", Alt: "A"}
	if got := v.Key(); got != "12:25245351:C:A" {
		t.Errorf("Key() = %q", got)
	}
}

func TestVariant_HasFlag(t *testing.T) {
	v := &Variant{Info: map[string]interface{}{
		"GERMLINE": true,
		"SOMATIC":  "0",
		"DP":       "12",
	}}

	if !v.HasFlag("GERMLINE") {
		t.Error("GERMLINE flag not found")
	}
	if v.HasFlag("SOMATIC") {
		t.Error("SOMATIC=0 should not count as set")
	}
	if !v.HasFlag("DP") {
		t.Error("valued INFO key should count as set")
	}
	if v.HasFlag("PON") {
		t.Error("absent flag reported as set")
	}
}

func TestVariant_VAF(t *testing.T) {
	tests := []struct {
		name    string
		samples string
		info    map[string]interface{}
		want    float64
		ok      bool
	}{
		{"FREQ percent", "GT:FREQ\t0/1:35.5%", nil, 0.355, true},
		{"FORMAT AF", "GT:AF\t0/1:0.25", nil, 0.25, true},
		{"INFO AF", "GT\t0/1", map[string]interface{}{"AF": "0.4,0.1"}, 0.4, true},
		{"missing value", "GT:FREQ\t0/1:.", nil, 0, false},
		{"no samples", "", nil, 0, false},
		{"second sample", "GT:AF\t0/0:0.01\t0/1:0.3", nil, 0.3, true},
		{"second allele", "GT:AF\t1/2:0.2,0.15", nil, 0.15, true},
		{"missing sample", "GT:AF\t0/1:0.3", nil, 0, false},
	}
	sample := map[string]int{"second sample": 1, "missing sample": 1}
	altIndex := map[string]int{"second allele": 1}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &Variant{SampleColumns: tt.samples, Info: tt.info, Sample: sample[tt.name], AltIndex: altIndex[tt.name]}
			got, ok := v.VAF()
			if ok != tt.ok {
				t.Fatalf("VAF() ok = %v, want %v", ok, tt.ok)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("VAF() = %v, want %v", got, tt.want)
			}
		})
	}
}
