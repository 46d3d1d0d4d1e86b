// Package neoepitope predicts mutant peptides from phased tumor variants.
package neoepitope

import (
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-neo/internal/cache"
	"github.com/inodb/vibe-neo/internal/genome"
	"github.com/inodb/vibe-neo/internal/haplotype"
	"github.com/inodb/vibe-neo/internal/transcript"
)

// TranscriptLookup finds the transcripts whose coding sequence overlaps a
// 1-based inclusive genomic range.
type TranscriptLookup interface {
	FindOverlaps(chrom string, start, end int64) []*cache.Transcript
}

// Options controls peptide extraction.
type Options struct {
	MinSize         int
	MaxSize         int
	IncludeGermline bool // report peptides without a somatic contribution
}

// DefaultOptions returns the usual MHC class I peptide lengths.
func DefaultOptions() Options {
	return Options{MinSize: 8, MaxSize: 11}
}

// Neoepitope is a mutant peptide produced by one haplotype of a transcript.
type Neoepitope struct {
	Peptide    string
	Reference  string // empty when the reference has no aligned window
	Transcript *cache.Transcript
	Block      int
	Copy       int
	Alleles    []haplotype.Allele // variants contributing to the peptide
	Origins    transcript.OriginSet
}

// Predictor turns haplotypes into neoepitopes.
type Predictor struct {
	lookup TranscriptLookup
	genome genome.Reader
	opts   Options
	logger *zap.Logger
}

// NewPredictor creates a predictor reading models from lookup and bases from g.
func NewPredictor(lookup TranscriptLookup, g genome.Reader, opts Options) *Predictor {
	return &Predictor{
		lookup: lookup,
		genome: g,
		opts:   opts,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for warning and info messages.
func (p *Predictor) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Jobs groups the alleles of each haplotype by the transcripts they touch.
// Every returned item holds one transcript and the haplotypes restricted to
// the alleles overlapping its coding sequence. Haplotypes with no somatic
// allele on a transcript are left out unless germline peptides are wanted.
func (p *Predictor) Jobs(haps []haplotype.Haplotype) []WorkItem {
	type hapKey struct{ block, copy int }
	type group struct {
		transcript *cache.Transcript
		order      []hapKey
		haps       map[hapKey]*haplotype.Haplotype
	}

	groups := make(map[string]*group)
	for _, h := range haps {
		for _, a := range h.Alleles {
			v := a.Variant
			// An insertion after the last reference base may still land
			// on the next coding base.
			start, end := v.Pos, v.Pos+int64(len(v.Ref))
			if v.Ref == "" {
				start--
			}
			for _, t := range p.lookup.FindOverlaps(v.Chrom, start, end) {
				g, ok := groups[t.ID]
				if !ok {
					g = &group{transcript: t, haps: make(map[hapKey]*haplotype.Haplotype)}
					groups[t.ID] = g
				}
				k := hapKey{h.Block, h.Copy}
				sub, ok := g.haps[k]
				if !ok {
					sub = &haplotype.Haplotype{Block: h.Block, Copy: h.Copy}
					g.haps[k] = sub
					g.order = append(g.order, k)
				}
				sub.Alleles = append(sub.Alleles, a)
			}
		}
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].transcript, ordered[j].transcript
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.CDSStart != b.CDSStart {
			return a.CDSStart < b.CDSStart
		}
		return a.ID < b.ID
	})

	var items []WorkItem
	for _, g := range ordered {
		item := WorkItem{Seq: len(items), Transcript: g.transcript}
		for _, k := range g.order {
			h := g.haps[k]
			if !p.opts.IncludeGermline && !hasSomatic(h) {
				continue
			}
			item.Haplotypes = append(item.Haplotypes, *h)
		}
		if len(item.Haplotypes) > 0 {
			items = append(items, item)
		}
	}
	return items
}

// Predict applies every haplotype of item to the reference transcript in turn
// and returns the peptides each one produces. A variant that cannot be
// applied is rolled back and skipped.
func (p *Predictor) Predict(item WorkItem) ([]*Neoepitope, error) {
	tr, err := item.Transcript.Editable(p.genome)
	if err != nil {
		return nil, fmt.Errorf("build transcript %s: %w", item.Transcript.ID, err)
	}

	var out []*Neoepitope
	for _, h := range item.Haplotypes {
		tr.Reset(true)
		var applied []haplotype.Allele
		for _, a := range h.Alleles {
			tr.Save()
			if err := applyAllele(tr, a); err != nil {
				tr.Reset(false)
				p.logger.Warn("skipping variant",
					zap.String("transcript", item.Transcript.ID),
					zap.String("variant", a.Variant.Key()),
					zap.Error(err))
				continue
			}
			applied = append(applied, a)
		}
		if len(applied) == 0 {
			continue
		}

		peptides, err := tr.PeptideRange(p.opts.MinSize, p.opts.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("extract peptides for %s: %w", item.Transcript.ID, err)
		}
		for _, pep := range peptides {
			if !p.opts.IncludeGermline && !pep.Origins.Has(transcript.Somatic) {
				continue
			}
			out = append(out, &Neoepitope{
				Peptide:    pep.Mutant,
				Reference:  pep.Reference,
				Transcript: item.Transcript,
				Block:      h.Block,
				Copy:       h.Copy,
				Alleles:    contributing(pep, applied, tr.ReverseStrand()),
				Origins:    pep.Origins,
			})
		}
	}
	return out, nil
}

// Stats summarizes a prediction run.
type Stats struct {
	Transcripts int // transcripts with at least one haplotype
	Failed      int // transcripts skipped after an error
	Neoepitopes int
}

// PredictAll predicts peptides for every haplotype and writes them to w in
// transcript order. A transcript that fails is logged and skipped. If
// workers is 0, runtime.NumCPU() is used.
func (p *Predictor) PredictAll(haps []haplotype.Haplotype, w Writer, workers int) (Stats, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobs := p.Jobs(haps)
	stats := Stats{Transcripts: len(jobs)}

	items := make(chan WorkItem, 2*workers)
	go func() {
		defer close(items)
		for _, item := range jobs {
			items <- item
		}
	}()

	results := p.ParallelPredict(items, workers)
	if err := OrderedCollect(results, func(r WorkResult) error {
		if r.Err != nil {
			stats.Failed++
			p.logger.Warn("failed to predict transcript",
				zap.String("transcript", r.Transcript.ID),
				zap.Error(r.Err))
			return nil
		}
		for _, n := range r.Neoepitopes {
			if err := w.Write(n); err != nil {
				return fmt.Errorf("write neoepitope: %w", err)
			}
			stats.Neoepitopes++
		}
		return nil
	}); err != nil {
		return stats, err
	}

	if len(jobs) == 0 {
		p.logger.Info("no haplotype overlaps a coding sequence")
	}
	return stats, w.Flush()
}

func applyAllele(tr *transcript.Transcript, a haplotype.Allele) error {
	origin := transcript.Somatic
	if a.Germline {
		origin = transcript.Germline
	}
	edits, err := ToEdits(a.Variant, origin)
	if err != nil {
		return err
	}
	for _, e := range edits {
		if err := e.Apply(tr); err != nil {
			return fmt.Errorf("apply %s edit at %d: %w", e.Kind, e.Pos, err)
		}
	}
	return nil
}

// contributing picks the alleles behind a peptide: those touching the
// reference span of its bases, plus any upstream frameshift when part of the
// peptide is read in a shifted frame. When nothing qualifies, for example
// for a peptide made only of inserted bases, every applied allele is
// returned.
func contributing(pep transcript.Peptide, applied []haplotype.Allele, reverse bool) []haplotype.Allele {
	var out []haplotype.Allele
	for _, a := range applied {
		v := a.Variant
		if pep.Origins.Has(originOf(a)) && touches(v.Pos, v.Pos+int64(max(len(v.Ref), 1)), pep) {
			out = append(out, a)
			continue
		}
		if !pep.Shifted || (len(v.Ref)-len(v.Alt))%3 == 0 || pep.GenomeStart == 0 {
			continue
		}
		upstream := v.Pos < pep.GenomeStart
		if reverse {
			upstream = v.Pos > pep.GenomeEnd
		}
		if upstream {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return applied
	}
	return out
}

// touches reports whether [start, end] meets the peptide span, which is
// widened by one base so that junctions at its edges count.
func touches(start, end int64, pep transcript.Peptide) bool {
	if pep.GenomeStart == 0 {
		return false
	}
	return start <= pep.GenomeEnd+1 && end >= pep.GenomeStart-1
}

func originOf(a haplotype.Allele) transcript.Origin {
	if a.Germline {
		return transcript.Germline
	}
	return transcript.Somatic
}

func hasSomatic(h *haplotype.Haplotype) bool {
	for _, a := range h.Alleles {
		if !a.Germline {
			return true
		}
	}
	return false
}
