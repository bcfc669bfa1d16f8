package explore

import (
	"encoding/json"
	"math"

	"github.com/KaramelBytes/vo2scope/internal/dataset"
)

// DefaultBinCount is the number of bins used when none is configured.
const DefaultBinCount = 30

// FallbackDomain is used when no category is active.
var FallbackDomain = Domain{Min: 0, Max: 60}

// Domain is the VO2 interval covered by the histogram.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width returns the bin width for k bins.
func (d Domain) Width(k int) float64 { return (d.Max - d.Min) / float64(k) }

// widened returns d with a non-zero span.
func (d Domain) widened() Domain {
	if !(d.Max > d.Min) {
		return Domain{Min: d.Min, Max: d.Min + 1}
	}
	return d
}

// Bin is one histogram bucket: [Lower, Upper), or [Lower, Upper] for the last.
type Bin struct {
	Lower   float64
	Upper   float64
	Members []dataset.MeasurementRecord
}

func (b Bin) Count() int { return len(b.Members) }

// Edges returns the k+1 bin boundaries of d. The last edge is exactly d.Max.
func Edges(d Domain, k int) []float64 {
	if k <= 0 {
		k = DefaultBinCount
	}
	d = d.widened()
	w := d.Width(k)
	edges := make([]float64, k+1)
	for i := 0; i < k; i++ {
		edges[i] = d.Min + float64(i)*w
	}
	edges[k] = d.Max
	return edges
}

// ComputeBins partitions domain into k equal-width bins and assigns records
// of the given gender by VO2. Records outside the domain are not counted.
func ComputeBins(records []dataset.MeasurementRecord, gender dataset.Gender, domain Domain, k int) []Bin {
	if k <= 0 {
		k = DefaultBinCount
	}
	edges := Edges(domain, k)
	bins := make([]Bin, k)
	for i := range bins {
		bins[i] = Bin{Lower: edges[i], Upper: edges[i+1]}
	}
	for _, r := range records {
		if r.Gender != gender {
			continue
		}
		if i, ok := binIndex(edges, r.VO2); ok {
			bins[i].Members = append(bins[i].Members, r)
		}
	}
	return bins
}

// binIndex locates v among edges. A value on an internal edge belongs to the
// higher bin; the final edge is inclusive.
func binIndex(edges []float64, v float64) (int, bool) {
	k := len(edges) - 1
	if math.IsNaN(v) || v < edges[0] || v > edges[k] {
		return 0, false
	}
	if v == edges[k] {
		return k - 1, true
	}
	w := (edges[k] - edges[0]) / float64(k)
	i := int(math.Floor((v - edges[0]) / w))
	if i >= k {
		i = k - 1
	}
	if i < 0 {
		i = 0
	}
	// Correct for floating point drift around edges.
	for i > 0 && v < edges[i] {
		i--
	}
	for i < k-1 && v >= edges[i+1] {
		i++
	}
	return i, true
}

// ActiveDomain is the union of the VO2 extents of every active category
// present in records. ok is false when no category is active or none of the
// active categories has data; the fallback domain is returned then.
func ActiveDomain(records []dataset.MeasurementRecord, genders GenderSet) (Domain, bool) {
	if genders.Empty() {
		return FallbackDomain, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range records {
		if !genders.Has(r.Gender) {
			continue
		}
		if r.VO2 < lo {
			lo = r.VO2
		}
		if r.VO2 > hi {
			hi = r.VO2
		}
	}
	if lo > hi {
		return FallbackDomain, false
	}
	return Domain{Min: lo, Max: hi}, true
}

// Nice extends d outward to multiples of a 1, 2 or 5 × 10^n step chosen for
// roughly ten ticks. Widening can change the step, so it repeats until the
// step is stable.
func Nice(d Domain) Domain {
	if !(d.Max > d.Min) || math.IsInf(d.Max-d.Min, 0) {
		return d
	}
	prev := 0.0
	for i := 0; i < 10; i++ {
		step := niceStep((d.Max - d.Min) / 10)
		if step == prev {
			break
		}
		d = Domain{Min: math.Floor(d.Min/step) * step, Max: math.Ceil(d.Max/step) * step}
		prev = step
	}
	return d
}

// niceStep rounds raw to 1, 2, 5 or 10 × 10^n, switching at the geometric
// midpoints √2, √10 and √50.
func niceStep(raw float64) float64 {
	base := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / base; {
	case f >= math.Sqrt(50):
		return 10 * base
	case f >= math.Sqrt(10):
		return 5 * base
	case f >= math.Sqrt2:
		return 2 * base
	default:
		return base
	}
}

// Series is the bins of one category.
type Series struct {
	Gender dataset.Gender
	Bins   []Bin
	Total  int
}

// MarshalJSON emits per-bin counts instead of member records.
func (s Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Gender dataset.Gender `json:"gender"`
		Total  int            `json:"total"`
		Counts []int          `json:"counts"`
	}{s.Gender, s.Total, s.Counts()})
}

// Counts returns the member count of every bin.
func (s Series) Counts() []int {
	out := make([]int, len(s.Bins))
	for i, b := range s.Bins {
		out[i] = b.Count()
	}
	return out
}

// Histogram is the binned view of the filtered records.
type Histogram struct {
	Domain   Domain    `json:"domain"`
	BinCount int       `json:"bin_count"`
	Edges    []float64 `json:"edges"`
	Series   []Series  `json:"series"`
	MaxCount int       `json:"max_count"`
	// Empty is set when no category is active, or none has data.
	Empty bool `json:"empty"`
}

// HistogramOptions controls BuildHistogram.
type HistogramOptions struct {
	Bins int
	Nice bool
}

// BuildHistogram bins filtered records for each active category over their
// shared domain. With no active category the fallback domain is used and no
// series are produced.
func BuildHistogram(filtered []dataset.MeasurementRecord, genders GenderSet, opt HistogramOptions) Histogram {
	k := opt.Bins
	if k <= 0 {
		k = DefaultBinCount
	}
	domain, ok := ActiveDomain(filtered, genders)
	if ok && opt.Nice {
		domain = Nice(domain)
	}
	domain = domain.widened()
	h := Histogram{Domain: domain, BinCount: k, Edges: Edges(domain, k), Empty: !ok}
	if genders.Empty() {
		return h
	}
	for _, g := range genders.Members() {
		s := Series{Gender: g, Bins: ComputeBins(filtered, g, domain, k)}
		for _, b := range s.Bins {
			s.Total += b.Count()
			if b.Count() > h.MaxCount {
				h.MaxCount = b.Count()
			}
		}
		h.Series = append(h.Series, s)
	}
	return h
}
