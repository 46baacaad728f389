package schedule

import (
	"sort"

	"slidepress/internal/errs"
)

// TimeSlice is the share of the presentation allotted to one slide.
type TimeSlice struct {
	SlideNo    int     `json:"slide_no"`
	Ratio      float64 `json:"ratio"`
	BeginRatio float64 `json:"begin_ratio"`
	EndRatio   float64 `json:"end_ratio"`
	Seconds    float64 `json:"seconds"`
}

// Schedule collects time specifications per slide number and computes time
// slices from them.
type Schedule struct {
	total    float64
	specs    map[int]TimeSpec
	maxSlide int
	slices   []TimeSlice
}

// New creates a schedule for a presentation of totalSeconds. Zero means the
// length is unknown, in which case only relative specifications may be used.
func New(totalSeconds float64) *Schedule {
	return &Schedule{
		total: totalSeconds,
		specs: make(map[int]TimeSpec),
	}
}

// Total returns the presentation length in seconds, or zero.
func (s *Schedule) Total() float64 {
	return s.total
}

// HaveSlide records that slideNo exists.
func (s *Schedule) HaveSlide(slideNo int) {
	if slideNo > s.maxSlide {
		s.maxSlide = slideNo
		s.slices = nil
	}
}

// Set assigns a time specification to a slide.
func (s *Schedule) Set(slideNo int, spec TimeSpec) {
	s.specs[slideNo] = spec
	s.slices = nil
	s.HaveSlide(slideNo)
}

// Compute allocates time to every slide from 1 to the highest known slide
// number. Slides without a specification get weight 1.
func (s *Schedule) Compute() ([]TimeSlice, error) {
	if s.slices != nil {
		return s.slices, nil
	}

	var absSum, relSum float64
	for no := 1; no <= s.maxSlide; no++ {
		spec, ok := s.specs[no]
		switch {
		case !ok:
			relSum++
		case spec.Kind == Absolute:
			absSum += spec.Value
		default:
			relSum += spec.Value
		}
	}

	if absSum > 0 && s.total == 0 {
		return nil, errs.New(errs.KindTimeSpecification, "absolute slide times require a presentation-time in the metadata")
	}

	relTime := 1.0
	if s.total > 0 {
		relTime = s.total - absSum
		if relTime < 0 {
			return nil, errs.Newf(errs.KindTimeSpecification, "presentation time is %.0f seconds, but %.0f seconds are already allocated to absolute slides", s.total, absSum)
		}
	}
	if relSum == 0 {
		relSum = 1
	}

	slices := make([]TimeSlice, 0, s.maxSlide)
	begin := 0.0
	for no := 1; no <= s.maxSlide; no++ {
		var secs float64
		spec, ok := s.specs[no]
		switch {
		case !ok:
			secs = relTime / relSum
		case spec.Kind == Absolute:
			secs = spec.Value
		default:
			secs = spec.Value / relSum * relTime
		}

		ratio := secs
		if s.total > 0 {
			ratio = secs / s.total
		}
		slices = append(slices, TimeSlice{
			SlideNo:    no,
			Ratio:      ratio,
			BeginRatio: begin,
			EndRatio:   begin + ratio,
			Seconds:    secs,
		})
		begin += ratio
	}
	s.slices = slices
	return slices, nil
}

// Slice returns the time slice of a slide. Before Compute has succeeded a
// placeholder covering the whole presentation is returned.
func (s *Schedule) Slice(slideNo int) TimeSlice {
	if s.slices == nil || slideNo < 1 || slideNo > len(s.slices) {
		return TimeSlice{SlideNo: slideNo, Ratio: 1, EndRatio: 1, Seconds: 1}
	}
	return s.slices[slideNo-1]
}

// Ratios lists the slide ratios in slide order, for the presenter's
// progress bar.
func (s *Schedule) Ratios() []float64 {
	out := make([]float64, 0, len(s.slices))
	for _, sl := range s.slices {
		out = append(out, sl.Ratio)
	}
	return out
}

// Specified returns the slide numbers that carry an explicit specification.
func (s *Schedule) Specified() []int {
	out := make([]int, 0, len(s.specs))
	for no := range s.specs {
		out = append(out, no)
	}
	sort.Ints(out)
	return out
}
