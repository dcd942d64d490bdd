// Package analysis computes outbreak statistics over ACTIVE-count series.
package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Outbreak is one closed excursion of the series at or above the threshold.
type Outbreak struct {
	Start    int `json:"start"`    // index of the first value at or above threshold
	Peak     int `json:"peak"`     // highest value during the outbreak
	Duration int `json:"duration"` // number of values at or above threshold
}

// Detect returns every closed outbreak in actives. An outbreak starts at the
// first value >= threshold and ends at the next value below it. An outbreak
// still running when the series ends is not reported.
func Detect(actives []int, threshold int) []Outbreak {
	var out []Outbreak
	var cur Outbreak
	counting := false

	for i, v := range actives {
		switch {
		case v >= threshold && !counting:
			counting = true
			cur = Outbreak{Start: i, Peak: v}
		case v >= threshold:
			cur.Peak = max(cur.Peak, v)
		case counting:
			cur.Duration = i - cur.Start
			out = append(out, cur)
			counting = false
		}
	}
	return out
}

// Outbreaks returns the peak heights and durations of the closed outbreaks
// in actives. With none found both slices are [0] so downstream means and
// maxima stay defined.
func Outbreaks(actives []int, threshold int) (peaks, durations []int) {
	found := Detect(actives, threshold)
	if len(found) == 0 {
		return []int{0}, []int{0}
	}
	peaks = make([]int, len(found))
	durations = make([]int, len(found))
	for i, o := range found {
		peaks[i] = o.Peak
		durations[i] = o.Duration
	}
	return peaks, durations
}

// Summary aggregates outbreaks over a set of runs.
type Summary struct {
	Runs         int     `json:"runs"`
	Outbreaks    int     `json:"outbreaks"`
	MeanCount    float64 `json:"mean_count"` // outbreaks per run
	MeanPeak     float64 `json:"mean_peak"`
	MeanDuration float64 `json:"mean_duration"`
	MaxPeak      int     `json:"max_peak"`
	MaxDuration  int     `json:"max_duration"`
}

// Summarize detects outbreaks in every series and aggregates them. Runs
// without outbreaks contribute to Runs only; every field is zero when no
// outbreak is found. The peak and duration means are over real outbreaks, so
// they differ from averaging the [0] placeholders Outbreaks returns for
// quiet runs.
func Summarize(series [][]int, threshold int) Summary {
	s := Summary{Runs: len(series)}

	var peaks, durations []float64
	for _, actives := range series {
		for _, o := range Detect(actives, threshold) {
			peaks = append(peaks, float64(o.Peak))
			durations = append(durations, float64(o.Duration))
		}
	}
	if len(peaks) == 0 {
		return s
	}

	s.Outbreaks = len(peaks)
	s.MeanCount = float64(len(peaks)) / float64(s.Runs)
	s.MeanPeak = stat.Mean(peaks, nil)
	s.MeanDuration = stat.Mean(durations, nil)
	s.MaxPeak = int(floats.Max(peaks))
	s.MaxDuration = int(floats.Max(durations))
	return s
}
