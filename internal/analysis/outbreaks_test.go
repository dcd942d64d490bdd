package analysis

import (
	"reflect"
	"testing"
)

func TestOutbreaks(t *testing.T) {
	tests := []struct {
		name          string
		actives       []int
		wantPeaks     []int
		wantDurations []int
	}{
		{"empty series", nil, []int{0}, []int{0}},
		{"never reaches threshold", []int{1, 5, 9, 3}, []int{0}, []int{0}},
		{"one closed outbreak", []int{0, 10, 14, 12, 3}, []int{14}, []int{3}},
		{"threshold value counts", []int{10, 2}, []int{10}, []int{1}},
		{"two outbreaks", []int{12, 1, 0, 20, 30, 25, 0}, []int{12, 30}, []int{1, 3}},
		{"trailing outbreak ignored", []int{15, 0, 11, 40}, []int{15}, []int{1}},
		{"only a trailing outbreak", []int{0, 11, 40}, []int{0}, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks, durations := Outbreaks(tt.actives, 10)
			if !reflect.DeepEqual(peaks, tt.wantPeaks) {
				t.Errorf("peaks = %v, want %v", peaks, tt.wantPeaks)
			}
			if !reflect.DeepEqual(durations, tt.wantDurations) {
				t.Errorf("durations = %v, want %v", durations, tt.wantDurations)
			}
		})
	}
}

func TestDetectStart(t *testing.T) {
	got := Detect([]int{0, 0, 60, 70, 10, 55, 0}, 50)
	want := []Outbreak{{Start: 2, Peak: 70, Duration: 2}, {Start: 5, Peak: 55, Duration: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Detect = %+v, want %+v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	series := [][]int{
		{0, 60, 80, 0, 55, 0}, // peaks 80 (2 ticks), 55 (1 tick)
		{0, 0, 0},             // none
		{70, 70, 70, 70, 0},   // peak 70 (4 ticks)
		{90, 90},              // trailing, ignored
	}
	got := Summarize(series, 50)
	want := Summary{
		Runs:         4,
		Outbreaks:    3,
		MeanCount:    0.75,
		MeanPeak:     (80.0 + 55 + 70) / 3,
		MeanDuration: (2.0 + 1 + 4) / 3,
		MaxPeak:      80,
		MaxDuration:  4,
	}
	if got != want {
		t.Errorf("Summarize = %+v, want %+v", got, want)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil, 50); got != (Summary{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}
	got := Summarize([][]int{{1, 2}, {3}}, 50)
	if got != (Summary{Runs: 2}) {
		t.Errorf("Summarize without outbreaks = %+v, want only Runs=2", got)
	}
}
