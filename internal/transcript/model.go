package transcript

import (
	"math"
	"strings"
)

// Timestamp mirrors the {seconds, nanos} encoding used for word timings.
type Timestamp struct {
	Seconds float64 `json:"seconds"`
	Nanos   int     `json:"nanos"`
}

// Value returns the timestamp in fractional seconds.
func (t Timestamp) Value() float64 {
	return t.Seconds + float64(t.Nanos)/1e9
}

// Word is a single recognized word with its timing.
type Word struct {
	Word      string    `json:"word"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
}

// Start returns the word start in seconds.
func (w Word) Start() float64 { return w.StartTime.Value() }

// End returns the word end in seconds.
func (w Word) End() float64 { return w.EndTime.Value() }

// Result is one recognized utterance and its words.
type Result struct {
	Transcript string `json:"transcript"`
	Words      []Word `json:"words"`
}

// Segment is a time-coded span of transcript text.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the persisted representation of an episode transcript.
type Transcript struct {
	Results  []Result  `json:"results"`
	Segments []Segment `json:"segments"`
}

// Empty reports whether t carries no text.
func (t *Transcript) Empty() bool {
	if t == nil {
		return true
	}
	return strings.TrimSpace(t.Text()) == ""
}

// Text joins the transcript into a single string, preferring segments.
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.TimedSegments() {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// TimedSegments returns the segment list, deriving one segment per result from
// word timings when the transcript has no explicit segments.
func (t *Transcript) TimedSegments() []Segment {
	if t == nil {
		return nil
	}
	if len(t.Segments) > 0 {
		return t.Segments
	}
	segments := make([]Segment, 0, len(t.Results))
	for _, result := range t.Results {
		seg := Segment{Text: result.Transcript}
		if n := len(result.Words); n > 0 {
			seg.Start = result.Words[0].StartTime.Seconds
			seg.End = result.Words[n-1].EndTime.Seconds
		}
		segments = append(segments, seg)
	}
	return segments
}

// Duration returns the end time of the last word or segment.
func (t *Transcript) Duration() float64 {
	if t == nil {
		return 0
	}
	if end, ok := lastWordEnd(t.Results); ok {
		return end
	}
	if n := len(t.Segments); n > 0 {
		return t.Segments[n-1].End
	}
	return 0
}

// FromSegments builds a transcript whose results map one-to-one onto segments
// with empty word lists.
func FromSegments(segments []Segment) *Transcript {
	results := make([]Result, 0, len(segments))
	for _, seg := range segments {
		results = append(results, Result{Transcript: seg.Text, Words: []Word{}})
	}
	return &Transcript{Results: results, Segments: segments}
}

func lastWordEnd(results []Result) (float64, bool) {
	if n := len(results); n > 0 {
		words := results[n-1].Words
		if m := len(words); m > 0 {
			return words[m-1].EndTime.Seconds, true
		}
	}
	return 0, false
}

func approxTokens(chars int) int {
	return int(math.Ceil(float64(chars) / 4))
}
