package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// legacyEntry accepts both result-shaped and segment-shaped array elements.
type legacyEntry struct {
	Transcript string   `json:"transcript"`
	Text       string   `json:"text"`
	Words      []Word   `json:"words"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
}

type legacyObject struct {
	Results  []legacyEntry `json:"results"`
	Segments []Segment     `json:"segments"`
	Text     string        `json:"text"`
}

// Parse decodes a stored transcript, accepting every historical encoding:
// a structured object with segments and/or results, a bare results array, a
// JSON string, or raw plain text. Empty input and JSON null return nil.
func Parse(raw []byte) (*Transcript, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		var obj legacyObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode transcript object: %w", err)
		}
		return fromObject(obj), nil
	case '[':
		var entries []legacyEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decode transcript array: %w", err)
		}
		return fromEntries(entries), nil
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("decode transcript string: %w", err)
		}
		return FromText(text), nil
	default:
		return FromText(string(trimmed)), nil
	}
}

// FromText wraps plain text as a single result with no word timings.
func FromText(text string) *Transcript {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &Transcript{
		Results:  []Result{{Transcript: text, Words: []Word{}}},
		Segments: []Segment{},
	}
}

// Normalize returns a copy of t where a missing segment list is derived from
// results, so downstream chunking always sees time-coded segments.
func Normalize(t *Transcript) *Transcript {
	if t == nil {
		return nil
	}
	out := &Transcript{Results: t.Results, Segments: t.TimedSegments()}
	if out.Results == nil {
		out.Results = []Result{}
	}
	if out.Segments == nil {
		out.Segments = []Segment{}
	}
	return out
}

func fromObject(obj legacyObject) *Transcript {
	t := &Transcript{Results: []Result{}, Segments: obj.Segments}
	for _, entry := range obj.Results {
		t.Results = append(t.Results, entry.result())
	}
	if t.Segments == nil {
		t.Segments = []Segment{}
	}
	if len(t.Results) == 0 && len(t.Segments) == 0 {
		return FromText(obj.Text)
	}
	return t
}

func fromEntries(entries []legacyEntry) *Transcript {
	t := &Transcript{Results: []Result{}, Segments: []Segment{}}
	for _, entry := range entries {
		if entry.Transcript == "" && entry.Text != "" && entry.Start != nil {
			t.Segments = append(t.Segments, Segment{Text: entry.Text, Start: *entry.Start, End: deref(entry.End)})
			continue
		}
		t.Results = append(t.Results, entry.result())
	}
	if len(t.Results) == 0 && len(t.Segments) > 0 {
		t.Results = FromSegments(t.Segments).Results
	}
	return t
}

func (e legacyEntry) result() Result {
	text := e.Transcript
	if text == "" {
		text = e.Text
	}
	words := e.Words
	if words == nil {
		words = []Word{}
	}
	return Result{Transcript: text, Words: words}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
