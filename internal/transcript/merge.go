package transcript

// Merge combines chunk-level transcripts, each on its own zero-based timeline,
// into one contiguous timeline. Empty input returns nil and a single transcript
// is returned unchanged. Nil entries are skipped. After each chunk the offset
// advances to the last word end, falling back to the last segment end; chunks
// with neither leave the offset untouched.
func Merge(transcripts []*Transcript) *Transcript {
	switch len(transcripts) {
	case 0:
		return nil
	case 1:
		return transcripts[0]
	}

	merged := &Transcript{Results: []Result{}, Segments: []Segment{}}
	offset := 0.0
	for _, t := range transcripts {
		if t == nil {
			continue
		}
		results := make([]Result, 0, len(t.Results))
		for _, result := range t.Results {
			words := make([]Word, 0, len(result.Words))
			for _, word := range result.Words {
				words = append(words, Word{
					Word:      word.Word,
					StartTime: Timestamp{Seconds: word.StartTime.Seconds + offset, Nanos: word.StartTime.Nanos},
					EndTime:   Timestamp{Seconds: word.EndTime.Seconds + offset, Nanos: word.EndTime.Nanos},
				})
			}
			results = append(results, Result{Transcript: result.Transcript, Words: words})
		}
		segments := make([]Segment, 0, len(t.Segments))
		for _, seg := range t.Segments {
			segments = append(segments, Segment{
				Text:  seg.Text,
				Start: seg.Start + offset,
				End:   seg.End + offset,
			})
		}

		merged.Results = append(merged.Results, results...)
		merged.Segments = append(merged.Segments, segments...)

		if end, ok := lastWordEnd(results); ok {
			offset = end
		} else if n := len(segments); n > 0 {
			offset = segments[n-1].End
		}
	}
	return merged
}
