package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultTargetChars      = 1500
	DefaultMinChars         = 1000
	DefaultOverlapSentences = 2
)

// ChunkOptions sizes the sentence-accumulation chunker.
type ChunkOptions struct {
	TargetChars      int
	MinChars         int
	OverlapSentences int
}

// DefaultChunkOptions returns 1500/1000 character bounds with 2 sentences of overlap.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetChars:      DefaultTargetChars,
		MinChars:         DefaultMinChars,
		OverlapSentences: DefaultOverlapSentences,
	}
}

func (o ChunkOptions) normalized() ChunkOptions {
	if o.TargetChars <= 0 {
		o.TargetChars = DefaultTargetChars
	}
	if o.MinChars < 0 {
		o.MinChars = 0
	}
	if o.OverlapSentences < 0 {
		o.OverlapSentences = 0
	}
	return o
}

// Chunk is a contiguous run of transcript sentences sized for embedding or
// summarization. StartTime and EndTime are nil when the source segments
// carried no timing.
type Chunk struct {
	Text               string
	StartTime          *float64
	EndTime            *float64
	SentenceCount      int
	SourceSegmentCount int
	ApproxCharCount    int
	ApproxTokenCount   int
	ChunkIndex         int
	TotalChunks        int
}

type sentence struct {
	text    string
	start   *float64
	end     *float64
	segment int
}

// SplitSentences splits text after '.', '!' or '?' when followed by whitespace.
// Sentences are trimmed and empty ones dropped.
func SplitSentences(text string) []string {
	var out []string
	startIdx := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next >= len(text) {
			continue
		}
		following, _ := utf8.DecodeRuneInString(text[next:])
		if !unicode.IsSpace(following) {
			continue
		}
		if s := strings.TrimSpace(text[startIdx:next]); s != "" {
			out = append(out, s)
		}
		startIdx = next
	}
	if s := strings.TrimSpace(text[startIdx:]); s != "" {
		out = append(out, s)
	}
	return out
}

// ProcessIntoChunks accumulates sentences from segments into chunks. A chunk
// closes once its length reaches TargetChars while also meeting MinChars, or
// at the final sentence when it meets MinChars. Each following chunk is seeded
// with the last OverlapSentences sentences of the closed chunk. A trailing
// remainder below MinChars is still emitted as the final chunk.
func ProcessIntoChunks(segments []Segment, opts ChunkOptions) []Chunk {
	opts = opts.normalized()

	var sentences []sentence
	for idx, seg := range segments {
		start, end := segmentTimes(seg)
		for _, text := range SplitSentences(seg.Text) {
			sentences = append(sentences, sentence{text: text, start: start, end: end, segment: idx})
		}
	}

	var chunks []Chunk
	var current []sentence
	length := 0
	fresh := 0
	for i, s := range sentences {
		if len(current) > 0 {
			length++
		}
		length += utf8.RuneCountInString(s.text)
		current = append(current, s)
		fresh++

		isLast := i == len(sentences)-1
		if (length >= opts.TargetChars || isLast) && length >= opts.MinChars {
			chunks = append(chunks, buildChunk(current))
			fresh = 0
			if isLast {
				current = nil
				break
			}
			current = overlapTail(current, opts.OverlapSentences)
			length = joinedLength(current)
		}
	}
	if fresh > 0 && len(current) > 0 {
		chunks = append(chunks, buildChunk(current))
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

func buildChunk(sentences []sentence) Chunk {
	texts := make([]string, 0, len(sentences))
	segmentsSeen := make(map[int]struct{}, len(sentences))
	var start, end *float64
	for _, s := range sentences {
		texts = append(texts, s.text)
		segmentsSeen[s.segment] = struct{}{}
		if start == nil && s.start != nil {
			start = s.start
		}
		end = s.end
	}
	if start != nil && end != nil && *end < *start {
		end = start
	}
	text := strings.TrimSpace(strings.Join(texts, " "))
	chars := utf8.RuneCountInString(text)
	return Chunk{
		Text:               text,
		StartTime:          start,
		EndTime:            end,
		SentenceCount:      len(sentences),
		SourceSegmentCount: len(segmentsSeen),
		ApproxCharCount:    chars,
		ApproxTokenCount:   approxTokens(chars),
	}
}

func overlapTail(sentences []sentence, n int) []sentence {
	if n <= 0 {
		return nil
	}
	if n > len(sentences) {
		n = len(sentences)
	}
	return append([]sentence(nil), sentences[len(sentences)-n:]...)
}

func joinedLength(sentences []sentence) int {
	length := 0
	for i, s := range sentences {
		if i > 0 {
			length++
		}
		length += utf8.RuneCountInString(s.text)
	}
	return length
}

// segmentTimes returns nil timings for segments that carry none (both zero),
// which is how untimed legacy transcripts are stored.
func segmentTimes(seg Segment) (*float64, *float64) {
	if seg.Start == 0 && seg.End == 0 {
		return nil, nil
	}
	start, end := seg.Start, seg.End
	return &start, &end
}
