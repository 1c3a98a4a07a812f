// Package narration turns narration text into time-stamped word sequences
// and answers "what is being said at time t" questions for highlight UIs.
//
// Times are milliseconds except EstimateSpeechDuration, which returns seconds.
package narration

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/ident"
)

// WordsPerMinute is the assumed narration speed.
const WordsPerMinute = 150.0

// WordTiming is one word with its spoken interval.
type WordTiming struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Index     int     `json:"index"`
}

// ActiveAt reports whether t falls in [StartTime, EndTime).
func (w WordTiming) ActiveAt(t float64) bool {
	return w.StartTime <= t && t < w.EndTime
}

// Segment is a contiguous piece of narration.
type Segment struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	StartTime float64      `json:"startTime"`
	EndTime   float64      `json:"endTime"`
	Words     []WordTiming `json:"words"`
	AudioURL  string       `json:"audioUrl,omitempty"`
}

// ActiveAt reports whether t falls in [StartTime, EndTime).
func (s Segment) ActiveAt(t float64) bool {
	return s.StartTime <= t && t < s.EndTime
}

// WordState classifies a word relative to the playhead.
type WordState string

const (
	WordPast    WordState = "past"
	WordCurrent WordState = "current"
	WordFuture  WordState = "future"
)

// HighlightedWord pairs a word with its state.
type HighlightedWord struct {
	WordTiming
	State WordState `json:"state"`
}

// EstimateWordTimings splits text on whitespace and spreads [start, end] over
// the words in proportion to their length in characters. Zero duration or
// zero characters yields zero-width timings at start.
func EstimateWordTimings(text string, start, end float64) []WordTiming {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	totalChars := 0
	for _, w := range words {
		totalChars += utf8.RuneCountInString(w)
	}

	timings := make([]WordTiming, len(words))
	duration := end - start
	if duration <= 0 || totalChars == 0 {
		for i, w := range words {
			timings[i] = WordTiming{Word: w, StartTime: start, EndTime: start, Index: i}
		}
		return timings
	}

	cursor := start
	for i, w := range words {
		share := duration * float64(utf8.RuneCountInString(w)) / float64(totalChars)
		wordEnd := cursor + share
		if i == len(words)-1 {
			wordEnd = end
		}
		timings[i] = WordTiming{Word: w, StartTime: cursor, EndTime: wordEnd, Index: i}
		cursor = wordEnd
	}
	return timings
}

// CreateSegment builds a segment starting at start and lasting duration ms.
func CreateSegment(text string, start, duration float64, audioURL string) Segment {
	if duration < 0 {
		duration = 0
	}
	end := start + duration
	return Segment{
		ID:        ident.New(ident.SegmentPrefix),
		Text:      text,
		StartTime: start,
		EndTime:   end,
		Words:     EstimateWordTimings(text, start, end),
		AudioURL:  audioURL,
	}
}

// FindSegmentAtTime returns the first segment active at t.
func FindSegmentAtTime(segments []Segment, t float64) (Segment, bool) {
	for _, s := range segments {
		if s.ActiveAt(t) {
			return s, true
		}
	}
	return Segment{}, false
}

// FindWordAtTime returns the word of segment spoken at t.
func FindWordAtTime(segment Segment, t float64) (WordTiming, bool) {
	for _, w := range segment.Words {
		if w.ActiveAt(t) {
			return w, true
		}
	}
	return WordTiming{}, false
}

// SegmentProgress is the elapsed fraction of the segment, clamped to [0, 1].
func SegmentProgress(segment Segment, t float64) float64 {
	d := segment.EndTime - segment.StartTime
	if d <= 0 {
		if t >= segment.EndTime {
			return 1
		}
		return 0
	}
	return geometry.Clamp01((t - segment.StartTime) / d)
}

// WordProgress is the elapsed fraction of the word spoken at t, or 0 when no
// word is active.
func WordProgress(segment Segment, t float64) float64 {
	w, ok := FindWordAtTime(segment, t)
	if !ok {
		return 0
	}
	d := w.EndTime - w.StartTime
	if d <= 0 {
		return 0
	}
	return geometry.Clamp01((t - w.StartTime) / d)
}

// HighlightWords classifies every word of the segment at time t. A word is
// past once t reaches its end, current while t is inside it, future before.
func HighlightWords(segment Segment, t float64) []HighlightedWord {
	out := make([]HighlightedWord, len(segment.Words))
	for i, w := range segment.Words {
		state := WordFuture
		switch {
		case t >= w.EndTime:
			state = WordPast
		case w.ActiveAt(t):
			state = WordCurrent
		}
		out[i] = HighlightedWord{WordTiming: w, State: state}
	}
	return out
}

// SplitIntoSentences splits on runs of '.', '!' or '?' followed by
// whitespace. Punctuation stays with its sentence; empty pieces are dropped.
func SplitIntoSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	begin := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		j := i
		for j+1 < len(runes) && isSentenceEnd(runes[j+1]) {
			j++
		}
		if j+1 < len(runes) && unicode.IsSpace(runes[j+1]) {
			if s := strings.TrimSpace(string(runes[begin : j+1])); s != "" {
				sentences = append(sentences, s)
			}
			begin = j + 1
		}
		i = j
	}
	if s := strings.TrimSpace(string(runes[begin:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// EstimateSpeechDuration returns the narration time of text in seconds.
func EstimateSpeechDuration(text string) float64 {
	return float64(len(strings.Fields(text))) * 60 / WordsPerMinute
}

// BuildNarrationTimeline lays out one segment per non-blank text, back to
// back from startOffset with gap ms between segments.
func BuildNarrationTimeline(texts []string, startOffset, gap float64) []Segment {
	var segments []Segment
	cursor := startOffset
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		seg := CreateSegment(text, cursor, EstimateSpeechDuration(text)*1000, "")
		segments = append(segments, seg)
		cursor = seg.EndTime + gap
	}
	return segments
}

// NarrationTextAtTime returns the text spoken so far: finished segments in
// full, the active segment up to the last word that has started.
func NarrationTextAtTime(segments []Segment, t float64) string {
	var parts []string
	for _, s := range segments {
		switch {
		case t >= s.EndTime:
			parts = append(parts, s.Text)
		case s.ActiveAt(t):
			for _, w := range s.Words {
				if w.StartTime <= t {
					parts = append(parts, w.Word)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// MergeAdjacentSegments sorts segments by start time and collapses runs whose
// gaps are at most gapThreshold ms into single segments. A merged segment
// spans the run, joins the texts, renumbers the words and takes the first
// non-empty audio URL. Runs of one segment are returned as-is.
func MergeAdjacentSegments(segments []Segment, gapThreshold float64) []Segment {
	if len(segments) == 0 {
		return nil
	}
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	var merged []Segment
	group := []Segment{sorted[0]}
	groupEnd := sorted[0].EndTime
	for _, s := range sorted[1:] {
		if s.StartTime-groupEnd <= gapThreshold {
			group = append(group, s)
			if s.EndTime > groupEnd {
				groupEnd = s.EndTime
			}
			continue
		}
		merged = append(merged, collapse(group))
		group = []Segment{s}
		groupEnd = s.EndTime
	}
	return append(merged, collapse(group))
}

func collapse(group []Segment) Segment {
	if len(group) == 1 {
		return cloneSegment(group[0])
	}
	out := Segment{
		ID:        ident.New(ident.SegmentPrefix),
		StartTime: group[0].StartTime,
		EndTime:   group[0].EndTime,
	}
	texts := make([]string, 0, len(group))
	for _, s := range group {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
		if s.EndTime > out.EndTime {
			out.EndTime = s.EndTime
		}
		if out.AudioURL == "" {
			out.AudioURL = s.AudioURL
		}
		for _, w := range s.Words {
			w.Index = len(out.Words)
			out.Words = append(out.Words, w)
		}
	}
	out.Text = strings.Join(texts, " ")
	return out
}

func cloneSegment(s Segment) Segment {
	if s.Words != nil {
		words := make([]WordTiming, len(s.Words))
		copy(words, s.Words)
		s.Words = words
	}
	return s
}
