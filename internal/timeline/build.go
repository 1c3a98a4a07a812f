package timeline

import (
	"fmt"
	"sort"
)

// Validation thresholds in milliseconds.
const (
	OverlapToleranceMs = 10.0
	GapWarningMs       = 5000.0
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Issues annotate a timeline; they never
// prevent it from loading.
type Issue struct {
	EventID  string   `json:"eventId"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// BuildResult is everything the controller needs to load a lesson.
type BuildResult struct {
	Tracks     []Track
	Duration   float64
	EventCount int
	Issues     []Issue
}

// HasErrors reports whether any issue has error severity.
func (r BuildResult) HasErrors() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SortEvents returns a copy of events ordered by StartTime, then EndTime.
func SortEvents(events []Event) []Event {
	sorted := cloneEvents(events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartTime != sorted[j].StartTime {
			return sorted[i].StartTime < sorted[j].StartTime
		}
		return sorted[i].EndTime < sorted[j].EndTime
	})
	return sorted
}

// Duration returns the latest EndTime, or 0 for no events.
func Duration(events []Event) float64 {
	d := 0.0
	for _, e := range events {
		if e.EndTime > d {
			d = e.EndTime
		}
	}
	return d
}

// TracksDuration returns the latest EndTime over all tracks.
func TracksDuration(tracks []Track) float64 {
	d := 0.0
	for _, t := range tracks {
		if td := Duration(t.Events); td > d {
			d = td
		}
	}
	return d
}

// Validate checks every track for inverted events, overlaps between
// consecutive events and long gaps. Each track is checked in start-time order.
func Validate(tracks []Track) []Issue {
	var issues []Issue
	for _, track := range tracks {
		events := SortEvents(track.Events)

		for _, e := range events {
			if e.EndTime <= e.StartTime {
				issues = append(issues, Issue{
					EventID:  e.ID,
					Message:  fmt.Sprintf("event ends at %.0fms, not after its start %.0fms", e.EndTime, e.StartTime),
					Severity: SeverityError,
				})
			}
		}

		for i := 1; i < len(events); i++ {
			prev, cur := events[i-1], events[i]
			switch {
			case cur.StartTime < prev.EndTime-OverlapToleranceMs:
				issues = append(issues, Issue{
					EventID: cur.ID,
					Message: fmt.Sprintf("event overlaps %s by %.0fms in %s track %s",
						prev.ID, prev.EndTime-cur.StartTime, track.Type, track.ID),
					Severity: SeverityError,
				})
			case cur.StartTime-prev.EndTime > GapWarningMs:
				issues = append(issues, Issue{
					EventID: cur.ID,
					Message: fmt.Sprintf("%.0fms gap after %s in %s track %s",
						cur.StartTime-prev.EndTime, prev.ID, track.Type, track.ID),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return issues
}

// Build sorts every track, measures the timeline and validates it.
func Build(tracks []Track) BuildResult {
	sorted := make([]Track, len(tracks))
	count := 0
	for i, t := range tracks {
		sorted[i] = t
		sorted[i].Events = SortEvents(t.Events)
		count += len(t.Events)
	}
	return BuildResult{
		Tracks:     sorted,
		Duration:   TracksDuration(sorted),
		EventCount: count,
		Issues:     Validate(sorted),
	}
}
