package traces

import (
	"encoding/json"

	"github.com/imishinist/coldbench/internal/models"
)

// rawSegmentDocument mirrors the backend segment document loosely. Only the
// whitelisted fields are decoded; pointers tell missing values from zeros.
type rawSegmentDocument struct {
	Origin      *string         `json:"origin"`
	StartTime   *float64        `json:"start_time"`
	EndTime     *float64        `json:"end_time"`
	Subsegments []rawSubSegment `json:"subsegments"`
}

type rawSubSegment struct {
	Name      *string  `json:"name"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// Sanitize reduces a backend trace to its whitelisted fields. Segments whose
// document is missing, unparseable, or lacks start/end times are dropped, as
// are sub-segments without both times.
func Sanitize(trace RawTrace) models.MinimalTrace {
	minimal := models.MinimalTrace{
		ID:       trace.ID,
		Segments: []models.SegmentDocument{},
	}

	for _, seg := range trace.Segments {
		doc, ok := parseSegmentDocument(seg.Document)
		if !ok {
			continue
		}
		minimal.Segments = append(minimal.Segments, doc)
	}

	return minimal
}

func parseSegmentDocument(document *string) (models.SegmentDocument, bool) {
	if document == nil {
		return models.SegmentDocument{}, false
	}

	var raw rawSegmentDocument
	if err := json.Unmarshal([]byte(*document), &raw); err != nil {
		return models.SegmentDocument{}, false
	}
	if raw.StartTime == nil || raw.EndTime == nil {
		return models.SegmentDocument{}, false
	}

	doc := models.SegmentDocument{
		StartTime: *raw.StartTime,
		EndTime:   *raw.EndTime,
	}
	if raw.Origin != nil {
		doc.Origin = *raw.Origin
	}

	for _, sub := range raw.Subsegments {
		if sub.StartTime == nil || sub.EndTime == nil {
			continue
		}
		clean := models.SubSegment{
			StartTime: *sub.StartTime,
			EndTime:   *sub.EndTime,
		}
		if sub.Name != nil {
			clean.Name = *sub.Name
		}
		doc.Subsegments = append(doc.Subsegments, clean)
	}

	return doc, true
}
