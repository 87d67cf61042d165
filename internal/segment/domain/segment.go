package domain

import (
	"errors"
	"strconv"
	"time"
)

// ErrNoActiveSegment is returned when a node references no usable segment.
var ErrNoActiveSegment = errors.New("No active SegmentId found.")

// Segment groups leads of one company for targeting imports and calls.
type Segment struct {
	ID             string
	CompanyID      string
	Name           string
	IsActive       bool
	FilterMetadata []Filter
	LeadCount      int
	CreatedAt      time.Time
}

// Filter is one entry of a segment's filter metadata, e.g. {slug: "labels", values: [3, 7]}.
type Filter struct {
	Slug   string `json:"slug"`
	Values []any  `json:"values"`
}

const labelsSlug = "labels"

// LabelIDs returns the numeric label ids from the "labels" filter. Non-numeric values are skipped.
func (s *Segment) LabelIDs() []int64 {
	var ids []int64
	for _, f := range s.FilterMetadata {
		if f.Slug != labelsSlug {
			continue
		}
		for _, v := range f.Values {
			switch n := v.(type) {
			case float64:
				ids = append(ids, int64(n))
			case int64:
				ids = append(ids, n)
			case int:
				ids = append(ids, int64(n))
			case string:
				if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
					ids = append(ids, parsed)
				}
			}
		}
	}
	return ids
}
