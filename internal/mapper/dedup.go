package mapper

import "sort"

// TranscriptDedup emits each primary transcript's alternate group once per
// run. The first group seen for a primary wins.
type TranscriptDedup struct {
	seen map[string]bool
}

// NewTranscriptDedup returns an empty TranscriptDedup.
func NewTranscriptDedup() *TranscriptDedup {
	return &TranscriptDedup{seen: make(map[string]bool)}
}

// Edges returns the edges of alts whose primary was not seen before and marks
// those primaries seen. Primaries are visited in sorted order.
func (d *TranscriptDedup) Edges(alts AltTranscripts) []AltTranscriptEdge {
	primaries := make([]string, 0, len(alts))
	for p := range alts {
		primaries = append(primaries, p)
	}
	sort.Strings(primaries)

	var edges []AltTranscriptEdge
	for _, p := range primaries {
		if d.Seen(p) {
			continue
		}
		d.seen[p] = true
		for _, alt := range alts[p] {
			edges = append(edges, AltTranscriptEdge{Primary: p, Alt: alt})
		}
	}
	return edges
}

// Seen reports whether primary was already emitted.
func (d *TranscriptDedup) Seen(primary string) bool {
	return d.seen[primary]
}
