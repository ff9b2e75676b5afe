// Package mapping holds the per-transcript annotation payload carried in the
// all_mappings column of a mapped variant.
package mapping

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"

	"github.com/inodb/vibe-annot/internal/so"
)

// TranscriptMapping is the effect of a variant on one transcript.
type TranscriptMapping struct {
	Transcript string `json:"transcript"`
	SO         string `json:"so"` // comma-joined SO terms
	AChange    string `json:"achange,omitempty"`
	CChange    string `json:"cchange,omitempty"`
	Protein    string `json:"protein,omitempty"`
}

// Terms returns the SO terms of the mapping.
func (m TranscriptMapping) Terms() []string {
	return so.Split(m.SO)
}

// AllMappings maps HUGO symbol to the transcript mappings within that gene.
type AllMappings map[string][]TranscriptMapping

// Add appends a transcript mapping under gene.
func (a AllMappings) Add(gene string, m TranscriptMapping) {
	a[gene] = append(a[gene], m)
}

// Genes returns the gene symbols in sorted order.
func (a AllMappings) Genes() []string {
	genes := make([]string, 0, len(a))
	for g := range a {
		genes = append(genes, g)
	}
	sort.Strings(genes)
	return genes
}

// UniqueSOs returns the distinct SO terms across all transcripts of gene,
// most severe first.
func (a AllMappings) UniqueSOs(gene string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, m := range a[gene] {
		for _, term := range m.Terms() {
			if !seen[term] {
				seen[term] = true
				terms = append(terms, term)
			}
		}
	}
	so.Sort(terms)
	return terms
}

// Marshal serializes the payload for the all_mappings column.
// An empty payload serializes to "".
func (a AllMappings) Marshal() (string, error) {
	if len(a) == 0 {
		return "", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal all_mappings: %w", err)
	}
	return string(b), nil
}

// Parse decodes an all_mappings column value. "" yields an empty payload.
func Parse(s string) (AllMappings, error) {
	a := make(AllMappings)
	if s == "" {
		return a, nil
	}
	if err := json.Unmarshal([]byte(s), &a); err != nil {
		return nil, fmt.Errorf("parse all_mappings: %w", err)
	}
	return a, nil
}
