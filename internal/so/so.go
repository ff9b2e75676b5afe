// Package so ranks Sequence Ontology consequence terms by severity.
package so

import (
	"sort"
	"strings"
)

// Impact levels for variant consequences.
const (
	ImpactHigh     = "HIGH"
	ImpactModerate = "MODERATE"
	ImpactLow      = "LOW"
	ImpactModifier = "MODIFIER"
)

// Consequence types (Sequence Ontology terms).
const (
	// HIGH impact
	TranscriptAblation    = "transcript_ablation"
	SpliceAcceptorVariant = "splice_acceptor_variant"
	SpliceDonorVariant    = "splice_donor_variant"
	StopGained            = "stop_gained"
	FrameshiftVariant     = "frameshift_variant"
	StopLost              = "stop_lost"
	StartLost             = "start_lost"

	// MODERATE impact
	TranscriptAmplification = "transcript_amplification"
	InframeInsertion        = "inframe_insertion"
	InframeDeletion         = "inframe_deletion"
	MissenseVariant         = "missense_variant"
	ProteinAlteringVariant  = "protein_altering_variant"

	// LOW impact
	SpliceRegionVariant      = "splice_region_variant"
	IncompleteTerminalCodon  = "incomplete_terminal_codon_variant"
	StartRetainedVariant     = "start_retained_variant"
	StopRetainedVariant      = "stop_retained_variant"
	SynonymousVariant        = "synonymous_variant"
	CodingSequenceVariant    = "coding_sequence_variant"

	// MODIFIER impact
	MatureMiRNAVariant     = "mature_miRNA_variant"
	FivePrimeUTRVariant    = "5_prime_UTR_variant"
	ThreePrimeUTRVariant   = "3_prime_UTR_variant"
	NonCodingExonVariant   = "non_coding_transcript_exon_variant"
	IntronVariant          = "intron_variant"
	NMDTranscriptVariant   = "NMD_transcript_variant"
	NonCodingTranscript    = "non_coding_transcript_variant"
	UpstreamGeneVariant    = "upstream_gene_variant"
	DownstreamGeneVariant  = "downstream_gene_variant"
	IntergenicVariant      = "intergenic_variant"
)

// severity lists terms from most to least severe with their impact.
var severity = []struct {
	term   string
	impact string
}{
	{TranscriptAblation, ImpactHigh},
	{SpliceAcceptorVariant, ImpactHigh},
	{SpliceDonorVariant, ImpactHigh},
	{StopGained, ImpactHigh},
	{FrameshiftVariant, ImpactHigh},
	{StopLost, ImpactHigh},
	{StartLost, ImpactHigh},
	{TranscriptAmplification, ImpactModerate},
	{InframeInsertion, ImpactModerate},
	{InframeDeletion, ImpactModerate},
	{MissenseVariant, ImpactModerate},
	{ProteinAlteringVariant, ImpactModerate},
	{SpliceRegionVariant, ImpactLow},
	{IncompleteTerminalCodon, ImpactLow},
	{StartRetainedVariant, ImpactLow},
	{StopRetainedVariant, ImpactLow},
	{SynonymousVariant, ImpactLow},
	{CodingSequenceVariant, ImpactLow},
	{MatureMiRNAVariant, ImpactModifier},
	{FivePrimeUTRVariant, ImpactModifier},
	{ThreePrimeUTRVariant, ImpactModifier},
	{NonCodingExonVariant, ImpactModifier},
	{IntronVariant, ImpactModifier},
	{NMDTranscriptVariant, ImpactModifier},
	{NonCodingTranscript, ImpactModifier},
	{UpstreamGeneVariant, ImpactModifier},
	{DownstreamGeneVariant, ImpactModifier},
	{IntergenicVariant, ImpactModifier},
}

var rankIndex = func() map[string]int {
	m := make(map[string]int, len(severity))
	for i, s := range severity {
		m[s.term] = i
	}
	return m
}()

// impactOrder lists impact levels from least to most severe.
var impactOrder = []string{ImpactModifier, ImpactLow, ImpactModerate, ImpactHigh}

// GeneLevelExclude holds terms that never count toward a gene's aggregate.
var GeneLevelExclude = []string{UpstreamGeneVariant, DownstreamGeneVariant}

// Terms returns the ranked terms, most severe first.
func Terms() []string {
	out := make([]string, len(severity))
	for i, s := range severity {
		out[i] = s.term
	}
	return out
}

// Rank returns the position of term in the severity order (0 = most severe).
// Unknown terms share the rank len(Terms()); use Less for a total order.
func Rank(term string) int {
	if r, ok := rankIndex[term]; ok {
		return r
	}
	return len(severity)
}

// Less reports whether a is more severe than b. Unknown terms sort after all
// known terms and lexicographically among themselves.
func Less(a, b string) bool {
	ra, rb := Rank(a), Rank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

// MostSevere returns the most severe term in terms, or "" if terms is empty.
func MostSevere(terms []string) string {
	best := ""
	for i, term := range terms {
		if i == 0 || Less(term, best) {
			best = term
		}
	}
	return best
}

// Split splits a comma-joined compound consequence into its terms.
func Split(compound string) []string {
	if compound == "" {
		return nil
	}
	parts := strings.Split(compound, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders terms in place from most to least severe.
func Sort(terms []string) {
	sort.Slice(terms, func(i, j int) bool { return Less(terms[i], terms[j]) })
}

// Impact returns the impact level of a consequence. For comma-separated
// consequences it returns the highest impact among the terms. Unknown terms
// are MODIFIER.
func Impact(consequence string) string {
	best := 0
	for rest := consequence; rest != ""; {
		term := rest
		if i := strings.IndexByte(rest, ','); i >= 0 {
			term, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}
		if r, ok := rankIndex[term]; ok {
			if ir := ImpactRank(severity[r].impact); ir > best {
				best = ir
			}
		}
	}
	return impactOrder[best]
}

// ImpactRank returns numeric rank for impact comparison (higher = more severe).
// Unknown impacts rank with MODIFIER.
func ImpactRank(impact string) int {
	for i, level := range impactOrder {
		if level == impact {
			return i
		}
	}
	return 0
}
