// Package premapped provides a mapper for inputs that already carry their
// transcript mappings, such as the output of an external annotation tool.
//
// The mappings column holds entries of the form
// transcript|hugo|so|achange|cchange joined by ";". The first entry is the
// primary mapping. The alt_transcripts column holds groups of the form
// primary>alt,alt joined by ";".
package premapped

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/mapper"
	"github.com/inodb/vibe-annot/internal/mapping"
	"github.com/inodb/vibe-annot/internal/so"
)

// Input column names.
const (
	ColUID            = "uid"
	ColChrom          = "chrom"
	ColPos            = "pos"
	ColStrand         = "strand"
	ColRefBase        = "ref_base"
	ColAltBase        = "alt_base"
	ColNote           = "note"
	ColMappings       = "mappings"
	ColAltTranscripts = "alt_transcripts"
)

// Columns is the column order assumed for inputs without #column= lines.
var Columns = []string{ColUID, ColChrom, ColPos, ColRefBase, ColAltBase, ColNote, ColMappings, ColAltTranscripts}

const (
	entrySep = ";"
	fieldSep = "|"
	altSep   = ">"
	listSep  = ","
)

// Mapper maps pre-annotated records.
type Mapper struct {
	mapper.Base
}

// New returns a pre-mapped record mapper.
func New() *Mapper {
	return &Mapper{}
}

// Map converts rec into a mapped variant.
func (m *Mapper) Map(rec exchange.Record) (*mapper.MappedVariant, mapper.AltTranscripts, error) {
	chrom := NormalizeChrom(rec[ColChrom])
	if chrom == "" {
		return nil, nil, mapper.Invalid(ColChrom, "missing chromosome")
	}
	pos, err := strconv.ParseInt(rec[ColPos], 10, 64)
	if err != nil || pos < 1 {
		return nil, nil, mapper.Invalid(ColPos, "invalid position %q", rec[ColPos])
	}
	ref, err := allele(ColRefBase, rec[ColRefBase])
	if err != nil {
		return nil, nil, err
	}
	alt, err := allele(ColAltBase, rec[ColAltBase])
	if err != nil {
		return nil, nil, err
	}

	var uid int64
	if s := rec[ColUID]; s != "" {
		if uid, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, nil, mapper.Invalid(ColUID, "invalid uid %q", s)
		}
	}
	strand := rec[ColStrand]
	if strand == "" {
		strand = "+"
	}

	mv := &mapper.MappedVariant{
		UID:         uid,
		Chrom:       chrom,
		Pos:         pos,
		Strand:      strand,
		RefBase:     ref,
		AltBase:     alt,
		Note:        rec[ColNote],
		AllMappings: make(mapping.AllMappings),
	}

	primary := true
	for _, entry := range splitNonEmpty(rec[ColMappings], entrySep) {
		tm, hugo, err := parseEntry(entry)
		if err != nil {
			return nil, nil, err
		}
		mv.AllMappings.Add(hugo, tm)
		if primary {
			mv.Hugo, mv.Transcript, mv.SO = hugo, tm.Transcript, tm.SO
			mv.AChange, mv.CChange = tm.AChange, tm.CChange
			primary = false
		}
	}
	if primary {
		mv.SO = so.IntergenicVariant
	}
	if so.ImpactRank(so.Impact(mv.SO)) > so.ImpactRank(so.ImpactModifier) {
		mv.Coding = "Y"
	}

	alts, err := parseAltTranscripts(rec[ColAltTranscripts])
	if err != nil {
		return nil, nil, err
	}
	return mv, alts, nil
}

// NormalizeChrom returns chrom with a "chr" prefix; MT becomes chrM.
func NormalizeChrom(chrom string) string {
	chrom = strings.TrimSpace(chrom)
	if chrom == "" {
		return ""
	}
	chrom = strings.TrimPrefix(chrom, "chr")
	if chrom == "MT" {
		chrom = "M"
	}
	return "chr" + chrom
}

func allele(field, s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", mapper.Invalid(field, "missing allele")
	}
	if strings.Contains(s, listSep) {
		return "", mapper.Invalid(field, "multi-allelic value %q", s)
	}
	for _, c := range s {
		switch c {
		case 'A', 'C', 'G', 'T', 'N', '-':
		default:
			return "", mapper.Invalid(field, "invalid allele %q", s)
		}
	}
	return s, nil
}

func parseEntry(entry string) (mapping.TranscriptMapping, string, error) {
	f := strings.Split(entry, fieldSep)
	if len(f) < 3 || f[0] == "" || f[1] == "" || f[2] == "" {
		return mapping.TranscriptMapping{}, "", mapper.Invalid(ColMappings, "malformed mapping %q", entry)
	}
	for len(f) < 5 {
		f = append(f, "")
	}
	terms := so.Split(f[2])
	so.Sort(terms)
	return mapping.TranscriptMapping{
		Transcript: f[0],
		SO:         strings.Join(terms, listSep),
		AChange:    f[3],
		CChange:    f[4],
	}, f[1], nil
}

func parseAltTranscripts(s string) (mapper.AltTranscripts, error) {
	groups := splitNonEmpty(s, entrySep)
	if len(groups) == 0 {
		return nil, nil
	}
	alts := make(mapper.AltTranscripts, len(groups))
	for _, g := range groups {
		primary, list, ok := strings.Cut(g, altSep)
		if !ok || primary == "" {
			return nil, mapper.Invalid(ColAltTranscripts, "malformed group %q", g)
		}
		alts[primary] = append(alts[primary], splitNonEmpty(list, listSep)...)
	}
	return alts, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
