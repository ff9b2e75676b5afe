package mapper

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/mapping"
	"github.com/inodb/vibe-annot/internal/schema"
	"github.com/inodb/vibe-annot/internal/so"
)

// GeneAggregate accumulates the mapped variants of one gene.
type GeneAggregate struct {
	Hugo         string
	VariantCount int
	SOCounts     map[string]int
}

// WorstSO returns the most severe term counted for the gene.
func (g *GeneAggregate) WorstSO() string {
	terms := make([]string, 0, len(g.SOCounts))
	for term := range g.SOCounts {
		terms = append(terms, term)
	}
	return so.MostSevere(terms)
}

// AllSO formats the term counts as "term(count)" joined by commas, most
// frequent first and by severity among equal counts.
func (g *GeneAggregate) AllSO() string {
	terms := make([]string, 0, len(g.SOCounts))
	for term := range g.SOCounts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		ci, cj := g.SOCounts[terms[i]], g.SOCounts[terms[j]]
		if ci != cj {
			return ci > cj
		}
		return so.Less(terms[i], terms[j])
	})
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = fmt.Sprintf("%s(%d)", term, g.SOCounts[term])
	}
	return strings.Join(parts, ",")
}

// Record returns the crg form of g.
func (g *GeneAggregate) Record() exchange.Record {
	return exchange.Record{
		schema.CrgHugo:        g.Hugo,
		schema.CrgNote:        "",
		schema.CrgNumVariants: fmt.Sprint(g.VariantCount),
		schema.CrgSO:          g.WorstSO(),
		schema.CrgAllSO:       g.AllSO(),
	}
}

// GeneAggregator keeps one GeneAggregate per gene symbol.
type GeneAggregator struct {
	genes map[string]*GeneAggregate
}

// NewGeneAggregator returns an empty aggregator.
func NewGeneAggregator() *GeneAggregator {
	return &GeneAggregator{genes: make(map[string]*GeneAggregate)}
}

// Add counts one retained variant. For every gene in all, the gene-level
// excluded terms are removed and the gene is skipped if nothing remains.
func (a *GeneAggregator) Add(all mapping.AllMappings) {
	for _, gene := range all.Genes() {
		var terms []string
		for _, term := range all.UniqueSOs(gene) {
			if !slices.Contains(so.GeneLevelExclude, term) {
				terms = append(terms, term)
			}
		}
		if len(terms) == 0 {
			continue
		}
		g, ok := a.genes[gene]
		if !ok {
			g = &GeneAggregate{Hugo: gene, SOCounts: make(map[string]int)}
			a.genes[gene] = g
		}
		g.VariantCount++
		g.SOCounts[so.MostSevere(terms)]++
	}
}

// Get returns the aggregate of gene, or nil.
func (a *GeneAggregator) Get(gene string) *GeneAggregate {
	return a.genes[gene]
}

// Len returns the number of aggregated genes.
func (a *GeneAggregator) Len() int { return len(a.genes) }

// Sorted returns the aggregates in ascending gene symbol order.
func (a *GeneAggregator) Sorted() []*GeneAggregate {
	out := make([]*GeneAggregate, 0, len(a.genes))
	for _, g := range a.genes {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hugo < out[j].Hugo })
	return out
}
