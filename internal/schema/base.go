package schema

// BaseModule is the namespace of columns written by the mapper and loader.
const BaseModule = "base"

// Base column names in the store.
const (
	ColUID  = "base__uid"
	ColHugo = "base__hugo"
)

// Mapped-variant (crx) column names.
const (
	CrxUID         = "uid"
	CrxChrom       = "chrom"
	CrxPos         = "pos"
	CrxStrand      = "strand"
	CrxRefBase     = "ref_base"
	CrxAltBase     = "alt_base"
	CrxNote        = "note"
	CrxCoding      = "coding"
	CrxHugo        = "hugo"
	CrxTranscript  = "transcript"
	CrxSO          = "so"
	CrxAChange     = "achange"
	CrxCChange     = "cchange"
	CrxAllMappings = "all_mappings"
)

// Gene summary (crg) column names.
const (
	CrgHugo        = "hugo"
	CrgNote        = "note"
	CrgNumVariants = "num_variants"
	CrgSO          = "so"
	CrgAllSO       = "all_so"
)

// Transcript alias (crt) column names.
const (
	CrtPrimary = "primary_transcript"
	CrtAlt     = "alt_transcript"
)

// CrxColumns defines the mapped-variant stream.
var CrxColumns = []ColumnDef{
	{Name: CrxUID, Title: "UID", Type: TypeInt, Hidden: true},
	{Name: CrxChrom, Title: "Chrom", Type: TypeString, Category: CategorySingle},
	{Name: CrxPos, Title: "Position", Type: TypeInt},
	{Name: CrxStrand, Title: "Strand", Type: TypeString},
	{Name: CrxRefBase, Title: "Ref Base", Type: TypeString},
	{Name: CrxAltBase, Title: "Alt Base", Type: TypeString},
	{Name: CrxNote, Title: "Note", Type: TypeString},
	{Name: CrxCoding, Title: "Coding", Type: TypeString, Category: CategorySingle},
	{Name: CrxHugo, Title: "Gene", Type: TypeString},
	{Name: CrxTranscript, Title: "Transcript", Type: TypeString},
	{Name: CrxSO, Title: "Sequence Ontology", Type: TypeString, Category: CategoryMulti},
	{Name: CrxAChange, Title: "Protein Change", Type: TypeString},
	{Name: CrxCChange, Title: "cDNA Change", Type: TypeString},
	{Name: CrxAllMappings, Title: "All Mappings", Type: TypeString, Hidden: true},
}

// CrxIndexes lists the index declarations of the mapped-variant stream.
var CrxIndexes = [][]string{{CrxUID}}

// CrgColumns defines the gene summary stream.
var CrgColumns = []ColumnDef{
	{Name: CrgHugo, Title: "Hugo", Type: TypeString},
	{Name: CrgNote, Title: "Note", Type: TypeString},
	{Name: CrgNumVariants, Title: "Variants in Gene", Type: TypeInt},
	{Name: CrgSO, Title: "Sequence Ontology", Type: TypeString, Category: CategorySingle},
	{Name: CrgAllSO, Title: "All Sequence Ontologies", Type: TypeString},
}

// CrgIndexes lists the index declarations of the gene summary stream.
var CrgIndexes = [][]string{{CrgHugo}}

// CrtColumns defines the transcript alias stream.
var CrtColumns = []ColumnDef{
	{Name: CrtPrimary, Title: "Primary transcript", Type: TypeString},
	{Name: CrtAlt, Title: "Alternate transcript", Type: TypeString},
}

// CrtIndexes lists the index declarations of the transcript alias stream.
var CrtIndexes = [][]string{{CrtPrimary}}

// BaseColumns returns the store form of the base columns for a level,
// namespaced under BaseModule.
func BaseColumns(level Level) []ColumnDef {
	var src []ColumnDef
	switch level {
	case LevelVariant:
		src = CrxColumns
	case LevelGene:
		src = CrgColumns
	}
	out := make([]ColumnDef, len(src))
	for i, c := range src {
		c.Index = i
		c.Name = Namespaced(BaseModule, c.Name)
		c.Categories = append([]string(nil), c.Categories...)
		out[i] = c
	}
	return out
}
