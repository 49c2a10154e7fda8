package mode

// Mode is the record selection strategy.
type Mode string

// Search mode constants. Values double as REST path segments.
const (
	// Chromosome selects an inclusive position range on one chromosome.
	Chromosome Mode = "chr"
	IDList     Mode = "ids"
	RsIDList   Mode = "rsidList"
	// GeneProduct resolves a gene to its interval and searches that range.
	GeneProduct Mode = "gene_product"
	Keyword     Mode = "keyword"
)

// All lists every mode in a stable order.
var All = []Mode{Chromosome, RsIDList, IDList, GeneProduct, Keyword}

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	switch m {
	case Chromosome, IDList, RsIDList, GeneProduct, Keyword:
		return true
	}
	return false
}
