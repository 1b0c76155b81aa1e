package reembed

import "github.com/poiesic/ymj/core"

// Reason says whether a document needs a new embedding and why.
type Reason int

const (
	Fresh Reason = iota
	NoIndexBlock
	NoEmbedding
	FingerprintMismatch
	ModelMismatch
	DimensionMismatch
)

func (r Reason) String() string {
	switch r {
	case Fresh:
		return "fresh"
	case NoIndexBlock:
		return "no index block"
	case NoEmbedding:
		return "no embedding"
	case FingerprintMismatch:
		return "content changed"
	case ModelMismatch:
		return "embedding model changed"
	case DimensionMismatch:
		return "embedding dimensions disagree with meta"
	default:
		return "unknown"
	}
}

// Detector checks documents for stale embeddings.
type Detector struct {
	// Model, when set, marks embeddings recorded with a different model as
	// stale. Embeddings without a recorded model are not affected.
	Model string
}

// Check returns Fresh or the first reason the document is stale.
//
// An embedding without a stored fingerprint is fresh, since the format does
// not require fingerprints.
func (d Detector) Check(doc *core.Document) Reason {
	if doc == nil || !doc.HasIndexBlock() {
		return NoIndexBlock
	}
	if len(doc.Embedding()) == 0 {
		return NoEmbedding
	}
	ib := doc.IndexBlock()
	if dim, ok := ib.RecordedDimensions(); ok && dim != ib.Dimensions() {
		return DimensionMismatch
	}
	if stored, ok := ib.Fingerprint(); ok && stored != doc.Fingerprint() {
		return FingerprintMismatch
	}
	if d.Model != "" {
		if model, ok := ib.Model(); ok && model != d.Model {
			return ModelMismatch
		}
	}
	return Fresh
}

// IsStale reports whether the document lacks an embedding or its stored
// fingerprint no longer matches its content.
func IsStale(doc *core.Document) bool {
	return Detector{}.Check(doc) != Fresh
}
