package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hci/triagem/internal/models"
)

// BleveIndex implements RecordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// recordDoc is the indexed shape of a triage record. Only the free-text
// fields clinicians search by are indexed.
type recordDoc struct {
	ID            string `json:"id"`
	Symptoms      string `json:"symptoms"`
	Justification string `json:"justification"`
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a full re-index after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming): Portuguese
	// clinical vocabulary stems badly under the english analyzer.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("symptoms", textFieldMapping)
	docMapping.AddFieldMappingsAt("justification", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open record index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create record index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a triage record by ID. Re-indexing an existing ID replaces it.
func (b *BleveIndex) Index(ctx context.Context, record *models.TriageRecord) error {
	return b.index.Index(record.ID, &recordDoc{
		ID:            record.ID,
		Symptoms:      record.Symptoms,
		Justification: record.Justification,
	})
}

// Search runs a match query over symptoms and justification text and returns
// up to limit hits by descending score.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Hit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("record search failed: %w", err)
	}
	hits := make([]*Hit, len(results.Hits))
	for i, hit := range results.Hits {
		hits[i] = &Hit{ID: hit.ID, Score: hit.Score}
	}
	return hits, nil
}

// Delete removes a record from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed records.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
