package lookup

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"cellarsync/internal/cache"
	"cellarsync/internal/model"
)

// CatalogReader is the slice of the remote boundary the lookup client needs.
type CatalogReader interface {
	InventoryByBarcode(ctx context.Context, code string) ([]model.InventoryItem, error)
	InventoryByAltBarcode(ctx context.Context, code string) ([]model.InventoryItem, error)
	Cigar(ctx context.Context, id string) (*model.Cigar, error)
	Bottle(ctx context.Context, id string) (*model.Bottle, error)
}

// Service resolves barcodes against the remote catalog.
type Service struct {
	catalog CatalogReader
	cache   cache.Cache
	ttl     time.Duration
}

// NewService creates a lookup service. metadataCache may be nil to disable
// enrichment caching.
func NewService(catalog CatalogReader, metadataCache cache.Cache, ttl time.Duration) *Service {
	return &Service{
		catalog: catalog,
		cache:   metadataCache,
		ttl:     ttl,
	}
}

// FindItemByBarcode resolves a code against the catalog:
//
//  1. two independent queries (primary barcode equality, alt-barcode
//     containment), issued concurrently;
//  2. union de-duplicated by inventory item id;
//  3. per-item display-metadata enrichment, where one item's failure is
//     logged and tolerated rather than failing the batch.
//
// No match is ([], nil), not an error. Output order is unspecified.
func (s *Service) FindItemByBarcode(ctx context.Context, code string) ([]model.MatchedItem, error) {
	var primary, alt []model.InventoryItem
	var primaryErr, altErr error

	done := make(chan struct{})
	go func() {
		defer close(done)
		alt, altErr = s.catalog.InventoryByAltBarcode(ctx, code)
	}()
	primary, primaryErr = s.catalog.InventoryByBarcode(ctx, code)
	<-done

	if primaryErr != nil {
		return nil, primaryErr
	}
	if altErr != nil {
		return nil, altErr
	}

	// merge & de-dupe by id; primary rows win
	seen := make(map[string]bool, len(primary)+len(alt))
	merged := make([]model.InventoryItem, 0, len(primary)+len(alt))
	for _, item := range primary {
		if !seen[item.ID] {
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}
	for _, item := range alt {
		if !seen[item.ID] {
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}

	matches := make([]model.MatchedItem, 0, len(merged))
	for _, item := range merged {
		m := model.MatchedItem{
			InventoryItemID: item.ID,
			Kind:            item.Kind,
			RefID:           item.RefID,
			Quantity:        item.Quantity,
			Barcode:         item.Barcode,
		}
		if err := s.enrich(ctx, &m); err != nil {
			log.Printf("[BarcodeLookup] Failed to fetch metadata for %s %s: %v", item.Kind, item.RefID, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// enrich fills the display metadata for the match from its catalog table,
// through the metadata cache when one is configured.
func (s *Service) enrich(ctx context.Context, m *model.MatchedItem) error {
	switch m.Kind {
	case model.KindCigar:
		cigar, err := s.cigar(ctx, m.RefID)
		if err != nil {
			return err
		}
		m.Brand = cigar.Brand
		m.Line = cigar.Line
	case model.KindBottle:
		bottle, err := s.bottle(ctx, m.RefID)
		if err != nil {
			return err
		}
		m.Brand = bottle.Brand
		m.Expression = bottle.Expression
		m.Type = bottle.Type
	}
	return nil
}

func (s *Service) cigar(ctx context.Context, id string) (*model.Cigar, error) {
	if s.cache == nil {
		return s.catalog.Cigar(ctx, id)
	}

	data, err := s.cache.GetOrSet(ctx, "cigar:"+id, s.ttl, func() ([]byte, error) {
		c, err := s.catalog.Cigar(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(c)
	})
	if err != nil {
		return nil, err
	}

	var c model.Cigar
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) bottle(ctx context.Context, id string) (*model.Bottle, error) {
	if s.cache == nil {
		return s.catalog.Bottle(ctx, id)
	}

	data, err := s.cache.GetOrSet(ctx, "bottle:"+id, s.ttl, func() ([]byte, error) {
		b, err := s.catalog.Bottle(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(b)
	})
	if err != nil {
		return nil, err
	}

	var b model.Bottle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
