package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"cellarsync/internal/cache"
	"cellarsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	primary []model.InventoryItem
	alt     []model.InventoryItem

	primaryErr error
	altErr     error

	cigars  map[string]*model.Cigar
	bottles map[string]*model.Bottle

	cigarCalls  int
	bottleCalls int
}

func (f *fakeCatalog) InventoryByBarcode(ctx context.Context, code string) ([]model.InventoryItem, error) {
	return f.primary, f.primaryErr
}

func (f *fakeCatalog) InventoryByAltBarcode(ctx context.Context, code string) ([]model.InventoryItem, error) {
	return f.alt, f.altErr
}

func (f *fakeCatalog) Cigar(ctx context.Context, id string) (*model.Cigar, error) {
	f.cigarCalls++
	if c, ok := f.cigars[id]; ok {
		return c, nil
	}
	return nil, errors.New("cigar not found")
}

func (f *fakeCatalog) Bottle(ctx context.Context, id string) (*model.Bottle, error) {
	f.bottleCalls++
	if b, ok := f.bottles[id]; ok {
		return b, nil
	}
	return nil, errors.New("bottle not found")
}

func TestUnionDeduplicatesByID(t *testing.T) {
	catalog := &fakeCatalog{
		primary: []model.InventoryItem{
			{ID: "1", Kind: model.KindCigar, RefID: "c1", Quantity: 2},
		},
		alt: []model.InventoryItem{
			{ID: "1", Kind: model.KindCigar, RefID: "c1", Quantity: 2},
			{ID: "2", Kind: model.KindBottle, RefID: "b1", Quantity: 5},
		},
		cigars:  map[string]*model.Cigar{"c1": {ID: "c1", Brand: "Padron", Line: "1964"}},
		bottles: map[string]*model.Bottle{"b1": {ID: "b1", Brand: "Eagle Rare", Expression: "10 Year", Type: "bourbon"}},
	}
	svc := NewService(catalog, nil, 0)

	matches, err := svc.FindItemByBarcode(context.Background(), "012345")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	ids := map[string]int{}
	for _, m := range matches {
		ids[m.InventoryItemID]++
	}
	assert.Equal(t, map[string]int{"1": 1, "2": 1}, ids)
}

func TestEnrichmentPerKind(t *testing.T) {
	catalog := &fakeCatalog{
		primary: []model.InventoryItem{
			{ID: "1", Kind: model.KindCigar, RefID: "c1", Quantity: 1},
			{ID: "2", Kind: model.KindBottle, RefID: "b1", Quantity: 1},
		},
		cigars:  map[string]*model.Cigar{"c1": {ID: "c1", Brand: "Padron", Line: "1964"}},
		bottles: map[string]*model.Bottle{"b1": {ID: "b1", Brand: "Eagle Rare", Expression: "10 Year", Type: "bourbon"}},
	}
	svc := NewService(catalog, nil, 0)

	matches, err := svc.FindItemByBarcode(context.Background(), "012345")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byID := map[string]model.MatchedItem{}
	for _, m := range matches {
		byID[m.InventoryItemID] = m
	}
	assert.Equal(t, "Padron", byID["1"].Brand)
	assert.Equal(t, "1964", byID["1"].Line)
	assert.Equal(t, "Padron 1964", byID["1"].DisplayName())
	assert.Equal(t, "Eagle Rare", byID["2"].Brand)
	assert.Equal(t, "10 Year", byID["2"].Expression)
	assert.Equal(t, "bourbon", byID["2"].Type)
}

func TestMetadataFailureDoesNotFailBatch(t *testing.T) {
	catalog := &fakeCatalog{
		primary: []model.InventoryItem{
			{ID: "1", Kind: model.KindCigar, RefID: "missing", Quantity: 1},
			{ID: "2", Kind: model.KindCigar, RefID: "c1", Quantity: 1},
		},
		cigars: map[string]*model.Cigar{"c1": {ID: "c1", Brand: "Oliva", Line: "Serie V"}},
	}
	svc := NewService(catalog, nil, 0)

	matches, err := svc.FindItemByBarcode(context.Background(), "012345")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byID := map[string]model.MatchedItem{}
	for _, m := range matches {
		byID[m.InventoryItemID] = m
	}
	assert.Empty(t, byID["1"].Brand, "failed enrichment leaves metadata empty")
	assert.Equal(t, "Oliva", byID["2"].Brand)
}

func TestEmptyResultIsNotAnError(t *testing.T) {
	svc := NewService(&fakeCatalog{}, nil, 0)

	matches, err := svc.FindItemByBarcode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestQueryErrorPropagates(t *testing.T) {
	svc := NewService(&fakeCatalog{altErr: errors.New("backend down")}, nil, 0)

	_, err := svc.FindItemByBarcode(context.Background(), "012345")
	assert.Error(t, err)
}

func TestMetadataCachedAcrossLookups(t *testing.T) {
	catalog := &fakeCatalog{
		primary: []model.InventoryItem{{ID: "1", Kind: model.KindCigar, RefID: "c1", Quantity: 1}},
		cigars:  map[string]*model.Cigar{"c1": {ID: "c1", Brand: "Padron", Line: "1964"}},
	}
	mem := cache.NewMemoryCache()
	defer mem.Close()
	svc := NewService(catalog, mem, time.Minute)

	for i := 0; i < 3; i++ {
		matches, err := svc.FindItemByBarcode(context.Background(), "012345")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "Padron", matches[0].Brand)
	}
	assert.Equal(t, 1, catalog.cigarCalls, "catalog hit once, cache serves the rest")
}
