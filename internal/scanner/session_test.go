package scanner

import (
	"context"
	"errors"
	"testing"

	"cellarsync/internal/model"
	"cellarsync/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	sessions     int
	events       []model.ScanEvent
	increments   map[string]int
	altBarcodes  map[string][]string
	incrementErr error
	counterSets  int
	ended        []string
	createErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		increments:  make(map[string]int),
		altBarcodes: make(map[string][]string),
	}
}

func (f *fakeBackend) CreateScanSession(ctx context.Context) (*model.ScanSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.sessions++
	return &model.ScanSession{ID: "sess-1"}, nil
}

func (f *fakeBackend) UpdateSessionCounters(ctx context.Context, sessionID string, added, failed int) error {
	f.counterSets++
	return nil
}

func (f *fakeBackend) EndScanSession(ctx context.Context, sessionID string) error {
	f.ended = append(f.ended, sessionID)
	return nil
}

func (f *fakeBackend) InsertScanEvent(ctx context.Context, event model.ScanEvent) (*model.ScanEvent, error) {
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeBackend) IncrementQuantity(ctx context.Context, itemID string, by int) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments[itemID] += by
	return nil
}

func (f *fakeBackend) AddAltBarcodeIfMissing(ctx context.Context, itemID, code string) (*model.InventoryItem, error) {
	for _, c := range f.altBarcodes[itemID] {
		if c == code {
			return &model.InventoryItem{ID: itemID, Kind: model.KindCigar, RefID: "c1", AltBarcodes: f.altBarcodes[itemID]}, nil
		}
	}
	f.altBarcodes[itemID] = append(f.altBarcodes[itemID], code)
	return &model.InventoryItem{ID: itemID, Kind: model.KindCigar, RefID: "c1", AltBarcodes: f.altBarcodes[itemID]}, nil
}

func (f *fakeBackend) CreateInventoryItem(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	item.ID = "inv-new"
	return &item, nil
}

func (f *fakeBackend) CreateCigar(ctx context.Context, cigar model.Cigar) (*model.Cigar, error) {
	cigar.ID = "cigar-new"
	return &cigar, nil
}

func (f *fakeBackend) CreateBottle(ctx context.Context, bottle model.Bottle) (*model.Bottle, error) {
	bottle.ID = "bottle-new"
	return &bottle, nil
}

type fixedNetwork bool

func (f fixedNetwork) IsAvailable(ctx context.Context) bool { return bool(f) }

func TestConfirmOnlineAppliesDirectly(t *testing.T) {
	backend := newFakeBackend()
	store := queue.NewMemoryStore()
	sess := NewSession(backend, store, fixedNetwork(true))
	sess.Start(context.Background())

	item := model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar, RefID: "c1"}
	queued, err := sess.Confirm(context.Background(), "012345", item, 2)
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Equal(t, 2, backend.increments["inv-1"])

	size, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)

	require.Len(t, backend.events, 1)
	assert.Equal(t, model.ScanStatusMatched, backend.events[0].Status)
	assert.Equal(t, "sess-1", backend.events[0].SessionID)

	added, failed := sess.Counts()
	assert.Equal(t, 1, added)
	assert.Zero(t, failed)
}

func TestConfirmOfflineQueuesIncrement(t *testing.T) {
	backend := newFakeBackend()
	store := queue.NewMemoryStore()
	sess := NewSession(backend, store, fixedNetwork(false))
	sess.Start(context.Background())

	item := model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar, RefID: "c1"}
	queued, err := sess.Confirm(context.Background(), "012345", item, 3)
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Empty(t, backend.increments)

	jobs, err := store.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, model.JobIncrement, jobs[0].Type)
	assert.Equal(t, "inv-1", jobs[0].ItemID)
	assert.Equal(t, 3, jobs[0].By)
}

func TestConfirmRefusesDuplicateBarcode(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	item := model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar}
	_, err := sess.Confirm(context.Background(), "012345", item, 1)
	require.NoError(t, err)

	_, err = sess.Confirm(context.Background(), "012345", item, 1)
	assert.ErrorIs(t, err, ErrDuplicateScan)
	assert.Equal(t, 1, backend.increments["inv-1"])
	assert.True(t, sess.IsBarcodeScanned("012345"))
}

func TestConfirmFailureDoesNotMarkBarcode(t *testing.T) {
	backend := newFakeBackend()
	backend.incrementErr = errors.New("backend down")
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	item := model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar}
	_, err := sess.Confirm(context.Background(), "012345", item, 1)
	require.Error(t, err)
	assert.False(t, sess.IsBarcodeScanned("012345"), "a failed confirm may be retried")

	backend.incrementErr = nil
	_, err = sess.Confirm(context.Background(), "012345", item, 1)
	assert.NoError(t, err)
}

func TestConfirmRequiresActiveSession(t *testing.T) {
	sess := NewSession(newFakeBackend(), queue.NewMemoryStore(), fixedNetwork(true))

	_, err := sess.Confirm(context.Background(), "012345", model.MatchedItem{InventoryItemID: "inv-1"}, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestCreateManualRequiresConnectivity(t *testing.T) {
	sess := NewSession(newFakeBackend(), queue.NewMemoryStore(), fixedNetwork(false))
	sess.Start(context.Background())

	_, err := sess.CreateManual(context.Background(), ManualEntry{
		Kind:     model.KindCigar,
		Quantity: 1,
		Cigar:    &model.Cigar{Brand: "Oliva"},
	})
	assert.ErrorIs(t, err, ErrOfflineManual)
}

func TestCreateManualCarriesBarcodeOntoNewLine(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	item, err := sess.CreateManual(context.Background(), ManualEntry{
		Kind:     model.KindBottle,
		Barcode:  "888",
		Quantity: 1,
		Bottle:   &model.Bottle{Brand: "Eagle Rare", Expression: "10 Year"},
	})
	require.NoError(t, err)
	assert.Equal(t, "888", item.Barcode)
	assert.Equal(t, "bottle-new", item.RefID)

	require.Len(t, backend.events, 1)
	assert.Equal(t, model.ScanStatusManual, backend.events[0].Status)

	added, failed := sess.Counts()
	assert.Zero(t, added)
	assert.Equal(t, 1, failed, "manual entries count as unmatched scans")
	assert.True(t, sess.IsBarcodeScanned("888"))
}

func TestLinkExistingRegistersAltBarcodeAndIncrements(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	item, err := sess.LinkExisting(context.Background(), "777", "inv-1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"777"}, item.AltBarcodes)
	assert.Equal(t, []string{"777"}, backend.altBarcodes["inv-1"])
	assert.Equal(t, 2, backend.increments["inv-1"])
	assert.True(t, sess.IsBarcodeScanned("777"))

	require.Len(t, backend.events, 1)
	assert.Equal(t, model.ScanStatusMatched, backend.events[0].Status)
	assert.Equal(t, "777", backend.events[0].Barcode)

	added, failed := sess.Counts()
	assert.Equal(t, 1, added)
	assert.Zero(t, failed)

	_, err = sess.LinkExisting(context.Background(), "777", "inv-1", 1)
	assert.ErrorIs(t, err, ErrDuplicateScan)
}

func TestLinkExistingRequiresConnectivity(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(false))
	sess.Start(context.Background())

	_, err := sess.LinkExisting(context.Background(), "777", "inv-1", 1)
	assert.ErrorIs(t, err, ErrOfflineLink)
	assert.Empty(t, backend.altBarcodes)
	assert.False(t, sess.IsBarcodeScanned("777"))
}

func TestSessionSurvivesRemoteCreateFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("backend down")
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	require.True(t, sess.Active())
	assert.NotEmpty(t, sess.ID())

	_, err := sess.Confirm(context.Background(), "012345", model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar}, 1)
	require.NoError(t, err)
	assert.Empty(t, backend.events, "no remote row, no event bookkeeping")
}

func TestEndStampsRemoteSession(t *testing.T) {
	backend := newFakeBackend()
	sess := NewSession(backend, queue.NewMemoryStore(), fixedNetwork(true))
	sess.Start(context.Background())

	_, err := sess.Confirm(context.Background(), "1", model.MatchedItem{InventoryItemID: "inv-1", Kind: model.KindCigar}, 1)
	require.NoError(t, err)

	added, failed := sess.End(context.Background())
	assert.Equal(t, 1, added)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"sess-1"}, backend.ended)
	assert.False(t, sess.Active())

	_, err = sess.Confirm(context.Background(), "2", model.MatchedItem{InventoryItemID: "inv-1"}, 1)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}
