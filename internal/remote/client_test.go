package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cellarsync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second})
	return c, srv
}

func TestInventoryByBarcodeQuery(t *testing.T) {
	var gotPath, gotFilter, gotKey string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("barcode")
		gotKey = r.Header.Get("apikey")
		json.NewEncoder(w).Encode([]model.InventoryItem{
			{ID: "1", Kind: model.KindCigar, RefID: "c1", Quantity: 3, Barcode: "012345"},
		})
	})
	defer srv.Close()

	items, err := c.InventoryByBarcode(context.Background(), "012345")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/rest/v1/inventory_items", gotPath)
	assert.Equal(t, "eq.012345", gotFilter)
	assert.Equal(t, "test-key", gotKey)
}

func TestInventoryByAltBarcodeUsesContains(t *testing.T) {
	var gotFilter string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query().Get("alt_barcodes")
		json.NewEncoder(w).Encode([]model.InventoryItem{})
	})
	defer srv.Close()

	items, err := c.InventoryByAltBarcode(context.Background(), "012345")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, `cs.{"012345"}`, gotFilter)
}

func TestIncrementQuantityCallsRPC(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	require.NoError(t, c.IncrementQuantity(context.Background(), "42", 3))
	assert.Equal(t, "/rest/v1/rpc/increment_quantity", gotPath)
	assert.Equal(t, "42", gotBody["p_item_id"])
	assert.Equal(t, float64(3), gotBody["p_by"])
}

func TestCreateInventoryItemReturnsRow(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		json.NewEncoder(w).Encode([]model.InventoryItem{
			{ID: "new-id", Kind: model.KindBottle, RefID: "b1", Quantity: 1, Barcode: "777"},
		})
	})
	defer srv.Close()

	row, err := c.CreateInventoryItem(context.Background(), model.InventoryItem{
		Kind: model.KindBottle, RefID: "b1", Quantity: 1, Barcode: "777",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", row.ID)
}

func TestAddAltBarcodeIfMissing(t *testing.T) {
	item := model.InventoryItem{ID: "42", Kind: model.KindCigar, RefID: "c1", AltBarcodes: []string{"111"}}
	var patched bool
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]model.InventoryItem{item})
		case http.MethodPatch:
			patched = true
			var body map[string][]string
			data, _ := io.ReadAll(r.Body)
			json.Unmarshal(data, &body)
			assert.Equal(t, []string{"111", "222"}, body["alt_barcodes"])
			updated := item
			updated.AltBarcodes = body["alt_barcodes"]
			json.NewEncoder(w).Encode([]model.InventoryItem{updated})
		}
	})
	defer srv.Close()

	row, err := c.AddAltBarcodeIfMissing(context.Background(), "42", "222")
	require.NoError(t, err)
	assert.True(t, patched)
	assert.Equal(t, []string{"111", "222"}, row.AltBarcodes)

	// already present: no PATCH issued
	patched = false
	row, err = c.AddAltBarcodeIfMissing(context.Background(), "42", "111")
	require.NoError(t, err)
	assert.False(t, patched)
	assert.Equal(t, []string{"111"}, row.AltBarcodes)
}

func TestUploadPhotoReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpegdata"), 0o644))

	var gotPath string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "jpegdata", string(body))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	url, err := c.UploadPhoto(context.Background(), model.KindCigar, path)
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/storage/v1/object/cigars/")
	assert.Contains(t, url, "/storage/v1/object/public/cigars/")
	assert.Contains(t, url, "photo.jpg")
}

func TestErrorOnNon2xx(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.InventoryByBarcode(context.Background(), "012345")
	require.Error(t, err)

	var remoteErr *Error
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
}

func TestCurrentInventoryRPC(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/get_current_inventory", r.URL.Path)
		json.NewEncoder(w).Encode(7)
	})
	defer srv.Close()

	count, err := c.CurrentInventory(context.Background(), model.KindBottle, "b1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
