package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"cellarsync/internal/model"
)

const inventorySelect = "id,kind,ref_id,quantity,location,barcode,alt_barcodes"

// InventoryByBarcode returns inventory lines whose primary barcode equals code.
func (c *Client) InventoryByBarcode(ctx context.Context, code string) ([]model.InventoryItem, error) {
	params := url.Values{}
	params.Set("select", inventorySelect)
	params.Set("barcode", "eq."+code)
	return c.selectInventory(ctx, params)
}

// InventoryByAltBarcode returns inventory lines whose alt_barcodes array
// contains code.
func (c *Client) InventoryByAltBarcode(ctx context.Context, code string) ([]model.InventoryItem, error) {
	params := url.Values{}
	params.Set("select", inventorySelect)
	params.Set("alt_barcodes", fmt.Sprintf(`cs.{"%s"}`, code))
	return c.selectInventory(ctx, params)
}

func (c *Client) selectInventory(ctx context.Context, params url.Values) ([]model.InventoryItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL("inventory_items", params), nil)
	if err != nil {
		return nil, err
	}

	var items []model.InventoryItem
	if err := c.do(req, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// InventoryItemByID fetches a single inventory line.
func (c *Client) InventoryItemByID(ctx context.Context, id string) (*model.InventoryItem, error) {
	params := url.Values{}
	params.Set("select", inventorySelect)
	params.Set("id", "eq."+id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL("inventory_items", params), nil)
	if err != nil {
		return nil, err
	}

	var items []model.InventoryItem
	if err := c.do(req, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("inventory item %s not found", id)
	}
	return &items[0], nil
}

// CreateInventoryItem inserts a new inventory line and returns the created row.
func (c *Client) CreateInventoryItem(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error) {
	if item.AltBarcodes == nil {
		item.AltBarcodes = []string{}
	}
	body, err := jsonBody(map[string]interface{}{
		"kind":         item.Kind,
		"ref_id":       item.RefID,
		"quantity":     item.Quantity,
		"location":     item.Location,
		"barcode":      item.Barcode,
		"alt_barcodes": item.AltBarcodes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL("inventory_items", nil), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.InventoryItem
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &rows[0], nil
}

// IncrementQuantity applies a server-side atomic increment of the line's
// quantity. The backend procedure tolerates concurrent writers, unlike a
// client-side read-then-write.
func (c *Client) IncrementQuantity(ctx context.Context, itemID string, by int) error {
	body, err := jsonBody(map[string]interface{}{
		"p_item_id": itemID,
		"p_by":      by,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL("increment_quantity"), body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// AddAltBarcodeIfMissing registers code as an alternate barcode on the line
// unless it is already present.
func (c *Client) AddAltBarcodeIfMissing(ctx context.Context, itemID, code string) (*model.InventoryItem, error) {
	current, err := c.InventoryItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	for _, b := range current.AltBarcodes {
		if b == code {
			return current, nil
		}
	}

	updated := append(append([]string{}, current.AltBarcodes...), code)
	body, err := jsonBody(map[string]interface{}{"alt_barcodes": updated})
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("id", "eq."+itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.restURL("inventory_items", params), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.InventoryItem
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("update returned no row")
	}
	return &rows[0], nil
}

// BarcodeSearchRow is a row returned by the search_by_barcode procedure.
type BarcodeSearchRow struct {
	ID               string     `json:"id"`
	Kind             model.Kind `json:"kind"`
	RefID            string     `json:"ref_id"`
	Brand            string     `json:"brand"`
	LineOrExpression string     `json:"line_or_expression"`
}

// SearchByBarcode invokes the server-side barcode search procedure.
func (c *Client) SearchByBarcode(ctx context.Context, code string) ([]BarcodeSearchRow, error) {
	body, err := jsonBody(map[string]string{"p_barcode": code})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL("search_by_barcode"), body)
	if err != nil {
		return nil, err
	}

	var rows []BarcodeSearchRow
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// CurrentInventory invokes the server-side current-inventory-count procedure.
func (c *Client) CurrentInventory(ctx context.Context, kind model.Kind, refID string) (int, error) {
	body, err := jsonBody(map[string]string{
		"p_kind":   string(kind),
		"p_ref_id": refID,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL("get_current_inventory"), body)
	if err != nil {
		return 0, err
	}

	var count int
	if err := c.do(req, &count); err != nil {
		return 0, err
	}
	return count, nil
}
