package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cellarsync/internal/model"
)

// CreateScanSession opens a new scan session row and returns it.
func (c *Client) CreateScanSession(ctx context.Context) (*model.ScanSession, error) {
	body, err := jsonBody(map[string]interface{}{
		"started_at":   time.Now().UTC().Format(time.RFC3339),
		"items_added":  0,
		"items_failed": 0,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL("scan_sessions", nil), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.ScanSession
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &rows[0], nil
}

// UpdateSessionCounters writes the items_added/items_failed counters.
func (c *Client) UpdateSessionCounters(ctx context.Context, sessionID string, added, failed int) error {
	body, err := jsonBody(map[string]int{
		"items_added":  added,
		"items_failed": failed,
	})
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("id", "eq."+sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.restURL("scan_sessions", params), body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// EndScanSession stamps ended_at on the session row.
func (c *Client) EndScanSession(ctx context.Context, sessionID string) error {
	body, err := jsonBody(map[string]string{
		"ended_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("id", "eq."+sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.restURL("scan_sessions", params), body)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// InsertScanEvent records a scan outcome against a session and returns the row.
func (c *Client) InsertScanEvent(ctx context.Context, event model.ScanEvent) (*model.ScanEvent, error) {
	body, err := jsonBody(map[string]interface{}{
		"session_id":     event.SessionID,
		"kind":           event.Kind,
		"barcode":        event.Barcode,
		"matched_ref_id": event.MatchedRefID,
		"quantity":       event.Quantity,
		"status":         event.Status,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL("scan_events", nil), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	var rows []model.ScanEvent
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no row")
	}
	return &rows[0], nil
}
