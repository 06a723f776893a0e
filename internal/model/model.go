package model

import (
	"fmt"
	"time"
)

// Kind discriminates cigar records from bottle records throughout the data model.
type Kind string

const (
	KindCigar  Kind = "cigar"
	KindBottle Kind = "bottle"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindCigar || k == KindBottle
}

// Bucket returns the object-storage bucket name for the kind.
func (k Kind) Bucket() string {
	if k == KindCigar {
		return "cigars"
	}
	return "bottles"
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q", s)
	}
	return k, nil
}

// ScanDetection is an ephemeral value produced by the scanner capability.
// Detections are never persisted.
type ScanDetection struct {
	Code      string    `json:"code"`
	Symbology string    `json:"symbology"`
	At        time.Time `json:"at"`
}

// Cigar is a catalog row in the remote cigars table.
type Cigar struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Line     string `json:"line,omitempty"`
	Vitola   string `json:"vitola,omitempty"`
	Wrapper  string `json:"wrapper,omitempty"`
	Strength string `json:"strength,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Bottle is a catalog row in the remote bottles table.
type Bottle struct {
	ID         string  `json:"id"`
	Brand      string  `json:"brand"`
	Expression string  `json:"expression,omitempty"`
	Type       string  `json:"type,omitempty"`
	Proof      float64 `json:"proof,omitempty"`
	AgeYears   int     `json:"age_years,omitempty"`
	PhotoURL   string  `json:"photo_url,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// InventoryItem is the quantity-bearing line linking a catalog item to a
// barcode and a count.
type InventoryItem struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	RefID       string   `json:"ref_id"`
	Quantity    int      `json:"quantity"`
	Location    string   `json:"location,omitempty"`
	Barcode     string   `json:"barcode,omitempty"`
	AltBarcodes []string `json:"alt_barcodes"`
}

// MatchedItem is an inventory line enriched with catalog display metadata,
// as returned by the barcode lookup client. Metadata fields stay empty when
// the per-item enrichment fetch failed.
type MatchedItem struct {
	InventoryItemID string `json:"inventory_item_id"`
	Kind            Kind   `json:"kind"`
	RefID           string `json:"ref_id"`
	Quantity        int    `json:"quantity"`
	Barcode         string `json:"barcode,omitempty"`
	Brand           string `json:"brand,omitempty"`
	Line            string `json:"line,omitempty"`
	Expression      string `json:"expression,omitempty"`
	Type            string `json:"type,omitempty"`
}

// DisplayName renders the human-readable name for the matched item.
func (m MatchedItem) DisplayName() string {
	switch m.Kind {
	case KindCigar:
		if m.Line != "" {
			return m.Brand + " " + m.Line
		}
	case KindBottle:
		if m.Expression != "" {
			return m.Brand + " " + m.Expression
		}
	}
	return m.Brand
}

// ScanSession bounds a sequence of scans; used to refuse re-scanning the same
// code twice in one sitting.
type ScanSession struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ItemsAdded  int        `json:"items_added"`
	ItemsFailed int        `json:"items_failed"`
}

// Scan event statuses recorded against a session.
const (
	ScanStatusMatched = "matched"
	ScanStatusManual  = "manual"
	ScanStatusFailed  = "failed"
)

// ScanEvent records a single scan outcome within a session.
type ScanEvent struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Kind         Kind      `json:"kind"`
	Barcode      string    `json:"barcode"`
	MatchedRefID string    `json:"matched_ref_id,omitempty"`
	Quantity     int       `json:"quantity"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}
