package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cellarsync/internal/model"
	"cellarsync/internal/queue"
	"cellarsync/pkg/uid"
)

// Session errors surfaced to the control API.
var (
	ErrNoActiveSession = errors.New("no active scan session")
	ErrDuplicateScan   = errors.New("barcode already scanned in this session")
	ErrOfflineManual   = errors.New("manual catalog entry requires connectivity")
	ErrOfflineLink     = errors.New("linking a barcode requires connectivity")
)

// SessionBackend is the slice of the remote boundary the session needs.
// *remote.Client satisfies it.
type SessionBackend interface {
	CreateScanSession(ctx context.Context) (*model.ScanSession, error)
	UpdateSessionCounters(ctx context.Context, sessionID string, added, failed int) error
	EndScanSession(ctx context.Context, sessionID string) error
	InsertScanEvent(ctx context.Context, event model.ScanEvent) (*model.ScanEvent, error)
	IncrementQuantity(ctx context.Context, itemID string, by int) error
	AddAltBarcodeIfMissing(ctx context.Context, itemID, code string) (*model.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item model.InventoryItem) (*model.InventoryItem, error)
	CreateCigar(ctx context.Context, cigar model.Cigar) (*model.Cigar, error)
	CreateBottle(ctx context.Context, bottle model.Bottle) (*model.Bottle, error)
}

// Availability answers whether the network is usable right now.
// *netmon.Monitor satisfies it.
type Availability interface {
	IsAvailable(ctx context.Context) bool
}

// Session bounds a sequence of confirmed scans. It refuses to process the
// same barcode twice in one sitting, applies confirmed increments directly
// when online and queues them when not, and keeps best-effort bookkeeping on
// the remote scan_sessions/scan_events tables.
type Session struct {
	mu      sync.Mutex
	backend SessionBackend
	queue   queue.Store
	network Availability

	remote    *model.ScanSession // nil when the remote row could not be created
	localID   string
	startedAt time.Time
	processed map[string]bool
	added     int
	failed    int
	active    bool
}

// NewSession creates an inactive session wrapper; call Start to begin.
func NewSession(backend SessionBackend, store queue.Store, network Availability) *Session {
	return &Session{
		backend: backend,
		queue:   store,
		network: network,
	}
}

// Start begins a new sitting. Remote session bookkeeping is best-effort: if
// the row cannot be created the session proceeds with a local id and simply
// records no events.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.startedAt = time.Now()
	s.processed = make(map[string]bool)
	s.added = 0
	s.failed = 0
	s.remote = nil
	s.localID = uid.New()

	if s.network.IsAvailable(ctx) {
		sess, err := s.backend.CreateScanSession(ctx)
		if err != nil {
			log.Printf("[ScanSession] Failed to create remote session: %v", err)
		} else {
			s.remote = sess
		}
	} else {
		log.Printf("[ScanSession] Offline, session %s is local-only", s.localID)
	}
}

// Active reports whether a sitting is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the session identifier (remote when available, local otherwise).
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote != nil {
		return s.remote.ID
	}
	return s.localID
}

// Counts returns the running added/failed counters.
func (s *Session) Counts() (added, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added, s.failed
}

// IsBarcodeScanned reports whether code was already confirmed or manually
// entered in this sitting.
func (s *Session) IsBarcodeScanned(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed[code]
}

// Confirm applies a confirmed match: increment the matched line by qty,
// directly when online, through the offline queue when not. It reports
// whether the increment was queued rather than applied.
func (s *Session) Confirm(ctx context.Context, barcode string, item model.MatchedItem, qty int) (queued bool, err error) {
	if qty <= 0 {
		return false, fmt.Errorf("quantity must be positive, got %d", qty)
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false, ErrNoActiveSession
	}
	if s.processed[barcode] {
		s.mu.Unlock()
		return false, ErrDuplicateScan
	}
	s.mu.Unlock()

	if s.network.IsAvailable(ctx) {
		if err := s.backend.IncrementQuantity(ctx, item.InventoryItemID, qty); err != nil {
			return false, err
		}
		s.recordEvent(ctx, model.ScanEvent{
			Kind:         item.Kind,
			Barcode:      barcode,
			MatchedRefID: item.RefID,
			Quantity:     qty,
			Status:       model.ScanStatusMatched,
		})
	} else {
		if err := s.queue.Enqueue(ctx, model.NewIncrementJob(item.InventoryItemID, qty)); err != nil {
			return false, err
		}
		queued = true
		log.Printf("[ScanSession] Offline, queued +%d for item %s", qty, item.InventoryItemID)
	}

	s.mu.Lock()
	s.processed[barcode] = true
	s.added++
	s.mu.Unlock()

	s.pushCounters(ctx)
	return queued, nil
}

// LinkExisting attaches an unresolved barcode to an inventory line already in
// the cellar and increments it by qty: the flow for a retailer re-labeling a
// product the catalog already knows. The registered code lands in the line's
// alt_barcodes, so the next scan resolves directly. Registration patches the
// remote row and has no offline path.
func (s *Session) LinkExisting(ctx context.Context, barcode, inventoryItemID string, qty int) (*model.InventoryItem, error) {
	if barcode == "" {
		return nil, fmt.Errorf("barcode required")
	}
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", qty)
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if s.processed[barcode] {
		s.mu.Unlock()
		return nil, ErrDuplicateScan
	}
	s.mu.Unlock()

	if !s.network.IsAvailable(ctx) {
		return nil, ErrOfflineLink
	}

	item, err := s.backend.AddAltBarcodeIfMissing(ctx, inventoryItemID, barcode)
	if err != nil {
		return nil, err
	}
	if err := s.backend.IncrementQuantity(ctx, inventoryItemID, qty); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, model.ScanEvent{
		Kind:         item.Kind,
		Barcode:      barcode,
		MatchedRefID: item.RefID,
		Quantity:     qty,
		Status:       model.ScanStatusMatched,
	})

	s.mu.Lock()
	s.processed[barcode] = true
	s.added++
	s.mu.Unlock()

	s.pushCounters(ctx)
	log.Printf("[ScanSession] Linked barcode %s onto item %s", barcode, inventoryItemID)
	return item, nil
}

// ManualEntry carries the catalog data for an item the lookup could not
// resolve. Exactly one of Cigar/Bottle must match Kind.
type ManualEntry struct {
	Kind     model.Kind
	Barcode  string
	Quantity int
	Location string
	Cigar    *model.Cigar
	Bottle   *model.Bottle
}

// CreateManual creates a catalog row and its inventory line for an unknown
// barcode, carrying the scanned code onto the new line. Catalog creation has
// no offline path.
func (s *Session) CreateManual(ctx context.Context, entry ManualEntry) (*model.InventoryItem, error) {
	if !entry.Kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", entry.Kind)
	}
	if entry.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", entry.Quantity)
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if entry.Barcode != "" && s.processed[entry.Barcode] {
		s.mu.Unlock()
		return nil, ErrDuplicateScan
	}
	s.mu.Unlock()

	if !s.network.IsAvailable(ctx) {
		return nil, ErrOfflineManual
	}

	var refID string
	switch entry.Kind {
	case model.KindCigar:
		if entry.Cigar == nil {
			return nil, fmt.Errorf("manual cigar entry missing cigar data")
		}
		created, err := s.backend.CreateCigar(ctx, *entry.Cigar)
		if err != nil {
			return nil, err
		}
		refID = created.ID
	case model.KindBottle:
		if entry.Bottle == nil {
			return nil, fmt.Errorf("manual bottle entry missing bottle data")
		}
		created, err := s.backend.CreateBottle(ctx, *entry.Bottle)
		if err != nil {
			return nil, err
		}
		refID = created.ID
	}

	item, err := s.backend.CreateInventoryItem(ctx, model.InventoryItem{
		Kind:     entry.Kind,
		RefID:    refID,
		Quantity: entry.Quantity,
		Location: entry.Location,
		Barcode:  entry.Barcode,
	})
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, model.ScanEvent{
		Kind:         entry.Kind,
		Barcode:      entry.Barcode,
		MatchedRefID: refID,
		Quantity:     entry.Quantity,
		Status:       model.ScanStatusManual,
	})

	s.mu.Lock()
	if entry.Barcode != "" {
		s.processed[entry.Barcode] = true
	}
	// Manual entries count against the failed-match counter: the lookup did
	// not resolve them.
	s.failed++
	s.mu.Unlock()

	s.pushCounters(ctx)
	return item, nil
}

// End closes the sitting and stamps the remote row when one exists.
func (s *Session) End(ctx context.Context) (added, failed int) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return 0, 0
	}
	s.active = false
	added, failed = s.added, s.failed
	sess := s.remote
	s.mu.Unlock()

	if sess == nil {
		return added, failed
	}
	if err := s.backend.UpdateSessionCounters(ctx, sess.ID, added, failed); err != nil {
		log.Printf("[ScanSession] Failed to update counters for %s: %v", sess.ID, err)
	}
	if err := s.backend.EndScanSession(ctx, sess.ID); err != nil {
		log.Printf("[ScanSession] Failed to end session %s: %v", sess.ID, err)
	}
	return added, failed
}

// recordEvent writes a scan event against the remote session. Bookkeeping is
// best-effort; a failure never fails the scan.
func (s *Session) recordEvent(ctx context.Context, event model.ScanEvent) {
	s.mu.Lock()
	sess := s.remote
	s.mu.Unlock()
	if sess == nil {
		return
	}

	event.SessionID = sess.ID
	if _, err := s.backend.InsertScanEvent(ctx, event); err != nil {
		log.Printf("[ScanSession] Failed to record scan event: %v", err)
	}
}

// pushCounters mirrors the running counters onto the remote row, best-effort.
func (s *Session) pushCounters(ctx context.Context) {
	s.mu.Lock()
	sess := s.remote
	added, failed := s.added, s.failed
	s.mu.Unlock()
	if sess == nil {
		return
	}

	if err := s.backend.UpdateSessionCounters(ctx, sess.ID, added, failed); err != nil {
		log.Printf("[ScanSession] Failed to update counters for %s: %v", sess.ID, err)
	}
}
