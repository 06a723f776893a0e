package scanner

import (
	"log"
	"sync"

	"cellarsync/internal/model"
)

// DefaultSymbologies are the barcode formats accepted from the detection
// source.
var DefaultSymbologies = []string{
	"qr", "ean-13", "ean-8", "upc-a", "upc-e",
	"code-39", "code-93", "code-128", "itf",
	"aztec", "data-matrix", "pdf-417",
}

// Detector is a source of barcode detections that can be paused while a scan
// is being resolved.
type Detector interface {
	Detections() <-chan model.ScanDetection
	Pause()
	Resume()
	Close() error
}

// ChannelDetector is a Detector fed programmatically; the HTTP surface pushes
// detections into it. It also serves as the machine's CameraController, so a
// paused resolution really stops the flow of frames.
type ChannelDetector struct {
	mu          sync.Mutex
	ch          chan model.ScanDetection
	symbologies map[string]bool
	paused      bool
	closed      bool
}

// NewChannelDetector creates a detector accepting the given symbologies
// (DefaultSymbologies when nil).
func NewChannelDetector(symbologies []string) *ChannelDetector {
	if symbologies == nil {
		symbologies = DefaultSymbologies
	}
	accepted := make(map[string]bool, len(symbologies))
	for _, s := range symbologies {
		accepted[s] = true
	}
	return &ChannelDetector{
		ch:          make(chan model.ScanDetection, 16),
		symbologies: accepted,
	}
}

// Offer submits a detection. It reports false when the detection was dropped:
// detector paused or closed, unrecognized symbology, or buffer full.
func (d *ChannelDetector) Offer(det model.ScanDetection) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.paused {
		return false
	}
	if !d.symbologies[det.Symbology] {
		log.Printf("[Detector] Dropping detection with symbology %q", det.Symbology)
		return false
	}
	select {
	case d.ch <- det:
		return true
	default:
		return false
	}
}

// Detections returns the stream of accepted detections.
func (d *ChannelDetector) Detections() <-chan model.ScanDetection {
	return d.ch
}

// Pause drops subsequent detections until Resume.
func (d *ChannelDetector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume re-enables detections.
func (d *ChannelDetector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

// Close shuts the detection stream.
func (d *ChannelDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	return nil
}

var _ Detector = (*ChannelDetector)(nil)
var _ CameraController = (*ChannelDetector)(nil)
