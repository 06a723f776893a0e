package model

import (
	"fmt"
	"time"
)

// JobType identifies the variant of an offline job.
type JobType string

const (
	JobIncrement   JobType = "increment"
	JobUploadPhoto JobType = "upload_photo"
)

// OfflineJob is a durable, queued representation of a mutation deferred due to
// lack of connectivity. Jobs are immutable once enqueued; the queue removes
// them only after the sync engine applies them or gives up.
//
// increment jobs use ItemID/By; upload_photo jobs use Kind/TargetID/LocalPath.
type OfflineJob struct {
	Type      JobType `json:"type"`
	ItemID    string  `json:"item_id,omitempty"`
	By        int     `json:"by,omitempty"`
	Kind      Kind    `json:"kind,omitempty"`
	TargetID  string  `json:"target_id,omitempty"`
	LocalPath string  `json:"local_path,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// NewIncrementJob builds an increment job stamped with the current time.
func NewIncrementJob(itemID string, by int) OfflineJob {
	return OfflineJob{
		Type:      JobIncrement,
		ItemID:    itemID,
		By:        by,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewUploadPhotoJob builds an upload_photo job stamped with the current time.
func NewUploadPhotoJob(kind Kind, targetID, localPath string) OfflineJob {
	return OfflineJob{
		Type:      JobUploadPhoto,
		Kind:      kind,
		TargetID:  targetID,
		LocalPath: localPath,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Identity returns the item identity used for targeted removal and Has checks:
// the inventory item for increments, the catalog target for photo uploads.
func (j OfflineJob) Identity() string {
	if j.Type == JobUploadPhoto {
		return j.TargetID
	}
	return j.ItemID
}

// Key returns the stable key (type, identity, timestamp) used for targeted
// removal and for retry-timer bookkeeping.
func (j OfflineJob) Key() string {
	return fmt.Sprintf("%s_%s_%d", j.Type, j.Identity(), j.Timestamp)
}

// Validate checks the variant-specific required fields.
func (j OfflineJob) Validate() error {
	switch j.Type {
	case JobIncrement:
		if j.ItemID == "" {
			return fmt.Errorf("increment job missing item_id")
		}
		if j.By <= 0 {
			return fmt.Errorf("increment job requires by > 0, got %d", j.By)
		}
	case JobUploadPhoto:
		if !j.Kind.Valid() {
			return fmt.Errorf("upload_photo job has invalid kind %q", j.Kind)
		}
		if j.TargetID == "" {
			return fmt.Errorf("upload_photo job missing target_id")
		}
		if j.LocalPath == "" {
			return fmt.Errorf("upload_photo job missing local_path")
		}
	default:
		return fmt.Errorf("unknown job type %q", j.Type)
	}
	return nil
}

// PendingUpload is the second persisted list: a photo upload awaiting retry,
// keyed by a generated id for idempotent single-item clearing.
type PendingUpload struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Kind      Kind   `json:"kind"`
	PhotoURI  string `json:"photo_uri"`
	Timestamp int64  `json:"timestamp"`
}

// NewPendingUpload builds a pending upload with its generated id
// (kind_itemID_timestamp).
func NewPendingUpload(itemID string, kind Kind, photoURI string) PendingUpload {
	now := time.Now().UnixMilli()
	return PendingUpload{
		ID:        fmt.Sprintf("%s_%s_%d", kind, itemID, now),
		ItemID:    itemID,
		Kind:      kind,
		PhotoURI:  photoURI,
		Timestamp: now,
	}
}
