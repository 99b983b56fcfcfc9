package batches

import (
	"fmt"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusFrozen Status = "frozen"
)

// Batch is one quantity scenario of a part. A draft batch holds its latest
// computed breakdown; once frozen the breakdown lives on in its Snapshot.
type Batch struct {
	ID             int64             `json:"id"`
	PartID         int64             `json:"part_id"`
	Quantity       int               `json:"quantity"`
	Status         Status            `json:"status"`
	Breakdown      pricing.Breakdown `json:"breakdown"`
	RecalculatedAt time.Time         `json:"recalculated_at"`
	FrozenAt       *time.Time        `json:"frozen_at,omitempty"`
	SetID          *int64            `json:"set_id,omitempty"`
	Version        int64             `json:"version"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (b Batch) Frozen() bool { return b.Status == StatusFrozen }

// BatchSet groups batches that are frozen together or not at all.
type BatchSet struct {
	ID       int64      `json:"id"`
	PartID   int64      `json:"part_id"`
	Name     string     `json:"name"`
	FrozenAt *time.Time `json:"frozen_at,omitempty"`
	BatchIDs []int64    `json:"batch_ids"`
	Version  int64      `json:"version"`
}

func (s BatchSet) Frozen() bool { return s.FrozenAt != nil }

// FreezeItem is one batch to freeze, at the version its snapshot was taken from.
type FreezeItem struct {
	BatchID         int64
	ExpectedVersion int64
	Snapshot        Snapshot
}

// FreezeError names the batch that stopped a freeze. The whole freeze was rolled back.
type FreezeError struct {
	BatchID int64
	Err     error
}

func (e *FreezeError) Error() string { return fmt.Sprintf("freeze batch %d: %v", e.BatchID, e.Err) }

func (e *FreezeError) Unwrap() error { return e.Err }
