package batches

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kg46sp8kps-web/gestima-sub002/internal/pricing"
)

// SnapshotSchemaVersion is written into every new snapshot. Bump it when the
// stored shape changes and keep a decoder for every older version.
const SnapshotSchemaVersion = 1

var ErrSnapshotSchema = errors.New("unsupported snapshot schema")

// Snapshot is the frozen, self-contained price of a batch. It holds copies of
// every rate, weight, tier and coefficient used, never references to live data.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	BatchID       int64             `json:"batch_id"`
	PartID        int64             `json:"part_id"`
	SetID         *int64            `json:"set_id,omitempty"`
	Quantity      int               `json:"quantity"`
	FrozenAt      time.Time         `json:"frozen_at"`
	Breakdown     pricing.Breakdown `json:"breakdown"`
}

// NewSnapshot copies the batch's last computed breakdown.
func NewSnapshot(b Batch, at time.Time) Snapshot {
	return Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		BatchID:       b.ID,
		PartID:        b.PartID,
		SetID:         b.SetID,
		Quantity:      b.Quantity,
		FrozenAt:      at,
		Breakdown:     b.Breakdown,
	}
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SnapshotSchemaVersion
	}
	return json.Marshal(s)
}

// DecodeSnapshot turns a stored payload into the typed record, rejecting
// versions this build cannot read.
func DecodeSnapshot(payload []byte) (Snapshot, error) {
	var head struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot header: %w", err)
	}

	switch head.SchemaVersion {
	case 1:
		var s Snapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot v1: %w", err)
		}
		return s, nil
	}
	return Snapshot{}, fmt.Errorf("%w: version %d", ErrSnapshotSchema, head.SchemaVersion)
}
