// Package audit defines the trail of workflow transitions kept for lab traceability.
package audit

import (
	"context"

	"dairyops/internal/core/id"
)

// Action names an audited transition.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionOpen    Action = "open"
	ActionClose   Action = "close"
	ActionLock    Action = "lock"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionConsume Action = "consume"
	ActionAdjust  Action = "adjust"
	ActionDelete  Action = "delete"
	ActionExpire  Action = "expire"
	ActionRefund  Action = "refund"
)

// Entity types recorded in the trail.
const (
	EntityBatch            = "intake_batch"
	EntityBatchTest        = "batch_test"
	EntityProductionBatch  = "production_batch"
	EntityLabApproval      = "lab_batch_approval"
	EntityColdStorageLot   = "cold_storage_lot"
	EntityCollectionWindow = "collection_window"
	EntitySale             = "sales_transaction"
)

// Recorder appends entries to the audit trail. Implementations join the
// transaction carried by ctx.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards entries.
type Nop struct{}

// LogChange implements Recorder.
func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }
