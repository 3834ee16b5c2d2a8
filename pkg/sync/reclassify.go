package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pulsedesk/slack-sync/internal/metrics"
)

// Reclassifier retroactively repairs staff attribution on stored messages
// after identity mappings change elsewhere in the system. All operations are
// idempotent: reclassification only touches rows still unattributed, so
// re-running with the same inputs affects nothing new.
type Reclassifier struct {
	store  Store
	logger *zap.Logger
}

// ReclassifyPair maps one Slack user id to one internal staff id.
type ReclassifyPair struct {
	ExternalUserID string `json:"external_user_id"`
	StaffID        string `json:"staff_id"`
}

func NewReclassifier(store Store, logger *zap.Logger) *Reclassifier {
	return &Reclassifier{store: store, logger: logger}
}

// ReclassifyStaffMessages attributes all still-unattributed messages from
// the Slack user to the staff member, returning the count updated.
func (r *Reclassifier) ReclassifyStaffMessages(ctx context.Context, externalUserID, staffID string) (int64, error) {
	n, err := r.store.ReclassifyStaffMessages(ctx, externalUserID, staffID)
	if err != nil {
		return 0, fmt.Errorf("failed to reclassify messages for user %s: %w", externalUserID, err)
	}
	metrics.MessagesReclassified.Add(float64(n))
	r.logger.Info("messages reclassified",
		zap.String("external_user_id", externalUserID),
		zap.String("staff_id", staffID),
		zap.Int64("updated", n))
	return n, nil
}

// UnclassifyStaffMessages clears staff attribution from all messages
// currently attributed to the staff member, returning the count updated.
func (r *Reclassifier) UnclassifyStaffMessages(ctx context.Context, staffID string) (int64, error) {
	n, err := r.store.UnclassifyStaffMessages(ctx, staffID)
	if err != nil {
		return 0, fmt.Errorf("failed to unclassify messages for staff %s: %w", staffID, err)
	}
	metrics.MessagesReclassified.Add(float64(n))
	r.logger.Info("messages unclassified",
		zap.String("staff_id", staffID),
		zap.Int64("updated", n))
	return n, nil
}

// BulkReclassifyStaffMessages applies the pairs sequentially and sums the
// updated counts. It stops on the first store error.
func (r *Reclassifier) BulkReclassifyStaffMessages(ctx context.Context, pairs []ReclassifyPair) (int64, error) {
	var total int64
	for _, p := range pairs {
		n, err := r.ReclassifyStaffMessages(ctx, p.ExternalUserID, p.StaffID)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
