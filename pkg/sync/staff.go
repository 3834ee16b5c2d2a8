package sync

import (
	"context"

	"go.uber.org/zap"
)

// BuildStaffLookup resolves the Slack-user → staff-id map used to attribute
// messages. It is built once per chunk, not per channel, to bound query
// volume. A lookup failure degrades to an empty map with a logged warning:
// the chunk proceeds with all messages unattributed to staff, which is a
// safe outcome, and reclassification can repair attribution afterwards.
func BuildStaffLookup(ctx context.Context, store Store, logger *zap.Logger) map[string]string {
	lookup, err := store.ListStaffSlackIdentities(ctx)
	if err != nil {
		logger.Warn("failed to build staff lookup, proceeding unattributed", zap.Error(err))
		return map[string]string{}
	}
	return lookup
}
