package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBulkReclassifySumsCounts(t *testing.T) {
	counts := map[string]int64{"U1": 3, "U2": 0, "U3": 5}
	var seen []string
	store := &mockStore{
		reclassifyStaffMessages: func(ctx context.Context, externalUserID, staffID string) (int64, error) {
			seen = append(seen, externalUserID)
			return counts[externalUserID], nil
		},
	}
	r := NewReclassifier(store, zap.NewNop())

	total, err := r.BulkReclassifyStaffMessages(context.Background(), []ReclassifyPair{
		{ExternalUserID: "U1", StaffID: "s1"},
		{ExternalUserID: "U2", StaffID: "s2"},
		{ExternalUserID: "U3", StaffID: "s3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)
	assert.Equal(t, []string{"U1", "U2", "U3"}, seen)
}

func TestBulkReclassifyStopsOnError(t *testing.T) {
	store := &mockStore{
		reclassifyStaffMessages: func(ctx context.Context, externalUserID, staffID string) (int64, error) {
			if externalUserID == "U2" {
				return 0, errors.New("db gone")
			}
			return 2, nil
		},
	}
	r := NewReclassifier(store, zap.NewNop())

	total, err := r.BulkReclassifyStaffMessages(context.Background(), []ReclassifyPair{
		{ExternalUserID: "U1", StaffID: "s1"},
		{ExternalUserID: "U2", StaffID: "s2"},
		{ExternalUserID: "U3", StaffID: "s3"},
	})
	require.Error(t, err)
	assert.Equal(t, int64(2), total)
}

func TestUnclassifyReturnsCount(t *testing.T) {
	store := &mockStore{
		unclassifyStaffMessages: func(ctx context.Context, staffID string) (int64, error) {
			assert.Equal(t, "staff-9", staffID)
			return 4, nil
		},
	}
	r := NewReclassifier(store, zap.NewNop())

	n, err := r.UnclassifyStaffMessages(context.Background(), "staff-9")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
