package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatusMatchesCaseInsensitiveSubstring(t *testing.T) {
	assert.Equal(t, "active", ClassifyStatus("Active", DefaultPartnerStatusBuckets))
	assert.Equal(t, "active", ClassifyStatus("LIVE - premium", DefaultPartnerStatusBuckets))
	assert.Equal(t, "onboarding", ClassifyStatus("in setup", DefaultPartnerStatusBuckets))
	assert.Equal(t, "paused", ClassifyStatus("On Hold", DefaultPartnerStatusBuckets))
	assert.Equal(t, "churned", ClassifyStatus("cancelled by partner", DefaultPartnerStatusBuckets))
	assert.Equal(t, BucketUnmapped, ClassifyStatus("mystery", DefaultPartnerStatusBuckets))
}

func TestClassifyStatusDeclarationOrderPriority(t *testing.T) {
	buckets := []StatusBucket{
		{Name: "first", Substrings: []string{"alpha"}},
		{Name: "second", Substrings: []string{"alpha", "beta"}},
	}
	assert.Equal(t, "first", ClassifyStatus("alpha beta", buckets))
	assert.Equal(t, "second", ClassifyStatus("beta", buckets))
}

func TestFindUnmappedStatuses(t *testing.T) {
	statuses := []string{"active", "weird-1", "weird-2", "weird-1", "paused"}
	unmapped := FindUnmappedStatuses(statuses, DefaultPartnerStatusBuckets)
	assert.Equal(t, []string{"weird-1", "weird-2"}, unmapped)
}
