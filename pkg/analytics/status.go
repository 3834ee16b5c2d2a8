package analytics

import "strings"

// StatusBucket groups raw partner status strings under one reporting label.
// Matching is case-insensitive substring containment, and buckets are tried
// in declaration order, so earlier buckets take priority when a status
// matches several.
type StatusBucket struct {
	Name       string
	Substrings []string
}

// DefaultPartnerStatusBuckets covers the status vocabulary partner records
// use in practice. Statuses matching no bucket report as "other".
var DefaultPartnerStatusBuckets = []StatusBucket{
	{Name: "onboarding", Substrings: []string{"onboard", "setup", "trial"}},
	{Name: "active", Substrings: []string{"active", "live"}},
	{Name: "paused", Substrings: []string{"pause", "hold"}},
	{Name: "churned", Substrings: []string{"churn", "cancel", "offboard"}},
}

// BucketUnmapped is the label for statuses no bucket matches.
const BucketUnmapped = "other"

// ClassifyStatus returns the first bucket whose substring matches the
// status, or BucketUnmapped.
func ClassifyStatus(status string, buckets []StatusBucket) string {
	lowered := strings.ToLower(status)
	for _, b := range buckets {
		for _, sub := range b.Substrings {
			if strings.Contains(lowered, sub) {
				return b.Name
			}
		}
	}
	return BucketUnmapped
}

// FindUnmappedStatuses returns the distinct statuses, in first-seen order,
// that no bucket matches. It is a reporting aid for spotting vocabulary
// drift in partner records.
func FindUnmappedStatuses(statuses []string, buckets []StatusBucket) []string {
	var unmapped []string
	seen := map[string]struct{}{}
	for _, status := range statuses {
		if ClassifyStatus(status, buckets) != BucketUnmapped {
			continue
		}
		if _, dup := seen[status]; dup {
			continue
		}
		seen[status] = struct{}{}
		unmapped = append(unmapped, status)
	}
	return unmapped
}
