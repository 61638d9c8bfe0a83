package referral

import (
	"sort"
)

// DefaultLeaderboardSize is the number of customers kept on the leaderboard
const DefaultLeaderboardSize = 5

// LeaderboardEntry is a customer and the number of their own direct referrals
type LeaderboardEntry struct {
	CustomerID   string `json:"customerId"`
	NumReferrals int    `json:"numReferrals"`
}

// rankBefore orders entries by referral count descending, then by customer id
// ascending so that equal counts always rank the same way.
func rankBefore(a, b LeaderboardEntry) bool {
	if a.NumReferrals != b.NumReferrals {
		return a.NumReferrals > b.NumReferrals
	}
	return a.CustomerID < b.CustomerID
}

// TopK sorts entries in rank order and returns at most k of them.
// The input slice is reordered in place.
func TopK(entries []LeaderboardEntry, k int) []LeaderboardEntry {
	sort.Slice(entries, func(i, j int) bool {
		return rankBefore(entries[i], entries[j])
	})
	if k >= 0 && len(entries) > k {
		entries = entries[:k]
	}
	return entries
}

// MergeTopK combines bounded top-k lists into one global top-k.
// Each input must already contain the top-k of a disjoint set of customers;
// the result does not depend on the order of the inputs.
func MergeTopK(k int, lists ...[]LeaderboardEntry) []LeaderboardEntry {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	merged := make([]LeaderboardEntry, 0, total)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	return TopK(merged, k)
}
