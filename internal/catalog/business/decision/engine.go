package decision

import (
	"fmt"
	"strings"

	"catalogsync/internal/catalog/models"
)

// Conditions is everything the engine looks at. Callers assemble it from the
// rate gate, catalog counts and the sync log; the engine itself reads
// nothing.
type Conditions struct {
	IsRateLimited       bool
	ItemCountEstimate   int
	IsFullRefreshDue    bool
	LastSyncAgeHours    float64
	RecentApiErrorCount int
}

// Decision is the chosen channel with the rationale that produced it.
type Decision struct {
	Method     models.Channel
	Reason     string
	Confidence float64
}

// Decide scores the candidate channels for one sync type. Positive score
// favors the bulk feed, negative the API. The constants are deliberate and
// fixed so operators can audit why a channel was picked; this is a
// heuristic, not a learned model.
func Decide(syncType models.SyncType, c Conditions) Decision {
	score := 0
	var reasons []string

	if c.IsRateLimited {
		score += 50
		reasons = append(reasons, "api channel is rate limited")
	}
	switch {
	case c.ItemCountEstimate > 5000:
		score += 30
		reasons = append(reasons, fmt.Sprintf("large dataset (%d items)", c.ItemCountEstimate))
	case c.ItemCountEstimate > 1000:
		score += 15
		reasons = append(reasons, fmt.Sprintf("medium dataset (%d items)", c.ItemCountEstimate))
	}
	if c.IsFullRefreshDue {
		score += 20
		reasons = append(reasons, "full refresh is due")
	}
	if c.RecentApiErrorCount > 5 {
		score += 25
		reasons = append(reasons, fmt.Sprintf("recent api errors (%d)", c.RecentApiErrorCount))
	}
	if c.ItemCountEstimate < 100 && !c.IsRateLimited {
		score -= 30
		reasons = append(reasons, "small dataset suits the api")
	}
	if c.LastSyncAgeHours < 2 && !c.IsRateLimited {
		score -= 20
		reasons = append(reasons, "recently synced, delta-friendly")
	}

	switch syncType {
	case models.SyncTypeKits:
		if c.ItemCountEstimate < 1000 {
			score -= 25
			reasons = append(reasons, "kit structures favor the api below 1000 items")
		}
	case models.SyncTypePricing:
		if c.LastSyncAgeHours < 2 {
			score -= 15
			reasons = append(reasons, "pricing recently synced, api preferred")
		}
	}

	method := models.ChannelAPI
	if score > 0 {
		method = models.ChannelBulk
	}

	confidence := float64(abs(score)) / 100
	if confidence > 1 {
		confidence = 1
	}

	reason := strings.Join(reasons, "; ")
	if reason == "" {
		reason = "no strong signal, defaulting to api"
	}

	return Decision{Method: method, Reason: reason, Confidence: confidence}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
