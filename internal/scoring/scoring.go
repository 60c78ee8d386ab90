// Package scoring computes the 0–100 priority score used to triage relief
// requests. Score is a pure function: no state, safe to call concurrently,
// and re-callable for re-prioritization as wait time grows.
package scoring

import (
	"time"

	"relieflink-backend/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100

	// Recency term bounds: one point per recencyStep of waiting, capped.
	maxRecencyBonus = 10
	recencyStep     = 12 * time.Hour
)

// typeWeights maps known request types to their urgency weight. Unknown
// types fall back to defaultTypeWeight.
var typeWeights = map[string]int{
	"Hỗ trợ y tế":                  20,
	"Vật tư y tế chuyên dụng":      20,
	"Nước uống và thuốc men":       18,
	"Thực phẩm khẩn cấp":           15,
	"Thực phẩm dinh dưỡng":         15,
	"Chỗ ở tạm thời":               12,
	"Quần áo và đồ dùng cá nhân":   10,
	"Năng lượng và điện":           10,
	"Thiết bị cứu hộ":              10,
	"Phương tiện di chuyển":        8,
}

const defaultTypeWeight = 8

// Score computes the priority of a request at the given instant. Identical
// input and instant always yield the identical score, and the score never
// decreases as now advances.
func Score(request *models.ReliefRequest, now time.Time) int {
	score := urgencyTerm(request.Urgency) +
		populationTerm(request.People) +
		TypeWeight(request.RequestType) +
		recencyTerm(request.CreatedAt, now)

	if score > MaxScore {
		return MaxScore
	}
	if score < MinScore {
		return MinScore
	}
	return score
}

// TypeWeight returns the weight-table entry for a request type.
func TypeWeight(requestType string) int {
	if weight, exists := typeWeights[requestType]; exists {
		return weight
	}
	return defaultTypeWeight
}

// KnownType reports whether the request type has an explicit weight entry.
func KnownType(requestType string) bool {
	_, exists := typeWeights[requestType]
	return exists
}

func urgencyTerm(urgency string) int {
	switch urgency {
	case models.UrgencyHigh:
		return 40
	case models.UrgencyMedium:
		return 25
	default:
		return 10
	}
}

func populationTerm(people int) int {
	switch {
	case people >= 100:
		return 30
	case people >= 50:
		return 25
	case people >= 20:
		return 20
	case people >= 10:
		return 15
	default:
		return 10
	}
}

// recencyTerm grows with wait time so old requests float up. Deterministic
// by construction: one point per full 12 hours waited, capped at 10.
func recencyTerm(createdAt, now time.Time) int {
	waited := now.Sub(createdAt)
	if waited <= 0 {
		return 0
	}
	bonus := int(waited / recencyStep)
	if bonus > maxRecencyBonus {
		return maxRecencyBonus
	}
	return bonus
}
