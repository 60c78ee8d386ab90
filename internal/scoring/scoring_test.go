package scoring

import (
	"testing"
	"time"

	"relieflink-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func sampleRequest(urgency string, people int, requestType string, createdAt time.Time) *models.ReliefRequest {
	return &models.ReliefRequest{
		RequestType: requestType,
		Description: "flood damage in the district",
		People:      people,
		Urgency:     urgency,
		CreatedAt:   createdAt,
	}
}

func TestScore_Deterministic(t *testing.T) {
	now := time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyHigh, 120, "Hỗ trợ y tế", now.Add(-3*time.Hour))

	first := Score(request, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Score(request, now))
	}
}

func TestScore_HighUrgencyMedicalScenario(t *testing.T) {
	now := time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyHigh, 120, "Hỗ trợ y tế", now)

	// 40 urgency + 30 population + 20 type + 0 recency
	assert.Equal(t, 90, Score(request, now))
}

func TestScore_ClampedAtMax(t *testing.T) {
	now := time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyHigh, 500, "Hỗ trợ y tế", now.Add(-30*24*time.Hour))

	assert.Equal(t, MaxScore, Score(request, now))
}

func TestScore_PopulationBrackets(t *testing.T) {
	now := time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		people   int
		expected int
	}{
		{1, 10},
		{9, 10},
		{10, 15},
		{19, 15},
		{20, 20},
		{49, 20},
		{50, 25},
		{99, 25},
		{100, 30},
		{1000, 30},
	}

	for _, tt := range tests {
		request := sampleRequest(models.UrgencyLow, tt.people, "unknown type", now)
		// 10 urgency + population + 8 default type
		assert.Equal(t, 10+tt.expected+8, Score(request, now), "people=%d", tt.people)
	}
}

func TestScore_UnknownTypeGetsDefaultWeight(t *testing.T) {
	now := time.Now()
	known := sampleRequest(models.UrgencyMedium, 10, "Thực phẩm khẩn cấp", now)
	unknown := sampleRequest(models.UrgencyMedium, 10, "something else entirely", now)

	assert.Equal(t, 15, TypeWeight(known.RequestType))
	assert.Equal(t, defaultTypeWeight, TypeWeight(unknown.RequestType))
	assert.True(t, KnownType(known.RequestType))
	assert.False(t, KnownType(unknown.RequestType))
	assert.Equal(t, Score(known, now)-7, Score(unknown, now))
}

func TestScore_RecencyGrowsWithWaitTime(t *testing.T) {
	createdAt := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyLow, 5, "Chỗ ở tạm thời", createdAt)

	base := Score(request, createdAt)

	// One point per full 12 hours
	assert.Equal(t, base, Score(request, createdAt.Add(11*time.Hour)))
	assert.Equal(t, base+1, Score(request, createdAt.Add(12*time.Hour)))
	assert.Equal(t, base+2, Score(request, createdAt.Add(25*time.Hour)))

	// Capped at 10 regardless of how long the wait gets
	assert.Equal(t, base+10, Score(request, createdAt.Add(200*time.Hour)))
	assert.Equal(t, base+10, Score(request, createdAt.Add(10000*time.Hour)))
}

func TestScore_NeverDecreasesOverTime(t *testing.T) {
	createdAt := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyMedium, 30, "Nước uống và thuốc men", createdAt)

	previous := Score(request, createdAt)
	for hours := 1; hours <= 240; hours += 7 {
		current := Score(request, createdAt.Add(time.Duration(hours)*time.Hour))
		assert.GreaterOrEqual(t, current, previous)
		previous = current
	}
}

func TestScore_ClockSkewBeforeCreation(t *testing.T) {
	createdAt := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	request := sampleRequest(models.UrgencyLow, 5, "Chỗ ở tạm thời", createdAt)

	// A now before createdAt must not produce a negative term
	assert.Equal(t, Score(request, createdAt), Score(request, createdAt.Add(-2*time.Hour)))
}
