package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistribution_CanAdvanceTo(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{DistributionStatusPreparing, DistributionStatusShipping, true},
		{DistributionStatusPreparing, DistributionStatusCancelled, true},
		{DistributionStatusPreparing, DistributionStatusDelivering, false},
		{DistributionStatusPreparing, DistributionStatusCompleted, false},
		{DistributionStatusShipping, DistributionStatusDelivering, true},
		{DistributionStatusShipping, DistributionStatusCancelled, true},
		{DistributionStatusShipping, DistributionStatusPreparing, false},
		{DistributionStatusDelivering, DistributionStatusCompleted, true},
		{DistributionStatusDelivering, DistributionStatusCancelled, true},
		{DistributionStatusCompleted, DistributionStatusCancelled, false},
		{DistributionStatusCancelled, DistributionStatusShipping, false},
	}

	for _, tc := range cases {
		d := Distribution{Status: tc.from}
		assert.Equal(t, tc.allowed, d.CanAdvanceTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestDistribution_IsActive(t *testing.T) {
	assert.True(t, (&Distribution{Status: DistributionStatusPreparing}).IsActive())
	assert.True(t, (&Distribution{Status: DistributionStatusShipping}).IsActive())
	assert.True(t, (&Distribution{Status: DistributionStatusDelivering}).IsActive())
	assert.False(t, (&Distribution{Status: DistributionStatusCompleted}).IsActive())
	assert.False(t, (&Distribution{Status: DistributionStatusCancelled}).IsActive())
}
