// internal/models/license_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysRemaining_FloorSemantics(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		offset   time.Duration
		expected int
	}{
		{name: "36 hours left is one day", offset: 36 * time.Hour, expected: 1},
		{name: "exactly one day", offset: 24 * time.Hour, expected: 1},
		{name: "just under a day", offset: 23 * time.Hour, expected: 0},
		{name: "12 hours past expiry is minus one", offset: -12 * time.Hour, expected: -1},
		{name: "exactly at expiry", offset: 0, expected: 0},
		{name: "25 hours past expiry is minus two", offset: -25 * time.Hour, expected: -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysRemaining(now.Add(tt.offset), now))
		})
	}
}

func TestLicense_Usable(t *testing.T) {
	usable := map[string]bool{
		StatusActive:  true,
		StatusWarned:  true,
		StatusGrace:   true,
		StatusExpired: false,
		StatusRevoked: false,
		StatusDeleted: false,
	}
	for status, want := range usable {
		lic := &License{Status: status}
		assert.Equal(t, want, lic.Usable(), status)
	}
}

func TestLicense_Terminal(t *testing.T) {
	assert.True(t, (&License{Status: StatusRevoked}).Terminal())
	assert.True(t, (&License{Status: StatusDeleted}).Terminal())
	assert.False(t, (&License{Status: StatusExpired}).Terminal())
}
