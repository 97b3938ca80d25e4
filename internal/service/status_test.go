package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

func TestStatusRules(t *testing.T) {
	tests := []struct {
		code        models.StatusCode
		active      bool
		stored      models.StatusCode
		roster      models.RosterStatus
		submittable bool
	}{
		{models.StatusCurrent, true, models.StatusCurrent, models.RosterActive, true},
		{models.StatusNew, true, models.StatusCurrent, models.RosterActive, true},
		{models.StatusNewMulti, true, models.StatusCurrent, models.RosterActive, true},
		{models.StatusNewFormer, true, models.StatusNewFormer, models.RosterActive, true},
		{models.StatusNewTransfer, false, models.StatusCurrent, models.RosterInactive, true},
		{models.StatusAbsent, false, models.StatusAbsent, models.RosterInactive, true},
		{models.StatusAbsentGraduate, false, models.StatusAbsentGraduate, models.RosterInactive, true},
		{models.StatusAbsentTransfer, false, models.StatusAbsentTransfer, models.RosterInactive, true},
		{models.StatusActive, false, models.StatusActive, models.RosterActive, false},
		{models.StatusInactive, false, models.StatusInactive, models.RosterInactive, false},
		{"", false, "", models.RosterInactive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.active, IsActive(tt.code))
			assert.Equal(t, tt.stored, Transition(tt.code))
			assert.Equal(t, tt.roster, RosterStatusOf(tt.code))
			assert.Equal(t, tt.submittable, IsKnownStatus(tt.code))
		})
	}
}
