package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDay(t *testing.T) {
	p := DailyPrice{Date: time.Date(2026, 8, 27, 15, 30, 45, 0, time.FixedZone("JST", 9*3600))}
	assert.Equal(t, time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), p.Day())
}

func TestHasCorporateAction(t *testing.T) {
	tests := []struct {
		name  string
		price DailyPrice
		want  bool
	}{
		{"no metadata", DailyPrice{}, false},
		{"unity split", DailyPrice{SplitFactor: 1}, false},
		{"real split", DailyPrice{SplitFactor: 4}, true},
		{"reverse split", DailyPrice{SplitFactor: 0.25}, true},
		{"dividend", DailyPrice{SplitFactor: 1, DivCash: 0.25}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.price.HasCorporateAction())
		})
	}
}
