package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func snap(title string, price float64, at time.Time) domain.MarketSnapshot {
	return domain.MarketSnapshot{DisplayTitle: title, YesPrice: price, ObservedAt: at}
}

func TestGroupByTitle(t *testing.T) {
	t0 := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)

	groups, span := groupByTitle([]domain.MarketSnapshot{
		snap("Trillion", 0.95, t1),
		snap("Trillion", 0.40, t0),
		snap("Hoax", 0.10, t0),
	})
	assert.True(t, span)
	require.Len(t, groups["Trillion"], 2)
	assert.Equal(t, 0.40, groups["Trillion"][0].YesPrice)

	_, span = groupByTitle([]domain.MarketSnapshot{snap("A", 0.1, t0), snap("B", 0.2, t0)})
	assert.False(t, span)

	_, span = groupByTitle(nil)
	assert.False(t, span)
}

func TestPriceHistory(t *testing.T) {
	t0 := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	r := NewRenderer()

	tests := []struct {
		name    string
		history []domain.MarketSnapshot
	}{
		{"series", []domain.MarketSnapshot{
			snap("Trillion", 0.40, t0),
			snap("Trillion", 0.95, t0.Add(time.Hour)),
			snap("Hoax", 0.10, t0),
			snap("Hoax", 0.05, t0.Add(time.Hour)),
		}},
		{"single batch", []domain.MarketSnapshot{snap("Trillion", 0.40, t0)}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := r.PriceHistory("KXTRUMPMENTION-26FEB28", tt.history)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(img, pngMagic))
		})
	}
}
