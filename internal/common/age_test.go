package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{42 * time.Second, "42s"},
		{59*time.Second + 900*time.Millisecond, "59s"},
		{time.Minute, "1m"},
		{12*time.Minute + 30*time.Second, "12m"},
		{5*time.Hour + 59*time.Minute, "5h"},
		{23*time.Hour + 59*time.Minute + 59*time.Second, "23h"},
		{24 * time.Hour, "1d"},
		{3*24*time.Hour + 2*time.Hour, "3d"},
		{7 * 24 * time.Hour, "1w"},
		{20 * 24 * time.Hour, "2w"},
		{0, "0s"},
		{-time.Hour, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAge(now.Add(-tt.elapsed), now))
		})
	}
}
