package gpstime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeapSeconds(t *testing.T) {
	assert.Equal(t, 0, LeapSeconds(1980, time.June))
	assert.Equal(t, 13, LeapSeconds(2005, time.December))
	assert.Equal(t, 14, LeapSeconds(2006, time.January))
	assert.Equal(t, 17, LeapSeconds(2016, time.December))
	assert.Equal(t, 18, LeapSeconds(2017, time.January))
	assert.Equal(t, 18, LeapSeconds(2025, time.May))
}

func TestWeek(t *testing.T) {
	assert.Equal(t, 0, Week(Epoch))
	assert.Equal(t, 1, Week(Epoch.Add(SecondsPerWeek*time.Second)))
	// 2024-01-01 是 GPS 周 2295
	assert.Equal(t, 2295, Week(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestToUTC(t *testing.T) {
	// week 2295, tow 1 天 => 2024-01-01 00:00:00 GPS 的第二天减 18s
	got := ToUTC(2295, 86400*1000)
	want := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC).Add(86400 * time.Second).Add(-18 * time.Second)
	assert.Equal(t, want, got)
	assert.Equal(t, want.Add(18*time.Second), ToUTCWithLeap(2295, 86400*1000, 0))
}
