// Package gpstime converts GPS week/time-of-week to UTC.
package gpstime

import (
	"time"
)

const (
	SecondsPerWeek = 7 * 24 * 3600
	MsPerWeek      = SecondsPerWeek * 1000
)

// Epoch GPS 时间零点
var Epoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

type leap struct {
	since   time.Time
	seconds int
}

// GPS - UTC 的闰秒历史
var leaps = []leap{
	{time.Date(1981, 7, 1, 0, 0, 0, 0, time.UTC), 1},
	{time.Date(1982, 7, 1, 0, 0, 0, 0, time.UTC), 2},
	{time.Date(1983, 7, 1, 0, 0, 0, 0, time.UTC), 3},
	{time.Date(1985, 7, 1, 0, 0, 0, 0, time.UTC), 4},
	{time.Date(1988, 1, 1, 0, 0, 0, 0, time.UTC), 5},
	{time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 6},
	{time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), 7},
	{time.Date(1992, 7, 1, 0, 0, 0, 0, time.UTC), 8},
	{time.Date(1993, 7, 1, 0, 0, 0, 0, time.UTC), 9},
	{time.Date(1994, 7, 1, 0, 0, 0, 0, time.UTC), 10},
	{time.Date(1996, 1, 1, 0, 0, 0, 0, time.UTC), 11},
	{time.Date(1997, 7, 1, 0, 0, 0, 0, time.UTC), 12},
	{time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 13},
	{time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC), 14},
	{time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC), 15},
	{time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC), 16},
	{time.Date(2015, 7, 1, 0, 0, 0, 0, time.UTC), 17},
	{time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC), 18},
}

// LeapSeconds 返回 (year, month) 当月 GPS 领先 UTC 的秒数
func LeapSeconds(year int, month time.Month) int {
	at := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	for _, l := range leaps {
		if at.Before(l.since) {
			break
		}
		n = l.seconds
	}
	return n
}

// LeapSecondsAt 按 t 所在的月份查表
func LeapSecondsAt(t time.Time) int {
	t = t.UTC()
	return LeapSeconds(t.Year(), t.Month())
}

// Week 返回 t 所在的 GPS 周
func Week(t time.Time) int {
	d := t.UTC().Sub(Epoch)
	if d < 0 {
		return 0
	}
	return int(d / (SecondsPerWeek * time.Second))
}

// ToUTC GPS 周 + 周内毫秒转换为 UTC, 闰秒由结果所在月份决定
func ToUTC(week int, towMs float64) time.Time {
	gps := Epoch.Add(time.Duration(week) * SecondsPerWeek * time.Second).
		Add(time.Duration(towMs * float64(time.Millisecond)))
	return gps.Add(-time.Duration(LeapSecondsAt(gps)) * time.Second)
}

// ToUTCWithLeap 使用给定的闰秒数转换
func ToUTCWithLeap(week int, towMs float64, leapSeconds int) time.Time {
	gps := Epoch.Add(time.Duration(week) * SecondsPerWeek * time.Second).
		Add(time.Duration(towMs * float64(time.Millisecond)))
	return gps.Add(-time.Duration(leapSeconds) * time.Second)
}

// Unix 秒, 带小数
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
