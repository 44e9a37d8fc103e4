package gnss

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/log"
	"go.uber.org/zap"
)

const MergedName = "NAV"

// Prefix NAV-VELNED -> velned
func Prefix(subtype string) string {
	return strings.ToLower(strings.TrimPrefix(subtype, "NAV-"))
}

// Merge 对 reference 的每个时间点, 取其它子类型在该时间点及之前的最后一条记录.
// 列名为 {子类型}_{字段}, 空的子类型不参与合并
func Merge(series map[string]*core.TimeSeries, reference string) (*core.TimeSeries, error) {
	ref, ok := series[reference]
	if !ok || ref.Len() == 0 {
		log.Warn("merge reference is empty", zap.String("reference", reference))
		return core.NewTimeSeries(MergedName), nil
	}
	times, err := ref.Column(ColumnTimestamp)
	if err != nil {
		return nil, err
	}

	names := []string{ColumnTimestamp}
	columns := map[string][]float64{ColumnTimestamp: times}
	for _, subtype := range mergeOrder(series, reference) {
		s := series[subtype]
		if s.Len() == 0 {
			continue
		}
		stamps, err := s.Column(ColumnTimestamp)
		if err != nil {
			return nil, err
		}
		var rows []int
		if subtype == reference {
			rows = make([]int, len(times))
			for i := range rows {
				rows[i] = i
			}
		} else {
			rows = precedingRows(stamps, times)
		}
		for _, field := range s.Names() {
			if field == ColumnTimestamp || s.IsText(field) {
				continue
			}
			values, err := s.Column(field)
			if err != nil {
				return nil, err
			}
			out := make([]float64, len(rows))
			for i, row := range rows {
				if row < 0 {
					out[i] = math.NaN()
				} else {
					out[i] = values[row]
				}
			}
			name := Prefix(subtype) + "_" + field
			if _, dup := columns[name]; dup {
				return nil, errors.Errorf("merge: duplicate column %s", name)
			}
			names = append(names, name)
			columns[name] = out
		}
	}
	return core.NewTimeSeriesFromColumns(MergedName, names, columns)
}

// mergeOrder 基准在前, 已知子类型按固定顺序, 其余按名称
func mergeOrder(series map[string]*core.TimeSeries, reference string) []string {
	order := []string{reference}
	var rest []string
	for name := range series {
		if name != reference && !slices.Contains(subtypeOrder, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range append(slices.Clone(subtypeOrder), rest...) {
		if _, ok := series[name]; ok && name != reference {
			order = append(order, name)
		}
	}
	return order
}

// precedingRows 对每个 target 返回 stamps 中不晚于它的最后一行, 没有时为 -1
func precedingRows(stamps, targets []float64) []int {
	idx := make([]int, 0, len(stamps))
	for i, t := range stamps {
		if isFinite(t) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return stamps[idx[a]] < stamps[idx[b]]
	})

	rows := make([]int, len(targets))
	for i, t := range targets {
		k := sort.Search(len(idx), func(j int) bool {
			return stamps[idx[j]] > t
		})
		if k == 0 {
			rows[i] = -1
		} else {
			rows[i] = idx[k-1]
		}
	}
	return rows
}
