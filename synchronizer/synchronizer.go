// Package synchronizer resamples decoded time series from several sources onto
// one uniform time grid.
package synchronizer

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/log"
	"go.uber.org/zap"
)

const (
	ColumnTimestamp = "timestamp"
	TableName       = "synchronized"

	// 网格点数和速率比较时容忍的浮点误差
	rateTolerance = 1e-9
	gridTolerance = 1e-9
)

var (
	ErrNoOverlap     = errors.New("no overlapping time range")
	ErrRateTooHigh   = errors.New("target rate exceeds source rate")
	ErrInvalidRate   = errors.New("invalid target rate")
	ErrNoSources     = errors.New("no sources")
	ErrUnknownSource = errors.New("unknown source")
	ErrEmptySource   = errors.New("empty source")
	ErrMissingColumn = errors.New("missing column")
)

// Source 一个已登记的数据源, Series 只读
type Source struct {
	Name       string
	Prefix     string // 输出列名前缀, 默认为 Name
	Series     *core.TimeSeries
	TimeColumn string
	Fields     []string
}

type Info struct {
	Name     string
	Samples  int
	Duration float64
	Rate     float64
	Start    float64
	End      float64
	Columns  []string
}

type Synchronizer struct {
	sources map[string]*Source
	order   []string
}

func New() *Synchronizer {
	return &Synchronizer{sources: make(map[string]*Source)}
}

// AddSource 登记数据源, fields 为空时取时间列以外的所有数值列. 同名数据源会被替换
func (this *Synchronizer) AddSource(name string, series *core.TimeSeries, timeColumn string, fields ...string) error {
	return this.AddSourceWithPrefix(name, name, series, timeColumn, fields...)
}

// AddSourceWithPrefix 同 AddSource, 输出列名为 {prefix}_{列}
func (this *Synchronizer) AddSourceWithPrefix(name, prefix string, series *core.TimeSeries, timeColumn string, fields ...string) error {
	if name == "" {
		return errors.New("source name is empty")
	}
	if prefix == "" {
		prefix = name
	}
	if timeColumn == "" {
		timeColumn = ColumnTimestamp
	}
	if series == nil || series.Len() == 0 {
		return errors.Wrapf(ErrEmptySource, "source %s", name)
	}
	if !series.Has(timeColumn) || series.IsText(timeColumn) {
		return errors.Wrapf(ErrMissingColumn, "source %s: time column %s", name, timeColumn)
	}
	for _, f := range fields {
		if !series.Has(f) {
			return errors.Wrapf(ErrMissingColumn, "source %s: column %s", name, f)
		}
	}

	if _, ok := this.sources[name]; ok {
		log.Debug("source replaced", zap.String("source", name))
	} else {
		this.order = append(this.order, name)
	}
	this.sources[name] = &Source{
		Name:       name,
		Prefix:     prefix,
		Series:     series,
		TimeColumn: timeColumn,
		Fields:     append([]string(nil), fields...),
	}
	log.Debug("source added", zap.String("source", name), zap.Int("samples", series.Len()), zap.String("time", timeColumn))
	return nil
}

func (this *Synchronizer) RemoveSource(name string) error {
	if _, ok := this.sources[name]; !ok {
		return errors.Wrapf(ErrUnknownSource, "source %s", name)
	}
	delete(this.sources, name)
	for i, n := range this.order {
		if n == name {
			this.order = append(this.order[:i:i], this.order[i+1:]...)
			break
		}
	}
	return nil
}

func (this *Synchronizer) Sources() []string {
	return append([]string(nil), this.order...)
}

// columns 参与同步的列, 文本列跳过
func (this *Source) columns() []string {
	names := this.Fields
	if len(names) == 0 {
		names = this.Series.Names()
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == this.TimeColumn || this.Series.IsText(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (this *Source) info() (Info, error) {
	times, err := this.Series.Column(this.TimeColumn)
	if err != nil {
		return Info{}, err
	}
	info := Info{Name: this.Name, Start: math.Inf(1), End: math.Inf(-1), Columns: this.columns()}
	for _, t := range times {
		if math.IsNaN(t) {
			continue
		}
		info.Samples++
		info.Start = math.Min(info.Start, t)
		info.End = math.Max(info.End, t)
	}
	if info.Samples == 0 {
		return Info{}, errors.Wrapf(ErrEmptySource, "source %s: no valid time", this.Name)
	}
	info.Duration = info.End - info.Start
	if info.Duration > 0 {
		info.Rate = float64(info.Samples-1) / info.Duration
	}
	return info, nil
}

// SourceInfo 各数据源的样本数, 时长, 隐含采样率与时间范围, 按登记顺序
func (this *Synchronizer) SourceInfo() ([]Info, error) {
	infos := make([]Info, 0, len(this.order))
	for _, name := range this.order {
		info, err := this.sources[name].info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func commonRange(infos []Info) (start, end float64) {
	start, end = math.Inf(-1), math.Inf(1)
	for _, i := range infos {
		start = math.Max(start, i.Start)
		end = math.Min(end, i.End)
	}
	return
}

func maxRate(infos []Info) float64 {
	rate := 0.0
	for _, i := range infos {
		rate = math.Max(rate, i.Rate)
	}
	return rate
}

// CommonRange 所有数据源时间范围的交集, 交集为空时返回 ErrNoOverlap
func (this *Synchronizer) CommonRange() (start, end float64, err error) {
	if len(this.order) == 0 {
		return 0, 0, errors.WithStack(ErrNoSources)
	}
	infos, err := this.SourceInfo()
	if err != nil {
		return 0, 0, err
	}
	start, end = commonRange(infos)
	if start >= end {
		return start, end, errors.Wrapf(ErrNoOverlap, "common range [%f, %f]", start, end)
	}
	return start, end, nil
}

// Synchronize 在公共时间范围内以 rate 生成均匀网格, 对每个数据源的每一列线性插值.
// rate 为 0 时取各数据源中最高的采样率. 输出列为 timestamp 与 {前缀}_{列}
func (this *Synchronizer) Synchronize(rate float64) (*core.TimeSeries, error) {
	if rate < 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil, errors.Wrapf(ErrInvalidRate, "%v", rate)
	}
	if len(this.order) == 0 {
		return nil, errors.WithStack(ErrNoSources)
	}
	infos, err := this.SourceInfo()
	if err != nil {
		return nil, err
	}
	limit := maxRate(infos)
	if rate == 0 {
		rate = limit
		if !(rate > 0) || math.IsInf(rate, 0) {
			return nil, errors.Wrapf(ErrInvalidRate, "source rate %v", rate)
		}
	}
	if rate > limit*(1+rateTolerance) {
		return nil, errors.Wrapf(ErrRateTooHigh, "%.3f Hz > %.3f Hz", rate, limit)
	}
	start, end := commonRange(infos)
	if start >= end {
		return nil, errors.Wrapf(ErrNoOverlap, "common range [%f, %f]", start, end)
	}

	n := int(math.Floor((end-start)*rate+gridTolerance)) + 1
	grid := make([]float64, n)
	for k := range grid {
		grid[k] = start + float64(k)/rate
	}

	names := []string{ColumnTimestamp}
	columns := map[string][]float64{ColumnTimestamp: grid}
	for _, name := range this.order {
		src := this.sources[name]
		times, values, err := src.sorted()
		if err != nil {
			return nil, err
		}
		for _, col := range src.columns() {
			out := fmt.Sprintf("%s_%s", src.Prefix, col)
			if _, dup := columns[out]; dup {
				return nil, errors.Errorf("synchronize: duplicate column %s", out)
			}
			names = append(names, out)
			columns[out] = Interpolate(times, values[col], grid)
		}
	}

	log.Info("synchronized",
		zap.Int("sources", len(this.order)),
		zap.Float64("rate", rate),
		zap.Int("samples", n),
		zap.Float64("duration", end-start),
	)
	return core.NewTimeSeriesFromColumns(TableName, names, columns)
}

// sorted 按时间稳定排序后的副本, 时间为 NaN 的行被丢弃
func (this *Source) sorted() ([]float64, map[string][]float64, error) {
	times, err := this.Series.Column(this.TimeColumn)
	if err != nil {
		return nil, nil, err
	}
	idx := make([]int, 0, len(times))
	for i, t := range times {
		if !math.IsNaN(t) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return times[idx[a]] < times[idx[b]]
	})

	sortedTimes := make([]float64, len(idx))
	for i, j := range idx {
		sortedTimes[i] = times[j]
	}
	values := make(map[string][]float64)
	for _, col := range this.columns() {
		raw, err := this.Series.Column(col)
		if err != nil {
			return nil, nil, err
		}
		v := make([]float64, len(idx))
		for i, j := range idx {
			v[i] = raw[j]
		}
		values[col] = v
	}
	return sortedTimes, values, nil
}

// Interpolate 在升序的 times 上对 values 线性插值, 超出范围为 NaN
func Interpolate(times, values, targets []float64) []float64 {
	out := make([]float64, len(targets))
	last := len(times) - 1
	for i, t := range targets {
		if last < 0 || t < times[0] || t > times[last] || math.IsNaN(t) {
			out[i] = math.NaN()
			continue
		}
		k := sort.SearchFloat64s(times, t)
		if times[k] == t {
			out[i] = values[k]
			continue
		}
		t0, t1 := times[k-1], times[k]
		out[i] = values[k-1] + (values[k]-values[k-1])*(t-t0)/(t1-t0)
	}
	return out
}

// Summary 可读的数据源汇总
func (this *Synchronizer) Summary() string {
	if len(this.order) == 0 {
		return "No data sources added."
	}
	infos, err := this.SourceInfo()
	if err != nil {
		return fmt.Sprintf("Synchronizer: %v", err)
	}

	var b strings.Builder
	rule := strings.Repeat("=", 60)
	b.WriteString("Synchronizer Data Sources Summary\n")
	b.WriteString(rule + "\n")
	for _, i := range infos {
		fmt.Fprintf(&b, "\n%s\n", strings.ToUpper(i.Name))
		fmt.Fprintf(&b, "  Samples: %s\n", humanize.Comma(int64(i.Samples)))
		fmt.Fprintf(&b, "  Duration: %.2f s\n", i.Duration)
		fmt.Fprintf(&b, "  Sample Rate: %.2f Hz\n", i.Rate)
		fmt.Fprintf(&b, "  Time Range: %.3f - %.3f s\n", i.Start, i.End)
		fmt.Fprintf(&b, "  Columns: %s\n", strings.Join(i.Columns, ", "))
	}
	start, end := commonRange(infos)
	b.WriteString("\n" + rule + "\n")
	if start < end {
		fmt.Fprintf(&b, "Common Time Range: %.3f - %.3f s (%.2f s)\n", start, end, end-start)
	} else {
		b.WriteString("Common Time Range: none\n")
	}
	fmt.Fprintf(&b, "Maximum Sample Rate: %.2f Hz", maxRate(infos))
	return b.String()
}
