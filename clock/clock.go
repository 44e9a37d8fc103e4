// Package clock fits the linear mapping from a device tick counter to wall-clock seconds.
package clock

import (
	"math"
	"sort"

	"github.com/vuuvv/errors"
)

var ErrInsufficientPoints = errors.New("insufficient points for clock fit")

type Config struct {
	// FreshGap 只使用与前一条记录时间差大于该值的点, <= 0 时使用全部点
	FreshGap float64 `yaml:"fresh_gap"`
	// OutlierFraction 按残差绝对值剔除的最大比例
	OutlierFraction float64 `yaml:"outlier_fraction"`
}

func DefaultConfig() Config {
	return Config{FreshGap: 0.7, OutlierFraction: 0.01}
}

// Model time = Slope * tick + Intercept
type Model struct {
	Slope     float64
	Intercept float64
	Points    int // 参与拟合的点数
	Trimmed   int // 被剔除的离群点数
}

func (m *Model) Time(tick float64) float64 {
	return m.Slope*tick + m.Intercept
}

func (m *Model) Apply(ticks []float64) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = m.Time(t)
	}
	return out
}

// Rate tick 频率, 单位 Hz
func (m *Model) Rate() float64 {
	if m.Slope == 0 {
		return math.Inf(1)
	}
	return 1 / m.Slope
}

// Fresh 返回时间戳相对前一条记录跳变超过 gap 的下标, 第一条记录没有前驱, 不算
func Fresh(times []float64, gap float64) []int {
	var idx []int
	for i := 1; i < len(times); i++ {
		if times[i]-times[i-1] > gap {
			idx = append(idx, i)
		}
	}
	return idx
}

// Fit 最小二乘拟合 tick -> time, 剔除残差最大的点后重新计算截距
func Fit(ticks, times []float64, cfg Config) (*Model, error) {
	if len(ticks) != len(times) {
		return nil, errors.Errorf("clock.Fit: %d ticks vs %d times", len(ticks), len(times))
	}

	var candidates []int
	if cfg.FreshGap > 0 {
		candidates = Fresh(times, cfg.FreshGap)
	} else {
		candidates = make([]int, len(times))
		for i := range times {
			candidates[i] = i
		}
	}

	xs := make([]float64, 0, len(candidates))
	ys := make([]float64, 0, len(candidates))
	for _, i := range candidates {
		if isFinite(ticks[i]) && isFinite(times[i]) {
			xs = append(xs, ticks[i])
			ys = append(ys, times[i])
		}
	}
	if len(xs) < 2 {
		return nil, errors.Wrapf(ErrInsufficientPoints, "%d fresh points", len(xs))
	}

	slope, intercept, ok := ols(xs, ys)
	if !ok {
		return nil, errors.Wrapf(ErrInsufficientPoints, "all %d ticks identical", len(xs))
	}

	type residual struct {
		idx int
		abs float64
	}
	residuals := make([]residual, len(xs))
	for i := range xs {
		residuals[i] = residual{i, math.Abs(ys[i] - (slope*xs[i] + intercept))}
	}
	sort.SliceStable(residuals, func(a, b int) bool { return residuals[a].abs > residuals[b].abs })

	trim := int(math.Floor(float64(len(xs)) * cfg.OutlierFraction))
	if trim > len(xs)-2 {
		trim = len(xs) - 2
	}
	if trim < 0 {
		trim = 0
	}

	// 斜率保持不变, 去掉 |残差| 最大的 trim 个点后, 截距取其余点 y - slope*x 的均值.
	// 不是按带符号残差最大的一批点整体平移
	var sum float64
	for _, r := range residuals[trim:] {
		sum += ys[r.idx] - slope*xs[r.idx]
	}
	kept := len(xs) - trim

	return &Model{
		Slope:     slope,
		Intercept: sum / float64(kept),
		Points:    kept,
		Trimmed:   trim,
	}, nil
}

func ols(xs, ys []float64) (slope, intercept float64, ok bool) {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= n
	my /= n

	var sxy, sxx float64
	for i := range xs {
		dx := xs[i] - mx
		sxy += dx * (ys[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, 0, false
	}
	slope = sxy / sxx
	return slope, my - slope*mx, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
