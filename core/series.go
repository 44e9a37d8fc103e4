package core

import (
	"math"

	"github.com/vuuvv/errors"
)

type column struct {
	text   bool
	values []float64
	texts  []string
}

func (c *column) clone() *column {
	return &column{text: c.text, values: c.values, texts: c.texts}
}

// TimeSeries 同一 schema 的记录, 按读入顺序保存, 以列的形式访问
type TimeSeries struct {
	Name    string
	records []*DecodedRecord
	names   []string
	columns map[string]*column
}

func NewTimeSeries(name string) *TimeSeries {
	return &TimeSeries{Name: name, columns: make(map[string]*column)}
}

func (s *TimeSeries) Len() int {
	if s == nil {
		return 0
	}
	if len(s.records) > 0 {
		return len(s.records)
	}
	for _, c := range s.columns {
		if c.text {
			return len(c.texts)
		}
		return len(c.values)
	}
	return 0
}

func (s *TimeSeries) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *TimeSeries) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

func (s *TimeSeries) Records() []*DecodedRecord {
	return s.records
}

func (s *TimeSeries) Record(i int) *DecodedRecord {
	return s.records[i]
}

func (s *TimeSeries) addColumn(name string, text bool, n int) *column {
	c := &column{text: text}
	if text {
		c.texts = make([]string, n)
	} else {
		c.values = make([]float64, n)
		for i := range c.values {
			c.values[i] = math.NaN()
		}
	}
	s.columns[name] = c
	s.names = append(s.names, name)
	return c
}

// Append 追加一条记录, 新出现的列之前的行补 NaN
func (s *TimeSeries) Append(rec *DecodedRecord) {
	n := len(s.records)
	seen := make(map[string]bool, len(rec.Names)+1)
	for i, name := range rec.Names {
		v := rec.Values[i]
		c, ok := s.columns[name]
		if !ok {
			c = s.addColumn(name, v.Kind() == KindText, n)
		}
		if c.text {
			c.texts = append(c.texts, v.String())
		} else {
			c.values = append(c.values, v.Float64())
		}
		seen[name] = true
	}
	if rec.HasTick {
		c, ok := s.columns["tick"]
		if !ok {
			c = s.addColumn("tick", false, n)
		}
		if !seen["tick"] {
			c.values = append(c.values, float64(rec.Tick))
			seen["tick"] = true
		}
	}
	for name, c := range s.columns {
		if seen[name] {
			continue
		}
		if c.text {
			c.texts = append(c.texts, "")
		} else {
			c.values = append(c.values, math.NaN())
		}
	}
	s.records = append(s.records, rec)
}

// Column 返回数值列的副本
func (s *TimeSeries) Column(name string) ([]float64, error) {
	c, ok := s.columns[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "series %s has no column %s", s.Name, name)
	}
	if c.text {
		return nil, errors.Wrapf(ErrBadValue, "series %s column %s is text", s.Name, name)
	}
	return append([]float64(nil), c.values...), nil
}

func (s *TimeSeries) TextColumn(name string) ([]string, error) {
	c, ok := s.columns[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "series %s has no column %s", s.Name, name)
	}
	if !c.text {
		return nil, errors.Wrapf(ErrBadValue, "series %s column %s is numeric", s.Name, name)
	}
	return append([]string(nil), c.texts...), nil
}

func (s *TimeSeries) IsText(name string) bool {
	c, ok := s.columns[name]
	return ok && c.text
}

func (s *TimeSeries) shallow() *TimeSeries {
	out := &TimeSeries{
		Name:    s.Name,
		records: s.records,
		names:   append([]string(nil), s.names...),
		columns: make(map[string]*column, len(s.columns)),
	}
	for k, c := range s.columns {
		out.columns[k] = c.clone()
	}
	return out
}

// WithColumn 返回增加(或替换)一个数值列后的新序列, 原序列不变
func (s *TimeSeries) WithColumn(name string, values []float64) (*TimeSeries, error) {
	if len(values) != s.Len() {
		return nil, errors.Errorf("series %s: column %s has %d values, want %d", s.Name, name, len(values), s.Len())
	}
	out := s.shallow()
	if _, ok := out.columns[name]; !ok {
		out.names = append(out.names, name)
	}
	out.columns[name] = &column{values: append([]float64(nil), values...)}
	return out, nil
}

// Filter 返回只保留 keep[i] 为 true 的行的新序列
func (s *TimeSeries) Filter(keep []bool) *TimeSeries {
	out := &TimeSeries{
		Name:    s.Name,
		names:   append([]string(nil), s.names...),
		columns: make(map[string]*column, len(s.columns)),
	}
	for i, ok := range keep {
		if ok && i < len(s.records) {
			out.records = append(out.records, s.records[i])
		}
	}
	for k, c := range s.columns {
		nc := &column{text: c.text}
		for i, ok := range keep {
			if !ok {
				continue
			}
			if c.text && i < len(c.texts) {
				nc.texts = append(nc.texts, c.texts[i])
			} else if !c.text && i < len(c.values) {
				nc.values = append(nc.values, c.values[i])
			}
		}
		out.columns[k] = nc
	}
	return out
}

// Rename 返回列名经 mapping 改写后的新序列
func (s *TimeSeries) Rename(mapping map[string]string) *TimeSeries {
	out := s.shallow()
	out.columns = make(map[string]*column, len(s.columns))
	for i, n := range s.names {
		name := n
		if m, ok := mapping[n]; ok {
			name = m
		}
		out.names[i] = name
		out.columns[name] = s.columns[n].clone()
	}
	return out
}

// NewTimeSeriesFromColumns 由数值列直接构造序列, 各列长度必须一致
func NewTimeSeriesFromColumns(name string, names []string, values map[string][]float64) (*TimeSeries, error) {
	s := NewTimeSeries(name)
	n := -1
	for _, k := range names {
		v, ok := values[k]
		if !ok {
			return nil, errors.Errorf("series %s: missing column %s", name, k)
		}
		if n >= 0 && len(v) != n {
			return nil, errors.Errorf("series %s: column %s has %d values, want %d", name, k, len(v), n)
		}
		n = len(v)
		if _, dup := s.columns[k]; dup {
			return nil, errors.Errorf("series %s: duplicate column %s", name, k)
		}
		s.columns[k] = &column{values: append([]float64(nil), v...)}
		s.names = append(s.names, k)
	}
	return s, nil
}
