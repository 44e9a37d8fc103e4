package vtelemetry

import (
	"os"
	"sync"

	"github.com/vuuvv/errors"
	"github.com/vuuvv/vtelemetry/autopilot"
	"github.com/vuuvv/vtelemetry/core"
	"github.com/vuuvv/vtelemetry/drone"
	"github.com/vuuvv/vtelemetry/gnss"
	"github.com/vuuvv/vtelemetry/inertial"
	"github.com/vuuvv/vtelemetry/log"
	"github.com/vuuvv/vtelemetry/synchronizer"
	"github.com/vuuvv/vtelemetry/utils"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type TimeSeries = core.TimeSeries
type DecodedRecord = core.DecodedRecord
type DecodeStats = core.DecodeStats
type FrameError = core.FrameError
type MessageSchema = core.MessageSchema

type Synchronizer = synchronizer.Synchronizer

var NewSynchronizer = synchronizer.New

type Config struct {
	Log       log.Config       `yaml:"log"`
	Drone     drone.Config     `yaml:"drone"`
	Autopilot autopilot.Config `yaml:"autopilot"`
	Inertial  inertial.Config  `yaml:"inertial"`
	// InertialTable 地址表文件, 为空时使用内置表
	InertialTable string      `yaml:"inertial_table"`
	GNSS          gnss.Config `yaml:"gnss"`

	table *inertial.AddressTable
}

func DefaultConfig() *Config {
	c := &Config{}
	if err := c.Setup(); err != nil {
		panic(err)
	}
	return c
}

func NewConfigFromBytes(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := c.Setup(); err != nil {
		return nil, err
	}
	return c, nil
}

func NewConfigFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.SourceOpenError(err, path)
	}
	defer func() {
		_ = f.Close()
	}()
	c := &Config{}
	if err = yaml.NewDecoder(f).Decode(c); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if err = c.Setup(); err != nil {
		return nil, err
	}
	return c, nil
}

// Setup 填充默认值并校验, 同时加载惯导地址表
func (c *Config) Setup() (err error) {
	c.Log.Setup()
	c.Drone.Setup()
	c.Autopilot.Setup()
	c.Inertial.Setup()
	c.GNSS.Setup()

	switch c.GNSS.Reference {
	case gnss.PosLLH, gnss.PVT, gnss.VelNED, gnss.Status, gnss.DOP:
	default:
		return errors.Errorf("config: unknown gnss reference %s", c.GNSS.Reference)
	}
	if c.Drone.Clock.OutlierFraction < 0 || c.Drone.Clock.OutlierFraction >= 1 {
		return errors.Errorf("config: drone outlier fraction %v out of [0, 1)", c.Drone.Clock.OutlierFraction)
	}

	if c.InertialTable == "" {
		c.table = inertial.DefaultAddressTable()
		return nil
	}
	c.table, err = inertial.LoadAddressTable(c.InertialTable)
	return err
}

// Setup 按配置安装全局 logger
func Setup(c *Config) error {
	logger, err := log.New(c.Log)
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	return nil
}

type Job struct {
	Protocol string `yaml:"protocol"`
	Path     string `yaml:"path"`
}

type JobResult struct {
	Job       Job
	Drone     *drone.Result
	Autopilot *autopilot.Result
	Inertial  *inertial.Result
	GNSS      *gnss.Result
	Err       error
}

func (r *JobResult) Stats() *core.DecodeStats {
	switch {
	case r.Drone != nil:
		return r.Drone.Stats
	case r.Autopilot != nil:
		return r.Autopilot.Stats
	case r.Inertial != nil:
		return r.Inertial.Stats
	case r.GNSS != nil:
		return r.GNSS.Stats
	}
	return nil
}

var Protocols = []string{drone.Protocol, autopilot.Protocol, inertial.Protocol, gnss.Protocol}

// Decode 按协议解码一个文件
func (c *Config) Decode(job Job) (result JobResult) {
	result.Job = job
	result.Err = utils.SafeCall(func() (err error) {
		switch job.Protocol {
		case drone.Protocol:
			result.Drone, err = drone.NewDecoder(c.Drone).DecodeFile(job.Path)
		case autopilot.Protocol:
			result.Autopilot, err = autopilot.NewDecoder(c.Autopilot).DecodeFile(job.Path)
		case inertial.Protocol:
			result.Inertial, err = inertial.NewDecoder(c.Inertial, c.table).DecodeFile(job.Path)
		case gnss.Protocol:
			result.GNSS, err = gnss.NewDecoder(c.GNSS).DecodeFile(job.Path)
		default:
			err = errors.Errorf("unknown protocol %q, want one of %v", job.Protocol, Protocols)
		}
		return err
	})
	return
}

// DecodeAll 并行解码互不相关的文件, 结果与 jobs 一一对应
func (c *Config) DecodeAll(jobs []Job) []JobResult {
	results := make([]JobResult, len(jobs))
	var wg sync.WaitGroup
	for i, job := range jobs {
		i, job := i, job
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Decode(job)
			if results[i].Err != nil {
				log.Error(results[i].Err, zap.String("protocol", job.Protocol), zap.String("path", job.Path))
			}
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Debug("decode jobs finished", zap.Int("jobs", len(jobs)), zap.Int("failed", failed))
	return results
}
