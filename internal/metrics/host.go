package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
)

// hostStat reads one host gauge. ok is false when the value is unavailable.
type hostStat struct {
	name    string
	desc    *prometheus.Desc
	collect func(ctx context.Context) (value float64, ok bool, err error)
}

// hostCollector reports the load of the machine running the process, read
// on every scrape.
type hostCollector struct {
	stats   []hostStat
	timeout time.Duration
	logger  zerolog.Logger
}

func newHostCollector(diskPath string, logger zerolog.Logger) *hostCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", name), help, nil, nil)
	}

	return &hostCollector{
		timeout: 2 * time.Second,
		logger:  logger,
		stats: []hostStat{
			{
				name: "cpu_percent",
				desc: desc("cpu_percent", "Percentage of CPU utilization across all cores."),
				collect: func(ctx context.Context) (float64, bool, error) {
					percentages, err := cpu.PercentWithContext(ctx, 0, false)
					if err != nil || len(percentages) == 0 {
						return 0, false, err
					}
					return percentages[0], true, nil
				},
			},
			{
				name: "memory_used_percent",
				desc: desc("memory_used_percent", "Percentage of used virtual memory."),
				collect: func(ctx context.Context) (float64, bool, error) {
					stats, err := mem.VirtualMemoryWithContext(ctx)
					if err != nil {
						return 0, false, err
					}
					return stats.UsedPercent, true, nil
				},
			},
			{
				name: "disk_used_percent",
				desc: desc("disk_used_percent", "Percentage of disk space used on the data filesystem."),
				collect: func(ctx context.Context) (float64, bool, error) {
					stats, err := disk.UsageWithContext(ctx, diskPath)
					if err != nil {
						return 0, false, err
					}
					return stats.UsedPercent, true, nil
				},
			},
			{
				name: "load1",
				desc: desc("load1", "One minute load average."),
				collect: func(ctx context.Context) (float64, bool, error) {
					if runtime.GOOS == "windows" {
						return 0, false, nil
					}
					avg, err := load.AvgWithContext(ctx)
					if err != nil {
						return 0, false, err
					}
					return avg.Load1, true, nil
				},
			},
		},
	}
}

func (c *hostCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, s := range c.stats {
		ch <- s.desc
	}
}

func (c *hostCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	for _, s := range c.stats {
		value, ok, err := s.collect(ctx)
		if err != nil {
			c.logger.Error().Err(err).Str("metric", s.name).Msg("Failed to collect host metric")
			continue
		}
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(s.desc, prometheus.GaugeValue, value)
	}
}

// RegisterHostCollector adds CPU, memory, disk and load gauges for the
// local machine. diskPath defaults to the root filesystem.
func (m *Metrics) RegisterHostCollector(diskPath string, logger zerolog.Logger) error {
	if m == nil {
		return nil
	}
	if diskPath == "" {
		diskPath = "/"
	}
	return m.registry.Register(newHostCollector(diskPath, logger))
}
