package api

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rileyhilliard/rackwatch/internal/metrics"
	"github.com/rileyhilliard/rackwatch/internal/poller"
)

const namespace = "rackwatch"

// Collector exposes the store's last known values as Prometheus metrics.
// Only fields that have been observed are emitted.
type Collector struct {
	registry *poller.Registry

	hostUp          *prometheus.Desc
	hostLoaded      *prometheus.Desc
	cpuUsage        *prometheus.Desc
	coreUsage       *prometheus.Desc
	load            *prometheus.Desc
	temperature     *prometheus.Desc
	tasks           *prometheus.Desc
	memory          *prometheus.Desc
	swap            *prometheus.Desc
	networkBytes    *prometheus.Desc
	diskSectors     *prometheus.Desc
	filesystemUsage *prometheus.Desc
}

// NewCollector creates a collector over every host in reg.
func NewCollector(reg *poller.Registry) *Collector {
	host := []string{"host", "name"}
	desc := func(name, help string, extra ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, append(append([]string{}, host...), extra...), nil)
	}
	return &Collector{
		registry:        reg,
		hostUp:          desc("host_up", "1 when the host is being polled"),
		hostLoaded:      desc("host_loaded", "1 once a full poll cycle has succeeded"),
		cpuUsage:        desc("cpu_usage_percent", "Aggregate CPU busy percentage"),
		coreUsage:       desc("cpu_core_usage_percent", "Per-core CPU busy percentage", "core"),
		load:            desc("load_average", "Load average", "window"),
		temperature:     desc("temperature_celsius", "First hardware sensor reading"),
		tasks:           desc("tasks", "Process counts by state", "state"),
		memory:          desc("memory_mebibytes", "Physical memory", "kind"),
		swap:            desc("swap_mebibytes", "Swap space", "kind"),
		networkBytes:    desc("network_bytes_total", "Bytes transferred since boot", "interface", "direction"),
		diskSectors:     desc("disk_sectors_total", "Sectors transferred since boot", "device", "direction"),
		filesystemUsage: desc("filesystem_used_percent", "Filesystem usage", "filesystem", "mountpoint"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.hostUp, c.hostLoaded, c.cpuUsage, c.coreUsage, c.load, c.temperature,
		c.tasks, c.memory, c.swap, c.networkBytes, c.diskSectors, c.filesystemUsage,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.registry.Store()
	for _, p := range c.registry.Pollers() {
		h := p.Host()
		labels := []string{h.ID, h.Label()}
		gauge := func(d *prometheus.Desc, v float64, extra ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, append(append([]string{}, labels...), extra...)...)
		}
		counter := func(d *prometheus.Desc, v float64, extra ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, append(append([]string{}, labels...), extra...)...)
		}

		gauge(c.hostUp, boolValue(p.State() == poller.Active))

		e, ok := st.Get(h.ID)
		if !ok {
			gauge(c.hostLoaded, 0)
			continue
		}
		gauge(c.hostLoaded, boolValue(e.Loaded))

		if v, ok := e.CPUUsage.Get(); ok && v != metrics.Epsilon {
			gauge(c.cpuUsage, v)
		}
		if cores, ok := e.Cores.Get(); ok {
			for _, core := range cores {
				if core.Idle == metrics.IdleUnknown {
					continue
				}
				gauge(c.coreUsage, core.Usage(), strconv.Itoa(core.Index))
			}
		}
		if l, ok := e.Load.Get(); ok {
			gauge(c.load, l[0], "1m")
			gauge(c.load, l[1], "5m")
			gauge(c.load, l[2], "15m")
		}
		if v, ok := e.Celsius.Get(); ok && v != 0 {
			gauge(c.temperature, float64(v))
		}
		if t, ok := e.Tasks.Get(); ok {
			gauge(c.tasks, float64(t.Total), "total")
			gauge(c.tasks, float64(t.Running), "running")
			gauge(c.tasks, float64(t.Sleeping), "sleeping")
			gauge(c.tasks, float64(t.Stopped), "stopped")
			gauge(c.tasks, float64(t.Zombie), "zombie")
		}
		if m, ok := e.Memory.Get(); ok {
			gauge(c.memory, m.Total, "total")
			gauge(c.memory, m.Free, "free")
			gauge(c.memory, m.Used, "used")
			gauge(c.memory, m.Cache, "cache")
		}
		if s, ok := e.Swap.Get(); ok {
			gauge(c.swap, s.Total, "total")
			gauge(c.swap, s.Free, "free")
			gauge(c.swap, s.Used, "used")
		}
		if ifaces, ok := e.NetworkDevices.Get(); ok {
			for _, i := range ifaces {
				counter(c.networkBytes, float64(i.Down), i.Name, "down")
				counter(c.networkBytes, float64(i.Up), i.Name, "up")
			}
		}
		if devices, ok := e.DeviceIOs.Get(); ok {
			for _, d := range devices {
				counter(c.diskSectors, float64(d.Reads), d.Name, "read")
				counter(c.diskSectors, float64(d.Writes), d.Name, "write")
			}
		}
		if mounts, ok := e.StorageDevices.Get(); ok {
			for _, m := range mounts {
				gauge(c.filesystemUsage, float64(m.PercentUsed), m.FileSystem, m.MountedOn)
			}
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
