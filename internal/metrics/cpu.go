package metrics

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// IdleUnknown marks an idle percentage that was never observed, as opposed
// to a core that really is 0% idle.
const IdleUnknown = -1.0

// Core is one CPU core's instantaneous percentages.
type Core struct {
	Index  int     `json:"index"`
	User   float64 `json:"user"`
	System float64 `json:"system"`
	Nice   float64 `json:"nice"`
	Idle   float64 `json:"idle"`
	IOWait float64 `json:"iowait"`
	Steal  float64 `json:"steal"`
}

// Usage is 100 minus idle, or 0 when idle is unknown.
func (c Core) Usage() float64 {
	if c.Idle == IdleUnknown {
		return 0
	}
	return 100 - c.Idle
}

// CPUSnapshot is the result of one CPU read: cores, load averages and the
// raw temperature sensor value.
type CPUSnapshot struct {
	Cores []Core `json:"cores"`
	// Load holds the 1, 5 and 15 minute load averages, each at least Epsilon.
	Load [3]float64 `json:"load"`
	// Temperature is the raw sensor value in milli-degrees Celsius.
	Temperature float64 `json:"temperature"`
}

// CPUTotals is the aggregate "%Cpu(s)" row across all cores.
type CPUTotals struct {
	User   float64 `json:"user"`
	System float64 `json:"system"`
	Nice   float64 `json:"nice"`
	Idle   float64 `json:"idle"`
	IOWait float64 `json:"iowait"`
	Steal  float64 `json:"steal"`
}

// Usage is 100 minus idle, or Epsilon when idle is unknown.
func (t CPUTotals) Usage() float64 {
	if t.Idle == IdleUnknown {
		return Epsilon
	}
	return 100 - t.Idle
}

// Tasks is the process count summary from top.
type Tasks struct {
	Total    int `json:"total"`
	Running  int `json:"running"`
	Sleeping int `json:"sleeping"`
	Stopped  int `json:"stopped"`
	Zombie   int `json:"zombie"`
}

// DefaultLoad is the load vector used when no load average was found.
var DefaultLoad = [3]float64{Epsilon, Epsilon, Epsilon}

var (
	// "cpu12:" when top printed the colon; otherwise a lone digit, since
	// with spaces stripped "%Cpu0 5.0 us" reads "cpu05.0us".
	coreHeaderRe = regexp.MustCompile(`^cpu(?:(\d+):|(\d))`)

	userRe   = suffixPattern("us")
	systemRe = suffixPattern("sy")
	niceRe   = suffixPattern("ni")
	idleRe   = suffixPattern("id")
	iowaitRe = suffixPattern("wa")
	stealRe  = suffixPattern("st")

	loadRe = regexp.MustCompile(`loadaverage:` + number + `,` + number + `,` + number)

	tasksTotalRe    = regexp.MustCompile(`(\d+)total`)
	tasksRunningRe  = regexp.MustCompile(`(\d+)running`)
	tasksSleepingRe = regexp.MustCompile(`(\d+)sleeping`)
	tasksStoppedRe  = regexp.MustCompile(`(\d+)stopped`)
	tasksZombieRe   = regexp.MustCompile(`(\d+)zombie`)
)

// ParseCPU combines the three CPU inputs into one snapshot.
func ParseCPU(coresText, summaryText, temperatureText string) CPUSnapshot {
	return CPUSnapshot{
		Cores:       ParseCores(coresText),
		Load:        ParseLoad(summaryText),
		Temperature: ParseTemperature(temperatureText),
	}
}

// ParseCores parses per-core rows from `top -1`. The text is split on "%"
// and every chunk that starts with a cpu<N> header becomes one Core; other
// chunks are dropped. Cores are returned in ascending index order.
func ParseCores(text string) []Core {
	cores := []Core{}
	for _, chunk := range strings.Split(Normalize(text), "%") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		m := coreHeaderRe.FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		idx := m[1]
		if idx == "" {
			idx = m[2]
		}
		index, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}

		body := chunk[len(m[0]):]
		cores = append(cores, Core{
			Index:  index,
			User:   extract(userRe, body, 0),
			System: extract(systemRe, body, 0),
			Nice:   extract(niceRe, body, 0),
			Idle:   extract(idleRe, body, IdleUnknown),
			IOWait: extract(iowaitRe, body, 0),
			Steal:  extract(stealRe, body, 0),
		})
	}
	sort.SliceStable(cores, func(i, j int) bool { return cores[i].Index < cores[j].Index })
	return cores
}

// ParseLoad finds "load average: a, b, c" in the top summary row. Each value
// is floored at Epsilon. Values are in natural units; use GaugeLoad for the
// 0-100 gauge scale.
func ParseLoad(text string) [3]float64 {
	m := loadRe.FindStringSubmatch(Normalize(text))
	if m == nil {
		return DefaultLoad
	}
	var load [3]float64
	for i := range load {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			v = 0
		}
		load[i] = math.Max(Epsilon, v)
	}
	return load
}

// GaugeLoad scales a load average to the gauge convention where 1.0 is 100.
func GaugeLoad(load [3]float64) [3]float64 {
	for i := range load {
		load[i] = math.Max(Epsilon, load[i]) * 100
	}
	return load
}

// ParseTemperature reads a raw hwmon value. Only output that is a single
// number counts: when the glob matches several files (input, crit, max...)
// the reading can't be told apart from a threshold, so it yields 0, which
// means no reading.
func ParseTemperature(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return v
}

// Celsius converts the raw milli-degree reading, rounding down.
func (s CPUSnapshot) Celsius() int {
	return Celsius(s.Temperature)
}

// Fahrenheit converts via Celsius. A Celsius value of exactly 0 means no
// reading and gives 0, not 32.
func (s CPUSnapshot) Fahrenheit() int {
	return Fahrenheit(s.Celsius())
}

// Celsius converts a raw milli-degree reading, rounding down.
func Celsius(raw float64) int {
	return int(math.Floor(raw * 0.001))
}

// Fahrenheit converts whole degrees Celsius using integer arithmetic.
func Fahrenheit(celsius int) int {
	if celsius == 0 {
		return 0
	}
	return celsius*9/5 + 32
}

// TotalIdle is the mean idle percentage across cores, or IdleUnknown with
// no cores.
func (s CPUSnapshot) TotalIdle() float64 {
	if len(s.Cores) == 0 {
		return IdleUnknown
	}
	var sum float64
	for _, c := range s.Cores {
		sum += c.Idle
	}
	return sum / float64(len(s.Cores))
}

// Usage is 100 minus TotalIdle, or Epsilon when idle is unknown.
func (s CPUSnapshot) Usage() float64 {
	idle := s.TotalIdle()
	if idle == IdleUnknown {
		return Epsilon
	}
	return 100 - idle
}

// ParseCPUTotals parses the aggregate "%Cpu(s):" row. Idle defaults to
// IdleUnknown, every other field to 0.
func ParseCPUTotals(text string) CPUTotals {
	s := Normalize(text)
	// `sed -n '/Cpu/p'` can also print per-core rows on some top configs;
	// only the aggregate row is wanted.
	if i := strings.Index(s, "cpu(s)"); i >= 0 {
		s = s[i:]
		if j := strings.IndexAny(s, "\n%"); j >= 0 {
			s = s[:j]
		}
	}
	return CPUTotals{
		User:   extract(userRe, s, 0),
		System: extract(systemRe, s, 0),
		Nice:   extract(niceRe, s, 0),
		Idle:   extract(idleRe, s, IdleUnknown),
		IOWait: extract(iowaitRe, s, 0),
		Steal:  extract(stealRe, s, 0),
	}
}

// ParseTasks parses the "Tasks:" row of top. Missing counts are 0.
func ParseTasks(text string) Tasks {
	s := Normalize(text)
	return Tasks{
		Total:    int(extract(tasksTotalRe, s, 0)),
		Running:  int(extract(tasksRunningRe, s, 0)),
		Sleeping: int(extract(tasksSleepingRe, s, 0)),
		Stopped:  int(extract(tasksStoppedRe, s, 0)),
		Zombie:   int(extract(tasksZombieRe, s, 0)),
	}
}
