package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample output from: top -1bcn1 -w512 | sed -n '/^%Cpu/p'
const topCoresOutput = `%Cpu0  :  5.9 us,  2.0 sy,  0.0 ni, 90.1 id,  1.0 wa,  0.0 hi,  1.0 si,  0.0 st
%Cpu1  : 12.5 us,  6.2 sy,  0.5 ni, 80.0 id,  0.3 wa,  0.0 hi,  0.0 si,  0.5 st
%Cpu10 :100.0 us,  0.0 sy,  0.0 ni,  0.0 id,  0.0 wa,  0.0 hi,  0.0 si,  0.0 st
`

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  MiB Mem :   7951.3 total  ", "mibmem:7951.3total"},
		{"\tA b\tC\n", "abc"},
		{"line one\nline two", "lineone\nlinetwo"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestParseCores(t *testing.T) {
	t.Run("single core without colon", func(t *testing.T) {
		cores := ParseCores("%cpu0 5.0us,2.0sy,1.0ni,90.0id,1.0wa,1.0st")

		require.Len(t, cores, 1)
		assert.Equal(t, Core{Index: 0, User: 5.0, System: 2.0, Nice: 1.0, Idle: 90.0, IOWait: 1.0, Steal: 1.0}, cores[0])
	})

	t.Run("top output", func(t *testing.T) {
		cores := ParseCores(topCoresOutput)

		require.Len(t, cores, 3)
		assert.Equal(t, Core{Index: 0, User: 5.9, System: 2.0, Nice: 0.0, Idle: 90.1, IOWait: 1.0, Steal: 0.0}, cores[0])
		assert.Equal(t, 1, cores[1].Index)
		assert.Equal(t, 0.5, cores[1].Steal)
		assert.Equal(t, 10, cores[2].Index)
		assert.Equal(t, 100.0, cores[2].User)
		assert.Equal(t, 0.0, cores[2].Idle, "observed zero idle is not the unknown sentinel")
	})

	t.Run("ascending order", func(t *testing.T) {
		cores := ParseCores("%Cpu3 : 1.0 id %Cpu1 : 2.0 id %Cpu2 : 3.0 id")

		require.Len(t, cores, 3)
		assert.Equal(t, []int{1, 2, 3}, []int{cores[0].Index, cores[1].Index, cores[2].Index})
	})

	t.Run("header-less chunks are dropped", func(t *testing.T) {
		cores := ParseCores("%garbage 1.0 us%Cpu0 : 4.0 us, 50.0 id%%Cpu1 : 6.0 us, 40.0 id")

		require.Len(t, cores, 2)
		assert.Equal(t, 4.0, cores[0].User)
		assert.Equal(t, 50.0, cores[0].Idle)
		assert.Equal(t, 6.0, cores[1].User)
	})

	t.Run("missing fields default", func(t *testing.T) {
		cores := ParseCores("%Cpu0 : 3.0 us")

		require.Len(t, cores, 1)
		assert.Equal(t, 3.0, cores[0].User)
		assert.Equal(t, IdleUnknown, cores[0].Idle)
		assert.Zero(t, cores[0].System)
		assert.Zero(t, cores[0].Steal)
	})

	t.Run("empty and malformed input", func(t *testing.T) {
		for _, in := range []string{"", "   ", "%%%", "bash: top: command not found"} {
			cores := ParseCores(in)
			assert.NotNil(t, cores)
			assert.Empty(t, cores, "input %q", in)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		assert.Equal(t, ParseCores(topCoresOutput), ParseCores(topCoresOutput))
	})
}

func TestParseLoad(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [3]float64
	}{
		{
			name: "top summary",
			in:   "top - 14:02:11 up 12 days,  3:41,  2 users,  load average: 0.52, 1.58, 2.59",
			want: [3]float64{0.52, 1.58, 2.59},
		},
		{
			name: "zeros floor at epsilon",
			in:   "top - 14:02:11 up 1 min,  0 users,  load average: 0.00, 0.00, 1.00",
			want: [3]float64{Epsilon, Epsilon, 1.00},
		},
		{
			name: "integers",
			in:   "load average: 4, 3, 2",
			want: [3]float64{4, 3, 2},
		},
		{
			name: "missing",
			in:   "top - 14:02:11 up 1 min",
			want: DefaultLoad,
		},
		{
			name: "empty",
			in:   "",
			want: DefaultLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLoad(tt.in))
		})
	}
}

func TestGaugeLoad(t *testing.T) {
	got := GaugeLoad([3]float64{0.52, 1, 0})
	assert.InDelta(t, 52, got[0], 1e-9)
	assert.InDelta(t, 100, got[1], 1e-9)
	assert.InDelta(t, 0.1, got[2], 1e-9, "zero is floored before scaling")
}

func TestParseTemperature(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"single sensor", "45000\n", 45000},
		{"surrounding whitespace", "  47000 \n\n", 47000},
		{"crit listed before input", "100000\n0\n47000\nPackage id 0\n80000\n", 0},
		{"several sensors", "45000\n52000\n", 0},
		{"garbage", "cat: /sys/class/hwmon/hwmon*/temp*: No such file or directory", 0},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTemperature(tt.in))
		})
	}
}

func TestCelsiusFahrenheit(t *testing.T) {
	tests := []struct {
		raw        float64
		celsius    int
		fahrenheit int
	}{
		{45000, 45, 113},
		{45999, 45, 113},
		{100000, 100, 212},
		{999, 0, 0},
		{0, 0, 0},
		{-5000, -5, 23},
	}

	for _, tt := range tests {
		snap := CPUSnapshot{Temperature: tt.raw}
		assert.Equal(t, tt.celsius, snap.Celsius(), "raw %v", tt.raw)
		assert.Equal(t, tt.fahrenheit, snap.Fahrenheit(), "raw %v", tt.raw)
	}

	// Zero Celsius means no reading; everything else follows c*9/5+32.
	for c := -40; c <= 120; c++ {
		if c == 0 {
			assert.Equal(t, 0, Fahrenheit(c))
			continue
		}
		assert.Equal(t, c*9/5+32, Fahrenheit(c))
	}
}

func TestCPUSnapshot_TotalIdleAndUsage(t *testing.T) {
	empty := CPUSnapshot{}
	assert.Equal(t, IdleUnknown, empty.TotalIdle())
	assert.Equal(t, Epsilon, empty.Usage())

	snap := CPUSnapshot{Cores: []Core{{Idle: 90}, {Idle: 70}}}
	assert.Equal(t, 80.0, snap.TotalIdle())
	assert.Equal(t, 20.0, snap.Usage())

	assert.Equal(t, 10.0, Core{Idle: 90}.Usage())
	assert.Equal(t, 0.0, Core{Idle: IdleUnknown}.Usage())
}

func TestParseCPU(t *testing.T) {
	snap := ParseCPU(topCoresOutput, "load average: 1.00, 0.50, 0.25", "61000")

	assert.Len(t, snap.Cores, 3)
	assert.Equal(t, [3]float64{1, 0.5, 0.25}, snap.Load)
	assert.Equal(t, 61, snap.Celsius())

	def := ParseCPU("", "", "")
	assert.Empty(t, def.Cores)
	assert.Equal(t, DefaultLoad, def.Load)
	assert.Zero(t, def.Temperature)
}

func TestParseCPUTotals(t *testing.T) {
	t.Run("aggregate row", func(t *testing.T) {
		got := ParseCPUTotals("%Cpu(s):  3.1 us,  1.2 sy,  0.0 ni, 95.0 id,  0.4 wa,  0.0 hi,  0.3 si,  0.0 st")

		assert.Equal(t, CPUTotals{User: 3.1, System: 1.2, Nice: 0, Idle: 95.0, IOWait: 0.4, Steal: 0}, got)
		assert.InDelta(t, 5.0, got.Usage(), 1e-9)
	})

	t.Run("ignores per-core rows", func(t *testing.T) {
		got := ParseCPUTotals("%Cpu(s):  10.0 us, 80.0 id\n%Cpu0  : 50.0 us, 20.0 id\n")

		assert.Equal(t, 10.0, got.User)
		assert.Equal(t, 80.0, got.Idle)
	})

	t.Run("empty", func(t *testing.T) {
		got := ParseCPUTotals("")

		assert.Equal(t, IdleUnknown, got.Idle)
		assert.Equal(t, Epsilon, got.Usage())
	})
}

func TestParseTasks(t *testing.T) {
	got := ParseTasks("Tasks: 231 total,   2 running, 228 sleeping,   0 stopped,   1 zombie")
	assert.Equal(t, Tasks{Total: 231, Running: 2, Sleeping: 228, Stopped: 0, Zombie: 1}, got)

	assert.Equal(t, Tasks{}, ParseTasks(""))
}
