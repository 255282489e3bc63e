package store

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/metrics"
)

// Field names one value in a host's entry. The names are the keys readers
// and the HTTP API use.
type Field string

const (
	FieldTemperature    Field = "temperature"
	FieldCelsius        Field = "celsius"
	FieldFahrenheit     Field = "fahrenheit"
	FieldLoad           Field = "load"
	FieldCores          Field = "cores"
	FieldIdle           Field = "idle"
	FieldUser           Field = "user"
	FieldSystem         Field = "system"
	FieldNice           Field = "nice"
	FieldIOWait         Field = "iowait"
	FieldSteal          Field = "steal"
	FieldCPUUsage       Field = "cpuUsage"
	FieldTasks          Field = "tasks"
	FieldMemory         Field = "memory"
	FieldMemoryUsed     Field = "memoryUsed"
	FieldSwap           Field = "swap"
	FieldSwapUsed       Field = "swapUsed"
	FieldNetworkDevices Field = "networkDevices"
	FieldUp             Field = "up"
	FieldDown           Field = "down"
	FieldStorageDevices Field = "storageDevices"
	FieldDeviceIOs      Field = "deviceIOs"
	FieldReads          Field = "reads"
	FieldWrites         Field = "writes"
)

// Fields lists every field in entry order.
var Fields = []Field{
	FieldTemperature, FieldCelsius, FieldFahrenheit,
	FieldLoad, FieldCores,
	FieldIdle, FieldUser, FieldSystem, FieldNice, FieldIOWait, FieldSteal, FieldCPUUsage,
	FieldTasks,
	FieldMemory, FieldMemoryUsed, FieldSwap, FieldSwapUsed,
	FieldNetworkDevices, FieldUp, FieldDown,
	FieldStorageDevices, FieldDeviceIOs, FieldReads, FieldWrites,
}

// ParseField resolves a field name, case-sensitively.
func ParseField(name string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// Entry is the last known value of every metric for one host. Fields are
// written independently; an empty field has never been observed.
type Entry struct {
	HostID    string    `json:"hostId"`
	Loaded    bool      `json:"loaded"`
	UpdatedAt time.Time `json:"updatedAt"`

	Temperature Opt[float64]        `json:"temperature"`
	Celsius     Opt[int]            `json:"celsius"`
	Fahrenheit  Opt[int]            `json:"fahrenheit"`
	Load        Opt[[3]float64]     `json:"load"`
	Cores       Opt[[]metrics.Core] `json:"cores"`

	Idle     Opt[float64] `json:"idle"`
	User     Opt[float64] `json:"user"`
	System   Opt[float64] `json:"system"`
	Nice     Opt[float64] `json:"nice"`
	IOWait   Opt[float64] `json:"iowait"`
	Steal    Opt[float64] `json:"steal"`
	CPUUsage Opt[float64] `json:"cpuUsage"`

	Tasks Opt[metrics.Tasks] `json:"tasks"`

	Memory     Opt[metrics.MemorySnapshot] `json:"memory"`
	MemoryUsed Opt[float64]                `json:"memoryUsed"`
	Swap       Opt[metrics.SwapSnapshot]   `json:"swap"`
	SwapUsed   Opt[float64]                `json:"swapUsed"`

	NetworkDevices Opt[[]metrics.Interface] `json:"networkDevices"`
	Up             Opt[float64]             `json:"up"`
	Down           Opt[float64]             `json:"down"`

	StorageDevices Opt[[]metrics.Mount]    `json:"storageDevices"`
	DeviceIOs      Opt[[]metrics.DeviceIO] `json:"deviceIOs"`
	Reads          Opt[float64]            `json:"reads"`
	Writes         Opt[float64]            `json:"writes"`
}

// Value returns the named field and whether it has been observed.
func (e *Entry) Value(f Field) (any, bool) {
	switch f {
	case FieldTemperature:
		return e.Temperature.Get()
	case FieldCelsius:
		return e.Celsius.Get()
	case FieldFahrenheit:
		return e.Fahrenheit.Get()
	case FieldLoad:
		return e.Load.Get()
	case FieldCores:
		return e.Cores.Get()
	case FieldIdle:
		return e.Idle.Get()
	case FieldUser:
		return e.User.Get()
	case FieldSystem:
		return e.System.Get()
	case FieldNice:
		return e.Nice.Get()
	case FieldIOWait:
		return e.IOWait.Get()
	case FieldSteal:
		return e.Steal.Get()
	case FieldCPUUsage:
		return e.CPUUsage.Get()
	case FieldTasks:
		return e.Tasks.Get()
	case FieldMemory:
		return e.Memory.Get()
	case FieldMemoryUsed:
		return e.MemoryUsed.Get()
	case FieldSwap:
		return e.Swap.Get()
	case FieldSwapUsed:
		return e.SwapUsed.Get()
	case FieldNetworkDevices:
		return e.NetworkDevices.Get()
	case FieldUp:
		return e.Up.Get()
	case FieldDown:
		return e.Down.Get()
	case FieldStorageDevices:
		return e.StorageDevices.Get()
	case FieldDeviceIOs:
		return e.DeviceIOs.Get()
	case FieldReads:
		return e.Reads.Get()
	case FieldWrites:
		return e.Writes.Get()
	}
	return nil, false
}

// set writes one field from an untyped value. The value must have the
// field's exact type.
func (e *Entry) set(f Field, v any) error {
	ok := true
	switch f {
	case FieldTemperature:
		ok = assign(&e.Temperature, v)
	case FieldCelsius:
		ok = assign(&e.Celsius, v)
	case FieldFahrenheit:
		ok = assign(&e.Fahrenheit, v)
	case FieldLoad:
		ok = assign(&e.Load, v)
	case FieldCores:
		ok = assign(&e.Cores, v)
	case FieldIdle:
		ok = assign(&e.Idle, v)
	case FieldUser:
		ok = assign(&e.User, v)
	case FieldSystem:
		ok = assign(&e.System, v)
	case FieldNice:
		ok = assign(&e.Nice, v)
	case FieldIOWait:
		ok = assign(&e.IOWait, v)
	case FieldSteal:
		ok = assign(&e.Steal, v)
	case FieldCPUUsage:
		ok = assign(&e.CPUUsage, v)
	case FieldTasks:
		ok = assign(&e.Tasks, v)
	case FieldMemory:
		ok = assign(&e.Memory, v)
	case FieldMemoryUsed:
		ok = assign(&e.MemoryUsed, v)
	case FieldSwap:
		ok = assign(&e.Swap, v)
	case FieldSwapUsed:
		ok = assign(&e.SwapUsed, v)
	case FieldNetworkDevices:
		ok = assign(&e.NetworkDevices, v)
	case FieldUp:
		ok = assign(&e.Up, v)
	case FieldDown:
		ok = assign(&e.Down, v)
	case FieldStorageDevices:
		ok = assign(&e.StorageDevices, v)
	case FieldDeviceIOs:
		ok = assign(&e.DeviceIOs, v)
	case FieldReads:
		ok = assign(&e.Reads, v)
	case FieldWrites:
		ok = assign(&e.Writes, v)
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	if !ok {
		return fmt.Errorf("field %q cannot hold %T", f, v)
	}
	return nil
}

func assign[T any](o *Opt[T], v any) bool {
	typed, ok := v.(T)
	if !ok {
		return false
	}
	*o = Some(typed)
	return true
}

// SetTemperature records the raw sensor value and both converted units.
func (e *Entry) SetTemperature(raw float64) {
	e.Temperature = Some(raw)
	e.Celsius = Some(metrics.Celsius(raw))
	e.Fahrenheit = Some(metrics.Fahrenheit(metrics.Celsius(raw)))
}

// SetLoad records the load averages.
func (e *Entry) SetLoad(load [3]float64) {
	e.Load = Some(load)
}

// SetCores records per-core samples.
func (e *Entry) SetCores(cores []metrics.Core) {
	e.Cores = Some(cores)
}

// SetCPUTotals records the aggregate CPU row and the usage derived from it.
func (e *Entry) SetCPUTotals(t metrics.CPUTotals) {
	e.Idle = Some(t.Idle)
	e.User = Some(t.User)
	e.System = Some(t.System)
	e.Nice = Some(t.Nice)
	e.IOWait = Some(t.IOWait)
	e.Steal = Some(t.Steal)
	e.CPUUsage = Some(t.Usage())
}

// SetTasks records the process counts.
func (e *Entry) SetTasks(t metrics.Tasks) {
	e.Tasks = Some(t)
}

// SetMemory records physical memory and its 0-1000 usage.
func (e *Entry) SetMemory(m metrics.MemorySnapshot) {
	e.Memory = Some(m)
	e.MemoryUsed = Some(m.PercentUsed())
}

// SetSwap records swap and its 0-1000 usage.
func (e *Entry) SetSwap(s metrics.SwapSnapshot) {
	e.Swap = Some(s)
	e.SwapUsed = Some(s.PercentUsed())
}

// SetNetwork records interface counters and their MB totals.
func (e *Entry) SetNetwork(n metrics.NetworkSnapshot) {
	e.NetworkDevices = Some(n.Interfaces)
	e.Up = Some(n.UpMB())
	e.Down = Some(n.DownMB())
}

// SetMounts records filesystem usage.
func (e *Entry) SetMounts(mounts []metrics.Mount) {
	e.StorageDevices = Some(mounts)
}

// SetDeviceIO records block device counters and their MB totals.
func (e *Entry) SetDeviceIO(devices []metrics.DeviceIO) {
	snap := metrics.StorageSnapshot{Devices: devices}
	e.DeviceIOs = Some(devices)
	e.Reads = Some(snap.ReadsMB())
	e.Writes = Some(snap.WritesMB())
}

// CPU reassembles a CPU snapshot from the stored fields, with defaults for
// anything not yet observed.
func (e *Entry) CPU() metrics.CPUSnapshot {
	return metrics.CPUSnapshot{
		Cores:       e.Cores.Or([]metrics.Core{}),
		Load:        e.Load.Or(metrics.DefaultLoad),
		Temperature: e.Temperature.Or(0),
	}
}

// clone deep-copies the slice fields so callers cannot alias store memory.
func (e *Entry) clone() Entry {
	c := *e
	if e.Cores.Valid {
		c.Cores.Value = append([]metrics.Core(nil), e.Cores.Value...)
	}
	if e.NetworkDevices.Valid {
		c.NetworkDevices.Value = append([]metrics.Interface(nil), e.NetworkDevices.Value...)
	}
	if e.StorageDevices.Valid {
		c.StorageDevices.Value = append([]metrics.Mount(nil), e.StorageDevices.Value...)
	}
	if e.DeviceIOs.Valid {
		c.DeviceIOs.Value = append([]metrics.DeviceIO(nil), e.DeviceIOs.Value...)
	}
	return c
}

// Fallback is the documented default a reader shows for a field that has
// never been observed.
func Fallback(f Field) any {
	switch f {
	case FieldTemperature:
		return 0.0
	case FieldCelsius, FieldFahrenheit:
		return 0
	case FieldLoad:
		return metrics.DefaultLoad
	case FieldCores:
		return []metrics.Core{}
	case FieldIdle:
		return metrics.IdleUnknown
	case FieldCPUUsage, FieldMemoryUsed, FieldSwapUsed:
		return metrics.Epsilon
	case FieldTasks:
		return metrics.Tasks{}
	case FieldMemory:
		return metrics.MemorySnapshot{}
	case FieldSwap:
		return metrics.SwapSnapshot{}
	case FieldNetworkDevices:
		return []metrics.Interface{}
	case FieldStorageDevices:
		return []metrics.Mount{}
	case FieldDeviceIOs:
		return []metrics.DeviceIO{}
	case FieldUser, FieldSystem, FieldNice, FieldIOWait, FieldSteal,
		FieldUp, FieldDown, FieldReads, FieldWrites:
		return 0.0
	}
	return nil
}
