package metrics

import (
	"strconv"
	"strings"
)

// SectorsPerMB converts 512-byte sector counts to megabytes.
const SectorsPerMB = 2048

// Mount is one mounted filesystem from df, sizes in MB.
type Mount struct {
	FileSystem  string  `json:"fileSystem"`
	Size        float64 `json:"size"`
	Used        float64 `json:"used"`
	Available   float64 `json:"available"`
	PercentUsed int     `json:"percentageUsed"`
	MountedOn   string  `json:"mountedOn"`
}

// DeviceIO is one block device's cumulative sectors read and written.
type DeviceIO struct {
	Name   string `json:"name"`
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`
}

// StorageSnapshot pairs filesystem usage with block device counters.
type StorageSnapshot struct {
	Mounts  []Mount    `json:"mounts"`
	Devices []DeviceIO `json:"devices"`
}

const (
	dfFields        = 6
	diskstatsFields = 3
)

// ParseStorage combines ParseDiskFree and ParseDiskStats.
func ParseStorage(dfText, diskstatsText string) StorageSnapshot {
	return StorageSnapshot{
		Mounts:  ParseDiskFree(dfText),
		Devices: ParseDiskStats(diskstatsText),
	}
}

// ParseDiskFree parses "fs | 1000M | 400M | 600M | 40% | /" records.
// Records with fewer than six fields are dropped; unparsable sizes are 0.
func ParseDiskFree(text string) []Mount {
	mounts := []Mount{}
	for _, rec := range splitRecords(text) {
		fields := strings.Split(rec, "|")
		if len(fields) < dfFields {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		mounts = append(mounts, Mount{
			FileSystem:  fields[0],
			Size:        parseMB(fields[1]),
			Used:        parseMB(fields[2]),
			Available:   parseMB(fields[3]),
			PercentUsed: parsePercent(fields[4]),
			MountedOn:   fields[5],
		})
	}
	return mounts
}

// ParseDiskStats parses "name sectorsRead sectorsWritten" records.
// Records that don't have exactly three fields are dropped.
func ParseDiskStats(text string) []DeviceIO {
	devices := []DeviceIO{}
	for _, rec := range splitRecords(text) {
		fields := strings.Fields(rec)
		if len(fields) != diskstatsFields {
			continue
		}
		reads, _ := strconv.ParseUint(fields[1], 10, 64)
		writes, _ := strconv.ParseUint(fields[2], 10, 64)
		devices = append(devices, DeviceIO{
			Name:   fields[0],
			Reads:  reads,
			Writes: writes,
		})
	}
	return devices
}

// ReadsMB is total megabytes read across devices.
func (s StorageSnapshot) ReadsMB() float64 {
	var sum uint64
	for _, d := range s.Devices {
		sum += d.Reads
	}
	return float64(sum) / SectorsPerMB
}

// WritesMB is total megabytes written across devices.
func (s StorageSnapshot) WritesMB() float64 {
	var sum uint64
	for _, d := range s.Devices {
		sum += d.Writes
	}
	return float64(sum) / SectorsPerMB
}

// parseMB reads df -BM sizes such as "1000M".
func parseMB(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToUpper(s), "M"), 64)
	if err != nil {
		return 0
	}
	return v
}

func parsePercent(s string) int {
	v, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0
	}
	return v
}
