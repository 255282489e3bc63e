package metrics

import (
	"regexp"
	"strconv"
	"strings"
)

// BytesPerMB converts byte counters to megabytes.
const BytesPerMB = 1048576

// Interface is one network interface's cumulative byte counters since boot.
type Interface struct {
	Name string `json:"name"`
	Up   uint64 `json:"up"`
	Down uint64 `json:"down"`
}

// NetworkSnapshot holds raw counters, not deltas. Rates are derived by
// comparing two snapshots.
type NetworkSnapshot struct {
	Interfaces []Interface `json:"interfaces"`
}

var (
	downRe = regexp.MustCompile(`(\d+)down`)
	upRe   = regexp.MustCompile(`(\d+)up`)
)

// ParseNetwork parses /proc/net/dev as reshaped by the network command:
// one "name: - rx down tx up" record per interface. Records without a
// "name:" prefix (the two header rows) are dropped. Names keep the kernel's
// case; only the counters are normalized.
func ParseNetwork(text string) NetworkSnapshot {
	snap := NetworkSnapshot{Interfaces: []Interface{}}
	for _, rec := range splitRecords(text) {
		colon := strings.Index(rec, ":")
		if colon <= 0 {
			continue
		}
		name := strings.Join(strings.Fields(rec[:colon]), "")
		if name == "" {
			continue
		}
		counters := Normalize(rec[colon+1:])
		snap.Interfaces = append(snap.Interfaces, Interface{
			Name: name,
			Down: extractUint(downRe, counters),
			Up:   extractUint(upRe, counters),
		})
	}
	return snap
}

// DownMB is total received megabytes across interfaces.
func (n NetworkSnapshot) DownMB() float64 {
	var sum uint64
	for _, i := range n.Interfaces {
		sum += i.Down
	}
	return float64(sum) / BytesPerMB
}

// UpMB is total transmitted megabytes across interfaces.
func (n NetworkSnapshot) UpMB() float64 {
	var sum uint64
	for _, i := range n.Interfaces {
		sum += i.Up
	}
	return float64(sum) / BytesPerMB
}

func extractUint(re *regexp.Regexp, s string) uint64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
