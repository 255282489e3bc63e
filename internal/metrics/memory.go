package metrics

// MemorySnapshot is physical memory in MiB, as reported by top.
type MemorySnapshot struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Cache float64 `json:"cache"`
}

// SwapSnapshot has the same shape as MemorySnapshot. Cache holds the
// "avail Mem" figure top prints on the swap row.
type SwapSnapshot struct {
	Total float64 `json:"total"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Cache float64 `json:"cache"`
}

// PercentScale is the value PercentUsed reports for a full pool. Renderers
// divide by 10 to get an ordinary percentage.
const PercentScale = 1000

var (
	totalRe = suffixPattern("total")
	freeRe  = suffixPattern("free")
	usedRe  = suffixPattern("used")
	buffRe  = suffixPattern("buff")
	availRe = suffixPattern("avail")
)

// ParseMemory parses the "Mem :" row of top. Missing fields are 0.
func ParseMemory(text string) MemorySnapshot {
	s := Normalize(text)
	return MemorySnapshot{
		Total: extract(totalRe, s, 0),
		Free:  extract(freeRe, s, 0),
		Used:  extract(usedRe, s, 0),
		Cache: extract(buffRe, s, 0),
	}
}

// ParseSwap parses the "Swap:" row of top. Missing fields are 0.
func ParseSwap(text string) SwapSnapshot {
	s := Normalize(text)
	return SwapSnapshot{
		Total: extract(totalRe, s, 0),
		Free:  extract(freeRe, s, 0),
		Used:  extract(usedRe, s, 0),
		Cache: extract(availRe, s, 0),
	}
}

// PercentUsed is used/total on the 0-1000 scale. Before any data arrives
// (no total, or both values still at Epsilon) it returns Epsilon.
func (m MemorySnapshot) PercentUsed() float64 {
	return percentUsed(m.Used, m.Total)
}

// PercentUsed is used/total on the 0-1000 scale; see MemorySnapshot.PercentUsed.
func (s SwapSnapshot) PercentUsed() float64 {
	return percentUsed(s.Used, s.Total)
}

func percentUsed(used, total float64) float64 {
	if total <= 0 || (used == Epsilon && total == Epsilon) {
		return Epsilon
	}
	return used / total * PercentScale
}
