package metrics

// Command is one remote shell command issued every poll cycle.
type Command struct {
	Name   string
	Script string
}

// Commands issued verbatim to the remote shell. The parsers depend on the
// exact output shape these produce, including the "split" record markers.
var (
	CmdTemperature = Command{"temperature", `cat /sys/class/hwmon/hwmon*/temp*`}
	CmdTopSummary  = Command{"top-summary", `top -bn1 | sed -n '/top -/p'`}
	CmdCPUCores    = Command{"cpu-cores", `top -1bcn1 -w512 | sed -n '/^%Cpu/p'`}
	CmdCPUTotals   = Command{"cpu-totals", `top -bn1 | sed -n '/Cpu/p'`}
	CmdTasks       = Command{"tasks", `top -bn1 | sed -n '/Tasks:/p'`}
	CmdMemory      = Command{"memory", `top -bn1 | sed -n '/Mem.:/p'`}
	CmdSwap        = Command{"swap", `top -bn1 | sed -n '/Swap*:/p'`}
	CmdNetwork     = Command{"network", `cat /proc/net/dev | awk '{print $1,"-",$2,"down",$10,"up","split"}'`}
	CmdDiskFree    = Command{"disk-free", `df -BM | sed '/^dev/d' | sed '/tmpfs*/d' | awk '{print $1,"|",$2,"|",$3,"|",$4,"|",$5,"|",$6,"split"}' | sed '/Filesystem/d'`}
	CmdDiskStats   = Command{"disk-stats", `cat /proc/diskstats | awk '{print $3,$6,$10,"split"}' | sed '/ram*\|loop*/d'`}
)

// PollOrder is the fixed sequence one poll cycle runs.
var PollOrder = []Command{
	CmdTemperature,
	CmdTopSummary,
	CmdCPUCores,
	CmdCPUTotals,
	CmdTasks,
	CmdMemory,
	CmdSwap,
	CmdNetwork,
	CmdDiskFree,
	CmdDiskStats,
}
