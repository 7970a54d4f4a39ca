package worker

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type HostStats struct {
	CPUUsage    float64 `json:"cpu_usage"`
	RAMUsage    float64 `json:"ram_usage"`
	RAMTotal    uint64  `json:"ram_total"`
	RAMUsed     uint64  `json:"ram_used"`
	Uptime      uint64  `json:"uptime"`
	Hostname    string  `json:"hostname"`
	Platform    string  `json:"platform"`
	CollectedAt int64   `json:"collected_at"`
}

// CollectStats samples the host. Probes that fail leave their fields zero.
func CollectStats() HostStats {
	stats := HostStats{
		CollectedAt: time.Now().Unix(),
	}

	// non-blocking sample since the last call
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUUsage = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		stats.RAMUsage = memInfo.UsedPercent
		stats.RAMTotal = memInfo.Total
		stats.RAMUsed = memInfo.Used
	}

	if hostInfo, err := host.Info(); err == nil {
		stats.Uptime = hostInfo.Uptime
		stats.Hostname = hostInfo.Hostname
		stats.Platform = hostInfo.Platform
	}

	return stats
}
