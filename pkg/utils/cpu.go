package utils

import (
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// GetSystemStats reports CPU and memory usage for the health endpoint.
func GetSystemStats() (cpuPercent, memPercent float64) {
	if usage, err := cpu.Percent(0, false); err == nil && len(usage) > 0 {
		cpuPercent = usage[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
	}
	return cpuPercent, memPercent
}
