package services

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceOptimizer sizes the precompute worker pool from the host's CPU
// count, memory and current load.
type ResourceOptimizer struct {
	mu                 sync.RWMutex
	config             ResourceOptimizerConfig
	cpuCores           int
	memoryGB           float64
	currentCPUUsage    float64
	currentMemoryUsage float64
	workers            int
	lastOptimization   time.Time
	logger             *logrus.Logger
}

// ResourceOptimizerConfig bounds the computed worker count.
type ResourceOptimizerConfig struct {
	CPUThreshold    float64
	MemoryThreshold float64
	MinWorkers      int
	MaxWorkers      int
}

// DefaultResourceOptimizerConfig returns min 2 and max 20 workers.
func DefaultResourceOptimizerConfig() ResourceOptimizerConfig {
	return ResourceOptimizerConfig{
		CPUThreshold:    80.0,
		MemoryThreshold: 85.0,
		MinWorkers:      2,
		MaxWorkers:      20,
	}
}

// NewResourceOptimizer probes the host and computes an initial worker
// count. Zero config values take their defaults.
func NewResourceOptimizer(config ResourceOptimizerConfig, logger *logrus.Logger) *ResourceOptimizer {
	defaults := DefaultResourceOptimizerConfig()
	if config.CPUThreshold == 0 {
		config.CPUThreshold = defaults.CPUThreshold
	}
	if config.MemoryThreshold == 0 {
		config.MemoryThreshold = defaults.MemoryThreshold
	}
	if config.MinWorkers == 0 {
		config.MinWorkers = defaults.MinWorkers
	}
	if config.MaxWorkers == 0 {
		config.MaxWorkers = defaults.MaxWorkers
	}
	if config.MaxWorkers < config.MinWorkers {
		config.MaxWorkers = config.MinWorkers
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ro := &ResourceOptimizer{
		config:   config,
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		ro.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		ro.logger.WithError(err).Warn("Could not get memory info, using default")
		ro.memoryGB = 8.0
	}

	ro.recalculate()

	ro.logger.WithFields(logrus.Fields{
		"cpu_cores": ro.cpuCores,
		"memory_gb": ro.memoryGB,
		"workers":   ro.workers,
	}).Info("Resource optimizer initialized")

	return ro
}

// recalculate derives the worker count. Model fitting is CPU bound, so the
// base is one worker per core rather than the I/O-oriented 2x.
func (ro *ResourceOptimizer) recalculate() {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	base := float64(ro.cpuCores)

	memoryFactor := 1.0
	if ro.memoryGB < 4.0 {
		memoryFactor = 0.5
	} else if ro.memoryGB < 8.0 {
		memoryFactor = 0.75
	}

	loadFactor := 1.0
	if ro.currentCPUUsage > ro.config.CPUThreshold {
		loadFactor = 0.7
	} else if ro.currentMemoryUsage > ro.config.MemoryThreshold {
		loadFactor = 0.8
	}

	ro.workers = clampWorkers(int(base*memoryFactor*loadFactor), ro.config.MinWorkers, ro.config.MaxWorkers)
	ro.lastOptimization = time.Now()
}

func clampWorkers(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Workers returns the current worker count.
func (ro *ResourceOptimizer) Workers() int {
	ro.mu.RLock()
	defer ro.mu.RUnlock()
	return ro.workers
}

// UpdateSystemMetrics samples CPU and memory usage and recomputes the
// worker count. The CPU sample blocks for one second.
func (ro *ResourceOptimizer) UpdateSystemMetrics(ctx context.Context) error {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return fmt.Errorf("failed to get CPU usage: %w", err)
	}
	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get memory usage: %w", err)
	}

	ro.mu.Lock()
	if len(cpuPercent) > 0 {
		ro.currentCPUUsage = cpuPercent[0]
	}
	ro.currentMemoryUsage = memInfo.UsedPercent
	ro.mu.Unlock()

	ro.recalculate()
	return nil
}

// GetSystemInfo returns current system information
func (ro *ResourceOptimizer) GetSystemInfo() map[string]interface{} {
	ro.mu.RLock()
	defer ro.mu.RUnlock()

	return map[string]interface{}{
		"cpu_cores":         ro.cpuCores,
		"memory_gb":         ro.memoryGB,
		"current_cpu":       ro.currentCPUUsage,
		"current_memory":    ro.currentMemoryUsage,
		"goroutines":        runtime.NumGoroutine(),
		"workers":           ro.workers,
		"last_optimization": ro.lastOptimization,
	}
}
