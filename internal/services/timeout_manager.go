package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Operation types understood by TimeoutManager.
const (
	OperationFetch       = "fetch"
	OperationCompute     = "compute"
	OperationHealthCheck = "health_check"
	OperationMirror      = "mirror"
)

// TimeoutConfig defines timeout settings for different operation types
type TimeoutConfig struct {
	Fetch       time.Duration
	Compute     time.Duration
	HealthCheck time.Duration
	Mirror      time.Duration
}

// TimeoutManager hands out bounded contexts and tracks the ones in flight,
// so shutdown can cancel them all.
type TimeoutManager struct {
	config         *TimeoutConfig
	logger         *logrus.Logger
	activeContexts map[string]context.CancelFunc
	mu             sync.RWMutex
	defaultTimeout time.Duration
}

// OperationContext wraps a context with timeout and cancellation
type OperationContext struct {
	Ctx         context.Context
	Cancel      context.CancelFunc
	OperationID string
	StartTime   time.Time
	Timeout     time.Duration
}

// NewTimeoutManager creates a new timeout manager
func NewTimeoutManager(config *TimeoutConfig, logger *logrus.Logger) *TimeoutManager {
	if config == nil {
		config = DefaultTimeoutConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &TimeoutManager{
		config:         config,
		logger:         logger,
		activeContexts: make(map[string]context.CancelFunc),
		defaultTimeout: 30 * time.Second,
	}
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		Fetch:       30 * time.Second,
		Compute:     2 * time.Minute,
		HealthCheck: 3 * time.Second,
		Mirror:      5 * time.Second,
	}
}

// CreateOperationContextWithParent derives a bounded context from parent
// and registers it under operationID.
func (tm *TimeoutManager) CreateOperationContextWithParent(parent context.Context, operationType string, operationID string) *OperationContext {
	timeout := tm.getTimeoutForOperation(operationType)
	ctx, cancel := context.WithTimeout(parent, timeout)

	tm.mu.Lock()
	if previous, exists := tm.activeContexts[operationID]; exists {
		previous()
	}
	tm.activeContexts[operationID] = cancel
	tm.mu.Unlock()

	return &OperationContext{
		Ctx:         ctx,
		Cancel:      cancel,
		OperationID: operationID,
		StartTime:   time.Now(),
		Timeout:     timeout,
	}
}

func (tm *TimeoutManager) getTimeoutForOperation(operationType string) time.Duration {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	var timeout time.Duration
	switch operationType {
	case OperationFetch:
		timeout = tm.config.Fetch
	case OperationCompute:
		timeout = tm.config.Compute
	case OperationHealthCheck:
		timeout = tm.config.HealthCheck
	case OperationMirror:
		timeout = tm.config.Mirror
	}
	if timeout <= 0 {
		return tm.defaultTimeout
	}
	return timeout
}

// CompleteOperation marks an operation as complete and cleans up resources
func (tm *TimeoutManager) CompleteOperation(operationID string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if cancel, exists := tm.activeContexts[operationID]; exists {
		cancel()
		delete(tm.activeContexts, operationID)
	}
}

// CancelAllOperations cancels all active operations
func (tm *TimeoutManager) CancelAllOperations() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for operationID, cancel := range tm.activeContexts {
		cancel()
		tm.logger.WithField("operation_id", operationID).Info("Operation cancelled during shutdown")
	}

	tm.activeContexts = make(map[string]context.CancelFunc)
}

// GetActiveOperationCount returns the number of active operations
func (tm *TimeoutManager) GetActiveOperationCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return len(tm.activeContexts)
}

// IsOperationActive checks if an operation is currently active
func (tm *TimeoutManager) IsOperationActive(operationID string) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	_, exists := tm.activeContexts[operationID]
	return exists
}

// Shutdown gracefully shuts down the timeout manager
func (tm *TimeoutManager) Shutdown() {
	tm.logger.Info("Shutting down timeout manager")
	tm.CancelAllOperations()
}
