package propertydata

import (
	"strings"
	"sync"
	"time"
)

const (
	maxRecentFailures    = 20
	failureRateThreshold = 0.2
	consecutiveThreshold = 5
	minRequestsForRate   = 10
	staleSuccessAfter    = time.Hour
)

// FailureRecord is one failed provider call
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
}

// HealthStatus summarizes recent provider calls
type HealthStatus struct {
	IsHealthy           bool            `json:"is_healthy"`
	TotalRequests       int64           `json:"total_requests"`
	FailedRequests      int64           `json:"failed_requests"`
	SuccessRate         float64         `json:"success_rate"`
	ConsecutiveFailures int64           `json:"consecutive_failures"`
	LastSuccessTime     *time.Time      `json:"last_success_time,omitempty"`
	LastFailureTime     *time.Time      `json:"last_failure_time,omitempty"`
	RecentFailures      []FailureRecord `json:"recent_failures"`
	Issues              []string        `json:"issues"`
}

// HealthMonitor tracks provider success and failure rates
type HealthMonitor struct {
	mu                  sync.RWMutex
	total               int64
	failed              int64
	consecutiveFailures int64
	lastSuccess         time.Time
	lastFailure         time.Time
	recent              []FailureRecord
	now                 func() time.Time
}

// NewHealthMonitor creates an empty monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		recent: make([]FailureRecord, 0, maxRecentFailures),
		now:    time.Now,
	}
}

// RecordSuccess records a call the provider answered
func (h *HealthMonitor) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++
	h.consecutiveFailures = 0
	h.lastSuccess = h.now()
}

// RecordFailure records a failed call
func (h *HealthMonitor) RecordFailure(operation string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	h.total++
	h.failed++
	h.consecutiveFailures++
	h.lastFailure = now

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.recent = append(h.recent, FailureRecord{Timestamp: now, Operation: operation, Error: msg})
	if len(h.recent) > maxRecentFailures {
		h.recent = h.recent[1:]
	}
}

// Status returns the current health summary
func (h *HealthMonitor) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		IsHealthy:           true,
		TotalRequests:       h.total,
		FailedRequests:      h.failed,
		SuccessRate:         1.0,
		ConsecutiveFailures: h.consecutiveFailures,
		RecentFailures:      make([]FailureRecord, len(h.recent)),
		Issues:              []string{},
	}
	copy(status.RecentFailures, h.recent)

	if h.total > 0 {
		status.SuccessRate = float64(h.total-h.failed) / float64(h.total)
	}
	if !h.lastSuccess.IsZero() {
		t := h.lastSuccess
		status.LastSuccessTime = &t
	}
	if !h.lastFailure.IsZero() {
		t := h.lastFailure
		status.LastFailureTime = &t
	}

	if h.total >= minRequestsForRate && status.SuccessRate < 1-failureRateThreshold {
		status.IsHealthy = false
		status.Issues = append(status.Issues, "high failure rate")
	}
	if h.consecutiveFailures >= consecutiveThreshold {
		status.IsHealthy = false
		status.Issues = append(status.Issues, "consecutive failures")
	}
	if !h.lastSuccess.IsZero() && h.lastFailure.After(h.lastSuccess) && h.now().Sub(h.lastSuccess) > staleSuccessAfter {
		status.IsHealthy = false
		status.Issues = append(status.Issues, "no successful requests in the last hour")
	}

	if kind := dominantFailure(h.recent); kind != "" {
		status.Issues = append(status.Issues, kind+" errors dominate recent failures")
	}
	return status
}

// dominantFailure returns the error category behind more than half of the
// recent failures, if any
func dominantFailure(recent []FailureRecord) string {
	if len(recent) < 3 {
		return ""
	}
	counts := make(map[string]int)
	for _, f := range recent {
		counts[categorizeError(f.Error)]++
	}
	for kind, n := range counts {
		if kind != "other" && float64(n)/float64(len(recent)) > 0.5 {
			return kind
		}
	}
	return ""
}

func categorizeError(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return "authentication"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "dns") || strings.Contains(msg, "network"):
		return "network"
	}
	return "other"
}
