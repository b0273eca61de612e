package types

import (
	"time"
)

// Method records which path produced a campaign
type Method string

const (
	MethodTier1ToolCalling    Method = "tier1_tool_calling"
	MethodTier2Synthesis      Method = "tier2_synthesis"
	MethodTier2AggregatedFall Method = "tier2_aggregated_fallback"
)

// State is a step of the orchestration state machine
type State string

const (
	StateStart          State = "start"
	StateTier1Attempted State = "tier1_attempted"
	StateTier2Running   State = "tier2_running"
	StateDone           State = "done"
)

// Outcome is what the orchestrator hands back to its caller
type Outcome struct {
	Success       bool           `json:"success"`
	Method        Method         `json:"method,omitempty"`
	Campaign      CampaignResult `json:"campaign,omitempty"`
	Warning       string         `json:"warning,omitempty"`
	Error         string         `json:"error,omitempty"`
	SubjectID     string         `json:"subject_id,omitempty"`
	OwnerID       string         `json:"owner_id,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	Trace         []State        `json:"trace"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration_ns"`
}

// Failed reports whether the run ended without a campaign
func (o *Outcome) Failed() bool {
	return o == nil || !o.Success
}
