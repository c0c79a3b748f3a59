// Package events defines the notifications emitted along campaign and scenario executions.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/chutney-testing/chutney-suite/pkg/models"
)

type EventType string

const Topic = "chutney.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	CampaignExecutionStartedEvent  EventType = "campaign.execution.started"
	CampaignExecutionFinishedEvent EventType = "campaign.execution.finished"
	ScenarioExecutionFinishedEvent EventType = "scenario.execution.finished"
	ExecutionStopRequestedEvent    EventType = "execution.stop.requested"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	CampaignID  string         `json:"campaign_id,omitempty"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type CampaignExecutionStarted struct {
	BaseEvent

	CampaignTitle string   `json:"campaign_title"`
	Environment   string   `json:"environment"`
	TriggeredBy   string   `json:"triggered_by"`
	ScenarioIDs   []string `json:"scenario_ids"`
	ReplayOf      string   `json:"replay_of,omitempty"`
}

func (e CampaignExecutionStarted) GetType() EventType {
	return CampaignExecutionStartedEvent
}

// CampaignExecutionFinished carries the immutable campaign report.
type CampaignExecutionFinished struct {
	BaseEvent

	Status  models.Status             `json:"status"`
	Summary models.Summary            `json:"summary"`
	Report  *models.CampaignExecution `json:"report"`
}

func (e CampaignExecutionFinished) GetType() EventType {
	return CampaignExecutionFinishedEvent
}

type ScenarioExecutionFinished struct {
	BaseEvent

	CampaignExecutionID string                    `json:"campaign_execution_id,omitempty"`
	Report              *models.ScenarioExecution `json:"report"`
}

func (e ScenarioExecutionFinished) GetType() EventType {
	return ScenarioExecutionFinishedEvent
}

type ExecutionStopRequested struct {
	BaseEvent

	// Running is false when the stop request found nothing to cancel.
	Running bool `json:"running"`
}

func (e ExecutionStopRequested) GetType() EventType {
	return ExecutionStopRequestedEvent
}

func NewBaseEvent(eventType EventType, campaignID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		CampaignID:  campaignID,
		ExecutionID: executionID,
		Metadata:    make(map[string]any),
	}
}
