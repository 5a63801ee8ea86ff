package escrow

import (
	logrus "github.com/sirupsen/logrus"
)

// FundEventQueue is the queue fund events are published to. The
// notification worker consumes it and fans messages out to users.
const FundEventQueue = "fund_events"

// Fund event kinds.
const (
	EventInvestmentRecorded = "investment.recorded"
	EventMilestonePaid      = "milestone.paid"
	EventInvestmentRefunded = "investment.refunded"
)

// FundEvent is emitted after a settlement completes. Fire-and-forget:
// publishing must never block or fail the operation that produced it.
type FundEvent struct {
	Kind         string   `json:"kind"`
	ProjectID    uint     `json:"project_id"`
	ProjectTitle string   `json:"project_title"`
	MilestoneID  uint     `json:"milestone_id,omitempty"`
	InvestmentID uint     `json:"investment_id,omitempty"`
	Amount       int64    `json:"amount"`
	Currency     string   `json:"currency"`
	RecipientIDs []string `json:"recipient_ids"`
}

// EventPublisher is the boundary to the notification component. The
// config package's RabbitMQ publisher satisfies it.
type EventPublisher interface {
	Publish(queueName string, message interface{}) error
}

func (e *Engine) emit(ev FundEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(FundEventQueue, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"kind":       ev.Kind,
			"project_id": ev.ProjectID,
		}).Warnf("Failed to publish fund event: %v", err)
	}
}
