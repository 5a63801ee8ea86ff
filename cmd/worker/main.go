package main

import (
	"encoding/json"
	"fmt"
	"log"

	"hashfund/internal/escrow"
	"hashfund/internal/models"
	"hashfund/pkg/config"

	logrus "github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize database
	config.InitDB()

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	// Create consumer for the fund event queue
	msgConsumer, err := config.NewConsumer(escrow.FundEventQueue)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	logrus.Info("Fund event worker started, waiting for messages...")

	// Start consuming messages
	err = msgConsumer.Consume(func(msg []byte) error {
		var event escrow.FundEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			logrus.Errorf("Failed to unmarshal fund event: %v", err)
			// A malformed message never becomes parseable; drop it.
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"kind":       event.Kind,
			"project_id": event.ProjectID,
			"amount":     event.Amount,
			"currency":   event.Currency,
			"recipients": len(event.RecipientIDs),
		}).Info("Fund event received")

		message := messageFor(event)
		for _, userID := range event.RecipientIDs {
			notification := models.Notification{
				UserID:    userID,
				Message:   message,
				Kind:      event.Kind,
				ProjectID: event.ProjectID,
			}
			if err := config.DB.Create(&notification).Error; err != nil {
				logrus.Errorf("Failed to create notification for user %s: %v", userID, err)
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal("Failed to start consumer: ", err)
	}
}

// messageFor renders the user-facing notification text for a fund event
func messageFor(event escrow.FundEvent) string {
	title := event.ProjectTitle
	if title == "" {
		title = fmt.Sprintf("project #%d", event.ProjectID)
	}

	switch event.Kind {
	case escrow.EventInvestmentRecorded:
		return fmt.Sprintf("New investment of %d %s in %s", event.Amount, event.Currency, title)
	case escrow.EventMilestonePaid:
		return fmt.Sprintf("Milestone payout of %d %s released for %s", event.Amount, event.Currency, title)
	case escrow.EventInvestmentRefunded:
		return fmt.Sprintf("Investment of %d %s in %s was refunded", event.Amount, event.Currency, title)
	default:
		return fmt.Sprintf("Fund activity on %s", title)
	}
}
