package cmd

import (
	"context"
	"encoding/json"
	"log"
	"slices"

	"github.com/frahmantamala/church-cms/internal/audit"
	auditPostgres "github.com/frahmantamala/church-cms/internal/audit/postgres"
	"github.com/frahmantamala/church-cms/internal/core/events"
	"github.com/frahmantamala/church-cms/internal/core/retry"
	"github.com/frahmantamala/church-cms/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events through the same bus and activity log subscriber the server uses.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a domain event and record it",
	Long:  `Publish a domain event to the event bus; the activity log subscriber writes it to activity_logs.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishDomainEvent(args[0])
	},
}

var (
	eventActor        string
	eventAction       string
	eventResourceType string
	eventResourceID   string
	eventTitle        string
	eventData         string
)

func publishDomainEvent(eventType string) {
	lg := logger.LoggerWrapper()
	if !slices.Contains(events.AllDomainEventTypes, eventType) {
		lg.Warn("no activity log subscriber for event type", "event_type", eventType, "known", events.AllDomainEventTypes)
	}

	var data map[string]interface{}
	if eventData != "" {
		if err := json.Unmarshal([]byte(eventData), &data); err != nil {
			log.Fatalf("--data must be a JSON object: %v", err)
		}
	}

	cfg, err := loadConfig(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	defer db.Close()

	bus := events.NewEventBus(lg)
	audit.NewService(auditPostgres.NewAuditRepository(db, retry.NewPolicy(cfg.Persistence, lg)), cfg.Audit, lg).Subscribe(bus)

	action := eventAction
	if action == "" {
		action = eventType
	}
	event := events.NewDomainEvent(eventType, eventActor, action, eventResourceType, eventResourceID, eventTitle, data)

	lg.Info("publishing domain event", "event_type", eventType, "event_id", event.EventID())
	if err := bus.PublishSync(context.Background(), event); err != nil {
		lg.Error("failed to publish event", "error", err)
		return
	}
	lg.Info("domain event recorded", "event_id", event.EventID())
}

func init() {
	publishEventCmd.Flags().StringVar(&eventActor, "actor", "", "acting user id, empty for system events")
	publishEventCmd.Flags().StringVar(&eventAction, "action", "", "logged action (defaults to the event type)")
	publishEventCmd.Flags().StringVar(&eventResourceType, "resource-type", "system", "resource type")
	publishEventCmd.Flags().StringVar(&eventResourceID, "resource-id", "", "resource id")
	publishEventCmd.Flags().StringVar(&eventTitle, "title", "", "resource title")
	publishEventCmd.Flags().StringVar(&eventData, "data", "", "event details as a JSON object")

	eventCmd.AddCommand(publishEventCmd)
}
