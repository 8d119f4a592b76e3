package core

import "time"

// EventType identifies a lifecycle or operational event published on the
// event bus
type EventType string

const (
	EventExchangeConnected   EventType = "ExchangeConnected"
	EventMarketMakingStarted EventType = "MarketMakingStarted"
	EventMarketMakingStopped EventType = "MarketMakingStopped"
	EventOrdersPlaced        EventType = "OrdersPlaced"
	EventOrdersAdjusted      EventType = "OrdersAdjusted"
	EventInventoryRebalanced EventType = "InventoryRebalanced"
	EventRiskEventHandled    EventType = "RiskEventHandled"
)

// Event is a fire-and-forget message for external observers. Consumers assume
// at-least-once delivery; the engine never blocks on publication.
type Event struct {
	Type      EventType              `json:"type"`
	BotID     string                 `json:"bot_id"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType EventType, botID string, fields map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		BotID:     botID,
		Timestamp: time.Now(),
		Fields:    fields,
	}
}
