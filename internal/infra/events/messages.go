// Package events publishes engine events and alert notifications, either
// to a RabbitMQ topic exchange or to the structured log.
package events

import (
	"encoding/json"
	"time"

	"github.com/boddenberg/fincore/internal/domain"
)

// RoutingKeyNotify is the routing key of alert notification requests.
const RoutingKeyNotify = "notification.budget_alert"

// Recipient is the delivery target of a notification.
type Recipient struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// NotificationMessage asks a downstream dispatcher to deliver an alert.
type NotificationMessage struct {
	OrganizationID string       `json:"organizationId"`
	Recipients     []Recipient  `json:"recipients"`
	Alert          domain.Alert `json:"alert"`
	Timestamp      time.Time    `json:"timestamp"`
}

// NewNotificationMessage builds a notification for the given members.
func NewNotificationMessage(orgID string, members []domain.Member, alert domain.Alert) *NotificationMessage {
	rs := make([]Recipient, 0, len(members))
	for _, m := range members {
		rs = append(rs, Recipient{UserID: m.UserID, Email: m.Email, Name: m.Name})
	}
	return &NotificationMessage{
		OrganizationID: orgID,
		Recipients:     rs,
		Alert:          alert,
		Timestamp:      time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// NotificationMessageFromJSON decodes a notification message.
func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func orgOf(members []domain.Member) string {
	if len(members) == 0 {
		return ""
	}
	return members[0].OrganizationID
}
