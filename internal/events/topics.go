package events

// Topic constants for domain events emitted by the pricing service.
const (
	TopicOrderSubmitted     = "order.submitted"
	TopicOrderStatusChanged = "order.status_changed"
	TopicLoyaltySettled     = "loyalty.settled"
	TopicSettingsChanged    = "settings.invalidated"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderSubmitted,
		TopicOrderStatusChanged,
		TopicLoyaltySettled,
		TopicSettingsChanged,
	}
}
