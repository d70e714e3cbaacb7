package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicCartItemAdded     = "cart.item_added"
	TopicCartItemRemoved   = "cart.item_removed"
	TopicCartCleared       = "cart.cleared"
	TopicCartReconciled    = "cart.reconciled"
	TopicListUpdated       = "list.updated"
	TopicDiscountRefreshed = "discount.refreshed"
	TopicOrderPlaced       = "order.placed"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicCartItemAdded,
		TopicCartItemRemoved,
		TopicCartCleared,
		TopicCartReconciled,
		TopicListUpdated,
		TopicDiscountRefreshed,
		TopicOrderPlaced,
	}
}
