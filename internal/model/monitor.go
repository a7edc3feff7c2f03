package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status        string             `json:"status"` // "healthy", "idle"
	Subscriptions SubscriptionStats  `json:"subscriptions"`
	Conversations []ConversationInfo `json:"conversations"`
	Dispatcher    DispatcherStats    `json:"dispatcher"`
}

// SubscriptionStats holds live-feed statistics across the broker
type SubscriptionStats struct {
	TotalSubscriptions  int    `json:"totalSubscriptions"`  // Live feeds currently open
	ActiveConversations int    `json:"activeConversations"` // Conversations with at least one subscriber
	DroppedEvents       uint64 `json:"droppedEvents"`       // Events dropped on full subscriber buffers
}

// ConversationInfo contains broker state for a single conversation
type ConversationInfo struct {
	ConversationID string   `json:"conversationId"`
	Subscribers    int      `json:"subscribers"`
	SubscriberIDs  []string `json:"subscriberIds"` // User IDs with a live feed
	TypingUserIDs  []string `json:"typingUserIds"` // Users typing right now (TTL-evaluated)
}

// DispatcherStats holds background notification queue statistics
type DispatcherStats struct {
	QueueDepth int    `json:"queueDepth"`
	Enqueued   uint64 `json:"enqueued"`
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"` // Overflowed queue, never blocked the caller
}
