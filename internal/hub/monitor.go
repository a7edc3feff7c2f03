package hub

import (
	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
)

// DispatcherStatsProvider exposes the notification queue counters.
type DispatcherStatsProvider interface {
	Stats() model.DispatcherStats
}

// MonitorService provides methods to gather broker statistics
type MonitorService struct {
	broker     *Broker
	presence   *PresenceCoordinator
	dispatcher DispatcherStatsProvider
}

// NewMonitorService creates a new monitor service
func NewMonitorService(broker *Broker, presence *PresenceCoordinator, dispatcher DispatcherStatsProvider) *MonitorService {
	return &MonitorService{broker: broker, presence: presence, dispatcher: dispatcher}
}

// GetStats gathers and returns broker and dispatcher statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	conversations := ms.getConversationInfo()

	totalSubs := 0
	for _, info := range conversations {
		totalSubs += info.Subscribers
	}

	status := "healthy"
	if totalSubs == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Subscriptions: model.SubscriptionStats{
			TotalSubscriptions:  totalSubs,
			ActiveConversations: len(conversations),
			DroppedEvents:       ms.broker.DroppedEvents(),
		},
		Conversations: conversations,
		Dispatcher:    ms.dispatcher.Stats(),
	}
}

// getConversationInfo walks every shard and reports per-conversation
// subscriber and typing state.
func (ms *MonitorService) getConversationInfo() []model.ConversationInfo {
	infos := make([]model.ConversationInfo, 0)

	for _, bucket := range ms.broker.shards {
		bucket.Lock()
		for convID, subs := range bucket.conversations {
			userIDs := make([]string, 0, len(subs))
			seen := make(map[string]bool, len(subs))
			for _, sub := range subs {
				if !seen[sub.UserID] {
					seen[sub.UserID] = true
					userIDs = append(userIDs, sub.UserID)
				}
			}

			infos = append(infos, model.ConversationInfo{
				ConversationID: convID,
				Subscribers:    len(subs),
				SubscriberIDs:  userIDs,
				TypingUserIDs:  ms.presence.TypingUsers(convID),
			})
		}
		bucket.Unlock()
	}

	return infos
}
