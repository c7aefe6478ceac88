package hub

import (
	"strings"

	"github.com/Parth8155/SkillSwap/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats, statusCount := ms.getConnectionStats()
	roomStats := ms.getRoomStats()
	clients := ms.getClientList()

	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       roomStats,
		Clients:     clients,
		StatusCount: statusCount,
	}
}

func (ms *MonitorService) getConnectionStats() (model.ConnectionStats, map[string]int) {
	records := ms.hub.presence.Snapshot()

	stats := model.ConnectionStats{
		TotalConnected: len(records),
	}
	statusCount := map[string]int{
		model.StatusOnline: 0,
		model.StatusAway:   0,
		model.StatusBusy:   0,
	}

	for _, rec := range records {
		statusCount[rec.Status]++
		switch rec.Status {
		case model.StatusOnline:
			stats.TotalOnline++
		case model.StatusAway:
			stats.TotalAway++
		case model.StatusBusy:
			stats.TotalBusy++
		}
	}

	return stats, statusCount
}

func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		for key, room := range bucket.rooms {
			memberIDs := make([]string, 0, len(room))
			for _, c := range room {
				memberIDs = append(memberIDs, c.userID)
			}

			stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
				Key:          key,
				TotalMembers: len(room),
				MemberIDs:    memberIDs,
			})
			stats.TotalRooms++
			if strings.HasPrefix(key, "conv:") {
				stats.ConversationRooms++
			} else {
				stats.UserRooms++
			}
		}
		bucket.RUnlock()
	}

	return stats
}

func (ms *MonitorService) getClientList() []model.ClientInfo {
	records := ms.hub.presence.Snapshot()

	clients := make([]model.ClientInfo, 0, len(records))
	for _, rec := range records {
		clients = append(clients, model.ClientInfo{
			ConnectionID: rec.ConnectionID,
			UserID:       rec.UserID,
			Status:       rec.Status,
		})
	}
	return clients
}
