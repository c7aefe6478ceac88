package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Clients     []ClientInfo    `json:"clients"`
	StatusCount map[string]int  `json:"statusCount"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"`
	TotalOnline    int `json:"totalOnline"`
	TotalAway      int `json:"totalAway"`
	TotalBusy      int `json:"totalBusy"`
}

// RoomStats holds room statistics across both namespaces
type RoomStats struct {
	TotalRooms        int        `json:"totalRooms"`
	ConversationRooms int        `json:"conversationRooms"`
	UserRooms         int        `json:"userRooms"`
	RoomDetails       []RoomInfo `json:"roomDetails"`
}

// RoomInfo contains information about a single room
type RoomInfo struct {
	Key          string   `json:"key"`
	TotalMembers int      `json:"totalMembers"`
	MemberIDs    []string `json:"memberIds"`
}

// ClientInfo contains information about a connected client
type ClientInfo struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Status       string `json:"status"`
}
