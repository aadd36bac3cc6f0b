package hub

import "sequence/internal/registry"

// BroadcastRoom sends an event to every non-AI player in a room.
func (h *Hub) BroadcastRoom(room *registry.Room, eventType string, payload any) {
	for _, p := range room.Players {
		if p.IsAI {
			continue
		}
		h.Send(p.PlayerID, eventType, payload)
	}
}

// BroadcastGame sends an event to every non-AI player in a game.
func (h *Hub) BroadcastGame(game *registry.Game, eventType string, payload any) {
	for _, p := range game.Players {
		if p.IsAI {
			continue
		}
		h.Send(p.PlayerID, eventType, payload)
	}
}
