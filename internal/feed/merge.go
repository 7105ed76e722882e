package feed

import (
	chattypes "github.com/clawchat/clawchat-backend/internal/chat/types"
)

// Merge reconciles a freshly fetched message window with the list a
// client already holds. The fetched window is authoritative for the
// range it covers; held messages older than that window (scroll-loaded
// history the fetch did not reach) are kept and prepended.
//
// For any fetched message whose content is unchanged, the held object
// reference is reused so downstream reactive rendering does not
// re-render rows that did not change.
func Merge(held, fetched []*chattypes.Message) []*chattypes.Message {
	if len(fetched) == 0 {
		return held
	}

	index := make(map[string]*chattypes.Message, len(held))
	for _, m := range held {
		index[m.ID] = m
	}

	merged := make([]*chattypes.Message, 0, len(held)+len(fetched))

	// Held history that predates the fetched window survives a refetch.
	oldest := fetched[0].CreatedAt
	for _, m := range held {
		if m.CreatedAt.Before(oldest) {
			if _, refetched := containsID(fetched, m.ID); !refetched {
				merged = append(merged, m)
			}
		}
	}

	for _, m := range fetched {
		if existing, ok := index[m.ID]; ok && existing.Content == m.Content {
			merged = append(merged, existing)
			continue
		}
		merged = append(merged, m)
	}

	return merged
}

func containsID(messages []*chattypes.Message, id string) (*chattypes.Message, bool) {
	for _, m := range messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Group is a run of consecutive messages rendered as one unit. Agent
// internal work (thoughts, tool calls, tool results) collapses into a
// single group; plain messages stand alone.
type Group struct {
	Internal bool
	Messages []*chattypes.Message
}

// GroupMessages splits an ordered list into render groups. Consecutive
// non-plain messages share a group.
func GroupMessages(messages []*chattypes.Message) []Group {
	var groups []Group
	for _, m := range messages {
		internal := m.Type != chattypes.TypeMessage
		if internal && len(groups) > 0 && groups[len(groups)-1].Internal {
			last := &groups[len(groups)-1]
			last.Messages = append(last.Messages, m)
			continue
		}
		groups = append(groups, Group{
			Internal: internal,
			Messages: []*chattypes.Message{m},
		})
	}
	return groups
}
