package models

import "github.com/google/uuid"

// ChatSession holds the membership of a single group chat session.
// SessionID is the owning group's id.
type ChatSession struct {
	SessionID uuid.UUID           `json:"sessionID"`
	Name      string              `json:"name"`
	Members   []ChatSessionMember `json:"members"`
}

// ChatSessionMember is one agent's membership record inside a ChatSession.
// HasBeenAdded separates confirmed participants from pending invitees.
type ChatSessionMember struct {
	AvatarKey    uuid.UUID `json:"avatarKey"`
	HasBeenAdded bool      `json:"hasBeenAdded"`
	IsModerator  bool      `json:"isModerator"`
	CanVoiceChat bool      `json:"canVoiceChat"`
	MuteText     bool      `json:"muteText"`
	MuteVoice    bool      `json:"muteVoice"`
}

// Clone returns a deep copy of the session
func (s *ChatSession) Clone() *ChatSession {
	c := &ChatSession{SessionID: s.SessionID, Name: s.Name}
	c.Members = make([]ChatSessionMember, len(s.Members))
	copy(c.Members, s.Members)
	return c
}

// Member returns a pointer to the member record for avatarKey, or nil
func (s *ChatSession) Member(avatarKey uuid.UUID) *ChatSessionMember {
	for i := range s.Members {
		if s.Members[i].AvatarKey == avatarKey {
			return &s.Members[i]
		}
	}
	return nil
}

// RemoveMember deletes the member record for avatarKey and returns it
func (s *ChatSession) RemoveMember(avatarKey uuid.UUID) (ChatSessionMember, bool) {
	for i, m := range s.Members {
		if m.AvatarKey == avatarKey {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return m, true
		}
	}
	return ChatSessionMember{}, false
}

// AgentUpdate is a single roster block sent in a session agent list update
type AgentUpdate struct {
	AgentID      uuid.UUID `json:"agentID"`
	CanVoiceChat bool      `json:"canVoiceChat"`
	IsModerator  bool      `json:"isModerator"`
	MuteText     bool      `json:"muteText"`
	MuteVoice    bool      `json:"muteVoice"`
	Transition   string    `json:"transition"`
}

// Roster transitions
const (
	TransitionEnter = "ENTER"
	TransitionLeave = "LEAVE"
)

// UpdateFor builds the roster block describing member with the given transition
func UpdateFor(member ChatSessionMember, transition string) AgentUpdate {
	return AgentUpdate{
		AgentID:      member.AvatarKey,
		CanVoiceChat: member.CanVoiceChat,
		IsModerator:  member.IsModerator,
		MuteText:     member.MuteText,
		MuteVoice:    member.MuteVoice,
		Transition:   transition,
	}
}
