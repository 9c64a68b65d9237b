package groupchat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/region-chat-api/databases"
	"github.com/linesmerrill/region-chat-api/eventqueue"
	"github.com/linesmerrill/region-chat-api/groupchat/mocks"
	"github.com/linesmerrill/region-chat-api/models"
	"github.com/linesmerrill/region-chat-api/presence"
)

const testRegion uint64 = 1099511628032000

type forwardCall struct {
	msg        models.RoutedMessage
	recipients []uuid.UUID
}

type harness struct {
	store     databases.ChatSessionDatabase
	directory *mocks.GroupDirectory
	presence  *mocks.Presence
	queue     *eventqueue.Queue
	forwarder *mocks.Forwarder
	local     map[uuid.UUID]models.Connection
	forwarded []forwardCall
	coord     *Coordinator
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		store:     databases.NewChatSessionDatabase(),
		directory: &mocks.GroupDirectory{},
		presence:  &mocks.Presence{},
		queue:     eventqueue.NewQueue(0),
		forwarder: &mocks.Forwarder{},
		local:     make(map[uuid.UUID]models.Connection),
		now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.presence.On("FindLocalConnection", mock.Anything).Return(func(id uuid.UUID) (models.Connection, bool) {
		c, ok := h.local[id]
		return c, ok
	}).Maybe()
	h.forwarder.On("Forward", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		h.forwarded = append(h.forwarded, forwardCall{
			msg:        args.Get(0).(models.RoutedMessage),
			recipients: args.Get(1).([]uuid.UUID),
		})
	}).Return().Maybe()

	h.coord = New(Options{
		Store:     h.store,
		Directory: h.directory,
		Presence:  h.presence,
		Queue:     h.queue,
		Forwarder: h.forwarder,
		Enabled:   true,
		Debug:     true,
	})
	h.coord.now = func() time.Time { return h.now }
	require.True(t, h.coord.Enabled())
	return h
}

func (h *harness) connect(id uuid.UUID) models.Connection {
	c := models.Connection{AgentID: id, Name: "Agent " + id.String()[:4], RegionHandle: testRegion}
	h.local[id] = c
	return c
}

func (h *harness) events(id uuid.UUID) []models.Event {
	return h.queue.Dequeue(id, testRegion)
}

func (h *harness) seed(sessionID uuid.UUID, members ...models.ChatSessionMember) {
	if err := h.store.CreateSession(&models.ChatSession{SessionID: sessionID, Name: "Builders", Members: members}); err != nil {
		panic(err)
	}
}

func confirmed(id uuid.UUID) models.ChatSessionMember {
	return models.ChatSessionMember{AvatarKey: id, HasBeenAdded: true}
}

func pending(id uuid.UUID) models.ChatSessionMember {
	return models.ChatSessionMember{AvatarKey: id}
}

func TestNew_DisabledWithoutCollaborators(t *testing.T) {
	c := New(Options{
		Store:   databases.NewChatSessionDatabase(),
		Queue:   eventqueue.NewQueue(0),
		Enabled: true,
	})
	assert.False(t, c.Enabled())
	assert.False(t, c.StartSession(context.Background(), models.Connection{AgentID: uuid.New()}, uuid.New(), "Builders"))
	assert.Equal(t, "", c.HandleChatRequest(models.Connection{}, uuid.New(), MethodAcceptInvitation, nil))
	_, ok := c.Roster(uuid.New())
	assert.False(t, ok)
}

func TestNew_DisabledByConfiguration(t *testing.T) {
	c := New(Options{
		Store:     databases.NewChatSessionDatabase(),
		Directory: &mocks.GroupDirectory{},
		Presence:  &mocks.Presence{},
		Queue:     eventqueue.NewQueue(0),
		Forwarder: &mocks.Forwarder{},
	})
	assert.False(t, c.Enabled())
	c.RouteGroupMessage(models.RoutedMessage{SessionID: uuid.New()})
}

func TestStartSession_ThreeMemberGroup(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	requester := h.connect(a)
	h.directory.On("GetGroupMembers", mock.Anything, group).Return([]uuid.UUID{a, b, c}, nil)

	require.True(t, h.coord.StartSession(context.Background(), requester, group, "Builders"))

	session, ok := h.coord.Roster(group)
	require.True(t, ok)
	assert.Equal(t, "Builders", session.Name)
	require.Len(t, session.Members, 3)

	me := session.Member(a)
	require.NotNil(t, me)
	assert.True(t, me.HasBeenAdded)
	assert.True(t, me.IsModerator)
	assert.True(t, me.CanVoiceChat)
	for _, id := range []uuid.UUID{b, c} {
		m := session.Member(id)
		require.NotNil(t, m)
		assert.False(t, m.HasBeenAdded)
	}

	events := h.events(a)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventSessionStartReply, events[0].Message)
	assert.Equal(t, models.EventAgentListUpdates, events[1].Message)
	updates := events[1].Body["updates"].(map[string]interface{})
	assert.Equal(t, models.TransitionEnter, updates[a.String()])

	assert.Empty(t, h.events(b))
	assert.Empty(t, h.events(c))
	assert.Empty(t, h.forwarded)
}

func TestStartSession_LooksUpName(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	requester := h.connect(uuid.New())
	other := uuid.New()
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{
		ID:      group.String(),
		Name:    "Surveyors",
		Members: []string{requester.AgentID.String(), other.String()},
	}, nil).Once()

	require.True(t, h.coord.StartSession(context.Background(), requester, group, ""))

	session, ok := h.coord.Roster(group)
	require.True(t, ok)
	assert.Equal(t, "Surveyors", session.Name)
	assert.Len(t, session.Members, 2)
	assert.True(t, h.store.HasAgentBeenInvited(other, group))
	h.directory.AssertNumberOfCalls(t, "GetGroupRecord", 1)
	h.directory.AssertNotCalled(t, "GetGroupMembers", mock.Anything, mock.Anything)
}

func TestStartSession_UnknownGroup(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(nil, errors.New("not found"))

	assert.False(t, h.coord.StartSession(context.Background(), h.connect(uuid.New()), group, ""))
	_, ok := h.coord.Roster(group)
	assert.False(t, ok)
}

func TestStartSession_ExistingSessionConfirmsRequester(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	h.seed(group, confirmed(b), pending(a))
	h.directory.On("GetGroupMembers", mock.Anything, group).Return([]uuid.UUID{a, b}, nil)

	require.True(t, h.coord.StartSession(context.Background(), h.connect(a), group, "Builders"))

	m, ok := h.store.FindMember(group, a)
	require.True(t, ok)
	assert.True(t, m.HasBeenAdded)
	assert.True(t, m.IsModerator)
	session, _ := h.coord.Roster(group)
	assert.Len(t, session.Members, 2)
}

func TestDropMemberFromSession_EmptySessionIsDestroyed(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a := uuid.New()
	h.seed(group, confirmed(a))

	h.coord.DropMemberFromSession(models.RoutedMessage{FromAgentID: a, SessionID: group, Dialog: models.DialogSessionDrop}, true)

	_, ok := h.coord.Roster(group)
	assert.False(t, ok)
	assert.Equal(t, 0, h.store.Count())
	assert.True(t, h.store.HasAgentDroppedSession(a, group))
	assert.Empty(t, h.forwarded)
}

func TestDropMemberFromSession_ForwardsOnce(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	leaver, localMember, remoteMember := uuid.New(), uuid.New(), uuid.New()
	h.connect(leaver)
	h.connect(localMember)
	h.seed(group, confirmed(leaver), confirmed(localMember), pending(remoteMember))

	h.coord.DropMemberFromSession(models.RoutedMessage{FromAgentID: leaver, SessionID: group, Dialog: models.DialogSessionDrop}, true)

	events := h.events(localMember)
	require.Len(t, events, 1)
	updates := events[0].Body["updates"].(map[string]interface{})
	assert.Equal(t, models.TransitionLeave, updates[leaver.String()])
	assert.Empty(t, h.events(leaver))

	require.Len(t, h.forwarded, 1)
	assert.Equal(t, []uuid.UUID{remoteMember}, h.forwarded[0].recipients)
	assert.True(t, h.forwarded[0].msg.Forwarded)
	assert.Equal(t, 212, h.forwarded[0].msg.DialogCode())

	// the receiving shard applies the forwarded drop without forwarding again
	other := newHarness(t)
	other.connect(remoteMember)
	other.seed(group, confirmed(leaver), confirmed(remoteMember), confirmed(localMember))
	other.coord.ProcessIncomingGroupEvent(h.forwarded[0].msg)

	assert.Empty(t, other.forwarded)
	require.Len(t, other.events(remoteMember), 1)
	_, ok := other.store.FindMember(group, leaver)
	assert.False(t, ok)
}

func TestDropMemberFromSession_AbsentMemberIsNoop(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, stranger := uuid.New(), uuid.New()
	h.connect(a)
	h.seed(group, confirmed(a))

	h.coord.DropMemberFromSession(models.RoutedMessage{FromAgentID: stranger, SessionID: group, Dialog: models.DialogSessionDrop}, true)

	session, ok := h.coord.Roster(group)
	require.True(t, ok)
	assert.Len(t, session.Members, 1)
	assert.Empty(t, h.events(a))
	assert.Empty(t, h.forwarded)
}

func TestHandleChatRequest_AcceptInvitation(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	requester := h.connect(a)
	h.connect(b)
	h.connect(d)
	h.seed(group, pending(a), confirmed(b), confirmed(c), pending(d))

	assert.Equal(t, ResultAccepted, h.coord.HandleChatRequest(requester, group, MethodAcceptInvitation, nil))

	m, ok := h.store.FindMember(group, a)
	require.True(t, ok)
	assert.True(t, m.HasBeenAdded)

	// requester learns about confirmed members only
	events := h.events(a)
	require.Len(t, events, 1)
	updates := events[0].Body["updates"].(map[string]interface{})
	assert.Len(t, updates, 2)
	assert.Contains(t, updates, b.String())
	assert.Contains(t, updates, c.String())

	// local confirmed members learn about the requester
	events = h.events(b)
	require.Len(t, events, 1)
	updates = events[0].Body["updates"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{a.String(): models.TransitionEnter}, updates)

	assert.Empty(t, h.events(d))
}

func TestHandleChatRequest_AcceptInvitationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	requester := h.connect(a)
	h.connect(b)
	h.seed(group, pending(a), confirmed(b))

	require.Equal(t, ResultAccepted, h.coord.HandleChatRequest(requester, group, MethodAcceptInvitation, nil))
	h.events(a)
	h.events(b)

	assert.Equal(t, "", h.coord.HandleChatRequest(requester, group, MethodAcceptInvitation, nil))
	assert.Empty(t, h.events(a))
	assert.Empty(t, h.events(b))
}

func TestHandleChatRequest_Rejections(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	mod, member, stranger := uuid.New(), uuid.New(), uuid.New()
	h.seed(group, models.ChatSessionMember{AvatarKey: mod, HasBeenAdded: true, IsModerator: true}, confirmed(member))

	tests := []struct {
		name      string
		requester uuid.UUID
		session   uuid.UUID
		method    string
	}{
		{"unknown session", member, uuid.New(), MethodAcceptInvitation},
		{"not invited", stranger, group, MethodAcceptInvitation},
		{"mute update by moderator", mod, group, MethodMuteUpdate},
		{"mute update by member", member, group, MethodMuteUpdate},
		{"unknown method", member, group, "start conference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.coord.HandleChatRequest(h.connect(tt.requester), tt.session, tt.method, map[string]interface{}{"agent_id": member.String()})
			assert.Equal(t, "", got)
		})
	}
	m, _ := h.store.FindMember(group, member)
	assert.False(t, m.MuteText)
	assert.Empty(t, h.events(mod))
	assert.Empty(t, h.events(member))
}

func TestRouteGroupMessage(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, localConfirmed, localPending, remotePending, remoteConfirmed := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	h.connect(sender)
	h.connect(localConfirmed)
	h.connect(localPending)
	h.seed(group, confirmed(sender), confirmed(localConfirmed), pending(localPending), pending(remotePending), confirmed(remoteConfirmed))

	h.coord.RouteGroupMessage(models.RoutedMessage{
		FromAgentID:   sender,
		FromAgentName: "Ada Lovelace",
		SessionID:     group,
		Dialog:        models.DialogSessionSend,
		Message:       "hello",
	})

	require.Len(t, h.forwarded, 1)
	assert.ElementsMatch(t, []uuid.UUID{remotePending, remoteConfirmed}, h.forwarded[0].recipients)
	assert.True(t, h.forwarded[0].msg.FromGroup)
	assert.Equal(t, uint32(h.now.Unix()), h.forwarded[0].msg.Timestamp)

	events := h.events(localPending)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventInvitation, events[0].Message)
	assert.Equal(t, "Builders", events[0].Body["session_name"])

	for _, id := range []uuid.UUID{sender, localConfirmed} {
		events = h.events(id)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventInstantMessage, events[0].Message)
		assert.Equal(t, "hello", events[0].Body["message"])
		assert.Equal(t, id, events[0].Body["to_id"])
	}
}

func TestRouteGroupMessage_LocalConfirmedAndRemotePending(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	local, remote := uuid.New(), uuid.New()
	h.connect(local)
	h.seed(group, confirmed(local), pending(remote))

	h.coord.RouteGroupMessage(models.RoutedMessage{FromAgentID: local, SessionID: group, Dialog: models.DialogSessionSend, Message: "hi"})

	require.Len(t, h.events(local), 1)
	require.Len(t, h.forwarded, 1)
	assert.Equal(t, []uuid.UUID{remote}, h.forwarded[0].recipients)
}

func TestRouteGroupMessage_AllLocal(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a := uuid.New()
	h.connect(a)
	h.seed(group, confirmed(a))

	h.coord.RouteGroupMessage(models.RoutedMessage{FromAgentID: a, SessionID: group, Dialog: models.DialogSessionSend, Message: "hi"})

	assert.Empty(t, h.forwarded)
	assert.Len(t, h.events(a), 1)
}

func TestRouteGroupMessage_UnknownSession(t *testing.T) {
	h := newHarness(t)
	h.coord.RouteGroupMessage(models.RoutedMessage{SessionID: uuid.New(), Dialog: models.DialogSessionSend, Message: "hi"})
	assert.Empty(t, h.forwarded)
}

func TestProcessIncomingGroupEvent_SendFromUninvitedSender(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, target := uuid.New(), uuid.New()
	h.connect(target)
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{ID: group.String(), Name: "Builders"}, nil)

	h.coord.ProcessIncomingGroupEvent(models.RoutedMessage{
		FromAgentID: sender,
		ToAgentID:   target,
		SessionID:   group,
		Dialog:      models.DialogSessionSend,
		FromGroup:   true,
		Message:     "anyone here?",
		Timestamp:   uint32(h.now.Unix()),
	})

	assert.True(t, h.store.HasAgentBeenInvited(sender, group))
	m, _ := h.store.FindMember(group, sender)
	assert.False(t, m.HasBeenAdded)

	events := h.events(target)
	require.Len(t, events, 2)
	assert.Equal(t, models.EventInvitation, events[0].Message)
	assert.Equal(t, models.EventAgentListUpdates, events[1].Message)
	updates := events[1].Body["updates"].(map[string]interface{})
	assert.Equal(t, models.TransitionEnter, updates[sender.String()])
}

func TestProcessIncomingGroupEvent_SendFromMember(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, target, absent := uuid.New(), uuid.New(), uuid.New()
	h.connect(target)
	h.seed(group, confirmed(sender), confirmed(target))

	msg := models.RoutedMessage{FromAgentID: sender, ToAgentID: target, SessionID: group, Dialog: models.DialogSessionSend, Message: "hi"}
	h.coord.ProcessIncomingGroupEvent(msg)

	events := h.events(target)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventInstantMessage, events[0].Message)
	assert.Equal(t, "hi", events[0].Body["message"])

	msg.ToAgentID = absent
	h.coord.ProcessIncomingGroupEvent(msg)
	assert.Empty(t, h.events(absent))
}

func TestProcessIncomingGroupEvent_DroppedSender(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, target := uuid.New(), uuid.New()
	h.connect(target)
	h.seed(group, confirmed(sender), confirmed(target))
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{ID: group.String(), Name: "Builders"}, nil).Maybe()

	h.coord.DropMemberFromSession(models.RoutedMessage{FromAgentID: sender, SessionID: group, Dialog: models.DialogSessionDrop, Forwarded: true}, false)
	h.events(target)

	stale := models.RoutedMessage{FromAgentID: sender, ToAgentID: target, SessionID: group, Dialog: models.DialogSessionSend, Message: "late", Timestamp: uint32(h.now.Unix())}
	h.coord.ProcessIncomingGroupEvent(stale)
	assert.False(t, h.store.HasAgentBeenInvited(sender, group))
	assert.Empty(t, h.events(target))

	fresh := stale
	fresh.Timestamp = uint32(h.now.Add(time.Minute).Unix())
	h.coord.ProcessIncomingGroupEvent(fresh)
	assert.True(t, h.store.HasAgentBeenInvited(sender, group))
	assert.False(t, h.store.HasAgentDroppedSession(sender, group))
	assert.Len(t, h.events(target), 2)
}

func TestProcessIncomingGroupEvent_DropUsesSenderClock(t *testing.T) {
	origin := newHarness(t)
	group := uuid.New()
	leaver, remoteMember := uuid.New(), uuid.New()
	origin.connect(leaver)
	origin.seed(group, confirmed(leaver), confirmed(remoteMember))
	origin.coord.DropMemberFromSession(models.RoutedMessage{FromAgentID: leaver, SessionID: group, Dialog: models.DialogSessionDrop}, true)
	require.Len(t, origin.forwarded, 1)
	drop := origin.forwarded[0].msg
	assert.Equal(t, uint32(origin.now.Unix()), drop.Timestamp)

	// the receiving shard's clock runs ahead of the origin
	skewed := newHarness(t)
	skewed.now = origin.now.Add(5 * time.Second)
	skewed.connect(remoteMember)
	skewed.seed(group, confirmed(leaver), confirmed(remoteMember))
	skewed.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{ID: group.String(), Name: "Builders"}, nil).Maybe()

	skewed.coord.DeliverForwarded(drop, []uuid.UUID{remoteMember})
	assert.True(t, skewed.store.HasAgentDroppedSession(leaver, group))
	at, ok := skewed.store.DroppedAt(leaver, group)
	require.True(t, ok)
	assert.Equal(t, origin.now.Unix(), at.Unix())
	skewed.events(remoteMember)

	skewed.coord.DeliverForwarded(models.RoutedMessage{
		FromAgentID: leaver,
		SessionID:   group,
		Dialog:      models.DialogSessionSend,
		FromGroup:   true,
		Message:     "back again",
		Timestamp:   uint32(origin.now.Add(2 * time.Second).Unix()),
	}, []uuid.UUID{remoteMember})

	assert.False(t, skewed.store.HasAgentDroppedSession(leaver, group))
	assert.NotEmpty(t, skewed.events(remoteMember))
}

func TestProcessIncomingGroupEvent_AutoInviteCanBeAccepted(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, target := uuid.New(), uuid.New()
	conn := h.connect(target)
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{ID: group.String(), Name: "Builders"}, nil)

	h.coord.DeliverForwarded(models.RoutedMessage{
		FromAgentID: sender,
		SessionID:   group,
		Dialog:      models.DialogSessionSend,
		FromGroup:   true,
		Message:     "anyone here?",
		Timestamp:   uint32(h.now.Unix()),
	}, []uuid.UUID{target})

	events := h.events(target)
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventInvitation, events[0].Message)
	m, ok := h.store.FindMember(group, target)
	require.True(t, ok)
	assert.False(t, m.HasBeenAdded)

	assert.Equal(t, ResultAccepted, h.coord.HandleChatRequest(conn, group, MethodAcceptInvitation, nil))
	m, ok = h.store.FindMember(group, target)
	require.True(t, ok)
	assert.True(t, m.HasBeenAdded)
}

func TestProcessIncomingGroupEvent_AddClearsDrop(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	h.seed(group, confirmed(b))
	h.store.RecordDrop(a, group, h.now)

	h.coord.ProcessIncomingGroupEvent(models.RoutedMessage{FromAgentID: a, SessionID: group, Dialog: models.DialogSessionAdd})

	assert.False(t, h.store.HasAgentDroppedSession(a, group))
	m, ok := h.store.FindMember(group, a)
	require.True(t, ok)
	assert.False(t, m.HasBeenAdded)
}

func TestDeliverForwarded(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, here1, here2, elsewhere := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	h.connect(here1)
	h.connect(here2)
	h.seed(group, confirmed(sender), confirmed(here1), confirmed(here2), confirmed(elsewhere))

	h.coord.DeliverForwarded(models.RoutedMessage{
		FromAgentID: sender,
		SessionID:   group,
		Dialog:      models.DialogSessionSend,
		Message:     "hi",
	}, []uuid.UUID{here1, here2, elsewhere})

	for _, id := range []uuid.UUID{here1, here2} {
		events := h.events(id)
		require.Len(t, events, 1)
		assert.Equal(t, id, events[0].Body["to_id"])
	}

	h.coord.DeliverForwarded(models.RoutedMessage{
		FromAgentID: sender,
		SessionID:   group,
		Dialog:      models.DialogSessionDrop,
		Forwarded:   true,
	}, []uuid.UUID{here1, here2, elsewhere})

	_, ok := h.store.FindMember(group, sender)
	assert.False(t, ok)
	assert.Len(t, h.events(here1), 1)
	assert.Len(t, h.events(here2), 1)
	assert.Empty(t, h.forwarded)
}

func TestDeliverForwarded_NoLocalRecipient(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	sender, other := uuid.New(), uuid.New()
	h.seed(group, confirmed(sender), confirmed(other))

	h.coord.DeliverForwarded(models.RoutedMessage{FromAgentID: sender, SessionID: group, Dialog: models.DialogSessionDrop, Forwarded: true}, []uuid.UUID{other})

	_, ok := h.store.FindMember(group, sender)
	assert.True(t, ok)
}

func TestHandleClientMessage(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	conn := h.connect(a)
	h.seed(group, confirmed(b))
	h.store.RecordDrop(a, group, h.now)

	h.coord.HandleClientMessage(conn, models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionSend})
	assert.Empty(t, h.forwarded)
	assert.True(t, h.store.HasAgentDroppedSession(a, group))

	h.coord.HandleClientMessage(conn, models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionSend, Message: "back again"})
	assert.False(t, h.store.HasAgentDroppedSession(a, group))
	m, ok := h.store.FindMember(group, a)
	require.True(t, ok)
	assert.True(t, m.HasBeenAdded)
	require.Len(t, h.forwarded, 1)
	assert.Equal(t, a, h.forwarded[0].msg.FromAgentID)
	assert.Equal(t, []uuid.UUID{b}, h.forwarded[0].recipients)
	assert.Len(t, h.events(a), 1, "the sender gets its own message")

	h.coord.HandleClientMessage(conn, models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionDrop})
	_, ok = h.store.FindMember(group, a)
	assert.False(t, ok)
	require.Len(t, h.forwarded, 2)
	assert.Equal(t, []uuid.UUID{b}, h.forwarded[1].recipients)
	assert.True(t, h.forwarded[1].msg.Forwarded)
}

func TestHandleClientMessage_ForwardedDropIsNotForwarded(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	conn := h.connect(a)
	h.seed(group, confirmed(a), confirmed(b))

	msg := models.RoutedMessage{SessionID: group}
	msg.SetDialogCode(212)
	h.coord.HandleClientMessage(conn, msg)

	_, ok := h.store.FindMember(group, a)
	assert.False(t, ok)
	assert.Empty(t, h.forwarded)
}

func TestHandleClientMessage_StartSession(t *testing.T) {
	h := newHarness(t)
	group := uuid.New()
	a := uuid.New()
	conn := h.connect(a)
	h.directory.On("GetGroupRecord", mock.Anything, group).Return(&models.GroupRecord{ID: group.String(), Name: "Builders"}, nil)
	h.directory.On("GetGroupMembers", mock.Anything, group).Return([]uuid.UUID{a}, nil)

	h.coord.HandleClientMessage(conn, models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionGroupStart})

	_, ok := h.coord.Roster(group)
	assert.True(t, ok)
	assert.Len(t, h.events(a), 2)
}

func TestAttachAndClose(t *testing.T) {
	h := newHarness(t)
	hub := presence.NewHub(eventqueue.NewQueue(0), nil)
	group := uuid.New()
	a, b := uuid.New(), uuid.New()
	h.seed(group, confirmed(a), confirmed(b))

	h.coord.Attach(hub)
	hub.Publish(presence.Event{
		Kind:    presence.EventInstantMessage,
		Conn:    models.Connection{AgentID: a, RegionHandle: testRegion},
		Message: models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionSend, Message: "hi"},
	})
	require.Len(t, h.forwarded, 1)

	h.coord.Close()
	hub.Publish(presence.Event{
		Kind:    presence.EventInstantMessage,
		Conn:    models.Connection{AgentID: a, RegionHandle: testRegion},
		Message: models.RoutedMessage{SessionID: group, Dialog: models.DialogSessionSend, Message: "again"},
	})
	assert.Len(t, h.forwarded, 1)
	h.coord.Close()
}
