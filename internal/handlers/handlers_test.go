package handlers

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"susninja-bot/internal/audience"
	"susninja-bot/internal/broadcast"
	"susninja-bot/internal/cache"
	"susninja-bot/internal/edits"
	"susninja-bot/internal/locales"
	"susninja-bot/pkg/telegoapi/telegoapimock"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testOwnerID  = int64(1000)
	testGroupID  = int64(-100777)
	testEditorID = int64(42)
	testOtherID  = int64(43)
)

func TestMain(m *testing.M) {
	locales.Init("en")
	os.Exit(m.Run())
}

// --- Mocks ---

type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdminChecker) IsOwner(userID int64) bool {
	return userID == testOwnerID
}

type MockUserActionLogger struct {
	mock.Mock
}

func (m *MockUserActionLogger) LogUserAction(userID int64, action string, details interface{}) error {
	args := m.Called(userID, action, details)
	return args.Error(0)
}

// --- Suite ---

type sessionClock struct{ now time.Time }

func (c *sessionClock) Now() time.Time          { return c.now }
func (c *sessionClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type testHandlerSuite struct {
	t                *testing.T
	mockBot          *telegoapimock.MockBot
	mockAdminChecker *MockAdminChecker
	mockActionLogger *MockUserActionLogger
	messages         *cache.MessageCache
	sessions         *edits.Store
	sessionClock     *sessionClock
	tracker          *audience.Tracker
	broadcaster      *broadcast.Manager
	handler          *MessageHandler
}

func setupTestHandlerSuite(t *testing.T) *testHandlerSuite {
	t.Helper()

	mockBot := new(telegoapimock.MockBot)
	mockAdminChecker := new(MockAdminChecker)
	mockActionLogger := new(MockUserActionLogger)
	mockActionLogger.On("LogUserAction", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	messages := cache.New(cache.DefaultConfig())
	clock := &sessionClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	sessions := edits.NewStore(time.Hour, 100, edits.WithStoreClock(clock.Now))
	tracker := audience.NewTracker(nil)
	broadcaster := broadcast.NewManager(mockBot, tracker, 0)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	handler, err := NewMessageHandler(Deps{
		Messages:     messages,
		Detector:     edits.NewDetector(messages, sessions),
		Sessions:     sessions,
		Audience:     tracker,
		Broadcaster:  broadcaster,
		AdminChecker: mockAdminChecker,
		ActionLogger: mockActionLogger,
		ChannelURL:   "https://t.me/channel",
		GroupURL:     "https://t.me/group",
		Now: func() time.Time {
			now = now.Add(1500 * time.Microsecond)
			return now
		},
	})
	require.NoError(t, err)

	return &testHandlerSuite{
		t:                t,
		mockBot:          mockBot,
		mockAdminChecker: mockAdminChecker,
		mockActionLogger: mockActionLogger,
		messages:         messages,
		sessions:         sessions,
		sessionClock:     clock,
		tracker:          tracker,
		broadcaster:      broadcaster,
		handler:          handler,
	}
}

func user(id int64, first string) *telego.User {
	return &telego.User{ID: id, FirstName: first, LanguageCode: "en"}
}

func groupMessage(messageID int, from *telego.User, text string) telego.Message {
	return telego.Message{
		MessageID: messageID,
		From:      from,
		Chat:      telego.Chat{ID: testGroupID, Type: telego.ChatTypeSupergroup, Title: "Ninjas"},
		Text:      text,
	}
}

func privateMessage(from *telego.User, text string) telego.Message {
	return telego.Message{
		MessageID: 1,
		From:      from,
		Chat:      telego.Chat{ID: from.ID, Type: telego.ChatTypePrivate},
		Text:      text,
	}
}

func sendsText(substr string) interface{} {
	return mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return strings.Contains(p.Text, substr)
	})
}

func answers(substr string, alert bool) interface{} {
	return mock.MatchedBy(func(p *telego.AnswerCallbackQueryParams) bool {
		return strings.Contains(p.Text, substr) && p.ShowAlert == alert
	})
}

func TestNewMessageHandler(t *testing.T) {
	t.Run("MissingDependency", func(t *testing.T) {
		_, err := NewMessageHandler(Deps{})
		assert.ErrorContains(t, err, "message cache")
	})

	t.Run("Commands", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		for _, cmd := range []string{"start", "help", "ping", "broadcast"} {
			assert.NotNil(t, s.handler.GetCommandHandler(cmd), cmd)
		}
		assert.Nil(t, s.handler.GetCommandHandler("caption"))
	})
}

func TestHandleStart(t *testing.T) {
	ctx := context.Background()

	t.Run("Welcome", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		msg := privateMessage(user(7, "Ann"), "/start")

		s.mockBot.On("GetMe", mock.Anything).Return(&telego.User{ID: 1, Username: "SusNinjaBot"}, nil).Once()
		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			kb, ok := p.ReplyMarkup.(*telego.InlineKeyboardMarkup)
			return ok &&
				strings.Contains(p.Text, "your Sus Ninja just woke up") &&
				strings.Contains(p.Text, `tg://user?id=7`) &&
				p.ParseMode == telego.ModeHTML &&
				p.ReplyParameters != nil && p.ReplyParameters.MessageID == msg.MessageID &&
				len(kb.InlineKeyboard) == 2 &&
				kb.InlineKeyboard[1][0].URL == "https://t.me/SusNinjaBot?startgroup=true"
		})).Return(&telego.Message{}, nil).Once()

		err := s.handler.HandleStart(ctx, s.mockBot, msg)
		assert.NoError(t, err)
		assert.Equal(t, 1, s.tracker.Counts().Users)
		s.mockBot.AssertExpectations(t)
		s.mockActionLogger.AssertCalled(t, "LogUserAction", int64(7), ActionCommandStart, mock.Anything)
	})

	t.Run("CancelsBroadcast", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.broadcaster.Arm(testOwnerID, broadcast.TargetUsers)

		s.mockBot.On("SendMessage", mock.Anything, sendsText("Broadcast’s off")).Return(&telego.Message{}, nil).Once()

		err := s.handler.HandleStart(ctx, s.mockBot, privateMessage(user(testOwnerID, "Boss"), "/start"))
		assert.NoError(t, err)
		assert.False(t, s.broadcaster.IsArmed(testOwnerID))
		s.mockBot.AssertExpectations(t)
		s.mockBot.AssertNotCalled(t, "GetMe", mock.Anything)
	})

	t.Run("GetMeFails", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("GetMe", mock.Anything).Return(nil, errors.New("down")).Once()
		s.mockBot.On("SendMessage", mock.Anything, sendsText("circuits glitched")).Return(&telego.Message{}, nil).Once()

		err := s.handler.HandleStart(ctx, s.mockBot, privateMessage(user(7, "Ann"), "/start"))
		assert.ErrorContains(t, err, "down")
		s.mockBot.AssertExpectations(t)
	})
}

func TestHandleHelpAndPing(t *testing.T) {
	ctx := context.Background()

	t.Run("Help", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			kb, ok := p.ReplyMarkup.(*telego.InlineKeyboardMarkup)
			return ok && strings.Contains(p.Text, "Sus Ninja Manual") &&
				kb.InlineKeyboard[0][0].CallbackData == CallbackHelpExpand
		})).Return(&telego.Message{}, nil).Once()

		assert.NoError(t, s.handler.HandleHelp(ctx, s.mockBot, privateMessage(user(7, "Ann"), "/help")))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("Ping", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("GetMe", mock.Anything).Return(&telego.User{ID: 1}, nil).Once()
		s.mockBot.On("SendMessage", mock.Anything, sendsText(`<a href="https://t.me/group">Pong!</a> 1.50ms`)).Return(&telego.Message{}, nil).Once()

		assert.NoError(t, s.handler.HandlePing(ctx, s.mockBot, privateMessage(user(7, "Ann"), "/ping")))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("PingFallback", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("GetMe", mock.Anything).Return(nil, errors.New("timeout")).Once()
		s.mockBot.On("SendMessage", mock.Anything, sendsText("I'm alive")).Return(&telego.Message{}, nil).Once()

		assert.NoError(t, s.handler.HandlePing(ctx, s.mockBot, privateMessage(user(7, "Ann"), "/ping")))
		s.mockBot.AssertExpectations(t)
	})
}

func TestBroadcastFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("NonOwnerRestricted", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("SendMessage", mock.Anything, sendsText("restricted")).Return(&telego.Message{}, nil).Once()

		assert.NoError(t, s.handler.HandleBroadcast(ctx, s.mockBot, privateMessage(user(7, "Ann"), "/broadcast")))
		s.mockBot.AssertExpectations(t)
		assert.Equal(t, 0, s.tracker.Counts().Users, "restricted attempt is not recorded")
	})

	t.Run("OwnerPicksTargetAndSends", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.tracker.AddUser(ctx, audience.User{ID: 7}, "seed")
		s.tracker.AddGroup(ctx, audience.Group{ID: testGroupID})
		owner := user(testOwnerID, "Boss")

		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			kb, ok := p.ReplyMarkup.(*telego.InlineKeyboardMarkup)
			return ok && strings.Contains(p.Text, "Choose broadcast target") &&
				kb.InlineKeyboard[0][0].Text == "👥 Users (2)" &&
				kb.InlineKeyboard[0][1].Text == "📢 Groups (1)"
		})).Return(&telego.Message{}, nil).Once()
		require.NoError(t, s.handler.HandleBroadcast(ctx, s.mockBot, privateMessage(owner, "/broadcast")))

		picker := &telego.Message{MessageID: 50, Chat: telego.Chat{ID: testOwnerID, Type: telego.ChatTypePrivate}}
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Broadcast’s live! Time to stir the pot, groups", false)).Return(nil).Once()
		s.mockBot.On("EditMessageText", mock.Anything, mock.MatchedBy(func(p *telego.EditMessageTextParams) bool {
			return p.MessageID == 50 && strings.Contains(p.Text, "<b>Target:</b> Groups (1 total)")
		})).Return(&telego.Message{}, nil).Once()
		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *owner, Message: picker, Data: CallbackBroadcastGroups,
		}))
		assert.True(t, s.broadcaster.IsArmed(testOwnerID))

		s.mockBot.On("CopyMessage", mock.Anything, mock.MatchedBy(func(p *telego.CopyMessageParams) bool {
			return p.ChatID.ID == testGroupID && p.FromChatID.ID == testOwnerID
		})).Return(&telego.MessageID{MessageID: 1}, nil).Once()
		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			return strings.Contains(p.Text, "<b>Sent:</b> 1") &&
				strings.Contains(p.Text, "<b>Failed:</b> 0") &&
				strings.Contains(p.Text, "<b>Target:</b> groups")
		})).Return(&telego.Message{}, nil).Once()
		require.NoError(t, s.handler.HandlePrivateMessage(ctx, s.mockBot, privateMessage(owner, "hello everyone")))

		assert.False(t, s.broadcaster.IsArmed(testOwnerID))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("TargetNotForYou", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Not for you", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *user(7, "Ann"), Data: CallbackBroadcastUsers,
		}))
		assert.False(t, s.broadcaster.IsArmed(7))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("PrivateMessageWithoutBroadcast", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		require.NoError(t, s.handler.HandlePrivateMessage(ctx, s.mockBot, privateMessage(user(7, "Ann"), "hi")))
		assert.Equal(t, 1, s.tracker.Counts().Users)
		s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})
}

func TestHandleGroupMessage(t *testing.T) {
	ctx := context.Background()
	s := setupTestHandlerSuite(t)

	captioned := groupMessage(11, user(testEditorID, "Ed"), "")
	captioned.Caption = "photo caption"
	captioned.ReplyToMessage = &telego.Message{MessageID: 10}
	s.handler.HandleGroupMessage(ctx, groupMessage(10, user(testEditorID, "Ed"), "hello"))
	s.handler.HandleGroupMessage(ctx, captioned)

	rec, ok := s.messages.Get(testGroupID, 11)
	require.True(t, ok)
	assert.Equal(t, "photo caption", rec.Text)
	require.NotNil(t, rec.AuthorID)
	assert.Equal(t, testEditorID, *rec.AuthorID)
	require.NotNil(t, rec.ReplyToMessageID)
	assert.Equal(t, 10, *rec.ReplyToMessageID)

	counts := s.tracker.Counts()
	assert.Equal(t, audience.Counts{Users: 1, Groups: 1, ActiveChats: 1}, counts)
}

func TestHandleEditedMessage(t *testing.T) {
	ctx := context.Background()
	editor := user(testEditorID, "Ed")

	t.Run("Notifies", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.handler.HandleGroupMessage(ctx, groupMessage(10, editor, "hello"))

		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			kb, ok := p.ReplyMarkup.(*telego.InlineKeyboardMarkup)
			return ok && strings.Contains(p.Text, "Message Edited") &&
				!edits.IsExpanded(p.Text) &&
				p.ReplyParameters != nil && p.ReplyParameters.MessageID == 10 &&
				kb.InlineKeyboard[0][0].Text == edits.GlyphCollapsed &&
				kb.InlineKeyboard[0][0].CallbackData == "reveal_edit:10:42" &&
				kb.InlineKeyboard[0][1].CallbackData == "dismiss_edit:10:42"
		})).Return(&telego.Message{}, nil).Once()

		require.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, groupMessage(10, editor, "goodbye")))
		s.mockBot.AssertExpectations(t)
		assert.Equal(t, 1, s.sessions.Len())
	})

	t.Run("RetriesWithoutReply", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.handler.HandleGroupMessage(ctx, groupMessage(10, editor, "hello"))

		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			return p.ReplyParameters != nil
		})).Return(nil, errors.New("message to reply not found")).Once()
		s.mockBot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
			return p.ReplyParameters == nil
		})).Return(&telego.Message{}, nil).Once()

		require.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, groupMessage(10, editor, "goodbye")))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("SilentCases", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.handler.HandleGroupMessage(ctx, groupMessage(10, editor, "hello"))

		assert.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, groupMessage(10, editor, "hello")), "unchanged text")
		assert.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, groupMessage(99, editor, "unseen")), "not cached")

		private := privateMessage(editor, "edited in private")
		assert.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, private))

		s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
		assert.Equal(t, 0, s.sessions.Len())
	})
}

func TestEditNotificationCallbacks(t *testing.T) {
	ctx := context.Background()
	editor := user(testEditorID, "Ed")
	other := user(testOtherID, "Olga")
	notification := func(text string) *telego.Message {
		return &telego.Message{MessageID: 500, Chat: telego.Chat{ID: testGroupID, Type: telego.ChatTypeSupergroup}, Text: text}
	}

	setup := func(t *testing.T) *testHandlerSuite {
		s := setupTestHandlerSuite(t)
		s.handler.HandleGroupMessage(ctx, groupMessage(10, editor, "<b>hi</b>"))
		s.mockBot.On("SendMessage", mock.Anything, mock.Anything).Return(&telego.Message{}, nil).Once()
		require.NoError(t, s.handler.HandleEditedMessage(ctx, s.mockBot, groupMessage(10, editor, "bye")))
		return s
	}

	t.Run("RevealByOther", func(t *testing.T) {
		s := setup(t)
		s.mockBot.On("EditMessageText", mock.Anything, mock.MatchedBy(func(p *telego.EditMessageTextParams) bool {
			return p.MessageID == 500 &&
				strings.Contains(p.Text, "<b>From:</b> &lt;b&gt;hi&lt;/b&gt;") &&
				strings.Contains(p.Text, "<b>To:</b> bye") &&
				p.ReplyMarkup.InlineKeyboard[0][0].Text == edits.GlyphExpanded
		})).Return(&telego.Message{}, nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Details revealed", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("Message Edited by Ed\nClick Reveal"), Data: "reveal_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("HideExpanded", func(t *testing.T) {
		s := setup(t)
		s.mockBot.On("EditMessageText", mock.Anything, mock.MatchedBy(func(p *telego.EditMessageTextParams) bool {
			return !edits.IsExpanded(p.Text) && p.ReplyMarkup.InlineKeyboard[0][0].Text == edits.GlyphCollapsed
		})).Return(&telego.Message{}, nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Details hidden", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("Message Edited\n\nFrom: hi\n\nTo: bye"), Data: "reveal_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("EditorCannotReveal", func(t *testing.T) {
		s := setup(t)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("No spying on your mess", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *editor, Message: notification("x"), Data: "reveal_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockBot.AssertNotCalled(t, "EditMessageText", mock.Anything, mock.Anything)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		s := setup(t)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("poofed away", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "reveal_edit:77:42",
		}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		s := setup(t)
		require.Equal(t, 1, s.sessions.Len())
		s.sessionClock.Advance(time.Hour + time.Second)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("poofed away", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("Message Edited by Ed\nClick Reveal"), Data: "reveal_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockBot.AssertNotCalled(t, "EditMessageText", mock.Anything, mock.Anything)
	})

	t.Run("DismissByNonAdmin", func(t *testing.T) {
		s := setup(t)
		s.mockAdminChecker.On("IsAdmin", mock.Anything, testGroupID, testOtherID).Return(false, nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Only admins", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "dismiss_edit:10",
		}))
		s.mockBot.AssertExpectations(t)
		assert.Equal(t, 1, s.sessions.Len())
	})

	t.Run("DismissByEditorEvenAsAdmin", func(t *testing.T) {
		s := setup(t)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Trying to hide that mess", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *editor, Message: notification("x"), Data: "dismiss_edit:10",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockAdminChecker.AssertNotCalled(t, "IsAdmin", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("DismissByAdmin", func(t *testing.T) {
		s := setup(t)
		s.mockAdminChecker.On("IsAdmin", mock.Anything, testGroupID, testOtherID).Return(true, nil).Once()
		s.mockBot.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(p *telego.DeleteMessageParams) bool {
			return p.ChatID.ID == testGroupID && p.MessageID == 500
		})).Return(nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Poof!", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "dismiss_edit:10",
		}))
		s.mockBot.AssertExpectations(t)
		assert.Equal(t, 0, s.sessions.Len())
	})

	t.Run("DismissByEditorAfterSessionExpired", func(t *testing.T) {
		s := setup(t)
		s.sessionClock.Advance(time.Hour + time.Second)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Trying to hide that mess", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *editor, Message: notification("x"), Data: "dismiss_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockAdminChecker.AssertNotCalled(t, "IsAdmin", mock.Anything, mock.Anything, mock.Anything)
		s.mockBot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	})

	t.Run("DismissByEditorAfterSessionEvicted", func(t *testing.T) {
		s := setup(t)
		for i := 0; i < 100; i++ {
			s.sessions.Put(edits.Key{ChatID: testGroupID, MessageID: 1000 + i}, edits.Session{EditorID: testOtherID})
		}
		_, found := s.sessions.Get(edits.Key{ChatID: testGroupID, MessageID: 10})
		require.False(t, found)

		msg := notification("x")
		msg.ReplyMarkup = tu.InlineKeyboard(tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(edits.GlyphCollapsed).WithCallbackData(edits.RevealData(10, testEditorID)),
			tu.InlineKeyboardButton(edits.GlyphDismiss).WithCallbackData("dismiss_edit:10"),
		))
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Trying to hide that mess", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *editor, Message: msg, Data: "dismiss_edit:10",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockBot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	})

	t.Run("DismissWithoutSessionByAdmin", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockAdminChecker.On("IsAdmin", mock.Anything, testGroupID, testOtherID).Return(true, nil).Once()
		s.mockBot.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("Poof!", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "dismiss_edit:10:42",
		}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("AdminCheckFails", func(t *testing.T) {
		s := setup(t)
		s.mockAdminChecker.On("IsAdmin", mock.Anything, testGroupID, testOtherID).Return(false, errors.New("api")).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("circuits fluttered", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "dismiss_edit:10",
		}))
		s.mockBot.AssertExpectations(t)
		s.mockBot.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
	})

	t.Run("DeleteFails", func(t *testing.T) {
		s := setup(t)
		s.mockAdminChecker.On("IsAdmin", mock.Anything, testGroupID, testOtherID).Return(true, nil).Once()
		s.mockBot.On("DeleteMessage", mock.Anything, mock.Anything).Return(errors.New("too old")).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("didn’t go as planned", true)).Return(nil).Once()

		err := s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *other, Message: notification("x"), Data: "dismiss_edit:10",
		})
		assert.ErrorContains(t, err, "too old")
		assert.Equal(t, 1, s.sessions.Len())
	})
}

func TestHandleCallbackQueryMisc(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownDataAnsweredSilently", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{ID: "cb", Data: "mystery"}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("HelpToggle", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		msg := &telego.Message{MessageID: 9, Chat: telego.Chat{ID: 7, Type: telego.ChatTypePrivate}}
		s.mockBot.On("EditMessageText", mock.Anything, mock.MatchedBy(func(p *telego.EditMessageTextParams) bool {
			return strings.Contains(p.Text, "My Powers") && p.ReplyMarkup.InlineKeyboard[0][0].CallbackData == CallbackHelpMinimize
		})).Return(&telego.Message{}, nil).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("", false)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *user(7, "Ann"), Message: msg, Data: CallbackHelpExpand,
		}))
		s.mockBot.AssertExpectations(t)
	})

	t.Run("HelpToggleFails", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		msg := &telego.Message{MessageID: 9, Chat: telego.Chat{ID: 7, Type: telego.ChatTypePrivate}}
		s.mockBot.On("EditMessageText", mock.Anything, mock.Anything).Return(nil, errors.New("not modified")).Once()
		s.mockBot.On("AnswerCallbackQuery", mock.Anything, answers("minimizer just melted", true)).Return(nil).Once()

		require.NoError(t, s.handler.HandleCallbackQuery(ctx, s.mockBot, telego.CallbackQuery{
			ID: "cb", From: *user(7, "Ann"), Message: msg, Data: CallbackHelpMinimize,
		}))
		s.mockBot.AssertExpectations(t)
	})
}

func TestHandleNewMembersAndSetupCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("BotAdded", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		msg := groupMessage(3, user(7, "Ann"), "")
		msg.NewChatMembers = []telego.User{{ID: 5}, {ID: 1, IsBot: true}}

		s.mockBot.On("GetMe", mock.Anything).Return(&telego.User{ID: 1}, nil).Once()
		s.mockBot.On("SendMessage", mock.Anything, sendsText("Thanks for adding Sus Ninja")).Return(&telego.Message{}, nil).Once()

		require.NoError(t, s.handler.HandleNewMembers(ctx, s.mockBot, msg))
		s.mockBot.AssertExpectations(t)
		assert.Equal(t, 1, s.tracker.Counts().Groups)
	})

	t.Run("OtherMembers", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		msg := groupMessage(3, user(7, "Ann"), "")
		msg.NewChatMembers = []telego.User{{ID: 5}}

		s.mockBot.On("GetMe", mock.Anything).Return(&telego.User{ID: 1}, nil).Once()
		require.NoError(t, s.handler.HandleNewMembers(ctx, s.mockBot, msg))
		s.mockBot.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})

	t.Run("SetupCommands", func(t *testing.T) {
		s := setupTestHandlerSuite(t)
		s.mockBot.On("SetMyCommands", mock.Anything, mock.MatchedBy(func(p *telego.SetMyCommandsParams) bool {
			return len(p.Commands) == 2 &&
				p.Commands[0].Command == "start" && p.Commands[0].Description == "⚔️ Awaken Sus Ninja" &&
				p.Commands[1].Command == "help"
		})).Return(nil).Once()

		require.NoError(t, s.handler.SetupCommands(ctx, s.mockBot))
		s.mockBot.AssertExpectations(t)
	})
}
