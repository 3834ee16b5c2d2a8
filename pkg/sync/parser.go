package sync

import (
	"github.com/pulsedesk/slack-sync/pkg/slack"
	"github.com/pulsedesk/slack-sync/pkg/syncdb"
	"github.com/pulsedesk/slack-sync/pkg/tstamp"
)

// skipSubtypes are channel administrative events, not conversational content.
var skipSubtypes = map[string]struct{}{
	"channel_join":      {},
	"channel_leave":     {},
	"channel_topic":     {},
	"channel_purpose":   {},
	"channel_name":      {},
	"channel_archive":   {},
	"channel_unarchive": {},
	"pinned_item":       {},
	"unpinned_item":     {},
}

// ParseMessage converts one raw history message into a stored metadata row.
// It returns nil for administrative subtypes and for messages whose
// timestamp cannot be parsed; malformed data is dropped, never fatal.
//
// Sender classification checks the user field before bot_id, so a message
// carrying both is attributed to the user.
func ParseMessage(raw *slack.HistoryMessage, channelID string, staffLookup map[string]string) *syncdb.Message {
	if _, skip := skipSubtypes[raw.Subtype]; skip {
		return nil
	}

	postedAt, err := tstamp.Parse(raw.Ts)
	if err != nil {
		return nil
	}

	msg := &syncdb.Message{
		ChannelID: channelID,
		MessageTs: raw.Ts,
		PostedAt:  postedAt,
	}
	if raw.ThreadTs != "" {
		threadTs := raw.ThreadTs
		msg.ThreadTs = &threadTs
	}

	switch {
	case raw.User != "":
		msg.SenderType = syncdb.SenderTypeUser
		userID := raw.User
		msg.SenderExternalID = &userID
		if staffID, ok := staffLookup[raw.User]; ok {
			msg.SenderStaffID = &staffID
			msg.SenderIsStaff = true
		}
	case raw.BotID != "":
		msg.SenderType = syncdb.SenderTypeBot
		botID := raw.BotID
		msg.SenderBotID = &botID
	default:
		msg.SenderType = syncdb.SenderTypeSystem
	}
	return msg
}

// parsePage runs ParseMessage over a history page, dropping filtered rows.
func parsePage(page *slack.HistoryPage, channelID string, staffLookup map[string]string) []*syncdb.Message {
	msgs := make([]*syncdb.Message, 0, len(page.Messages))
	for i := range page.Messages {
		if msg := ParseMessage(&page.Messages[i], channelID, staffLookup); msg != nil {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}
