package slack

import "fmt"

// envelope is the common response wrapper of every Slack Web API call. On
// failure ok is false and error carries the upstream code string.
type envelope struct {
	OK               bool   `json:"ok"`
	ErrorCode        string `json:"error,omitempty"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (e *envelope) apiOK() bool       { return e.OK }
func (e *envelope) apiError() string  { return e.ErrorCode }
func (e *envelope) nextCursor() string { return e.ResponseMetadata.NextCursor }

// apiResponse is satisfied by every response struct embedding envelope.
type apiResponse interface {
	apiOK() bool
	apiError() string
}

// APIError carries the upstream error code of a failed Slack API call.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack api %s failed: %s", e.Method, e.Code)
}

// ErrorCode extracts the upstream code from err if it is an APIError.
func ErrorCode(err error) string {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Code
	}
	return ""
}

// AuthIdentity is the subset of auth.test this module consumes.
type AuthIdentity struct {
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
	Team   string `json:"team"`
	TeamID string `json:"team_id"`
}

// User is the metadata projection of a workspace user.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	IsBot    bool   `json:"is_bot"`
	Deleted  bool   `json:"deleted"`
}

// Channel is the metadata projection of a conversation.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	IsArchived bool   `json:"is_archived"`
	NumMembers int    `json:"num_members"`
}

// HistoryMessage is the metadata-only projection of one message in a
/// conversation history page. Message text is deliberately absent: the sync
// path never requests or stores content.
type HistoryMessage struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype,omitempty"`
	Ts       string `json:"ts"`
	ThreadTs string `json:"thread_ts,omitempty"`
	User     string `json:"user,omitempty"`
	BotID    string `json:"bot_id,omitempty"`
}

// HistoryPage is one page of conversation history.
type HistoryPage struct {
	Messages   []HistoryMessage
	HasMore    bool
	NextCursor string
}

// HistoryOptions control a single conversations.history page fetch. Oldest
// and Latest are exclusive Slack timestamp bounds; Cursor continues a prior
// page.
type HistoryOptions struct {
	Oldest string
	Latest string
	Cursor string
	Limit  int
}

type authTestResponse struct {
	envelope
	AuthIdentity
}

type usersListResponse struct {
	envelope
	Members []User `json:"members"`
}

type conversationsListResponse struct {
	envelope
	Channels []Channel `json:"channels"`
}

type conversationsHistoryResponse struct {
	envelope
	Messages []HistoryMessage `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

type conversationsMembersResponse struct {
	envelope
	Members []string `json:"members"`
}

type conversationsJoinResponse struct {
	envelope
	Channel Channel `json:"channel"`
}

type chatPostMessageResponse struct {
	envelope
	Ts string `json:"ts"`
}

type chatGetPermalinkResponse struct {
	envelope
	Permalink string `json:"permalink"`
}
