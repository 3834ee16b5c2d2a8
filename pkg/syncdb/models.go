package syncdb

import (
	"time"

	"github.com/uptrace/bun"
)

// RunStatus represents the lifecycle state of a sync run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SenderType classifies who authored a Slack message.
type SenderType string

const (
	SenderTypeUser   SenderType = "user"
	SenderTypeBot    SenderType = "bot"
	SenderTypeSystem SenderType = "system"
)

// ChannelSyncState maps to the 'slack_sync_state' table, one row per synced
// channel. latest_ts only ever moves forward and oldest_ts only ever moves
// backward; is_backfill_complete latches true.
type ChannelSyncState struct {
	bun.BaseModel      `bun:"table:slack_sync_state,alias:ss"`
	ChannelID          string     `bun:"channel_id,pk,type:varchar(32)"`
	ChannelName        string     `bun:"channel_name,notnull,type:varchar(255)"`
	MappedPartnerID    *string    `bun:"mapped_partner_id,type:varchar(64)"`
	LatestTs           *string    `bun:"latest_ts,type:varchar(32)"`
	OldestTs           *string    `bun:"oldest_ts,type:varchar(32)"`
	IsBackfillComplete bool       `bun:"is_backfill_complete,notnull,default:false"`
	BotIsMember        bool       `bun:"bot_is_member,notnull,default:false"`
	MessageCount       int64      `bun:"message_count,notnull,default:0"`
	LastSyncedAt       *time.Time `bun:"last_synced_at"`
	Error              *string    `bun:"error,type:text"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
}

// Message maps to the 'slack_messages' table. It is a content-free
// projection of an upstream message; (channel_id, message_ts) is the natural
// idempotency key. Only the staff attribution fields are ever mutated after
// insert, and only by the reclassification service.
type Message struct {
	bun.BaseModel    `bun:"table:slack_messages,alias:m"`
	ID               int64      `bun:"id,pk,autoincrement"`
	ChannelID        string     `bun:"channel_id,notnull,type:varchar(32)"`
	MessageTs        string     `bun:"message_ts,notnull,type:varchar(32)"`
	ThreadTs         *string    `bun:"thread_ts,type:varchar(32)"`
	SenderType       SenderType `bun:"sender_type,notnull,type:varchar(16)"`
	SenderExternalID *string    `bun:"sender_external_id,type:varchar(32)"`
	SenderBotID      *string    `bun:"sender_bot_id,type:varchar(32)"`
	SenderStaffID    *string    `bun:"sender_staff_id,type:varchar(64)"`
	SenderIsStaff    bool       `bun:"sender_is_staff,notnull,default:false"`
	PostedAt         time.Time  `bun:"posted_at,notnull"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
}

// SyncRun maps to the 'slack_sync_runs' table. A run is the unit of mutual
// exclusion for the whole sync subsystem: its lease row decides which worker
// may process chunks.
type SyncRun struct {
	bun.BaseModel        `bun:"table:slack_sync_runs,alias:sr"`
	ID                   string     `bun:"id,pk,type:uuid"`
	Status               RunStatus  `bun:"status,notnull,type:varchar(16)"`
	TriggeredBy          string     `bun:"triggered_by,notnull,type:varchar(64)"`
	TotalChannels        int        `bun:"total_channels,notnull,default:0"`
	SyncedChannels       int        `bun:"synced_channels,notnull,default:0"`
	FailedChannels       int        `bun:"failed_channels,notnull,default:0"`
	TotalMessagesSynced  int64      `bun:"total_messages_synced,notnull,default:0"`
	NextChannelOffset    int        `bun:"next_channel_offset,notnull,default:0"`
	WorkerLeaseExpiresAt *time.Time `bun:"worker_lease_expires_at"`
	LastHeartbeatAt      *time.Time `bun:"last_heartbeat_at"`
	StartedAt            time.Time  `bun:"started_at,nullzero,default:current_timestamp"`
	CompletedAt          *time.Time `bun:"completed_at"`
	Error                *string    `bun:"error,type:text"`
}

// ResponseMetric maps to the 'slack_response_metrics' table, one row per
// channel per calendar day. Recomputation overwrites via upsert on
// (channel_id, date).
type ResponseMetric struct {
	bun.BaseModel         `bun:"table:slack_response_metrics,alias:rm"`
	ID                    int64     `bun:"id,pk,autoincrement"`
	ChannelID             string    `bun:"channel_id,notnull,type:varchar(32)"`
	PartnerID             string    `bun:"partner_id,notnull,type:varchar(64)"`
	PodLeaderID           *string   `bun:"pod_leader_id,type:varchar(64)"`
	Date                  time.Time `bun:"date,notnull,type:date"`
	TotalMessages         int       `bun:"total_messages,notnull,default:0"`
	StaffMessages         int       `bun:"staff_messages,notnull,default:0"`
	PartnerMessages       int       `bun:"partner_messages,notnull,default:0"`
	AvgResponseMinutes    *float64  `bun:"avg_response_minutes"`
	MedianResponseMinutes *float64  `bun:"median_response_minutes"`
	P95ResponseMinutes    *float64  `bun:"p95_response_minutes"`
	MaxResponseMinutes    *float64  `bun:"max_response_minutes"`
	MinResponseMinutes    *float64  `bun:"min_response_minutes"`
	RespUnder30m          int       `bun:"resp_under_30m,notnull,default:0"`
	Resp30mTo1h           int       `bun:"resp_30m_to_1h,notnull,default:0"`
	Resp1hTo4h            int       `bun:"resp_1h_to_4h,notnull,default:0"`
	Resp4hTo24h           int       `bun:"resp_4h_to_24h,notnull,default:0"`
	RespOver24h           int       `bun:"resp_over_24h,notnull,default:0"`
	UnansweredCount       int       `bun:"unanswered_count,notnull,default:0"`
	AlgorithmVersion      int       `bun:"algorithm_version,notnull,default:1"`
	ComputedAt            time.Time `bun:"computed_at,nullzero,default:current_timestamp"`
}

// ExternalIdentity maps to the generic 'external_identities' join table.
// The staff resolver filters it by entity_type and source; rows are written
// by the surrounding system, never by this module.
type ExternalIdentity struct {
	bun.BaseModel `bun:"table:external_identities,alias:ei"`
	ID            int64     `bun:"id,pk,autoincrement"`
	EntityType    string    `bun:"entity_type,notnull,type:varchar(32)"`
	EntityID      string    `bun:"entity_id,notnull,type:varchar(64)"`
	Source        string    `bun:"source,notnull,type:varchar(32)"`
	ExternalID    string    `bun:"external_id,notnull,type:varchar(64)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

// EntityTypeStaff and SourceSlackUser are the filters the staff resolver uses
// against external_identities.
const (
	EntityTypeStaff = "staff"
	SourceSlackUser = "slack_user"
)

// RolePodLeader is the assignment role resolved into ResponseMetric rows.
const RolePodLeader = "pod_leader"

// PartnerAssignment maps to the 'partner_assignments' table. An assignment is
// currently active while unassigned_at is null.
type PartnerAssignment struct {
	bun.BaseModel `bun:"table:partner_assignments,alias:pa"`
	ID            int64      `bun:"id,pk,autoincrement"`
	PartnerID     string     `bun:"partner_id,notnull,type:varchar(64)"`
	StaffID       string     `bun:"staff_id,notnull,type:varchar(64)"`
	Role          string     `bun:"role,notnull,type:varchar(32)"`
	PartnerStatus *string    `bun:"partner_status,type:varchar(64)"`
	AssignedAt    time.Time  `bun:"assigned_at,nullzero,default:current_timestamp"`
	UnassignedAt  *time.Time `bun:"unassigned_at"`
}
