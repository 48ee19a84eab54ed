package roads

import "context"

// SectionStore manages road sections and their inspections.
type SectionStore interface {
	ListSections(ctx context.Context, f SectionFilter) (SectionPage, error)
	GetSection(ctx context.Context, id int64) (SectionDetail, error)
	SectionGeodata(ctx context.Context, id int64) (Geodata, error)
	CreateSection(ctx context.Context, in SectionInput) (Section, error)
	UpdateSection(ctx context.Context, id int64, p SectionPatch) (Section, error)
	DeleteSection(ctx context.Context, id int64) (Section, error)
	AddInspection(ctx context.Context, sectionID int64, in InspectionInput) (Inspection, error)
	MapStats(ctx context.Context) (MapStats, error)
}

// LotStore manages lots and document types.
type LotStore interface {
	ListLots(ctx context.Context) ([]Lot, error)
	GetLot(ctx context.Context, id int64) (Lot, error)
	CreateLot(ctx context.Context, in LotInput) (Lot, error)

	ListTypes(ctx context.Context) ([]DocumentType, error)
	CreateType(ctx context.Context, in TypeInput) (DocumentType, error)
	UpdateType(ctx context.Context, id int64, in TypeInput) (DocumentType, error)
	DeleteType(ctx context.Context, id int64) error
}

// DocumentStore manages documents and their append-only versions.
type DocumentStore interface {
	ListDocuments(ctx context.Context, f DocumentFilter) (DocumentPage, error)
	GetDocument(ctx context.Context, id int64) (DocumentDetail, error)
	CreateDocument(ctx context.Context, in DocumentInput) (Document, error)
	DeleteDocument(ctx context.Context, id int64) (RemovedDocument, error)
	// CreateVersion assigns max(version_number)+1 atomically per document.
	CreateVersion(ctx context.Context, documentID int64, in VersionInput) (Version, error)
	GetVersion(ctx context.Context, documentID, versionID int64) (Version, error)
}

// MeetingStore manages meetings and their minutes.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, in MeetingInput) (Meeting, error)
	ListMeetings(ctx context.Context, lotID int64, upcomingOnly bool) ([]Meeting, error)
	GetMeeting(ctx context.Context, id int64) (Meeting, error)
	UpdateMeeting(ctx context.Context, id int64, p MeetingPatch) (Meeting, error)
	DeleteMeeting(ctx context.Context, id int64) (Meeting, error)
	SendInvitations(ctx context.Context, id int64) (Meeting, error)
	// SaveMinutes creates the PV or edits the existing one; created reports which.
	SaveMinutes(ctx context.Context, meetingID int64, in MinutesInput) (m Minutes, created bool, err error)
	GetMinutes(ctx context.Context, meetingID int64) (Minutes, error)
	UsualParticipants(ctx context.Context, lotID int64) ([]ParticipantCount, error)
}

// CommsStore manages messages and notifications.
type CommsStore interface {
	MessageWriter
	ListMessages(ctx context.Context, lotID, userID int64) ([]Message, error)
	CreateNotification(ctx context.Context, in NotificationInput) (Notification, error)
	ListNotifications(ctx context.Context, lotID, userID int64, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) (Notification, error)
}

// UserStore manages accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u NewUser) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	FindUserByLogin(ctx context.Context, login string) (User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]User, error)
	UpdateUser(ctx context.Context, id int64, p UserPatch) (User, error)
	DeleteUser(ctx context.Context, id int64) (User, error)
	SetPassword(ctx context.Context, id int64, hash string) error
}

// ActionLog persists the audit trail and dashboard aggregates.
type ActionLog interface {
	RecordAction(ctx context.Context, a UserAction) error
	RecentActions(ctx context.Context, limit int) ([]UserAction, error)
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

// Store is the full persistence surface used by the API.
type Store interface {
	SectionStore
	LotStore
	DocumentStore
	MeetingStore
	CommsStore
	UserStore
	ActionLog
	Ping(ctx context.Context) error
}
