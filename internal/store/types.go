package store

// JobFilter narrows ListJobs. Zero fields do not filter.
type JobFilter struct {
	EmployerID int64
	// TitlePrefix and CityPrefix match case-sensitively from the start.
	TitlePrefix string
	CityPrefix  string
	Experience  string
	// MinSalary keeps jobs whose SalaryFrom is set and at least MinSalary.
	MinSalary *int
	Limit     int
}

// Notification is a queued push-notification request for a sent message.
type Notification struct {
	ID           int64
	ClientID     string
	ReceiverID   int64
	SenderID     int64
	SenderName   string
	Text         string
	Status       string // queued, sending, sent, failed
	Attempts     int
	ErrorMessage string
	RemoteID     string
	CreatedAt    int64
}

// Notification statuses.
const (
	NotificationQueued  = "queued"
	NotificationSending = "sending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)
