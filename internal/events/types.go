package events

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// Tables clients may watch over the realtime feed.
const (
	TablePolls       = "polls"
	TablePollOptions = "poll_options"
	TableVotes       = "votes"
	TableProfiles    = "profiles"
	TableUserRoles   = "user_roles"
	TableSubscribers = "email_subscribers"
)

var WatchableTables = []string{
	TablePolls,
	TablePollOptions,
	TableVotes,
	TableProfiles,
	TableUserRoles,
	TableSubscribers,
}

// User event types, in the form domain.action
const (
	EventTypeSessionSignedIn      = "session.signed_in"
	EventTypeSessionSignedOut     = "session.signed_out"
	EventTypePollApproved         = "poll.approved"
	EventTypePollRejected         = "poll.rejected"
	EventTypeVerificationApproved = "verification.approved"
	EventTypeVerificationRejected = "verification.rejected"
	EventTypeRoleChanged          = "role.changed"
)
