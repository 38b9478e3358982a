package subscriptions

import "strings"

type Status string

const (
	StatusActive            Status = "active"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusTrialing          Status = "trialing"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusUnpaid            Status = "unpaid"
	StatusPaused            Status = "paused"
)

var knownStatuses = map[string]Status{
	"active":             StatusActive,
	"past_due":           StatusPastDue,
	"canceled":           StatusCanceled,
	"trialing":           StatusTrialing,
	"incomplete":         StatusIncomplete,
	"incomplete_expired": StatusIncompleteExpired,
	"unpaid":             StatusUnpaid,
	"paused":             StatusPaused,
}

// MapProviderStatus maps a Stripe subscription status onto the local enum.
// Anything unrecognised becomes incomplete.
func MapProviderStatus(s string) Status {
	if st, ok := knownStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st
	}
	return StatusIncomplete
}
