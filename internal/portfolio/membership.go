package portfolio

import "time"

// MembershipAction is an index-membership event kind (§4.3.1 step 1).
type MembershipAction string

const (
	MembershipAdd    MembershipAction = "add"
	MembershipRemove MembershipAction = "remove"
)

// MembershipEvent schedules a symbol's entry into or exit from the
// portfolio, effective on Date.
type MembershipEvent struct {
	Symbol string
	Date   time.Time
	Action MembershipAction
}
