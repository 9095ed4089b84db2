package businessflow

import (
	"slices"
)

// IdentityLedger records each identity at most once. It backs both the
// application and the engagement ledgers of a campaign.
type IdentityLedger struct {
	members map[string]struct{}
}

// NewIdentityLedger creates an empty ledger
func NewIdentityLedger() *IdentityLedger {
	return &IdentityLedger{members: make(map[string]struct{})}
}

// Record inserts the identity, failing if it is already present
func (l *IdentityLedger) Record(identity string) error {
	if _, ok := l.members[identity]; ok {
		return ErrAlreadyRecorded
	}
	l.members[identity] = struct{}{}
	return nil
}

// Contains reports membership
func (l *IdentityLedger) Contains(identity string) bool {
	_, ok := l.members[identity]
	return ok
}

// Count returns the number of recorded identities
func (l *IdentityLedger) Count() int {
	return len(l.members)
}

// Members returns the recorded identities in sorted order
func (l *IdentityLedger) Members() []string {
	out := make([]string, 0, len(l.members))
	for id := range l.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (l *IdentityLedger) remove(identity string) {
	delete(l.members, identity)
}
