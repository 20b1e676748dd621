package services

import (
	"errors"
	"fmt"

	"gamification-service/models"
)

// ErrMalformedEvent: client-fixable input, logged and dropped — no retry
// will help. Handlers map it to 400.
var ErrMalformedEvent = errors.New("malformed event")

// ErrConcurrentUpdate: optimistic retries exhausted for one progress row.
// Transient; the caller redelivers and the idempotency marker sorts it out.
var ErrConcurrentUpdate = errors.New("concurrent update conflict")

// InvalidTransitionError rejects a workflow call made from the wrong
// state, surfacing the state the challenge is actually in.
type InvalidTransitionError struct {
	ChallengeID string
	Current     models.ApprovalStatus
	Requested   models.ApprovalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition to %s: challenge %s is %s", e.Requested, e.ChallengeID, e.Current)
}
