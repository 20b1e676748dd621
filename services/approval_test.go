package services

import (
	"testing"
	"time"

	"gamification-service/models"
	"gamification-service/testutil"

	"github.com/stretchr/testify/require"
)

func TestApprovalHappyPath(t *testing.T) {
	db := testutil.NewTestDB(t)
	workflow := NewApprovalWorkflow(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalDraft)

	submitted, err := workflow.Submit(ch.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalPending, submitted.ApprovalStatus)

	approved, err := workflow.Approve(ch.ID, "bob", "looks good")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, approved.ApprovalStatus)

	history, err := workflow.History(ch.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.ApprovalPending, history[0].Status)
	require.Equal(t, models.ApprovalApproved, history[1].Status)
	require.Equal(t, "bob", history[1].Actor)
	require.Equal(t, "looks good", history[1].Comment)
}

func TestApprovalRejectedMayResubmit(t *testing.T) {
	db := testutil.NewTestDB(t)
	workflow := NewApprovalWorkflow(db)
	catalog := NewChallengeCatalog(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalDraft)

	_, err := workflow.Submit(ch.ID, "alice")
	require.NoError(t, err)
	_, err = workflow.Reject(ch.ID, "bob", "threshold too low")
	require.NoError(t, err)

	// Invisible to the catalog while rejected
	matches, err := catalog.MatchingChallenges("anyone", models.EventQuizPassed, time.Now())
	require.NoError(t, err)
	require.Empty(t, matches)

	_, err = workflow.Submit(ch.ID, "alice")
	require.NoError(t, err)
	_, err = workflow.Approve(ch.ID, "bob", "fixed")
	require.NoError(t, err)

	// Same identity, one new pending cycle, full audit trail
	history, err := workflow.History(ch.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	require.Equal(t, models.ApprovalPending, history[0].Status)
	require.Equal(t, models.ApprovalRejected, history[1].Status)
	require.Equal(t, models.ApprovalPending, history[2].Status)
	require.Equal(t, models.ApprovalApproved, history[3].Status)

	// Visible only after the final approve
	matches, err = catalog.MatchingChallenges("anyone", models.EventQuizPassed, time.Now())
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestApprovalInvalidTransitions(t *testing.T) {
	db := testutil.NewTestDB(t)
	workflow := NewApprovalWorkflow(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalDraft)

	// No direct draft → approved
	_, err := workflow.Approve(ch.ID, "bob", "")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, models.ApprovalDraft, invalid.Current)

	// No direct draft → rejected either
	_, err = workflow.Reject(ch.ID, "bob", "")
	require.ErrorAs(t, err, &invalid)

	_, err = workflow.Submit(ch.ID, "alice")
	require.NoError(t, err)

	// Submitting a pending challenge is a misuse
	_, err = workflow.Submit(ch.ID, "alice")
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, models.ApprovalPending, invalid.Current)

	_, err = workflow.Reject(ch.ID, "bob", "scope too broad")
	require.NoError(t, err)

	// A rejected challenge must be resubmitted, not approved directly
	_, err = workflow.Approve(ch.ID, "bob", "")
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, models.ApprovalRejected, invalid.Current)
}

func TestApprovalTerminalIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	workflow := NewApprovalWorkflow(db)
	ch := seedChallenge(t, db, models.EventQuizPassed, 5, models.ScopeGlobal, models.ApprovalDraft)

	_, err := workflow.Submit(ch.ID, "alice")
	require.NoError(t, err)
	_, err = workflow.Approve(ch.ID, "bob", "")
	require.NoError(t, err)

	// Re-approving is a successful no-op with no new history entry
	again, err := workflow.Approve(ch.ID, "bob", "")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, again.ApprovalStatus)

	history, err := workflow.History(ch.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
