package services

import (
	"testing"

	"gamification-service/models"
	"gamification-service/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestApplyDeltaCreatesAndIncrements(t *testing.T) {
	db := testutil.NewTestDB(t)
	agg := NewRewardAggregator(db)
	userID := uuid.NewString()

	require.NoError(t, agg.ApplyDelta(userID, 100, models.RewardSourceChallenge))
	require.NoError(t, agg.ApplyDelta(userID, 25, models.RewardSourceBadge))
	require.NoError(t, agg.ApplyDelta(userID, 50, models.RewardSourceChallenge))

	summary, categories, err := agg.Summary(userID)
	require.NoError(t, err)
	require.Equal(t, int64(175), summary.TotalPoints)
	require.Len(t, categories, 2)

	byCat := map[string]models.RewardCategoryCount{}
	for _, c := range categories {
		byCat[c.Category] = c
	}
	require.Equal(t, int64(2), byCat[models.RewardSourceChallenge].Grants)
	require.Equal(t, int64(150), byCat[models.RewardSourceChallenge].Points)
	require.Equal(t, int64(1), byCat[models.RewardSourceBadge].Grants)
	require.Equal(t, int64(25), byCat[models.RewardSourceBadge].Points)
}

func TestApplyDeltaRejectsNegative(t *testing.T) {
	db := testutil.NewTestDB(t)
	agg := NewRewardAggregator(db)

	require.Error(t, agg.ApplyDelta(uuid.NewString(), -10, models.RewardSourceChallenge))
}

func TestSummaryZeroValuedForNewUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	agg := NewRewardAggregator(db)

	summary, categories, err := agg.Summary(uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, int64(0), summary.TotalPoints)
	require.Empty(t, categories)
}

func TestApplyDeltaIsolatedPerUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	agg := NewRewardAggregator(db)
	alice := uuid.NewString()
	bob := uuid.NewString()

	require.NoError(t, agg.ApplyDelta(alice, 100, models.RewardSourceChallenge))
	require.NoError(t, agg.ApplyDelta(bob, 30, models.RewardSourceChallenge))

	aliceSummary, _, err := agg.Summary(alice)
	require.NoError(t, err)
	bobSummary, _, err := agg.Summary(bob)
	require.NoError(t, err)
	require.Equal(t, int64(100), aliceSummary.TotalPoints)
	require.Equal(t, int64(30), bobSummary.TotalPoints)
}
