package repository

import (
	"context"
	"testing"

	"interestbatch/models"
	"interestbatch/repository/testutil"
	"interestbatch/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobConfigRepository_CreateAndGet(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewJobConfigRepository(testDB.DB)
	ctx := context.Background()

	t.Run("missing config", func(t *testing.T) {
		cfg, err := repo.GetByJobType(ctx, models.JobTypeDailyInterestAccrual)
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("create then duplicate", func(t *testing.T) {
		cfg := testutil.CreateTestJobConfig(models.JobTypeDailyInterestAccrual)
		cfg.Parameters = map[string]any{"referenceDate": "2024-01-15"}

		created, err := repo.Create(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.BatchSize, created.BatchSize)
		assert.Equal(t, []string{"SAVINGS"}, created.AccountTypes)
		assert.Equal(t, "2024-01-15", created.Parameters["referenceDate"])
		assert.False(t, created.CreatedAt.IsZero())

		_, err = repo.Create(ctx, cfg)
		require.Error(t, err)
		assert.True(t, service.IsConflictError(err))
	})

	t.Run("get all", func(t *testing.T) {
		_, err := repo.Create(ctx, testutil.CreateTestJobConfig(models.JobTypeInterestPosting))
		require.NoError(t, err)

		configs, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 2)
		assert.Equal(t, models.JobTypeDailyInterestAccrual, configs[0].JobType)
		assert.Equal(t, models.JobTypeInterestPosting, configs[1].JobType)
	})
}

func TestJobConfigRepository_Update(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewJobConfigRepository(testDB.DB)
	ctx := context.Background()

	cfg := testutil.CreateTestJobConfig(models.JobTypeInterestPosting)
	cfg.Parameters = map[string]any{"dryRun": false}
	_, err := repo.Create(ctx, cfg)
	require.NoError(t, err)

	t.Run("only patched fields change", func(t *testing.T) {
		batchSize := 500
		enabled := false
		updated, err := repo.Update(ctx, models.JobTypeInterestPosting, &models.JobConfigPatch{
			BatchSize: &batchSize,
			Enabled:   &enabled,
		})
		require.NoError(t, err)
		require.NotNil(t, updated)

		assert.Equal(t, 500, updated.BatchSize)
		assert.False(t, updated.Enabled)
		assert.Equal(t, cfg.ParallelThreads, updated.ParallelThreads)
		assert.Equal(t, cfg.MaxRetries, updated.MaxRetries)
		assert.Equal(t, cfg.AccountTypes, updated.AccountTypes)
		assert.Equal(t, false, updated.Parameters["dryRun"])
	})

	t.Run("collections replace", func(t *testing.T) {
		updated, err := repo.Update(ctx, models.JobTypeInterestPosting, &models.JobConfigPatch{
			AccountTypes: []string{"SAVINGS", "TERM"},
			Parameters:   map[string]any{"dryRun": true},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"SAVINGS", "TERM"}, updated.AccountTypes)
		assert.Equal(t, true, updated.Parameters["dryRun"])
		assert.Equal(t, 500, updated.BatchSize)
	})

	t.Run("missing config", func(t *testing.T) {
		batchSize := 10
		updated, err := repo.Update(ctx, models.JobTypeDailyInterestAccrual, &models.JobConfigPatch{BatchSize: &batchSize})
		require.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		replacement := testutil.CreateTestJobConfig(models.JobTypeInterestPosting)
		replacement.BatchSize = 42
		saved, err := repo.Upsert(ctx, replacement)
		require.NoError(t, err)
		assert.Equal(t, 42, saved.BatchSize)
		assert.True(t, saved.Enabled)
	})
}
