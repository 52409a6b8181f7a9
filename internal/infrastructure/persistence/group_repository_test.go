package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vsla/backend/internal/domain/group"
	"github.com/vsla/backend/internal/domain/shared"
	"github.com/vsla/backend/internal/domain/shared/valueobject"
	"github.com/vsla/backend/internal/infrastructure/persistence/models"
)

// setupTestDB opens an in-memory SQLite database with all models
// migrated. TranslateError is enabled to match the production
// configuration so unique violations surface as gorm.ErrDuplicatedKey.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.GroupModel{},
		&models.MemberModel{},
		&models.TransactionModel{},
		&models.LoanModel{},
		&models.OfficerAssignmentModel{},
		&models.AuditRecordModel{},
	)
	require.NoError(t, err)

	return db
}

func newTestGroup(t *testing.T, seed string) *group.Group {
	t.Helper()
	capital, err := valueobject.NewMoneyUGXFromString(seed)
	require.NoError(t, err)
	g, err := group.NewGroup("Kampala Savers", nil, capital)
	require.NoError(t, err)
	return g
}

func TestGormGroupRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and find by id", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormGroupRepository(db)

		g := newTestGroup(t, "300000")
		require.NoError(t, repo.Create(ctx, g))

		found, err := repo.FindByID(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.Name, found.Name)
		assert.Equal(t, group.GroupStatusActive, found.Status)
		assert.True(t, g.SeedCapital.Equals(found.SeedCapital))
	})

	t.Run("find by id returns not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormGroupRepository(db)

		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find all filters by status", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormGroupRepository(db)

		active := newTestGroup(t, "100000")
		require.NoError(t, repo.Create(ctx, active))

		dissolved := newTestGroup(t, "200000")
		require.NoError(t, dissolved.Dissolve())
		require.NoError(t, repo.Create(ctx, dissolved))

		filter := shared.DefaultFilter()
		filter.Filters["status"] = group.GroupStatusActive
		groups, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, groups, 1)
		assert.Equal(t, active.ID, groups[0].ID)
	})

	t.Run("save updates mutable fields and keeps seed capital", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormGroupRepository(db)

		g := newTestGroup(t, "300000")
		require.NoError(t, repo.Create(ctx, g))

		require.NoError(t, g.Rename("Kampala Savers II"))
		require.NoError(t, repo.Save(ctx, g))

		found, err := repo.FindByID(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kampala Savers II", found.Name)
		assert.Equal(t, g.Version, found.Version)
		assert.True(t, g.SeedCapital.Equals(found.SeedCapital))
	})

	t.Run("save rejects stale version", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormGroupRepository(db)

		g := newTestGroup(t, "300000")
		require.NoError(t, repo.Create(ctx, g))

		stale, err := repo.FindByID(ctx, g.ID)
		require.NoError(t, err)

		require.NoError(t, g.Rename("winner"))
		require.NoError(t, repo.Save(ctx, g))

		require.NoError(t, stale.Rename("loser"))
		err = repo.Save(ctx, stale)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, shared.ErrConcurrentModification.Code, domainErr.Code)
	})
}

func TestGormMemberRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("create and list by group", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormMemberRepository(db)
		groupID := uuid.New()

		alice, err := group.NewMember(groupID, "Alice", "+256700000001")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, alice))

		bob, err := group.NewMember(groupID, "Bob", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, bob))

		other, err := group.NewMember(uuid.New(), "Carol", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, other))

		members, err := repo.FindByGroup(ctx, groupID)
		require.NoError(t, err)
		assert.Len(t, members, 2)
	})

	t.Run("save persists member exit", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormMemberRepository(db)

		m, err := group.NewMember(uuid.New(), "Alice", "")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, m))

		require.NoError(t, m.Exit())
		require.NoError(t, repo.Save(ctx, m))

		found, err := repo.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, group.MemberStatusExited, found.Status)
		assert.NotNil(t, found.ExitedAt)
	})

	t.Run("save unknown member returns not found", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormMemberRepository(db)

		m, err := group.NewMember(uuid.New(), "Ghost", "")
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, m), shared.ErrNotFound)
	})
}
