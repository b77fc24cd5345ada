package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taxdesk/internal/config"
	"taxdesk/internal/domain"
)

func TestOpen_SQLiteMigrates(t *testing.T) {
	conn, err := Open(&config.DatabaseConfig{URL: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer func() {
		sqlDB, _ := conn.DB()
		sqlDB.Close()
	}()

	assert.True(t, conn.Migrator().HasTable(&domain.QueryRecord{}))
	assert.True(t, conn.Migrator().HasTable(&domain.User{}))
	assert.True(t, conn.Migrator().HasIndex(&domain.QueryRecord{}, "Reference"))

	require.NoError(t, Ping(context.Background(), conn))
	require.NoError(t, ReportStats(conn))
}

func TestInitAndClose(t *testing.T) {
	url := "sqlite:///" + filepath.Join(t.TempDir(), "taxdesk.db")
	require.NoError(t, Init(&config.DatabaseConfig{URL: url}, nil))
	t.Cleanup(func() { db = nil })

	rec := &domain.QueryRecord{FirstName: "Jane", LastName: "Doe", Method: string(domain.QueryMethodMeeting)}
	require.NoError(t, GetDB().Create(rec).Error)
	assert.NotEmpty(t, rec.Reference)
	assert.Equal(t, domain.StatusNew, rec.Status)

	require.NoError(t, Close())
	assert.Error(t, Ping(context.Background(), GetDB()))
}

func TestGetDB_PanicsBeforeInit(t *testing.T) {
	saved := db
	db = nil
	t.Cleanup(func() { db = saved })

	assert.Panics(t, func() { GetDB() })
	assert.NoError(t, Close())
}
