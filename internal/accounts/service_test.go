package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quantrail/tradecore/internal/audit"
	"github.com/quantrail/tradecore/internal/ledger"
)

func newTestService(t *testing.T) (*Service, *audit.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := ledger.NewStore(db, zap.NewNop())
	require.NoError(t, err)
	auditSvc := audit.NewService(store, zap.NewNop(), nil, nil)

	svc, err := NewService(db, zap.NewNop(), auditSvc, Defaults{
		MaxOrderNotional: decimal.NewFromInt(50000),
		DailyOrderLimit:  20,
	}, nil)
	require.NoError(t, err)
	return svc, auditSvc
}

func TestStateFallsBackToDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	state, err := svc.State(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, state.Paused)
	assert.False(t, state.TradingHalted)
	assert.True(t, state.MaxOrderNotional.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 20, state.DailyOrderLimit)
	assert.Zero(t, state.OrdersToday)
}

func TestUpdateSettingsOverridesDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()

	require.NoError(t, svc.UpdateSettings(ctx, RiskSettings{
		AccountID:        accountID,
		MaxOrderNotional: decimal.NewFromInt(1000),
		DailyOrderLimit:  3,
	}))

	state, err := svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, state.MaxOrderNotional.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 3, state.DailyOrderLimit)

	// Upsert replaces the existing row instead of failing on the key.
	require.NoError(t, svc.UpdateSettings(ctx, RiskSettings{
		AccountID:        accountID,
		MaxOrderNotional: decimal.NewFromInt(2000),
		DailyOrderLimit:  5,
	}))
	state, err = svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, state.MaxOrderNotional.Equal(decimal.NewFromInt(2000)))
}

func TestIncrementDailyOrders(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.IncrementDailyOrders(ctx, accountID))
	}

	state, err := svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 3, state.OrdersToday)

	// Another account's counter is independent.
	other, err := svc.State(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, other.OrdersToday)
}

func TestPauseAndResumeAreAudited(t *testing.T) {
	svc, auditSvc := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()
	actor := &ledger.Actor{ID: uuid.New(), Name: "ops", Role: "admin"}

	require.NoError(t, svc.Pause(ctx, accountID, actor))
	state, err := svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, state.Paused)

	require.NoError(t, svc.Resume(ctx, accountID, actor))
	state, err = svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.False(t, state.Paused)

	paused, err := auditSvc.List(ctx, ledger.Filter{EventType: ledger.EventAccountPaused}, ledger.Pagination{})
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, accountID.String(), paused[0].TargetID)
	assert.Equal(t, ledger.SeverityWarning, paused[0].Severity)

	resumed, err := auditSvc.List(ctx, ledger.Filter{EventType: ledger.EventAccountResumed}, ledger.Pagination{})
	require.NoError(t, err)
	require.Len(t, resumed, 1)
}

func TestKillSwitch(t *testing.T) {
	svc, auditSvc := newTestService(t)
	ctx := context.Background()

	assert.False(t, svc.KillSwitchActive())

	require.NoError(t, svc.ActivateKillSwitch(ctx, nil, "anomalous order flow"))
	assert.True(t, svc.KillSwitchActive())

	state, err := svc.State(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, state.TradingHalted)

	entries, err := auditSvc.List(ctx, ledger.Filter{EventType: ledger.EventKillSwitchActivated}, ledger.Pagination{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.SeverityCritical, entries[0].Severity)
	assert.Contains(t, entries[0].Description, "anomalous order flow")

	svc.DeactivateKillSwitch()
	assert.False(t, svc.KillSwitchActive())
}

func TestDailyCounterIsScopedToClockDay(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store, err := ledger.NewStore(db, zap.NewNop())
	require.NoError(t, err)
	auditSvc := audit.NewService(store, zap.NewNop(), nil, nil)

	current := time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)
	svc, err := NewService(db, zap.NewNop(), auditSvc, Defaults{
		MaxOrderNotional: decimal.NewFromInt(50000),
		DailyOrderLimit:  20,
	}, func() time.Time { return current })
	require.NoError(t, err)

	ctx := context.Background()
	accountID := uuid.New()
	require.NoError(t, svc.IncrementDailyOrders(ctx, accountID))
	require.NoError(t, svc.IncrementDailyOrders(ctx, accountID))

	state, err := svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 2, state.OrdersToday)

	// Midnight rolls the counter over.
	current = current.Add(2 * time.Hour)
	state, err = svc.State(ctx, accountID)
	require.NoError(t, err)
	assert.Zero(t, state.OrdersToday)
}
