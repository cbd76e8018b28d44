package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func TestPostgresStore_Latest_ReturnsNilWhenNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT event_id").WithArgs("case-1").WillReturnError(sql.ErrNoRows)

	store := NewPostgresStore(db)
	event, err := store.Latest(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestPostgresStore_Append_ExecutesInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO decision_events").WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPostgresStore(db)
	err = store.Append(context.Background(), domain.DecisionEvent{
		EventID:      "event-1",
		CaseID:       "case-1",
		EventType:    "intake_completed",
		Timestamp:    time.Now(),
		DecisionMade: "proceed",
		Stage:        domain.StageIntake,
		Signature:    "sig",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Trail_ScansOrderedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"event_id", "case_id", "event_type", "timestamp", "decision_made", "reasoning",
		"stage", "actor", "input_data_hash", "input_data_summary", "alternatives",
		"signature", "previous_event_id", "previous_signature",
	}).AddRow(
		"event-1", "case-1", "intake_completed", time.Now(), "proceed", "ok",
		"INTAKE", "system", "hash1", []byte(`{}`), "{}",
		"sig1", nil, "",
	).AddRow(
		"event-2", "case-1", "policy_analysis_completed", time.Now(), "requires_pa", "ok",
		"POLICY_ANALYSIS", "system", "hash2", []byte(`{}`), "{}",
		"sig2", "event-1", "sig1",
	)
	mock.ExpectQuery("SELECT event_id").WithArgs("case-1").WillReturnRows(rows)

	store := NewPostgresStore(db)
	trail, err := store.Trail(context.Background(), "case-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, domain.StagePolicyAnalysis, trail[1].Stage)
	assert.Equal(t, "event-1", trail[1].PreviousEventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore_LatestAndTrail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	latest, err := store.Latest(ctx, "case-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	err = store.Append(ctx, domain.DecisionEvent{EventID: "e1", CaseID: "case-1"})
	require.NoError(t, err)
	err = store.Append(ctx, domain.DecisionEvent{EventID: "e2", CaseID: "case-1"})
	require.NoError(t, err)

	latest, err = store.Latest(ctx, "case-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "e2", latest.EventID)

	trail, err := store.Trail(ctx, "case-1")
	require.NoError(t, err)
	assert.Len(t, trail, 2)
}
