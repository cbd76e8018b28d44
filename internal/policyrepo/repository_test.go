package policyrepo

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth/platform/internal/domain"
)

func TestRepository_Load_FromDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	payload := `{"payer_name":"Aetna","medication_name":"humira","atomic_criteria":{},"criterion_groups":{}}`
	mock.ExpectQuery("SELECT payload").
		WithArgs("aetna", "humira").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	repo := New(db, "", nil)
	policy, err := repo.Load(context.Background(), "Aetna", "Humira")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, "Aetna", policy.PayerName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Load_FallsBackToFilesystem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT payload").WillReturnError(sql.ErrNoRows)

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "aetna"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "aetna", "humira.json"),
		[]byte(`{"payer_name":"Aetna","medication_name":"humira","atomic_criteria":{},"criterion_groups":{}}`),
		0o644,
	))

	repo := New(db, root, nil)
	policy, err := repo.Load(context.Background(), "Aetna", "Humira")
	require.NoError(t, err)
	require.NotNil(t, policy)
	assert.Equal(t, "humira", policy.MedicationName)
}

func TestRepository_Load_AliasResolvesBrandToGeneric(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT payload").
		WithArgs("aetna", "adalimumab").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(`{"payer_name":"Aetna","medication_name":"adalimumab","atomic_criteria":{},"criterion_groups":{}}`))

	repo := New(db, "", AliasMap{"humira": "adalimumab"})
	_, err = repo.Load(context.Background(), "Aetna", "Humira")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LoadRawText_PDFOnlyReturnsPlaceholder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT raw_text").
		WillReturnRows(sqlmock.NewRows([]string{"raw_text", "is_pdf_only"}).AddRow(nil, true))

	repo := New(db, "", nil)
	text, err := repo.LoadRawText(context.Background(), "Aetna", "Humira")
	require.NoError(t, err)
	assert.Equal(t, PDFPlaceholder, text)
}

func TestRepository_Load_NeitherSourceAvailableFailsWithPolicyNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT payload").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT raw_text").WillReturnError(sql.ErrNoRows)

	repo := New(db, t.TempDir(), nil)
	_, err = repo.Load(context.Background(), "Aetna", "Humira")
	require.Error(t, err)
	var notFound *domain.PolicyNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "blue_cross", normalizeKey("Blue Cross"))
	assert.Equal(t, "humira", normalizeKey("  Humira  "))
}
