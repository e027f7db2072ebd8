package ledger

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresAppendCommitsBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	entry := &Entry{ID: uuid.New(), ItemID: itemID, Delta: -2, Reason: ReasonSale}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}).
			AddRow(itemID.String(), "ram lamb", 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stock_entries")).
		WithArgs(entry.ID, itemID, -2, ReasonSale, nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET stock=")).
		WithArgs(3, itemID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	stocks, err := repo.Append(context.Background(), []*Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, StockResult{Name: "ram lamb", Stock: 3}, stocks[itemID])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendRollsBackOnInsufficientStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	entry := &Entry{ID: uuid.New(), ItemID: itemID, Delta: -4, Reason: ReasonSale}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}).
			AddRow(itemID.String(), "ewe", 1))
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	_, err = repo.Append(context.Background(), []*Entry{entry})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, "ewe", insufficient.Shortages[0].Name)
	assert.Equal(t, 4, insufficient.Shortages[0].Requested)
	assert.Equal(t, 1, insufficient.Shortages[0].Available)
	assert.NoError(t, mock.ExpectationsWereMet(), "no entry may be written before rollback")
}

func TestPostgresAppendRejectsUnknownItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}))
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	_, err = repo.Append(context.Background(), []*Entry{
		{ID: uuid.New(), ItemID: uuid.New(), Delta: 1, Reason: ReasonPurchase},
	})
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestPostgresCurrentStockFoldsEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(delta), 0) FROM stock_entries")).
		WithArgs(itemID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	repo := NewPostgresRepository(db)
	stock, err := repo.CurrentStock(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}
