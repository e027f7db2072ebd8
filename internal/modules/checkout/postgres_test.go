package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
)

func testOrder(itemID uuid.UUID) (*Order, []*ledger.Entry) {
	orderID := uuid.New()
	o := &Order{
		ID:            orderID,
		Status:        StatusPaid,
		Subtotal:      5000,
		Discount:      0,
		Tax:           0,
		Total:         5000,
		PaymentMethod: PaymentCash,
		Lines: []*OrderLine{{
			ID: uuid.New(), OrderID: orderID, ItemID: itemID,
			Name: "lamb", UnitPrice: 5000, Quantity: 1, LineTotal: 5000,
		}},
	}
	entries := []*ledger.Entry{{
		ID: uuid.New(), ItemID: itemID, Delta: -1, Reason: ledger.ReasonSale, OrderID: &orderID,
	}}
	return o, entries
}

func TestCreateOrderCommitsOrderLinesAndLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	o, entries := testOrder(itemID)

	committedAt := time.Now().UTC().Truncate(time.Microsecond)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_counters")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(committedAt, committedAt))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_lines")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}).
			AddRow(itemID.String(), "lamb", 4))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stock_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET stock=")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewPostgresRepository(db)
	stocks, err := repo.CreateOrder(context.Background(), o, entries)
	require.NoError(t, err)

	assert.Equal(t, 3, stocks[itemID].Stock)
	day := time.Now().UTC().Format("20060102")
	assert.Equal(t, "ORD-"+day+"-0012", o.OrderNo)
	assert.Equal(t, committedAt, o.CreatedAt, "returned order carries the persisted timestamp")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderRollsBackWhenLedgerRejects(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	o, entries := testOrder(itemID)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_counters")).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now().UTC(), time.Now().UTC()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_lines")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "stock"}).
			AddRow(itemID.String(), "lamb", 0))
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	_, err = repo.CreateOrder(context.Background(), o, entries)

	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.NoError(t, mock.ExpectationsWereMet(), "the order insert must be rolled back, no ledger writes")
}

func TestCreateOrderMapsSerializationFailureToConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	o, entries := testOrder(itemID)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_counters")).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	_, err = repo.CreateOrder(context.Background(), o, entries)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCreateOrderMapsStoreFailureToPersistence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	itemID := uuid.New()
	o, entries := testOrder(itemID)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO order_counters")).
		WillReturnError(&pq.Error{Code: "53300"}) // too_many_connections
	mock.ExpectRollback()

	repo := NewPostgresRepository(db)
	_, err = repo.CreateOrder(context.Background(), o, entries)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestUpdateStatusIsCompareAndSwap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New().String()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status=$1, updated_at=now() WHERE id=$2 AND status=$3")).
		WithArgs(StatusCancelled, id, StatusPaid).
		WillReturnResult(sqlmock.NewResult(0, 0)) // status moved since the read

	repo := NewPostgresRepository(db)
	err = repo.UpdateStatus(context.Background(), id, StatusPaid, StatusCancelled)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}
