package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return mock, store
}

func TestIssuerLookupAndInsert(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT issuer_id FROM issuer WHERE cik = $1")).
		WithArgs("0000320193").
		WillReturnRows(pgxmock.NewRows([]string{"issuer_id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO issuer (name, symbol, cik)")).
		WithArgs("APPLE INC.", "AAPL", "0000320193").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT issuer_id FROM issuer WHERE cik = $1")).
		WithArgs("0000320193").
		WillReturnRows(pgxmock.NewRows([]string{"issuer_id"}).AddRow(int64(11)))

	_, err := store.IssuerID(ctx, "0000320193")
	require.ErrorIs(t, err, edgar.ErrNotFound)

	require.NoError(t, store.InsertIssuer(ctx, edgar.Issuer{Name: "APPLE INC.", Symbol: "AAPL", CIK: "0000320193"}))

	id, err := store.IssuerID(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIndividualStoresNullNames(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	first, last := "ARTHUR D", "LEVINSON"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO individual (full_name, cik, first_name, last_name)")).
		WithArgs("LEVINSON ARTHUR D", "0001214128", &first, &last).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO individual (full_name, cik, first_name, last_name)")).
		WithArgs("MADONNA", "0000000001", (*string)(nil), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	require.NoError(t, store.InsertIndividual(context.Background(),
		edgar.NewIndividual(edgar.FilingTransaction{Owner: "LEVINSON ARTHUR D", OwnerCIK: "0001214128"})))
	require.NoError(t, store.InsertIndividual(context.Background(),
		edgar.NewIndividual(edgar.FilingTransaction{Owner: "MADONNA", OwnerCIK: "0000000001"})))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertFormUsesDate(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	day := civil.Date{Year: 2025, Month: 2, Day: 11}
	form := edgar.Form{
		IssuerID:     3,
		DateReported: day,
		FormType:     "4",
		TxtURL:       "https://www.sec.gov/Archives/edgar/data/320193/0000320193-25-000010.txt",
		WebURL:       "https://www.sec.gov/Archives/edgar/data/1/000032019325000010/0000320193-25-000010-index.html",
		AccessNo:     "0000320193-25-000010",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO form")).
		WithArgs(int64(3), time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), "4", form.TxtURL, form.WebURL, form.AccessNo).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertForm(context.Background(), form))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTransaction(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	day := civil.Date{Year: 2025, Month: 2, Day: 11}
	key := edgar.TransactionKey{FormID: 5, Date: day, SharesBalance: 4000}

	cols := []string{
		"transaction_id", "date_reported", "form_id", "issuer_id", "individual_id",
		"action_code", "ownership_code", "transaction_code",
		"shares_balance", "shares_traded", "avg_price", "amount", "relationships",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM non_deriv_transaction")).
		WithArgs(int64(5), time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), float64(4000)).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			int64(99), time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), int64(5), int64(3), int64(8),
			"D", "D", "S",
			float64(4000), float64(1000), float64(232.5), float64(232500), []int32{0, 1},
		))

	tx, err := store.FindTransaction(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(99), tx.ID)
	assert.Equal(t, day, tx.DateReported)
	assert.Equal(t, []int32{0, 1}, tx.Relationships)
	assert.Equal(t, key, tx.Key())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransaction(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	tx := edgar.Transaction{
		DateReported: civil.Date{Year: 2025, Month: 2, Day: 11},
		FormID:       5, IssuerID: 3, IndividualID: 8,
		ActionCode: "A", OwnershipCode: "I", TransactionCode: "P",
		SharesBalance: 10, SharesTraded: 2, AvgPrice: 0, Amount: 0,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO non_deriv_transaction")).
		WithArgs(time.Date(2025, 2, 11, 0, 0, 0, 0, time.UTC), int64(5), int64(3), int64(8),
			"A", "I", "P", float64(10), float64(2), float64(0), float64(0), []int32{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertTransaction(context.Background(), tx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorsAreClassified(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT form_id FROM form")).
		WithArgs("0000320193-25-000010").
		WillReturnError(boom)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO form")).
		WillReturnError(boom)

	_, err := store.FormID(context.Background(), "0000320193-25-000010")
	require.ErrorIs(t, err, edgar.ErrLookup)
	require.ErrorIs(t, err, boom)

	err = store.InsertForm(context.Background(), edgar.Form{DateReported: civil.Date{Year: 2025, Month: 1, Day: 2}})
	require.ErrorIs(t, err, edgar.ErrCreate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS issuer")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, Schema, "relationships    INTEGER[]")
}

func TestNewStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewStore(context.Background(), Config{})
	require.ErrorIs(t, err, edgar.ErrConfig)

	_, err = NewStoreWithPool(nil)
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("SELECT 1")).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT 1")).WillReturnError(errors.New("connection refused"))

	require.NoError(t, store.Ping(context.Background()))
	require.ErrorIs(t, store.Ping(context.Background()), edgar.ErrLookup)
	require.NoError(t, mock.ExpectationsWereMet())
}
