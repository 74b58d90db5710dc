package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/reviewscrape/pkg/common"
)

const source = "https://www.imdb.com/title/tt6723592/reviews/"

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reviews").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReviews(t *testing.T) {
	s, mock := newMockStore(t)

	reviews := []common.Review{
		{Rating: common.IntPtr(9), Text: common.StringPtr("Great")},
		{Text: common.StringPtr("No rating")},
		{Rating: common.IntPtr(2)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteReviewsSQL)).
		WithArgs(source).
		WillReturnResult(sqlmock.NewResult(0, 5))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertReviewSQL))
	prep.ExpectExec().WithArgs(source, 0, 9, "Great").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(source, 1, nil, "No rating").WillReturnResult(sqlmock.NewResult(2, 1))
	prep.ExpectExec().WithArgs(source, 2, 2, nil).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveReviews(context.Background(), source, reviews))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReviewsRollsBackOnInsertError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deleteReviewsSQL)).
		WithArgs(source).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertReviewSQL))
	prep.ExpectExec().WillReturnError(errors.New("db error"))
	mock.ExpectRollback()

	err := s.SaveReviews(context.Background(), source, []common.Review{{Rating: common.IntPtr(5)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert review 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReviewsBeginError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := s.SaveReviews(context.Background(), source, nil)
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadReviews(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"position", "rating", "review"}).
		AddRow(0, 9, "Great").
		AddRow(1, nil, "No rating").
		AddRow(2, 2, nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectReviewsSQL)).WithArgs(source).WillReturnRows(rows)

	reviews, err := s.LoadReviews(context.Background(), source)
	require.NoError(t, err)

	assert.Equal(t, []common.Review{
		{Position: 0, Rating: common.IntPtr(9), Text: common.StringPtr("Great")},
		{Position: 1, Text: common.StringPtr("No rating")},
		{Position: 2, Rating: common.IntPtr(2)},
	}, reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadReviewsEmpty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectReviewsSQL)).
		WithArgs(source).
		WillReturnRows(sqlmock.NewRows([]string{"position", "rating", "review"}))

	reviews, err := s.LoadReviews(context.Background(), source)
	require.NoError(t, err)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)
}

func TestSources(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(listSourcesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"source", "count"}).AddRow(source, 25))

	sources, err := s.Sources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Source{{URL: source, Reviews: 25}}, sources)
}

func TestOpenRejectsInvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "not a dsn")
	assert.ErrorContains(t, err, "invalid DSN")
}
