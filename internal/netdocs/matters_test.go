package netdocs

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatters_Search(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	matters := NewMatters(db)
	defer matters.Close()

	mock.ExpectQuery(regexp.QuoteMeta(searchQuery)).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).
			AddRow("4821-7732", "Acme v. Widgets").
			AddRow("4821-1100", "Acme lease review"))

	got, err := matters.Search(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, []Matter{
		{ID: "4821-7732", Label: "Acme v. Widgets"},
		{ID: "4821-1100", Label: "Acme lease review"},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatters_SearchError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	matters := NewMatters(db)
	defer matters.Close()

	mock.ExpectQuery(regexp.QuoteMeta(searchQuery)).
		WithArgs("acme").
		WillReturnError(errors.New("connection refused"))

	_, err = matters.Search(context.Background(), "acme")
	assert.ErrorContains(t, err, "connection refused")
}

func TestMatters_Labels(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	matters := NewMatters(db)
	defer matters.Close()

	ids := []string{"4821-7732"}
	mock.ExpectQuery(regexp.QuoteMeta(labelsQuery)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow("4821-7732", "Acme v. Widgets"))

	got, err := matters.Labels(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, []Matter{{ID: "4821-7732", Label: "Acme v. Widgets"}}, got)

	none, err := matters.Labels(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenMatters_NotConfigured(t *testing.T) {
	_, err := OpenMatters("")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
