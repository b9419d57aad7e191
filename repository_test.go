package sqlrepo

import (
	"bytes"
	"context"
	"database/sql"
	"log"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxshaw/sqlrepo/qb"
)

func newMock(t *testing.T, options ...Option) (*Repository, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var buf bytes.Buffer
	options = append([]Option{WithLogger(log.New(&buf, "", 0))}, options...)
	return New(db, options...), mock, &buf
}

func TestRepositoryConfig(t *testing.T) {
	r := New(nil, WithSchema("sales"), WithPageSize(50), WithNoLocks(true), WithLogger(nil))
	c := r.Config()
	assert.Equal(t, "sales", c.Schema)
	assert.Equal(t, 50, c.PageSize)
	assert.True(t, c.NoLocks)
	assert.Nil(t, c.Logger)

	sq, err := r.Select(Customer{}).OrderBy("Id").Page(2).Sql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP (50) * FROM (SELECT ROW_NUMBER() OVER (ORDER BY [Customer].[Id] ASC) AS row_number, *"+
		"\nFROM [sales].[Customer] WITH (NOLOCK)) AS __Page_Query WHERE row_number > 50;", sq)

	sq, err = r.Update(Invoice{}).Set("Number", "A").Sql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE [billing].[Invoice]\nSET [Number] = 'A';", sq)

	sq, err = r.Insert(Customer{}).With("Name", "A").Sql()
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO [sales].[Customer]([Name])\nVALUES('A');", sq)
}

func TestUpdateGo(t *testing.T) {
	r, mock, logs := newMock(t)

	mock.ExpectExec("UPDATE [dbo].[Customer]\nSET [Name] = 'Bob'\nWHERE [Id] = 5;").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := r.Update(Customer{}).Set("Name", "Bob").Where(qb.Eq("Id", 5)).Go(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Contains(t, logs.String(), "[SQL] UPDATE [dbo].[Customer]")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGoFailures(t *testing.T) {
	r, mock, logs := newMock(t)

	boom := errors.New("deadlock victim")
	mock.ExpectExec("UPDATE [dbo].[Customer]\nSET [Active] = 0;").WillReturnError(boom)

	_, err := r.Update(Customer{}).Set("Active", false).Go(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "sqlrepo: update")

	logs.Reset()
	_, err = r.Update(Customer{}).Go(context.Background())
	assert.True(t, IsInvalidState(err))
	assert.Empty(t, logs.String())

	_, err = NewUpdate(Customer{}).Set("Active", false).Go(context.Background())
	assert.True(t, IsInvalidState(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertGo(t *testing.T) {
	r, mock, _ := newMock(t)

	mock.ExpectExec("INSERT INTO [billing].[Invoice]([Number], [Amount])\nVALUES('INV-7', 0);").
		WillReturnResult(sqlmock.NewResult(7, 1))

	n, err := r.Insert(Invoice{}).For(&Invoice{Number: "INV-7"}).Go(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectGo(t *testing.T) {
	r, mock, logs := newMock(t)

	mock.ExpectQuery("SELECT [Customer].[Id]\n, [Customer].[Name]\nFROM [dbo].[Customer]\nWHERE [Customer].[Active] = 1;").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name"}).AddRow(1, "Ann").AddRow(2, "Bob"))

	rows, err := r.Select(Customer{}).Select("Id", "Name").Where(qb.Eq("Active", true)).Go(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			id   int
			name string
		)
		require.NoError(t, rows.Scan(&id, &name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Ann", "Bob"}, names)
	assert.Contains(t, logs.String(), "[SQL] SELECT [Customer].[Id]")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery(t *testing.T) {
	r, mock, _ := newMock(t)

	query := "SELECT TOP (2) * FROM (SELECT ROW_NUMBER() OVER (ORDER BY [Customer].[Name] ASC) AS row_number, [Customer].[Id]\n, [Customer].[Name]\n, [Customer].[Email]" +
		"\nFROM [dbo].[Customer]) AS __Page_Query WHERE row_number > 2;"
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"row_number", "id", "Name", "Email"}).
			AddRow(3, 3, "Cid", "cid@example.com").
			AddRow(4, 4, "Dee", nil))

	got, err := Query[Customer](context.Background(), r.Select(Customer{}).
		Select("Id", "Name", "Email").
		OrderBy("Name").
		Top(2).
		Page(2))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 3, got[0].Id)
	assert.Equal(t, "Cid", got[0].Name)
	require.NotNil(t, got[0].Email)
	assert.Equal(t, "cid@example.com", *got[0].Email)
	assert.Equal(t, "Dee", got[1].Name)
	assert.Nil(t, got[1].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAllocatesEmbeddedPointers(t *testing.T) {
	r, mock, _ := newMock(t)

	mock.ExpectQuery("SELECT *\nFROM [dbo].[Widget];").
		WillReturnRows(sqlmock.NewRows([]string{"Id", "Name", "CreatedBy"}).AddRow(1, "w", "ann"))
	mock.ExpectQuery("SELECT [Widget].[Id]\nFROM [dbo].[Widget];").
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow(2))

	got, err := Query[Widget](context.Background(), r.Select(Widget{}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Audit)
	assert.Equal(t, "ann", got[0].CreatedBy)
	assert.Equal(t, "w", got[0].Name)

	got, err = Query[Widget](context.Background(), r.Select(Widget{}).Select("Id"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Id)
	assert.Nil(t, got[0].Audit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryFailures(t *testing.T) {
	r, mock, _ := newMock(t)

	_, err := Query[int](context.Background(), r.Select(Customer{}))
	assert.True(t, IsSchema(err))

	_, err = Query[Customer](context.Background(), r.Select(Customer{}).Top(0))
	assert.True(t, IsInvalidState(err))

	mock.ExpectQuery("SELECT *\nFROM [dbo].[Customer];").WillReturnError(sql.ErrConnDone)
	_, err = Query[Customer](context.Background(), r.Select(Customer{}))
	assert.True(t, errors.Is(err, sql.ErrConnDone))

	mock.ExpectQuery("SELECT *\nFROM [dbo].[Customer];").
		WillReturnRows(sqlmock.NewRows([]string{"Id"}).AddRow("not a number"))
	_, err = Query[Customer](context.Background(), r.Select(Customer{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlrepo: scan")

	assert.NoError(t, mock.ExpectationsWereMet())
}
