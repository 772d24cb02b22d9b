package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dao"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/entities"
)

func newTipoClienteService(t *testing.T) (*Service[*entities.TipoCliente], *dbexec.TxManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	txm := dbexec.NewTxManager(db)
	return New(txm, dao.New[*entities.TipoCliente](txm)), txm, mock
}

func TestCreateCommits(t *testing.T) {
	svc, txm, mock := newTipoClienteService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `tiposcliente`").WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectCommit()

	tipo := &entities.TipoCliente{Codigo: "VIP", Descripcion: "Very important"}
	require.NoError(t, svc.Create(context.Background(), tipo))
	assert.Equal(t, int64(4), tipo.ID)
	assert.Equal(t, 0, txm.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTransactionJoinsNestedCalls(t *testing.T) {
	svc, txm, mock := newTipoClienteService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `tiposcliente`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `tiposcliente`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithinTransaction(context.Background(), txm, func(ctx context.Context) error {
		tipo := &entities.TipoCliente{Codigo: "STD", Descripcion: "Standard"}
		if err := svc.Create(ctx, tipo); err != nil {
			return err
		}
		assert.Equal(t, 1, txm.Len())
		tipo.Descripcion = "Standard customer"
		return svc.Update(ctx, tipo)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, txm.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTransactionRollsBackOnError(t *testing.T) {
	svc, txm, mock := newTipoClienteService(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `tiposcliente`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := WithinTransaction(context.Background(), txm, func(ctx context.Context) error {
		if err := svc.Delete(ctx, &entities.TipoCliente{ID: 3}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, txm.Len())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApply(t *testing.T) {
	svc, _, mock := newTipoClienteService(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `tiposcliente`").WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.ApplyEntity(context.Background(), Delete, &entities.TipoCliente{ID: 8}))
	require.NoError(t, mock.ExpectationsWereMet())

	err := svc.ApplyEntity(context.Background(), Create, &entities.Cliente{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TipoCliente service cannot handle")

	err = svc.Apply(context.Background(), Select, &entities.TipoCliente{})
	assert.EqualError(t, err, "unsupported action select")
}

func TestSelectEntities(t *testing.T) {
	svc, _, mock := newTipoClienteService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM `tiposcliente`").
		WillReturnRows(sqlmock.NewRows([]string{"tiposcliente$$id", "tiposcliente$$codigo"}).
			AddRow(int64(1), []byte("VIP")).
			AddRow(int64(2), []byte("STD")))
	mock.ExpectCommit()

	got, err := svc.SelectEntities(context.Background(), clause.Query{
		Fields: []clause.Field{{Path: "id"}, {Path: "codigo"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &entities.TipoCliente{ID: 2, Codigo: "STD"}, got[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "create", Create.String())
	assert.Equal(t, "Action(9)", Action(9).String())
}
