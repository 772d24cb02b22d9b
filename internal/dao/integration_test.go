//go:build integration

package dao

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/entities"
	"github.com/jipp1987/PruebaRestService/internal/testutil/mysqltest"
)

func TestIntegration_InsertSelectRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := mysqltest.NewTestDB(t)
	testDB.Exec(t, entities.Schema)

	txm := dbexec.NewTxManager(testDB.DB)
	usuarios := New[*entities.Usuario](txm)
	tipos := New[*entities.TipoCliente](txm)
	clientes := New[*entities.Cliente](txm)
	ctx := context.Background()

	admin := &entities.Usuario{Username: "admin", Password: "x"}
	require.NoError(t, usuarios.Insert(ctx, admin))
	require.NotZero(t, admin.UsuarioID)

	vip := &entities.TipoCliente{Codigo: "VIP", Descripcion: "Very important", UsuarioCreacion: admin}
	require.NoError(t, tipos.Insert(ctx, vip))

	ana := &entities.Cliente{Codigo: "0003", Nombre: "Ana", Apellidos: "Ruiz", Saldo: 150, TipoCliente: vip}
	require.NoError(t, clientes.Insert(ctx, ana))

	got, err := clientes.Select(ctx, clause.Query{
		Fields: []clause.Field{
			{Path: "*"},
			{Path: "tipo_cliente.*"},
			{Path: "tipo_cliente.usuario_creacion.username"},
		},
		Filters: []clause.Filter{{Path: "tipo_cliente.codigo", Operator: clause.Equals, Value: "VIP"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ana.ID, got[0].ID)
	assert.Equal(t, 150.0, got[0].Saldo)
	assert.Equal(t, "Very important", got[0].TipoCliente.Descripcion)
	assert.Equal(t, "admin", got[0].TipoCliente.UsuarioCreacion.Username)

	byID, err := clientes.FindByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, &entities.Cliente{
		ID:          ana.ID,
		Codigo:      "0003",
		Nombre:      "Ana",
		Apellidos:   "Ruiz",
		Saldo:       150,
		TipoCliente: &entities.TipoCliente{ID: vip.ID},
	}, byID)
}

func TestIntegration_RollbackAndConstraints(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	testDB := mysqltest.NewTestDB(t)
	testDB.Exec(t, entities.Schema)

	txm := dbexec.NewTxManager(testDB.DB)
	tipos := New[*entities.TipoCliente](txm)
	ctx := dbexec.WithExecutionID(context.Background())

	owner, err := tipos.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, tipos.Insert(ctx, &entities.TipoCliente{Codigo: "TMP", Descripcion: "Temporary"}))
	require.NoError(t, tipos.Rollback(ctx, owner))
	require.NoError(t, tipos.Disconnect(ctx, owner))

	found, err := tipos.Select(context.Background(), clause.Query{})
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, tipos.Insert(context.Background(), &entities.TipoCliente{Codigo: "STD", Descripcion: "Standard"}))
	err = tipos.Insert(context.Background(), &entities.TipoCliente{Codigo: "STD", Descripcion: "Duplicate"})
	e, ok := dberrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "unique_violation", e.Category)

	_, err = tipos.FindByID(context.Background(), int64(999))
	assert.True(t, errors.Is(err, ErrNotFound))
}
