package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllEntitiesValidate(t *testing.T) {
	for _, et := range All() {
		t.Run(et.Name, func(t *testing.T) {
			require.NoError(t, et.Validate())
		})
	}
}

func TestEntityTypeOnNilReceiver(t *testing.T) {
	var c *Cliente
	assert.Equal(t, "clientes", c.EntityType().Table)

	var u *Usuario
	assert.Equal(t, "id", u.EntityType().IDColumn())
	assert.Equal(t, "usuario_id", u.EntityType().IDFieldName())
}

func TestClienteRelations(t *testing.T) {
	et := (*Cliente)(nil).EntityType()
	assert.Equal(t, []string{"tipo_cliente"}, et.RelationFields())

	def, ok := et.Field("tipo_cliente")
	require.True(t, ok)
	assert.True(t, def.Mandatory)
	assert.Equal(t, "tiposcliente", def.TargetType().Table)

	saldo, _ := et.Field("saldo")
	require.NotNil(t, saldo.Range)
	assert.Equal(t, 10, saldo.Range.Precision)
	assert.Equal(t, 2, saldo.Range.Scale)
}

func TestSchemaDeclaresEveryColumn(t *testing.T) {
	for _, et := range All() {
		assert.Contains(t, Schema, "CREATE TABLE "+et.Table+" (")
		for _, name := range et.Fields.Names() {
			def, _ := et.Field(name)
			assert.Contains(t, Schema, "  "+def.Column+" ", "%s.%s", et.Name, name)
		}
	}
}
