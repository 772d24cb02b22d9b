package model

import (
	"testing"

	"github.com/jipp1987/PruebaRestService/internal/sqltype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGroup struct {
	ID   int64  `mapstructure:"id"`
	Code string `mapstructure:"code"`
}

type testItem struct {
	ID    int64      `mapstructure:"id"`
	Name  string     `mapstructure:"name"`
	Price float64    `mapstructure:"price"`
	Group *testGroup `mapstructure:"group"`
	skip  string
}

var testGroupType = &EntityType{
	Name:    "Group",
	Table:   "groups",
	IDField: "id",
	Fields: NewFields(
		F("id", Column("group_id", "BIGINT").PK()),
		F("code", Column("code", "VARCHAR(10)")),
	),
	New: func() Entity { return &testGroup{} },
}

var testItemType = &EntityType{
	Name:    "Item",
	Table:   "items",
	IDField: "id",
	Fields: NewFields(
		F("id", Column("id", "INT").PK()),
		F("name", Column("name", "VARCHAR(40)").Required()),
		F("price", Column("price", "DECIMAL(8,2)")),
		F("group", Relation("group_id", "groups", func() Entity { return &testGroup{} })),
	),
	New: func() Entity { return &testItem{} },
}

func (*testGroup) EntityType() *EntityType { return testGroupType }
func (*testItem) EntityType() *EntityType  { return testItemType }

func TestColumn(t *testing.T) {
	def := Column("name", "VARCHAR(40)").Required()
	assert.Equal(t, sqltype.String, def.Type)
	assert.Equal(t, 40, def.Length)
	assert.True(t, def.Mandatory)
	assert.False(t, def.IsRelation())
	assert.Nil(t, def.TargetType())

	assert.Panics(t, func() { Column("bad", "VARCHAR(x)") })
}

func TestFieldsOrder(t *testing.T) {
	assert.Equal(t, []string{"id", "name", "price", "group"}, testItemType.Fields.Names())
	assert.Equal(t, []string{"id", "name", "price"}, testItemType.ScalarFields())
	assert.Equal(t, []string{"group"}, testItemType.RelationFields())
	assert.Equal(t, "group_id", testGroupType.IDColumn())
	assert.Equal(t, 4, testItemType.ModelFields().Len())

	assert.Panics(t, func() {
		NewFields(F("a", Column("a", "INT")), F("a", Column("a", "INT")))
	})
}

func TestValidate(t *testing.T) {
	require.NoError(t, testItemType.Validate())

	broken := &EntityType{
		Name:    "Broken",
		IDField: "id",
		Fields: NewFields(
			F("id", Column("id", "INT")),
			F("other", FieldDefinition{Column: "other_id", ReferencedTable: "others"}),
		),
	}
	err := broken.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table is required")
	assert.Contains(t, err.Error(), "factory is required")
	assert.Contains(t, err.Error(), "has no target")
	assert.Contains(t, err.Error(), "exactly one primary key")
}

func TestFromFieldMap_Nested(t *testing.T) {
	e, err := testItemType.FromFieldMap(map[string]any{
		"id":    int64(3),
		"name":  []byte("widget"),
		"price": "12.50",
		"group": map[string]any{"id": int64(9), "code": "G9"},
	})
	require.NoError(t, err)

	item := e.(*testItem)
	assert.Equal(t, int64(3), item.ID)
	assert.Equal(t, "widget", item.Name)
	assert.Equal(t, 12.5, item.Price)
	require.NotNil(t, item.Group)
	assert.Equal(t, &testGroup{ID: 9, Code: "G9"}, item.Group)
}

func TestFromFieldMap_NilRelation(t *testing.T) {
	e, err := testItemType.FromFieldMap(map[string]any{"id": int64(1), "group": nil})
	require.NoError(t, err)
	assert.Nil(t, e.(*testItem).Group)
}

func TestFromFieldMap_UnknownField(t *testing.T) {
	_, err := testItemType.FromFieldMap(map[string]any{"colour": "red"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestFieldValuesAndID(t *testing.T) {
	item := &testItem{Name: "a", Group: &testGroup{ID: 2}, skip: "x"}
	values, err := FieldValues(item)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":    int64(0),
		"name":  "a",
		"price": 0.0,
		"group": &testGroup{ID: 2},
	}, values)

	id, err := IDValue(item)
	require.NoError(t, err)
	assert.True(t, IsZero(id))

	require.NoError(t, SetID(item, int64(17)))
	assert.Equal(t, int64(17), item.ID)
	assert.Equal(t, "a", item.Name)

	values, err = FieldValues(&testItem{})
	require.NoError(t, err)
	assert.Nil(t, values["group"])

	_, err = FieldValues((*testItem)(nil))
	assert.Error(t, err)
}
