// Package entities declares the persisted entities exposed by the service.
package entities

import (
	_ "embed"

	"github.com/jipp1987/PruebaRestService/internal/model"
)

// Schema is the MySQL DDL of the declared entities.
//
//go:embed schema.sql
var Schema string

// Usuario is an application user.
type Usuario struct {
	UsuarioID       int64    `json:"usuario_id" mapstructure:"usuario_id"`
	Username        string   `json:"username" mapstructure:"username"`
	Password        string   `json:"password,omitempty" mapstructure:"password"`
	UsuarioCreacion *Usuario `json:"usuario_creacion,omitempty" mapstructure:"usuario_creacion"`
}

// TipoCliente classifies customers.
type TipoCliente struct {
	ID              int64    `json:"id" mapstructure:"id"`
	Codigo          string   `json:"codigo" mapstructure:"codigo"`
	Descripcion     string   `json:"descripcion" mapstructure:"descripcion"`
	UsuarioCreacion *Usuario `json:"usuario_creacion,omitempty" mapstructure:"usuario_creacion"`
}

// Cliente is a customer with its mandatory type.
type Cliente struct {
	ID          int64        `json:"id" mapstructure:"id"`
	Codigo      string       `json:"codigo" mapstructure:"codigo"`
	Nombre      string       `json:"nombre" mapstructure:"nombre"`
	Apellidos   string       `json:"apellidos" mapstructure:"apellidos"`
	Saldo       float64      `json:"saldo" mapstructure:"saldo"`
	TipoCliente *TipoCliente `json:"tipo_cliente,omitempty" mapstructure:"tipo_cliente"`
}

var usuarioType = &model.EntityType{
	Name:    "Usuario",
	Table:   "usuarios",
	IDField: "usuario_id",
	Fields: model.NewFields(
		model.F("usuario_id", model.Column("id", "INT").PK()),
		model.F("username", model.Column("username", "VARCHAR(80)").Required()),
		model.F("password", model.Column("password", "VARCHAR(60)").Required()),
		model.F("usuario_creacion", model.Relation("usuario_creacion_id", "usuarios", newUsuario)),
	),
	New: newUsuario,
}

var tipoClienteType = &model.EntityType{
	Name:    "TipoCliente",
	Table:   "tiposcliente",
	IDField: "id",
	Fields: model.NewFields(
		model.F("id", model.Column("id", "INT").PK()),
		model.F("codigo", model.Column("codigo", "VARCHAR(10)").Required()),
		model.F("descripcion", model.Column("descripcion", "VARCHAR(50)").Required()),
		model.F("usuario_creacion", model.Relation("usuario_creacion_id", "usuarios", newUsuario)),
	),
	New: newTipoCliente,
}

var clienteType = &model.EntityType{
	Name:    "Cliente",
	Table:   "clientes",
	IDField: "id",
	Fields: model.NewFields(
		model.F("id", model.Column("id", "INT").PK()),
		model.F("codigo", model.Column("codigo", "VARCHAR(10)").Required()),
		model.F("nombre", model.Column("nombre", "VARCHAR(50)").Required()),
		model.F("apellidos", model.Column("apellidos", "VARCHAR(100)")),
		model.F("saldo", model.Column("saldo", "DECIMAL(10,2)").WithDefault(0.0)),
		model.F("tipo_cliente", model.Relation("tipo_cliente_id", "tiposcliente", newTipoCliente).Required()),
	),
	New: newCliente,
}

func newUsuario() model.Entity     { return &Usuario{} }
func newTipoCliente() model.Entity { return &TipoCliente{} }
func newCliente() model.Entity     { return &Cliente{} }

// EntityType implements model.Entity.
func (*Usuario) EntityType() *model.EntityType { return usuarioType }

// EntityType implements model.Entity.
func (*TipoCliente) EntityType() *model.EntityType { return tipoClienteType }

// EntityType implements model.Entity.
func (*Cliente) EntityType() *model.EntityType { return clienteType }

// All returns the metadata of every declared entity.
func All() []*model.EntityType {
	return []*model.EntityType{usuarioType, tipoClienteType, clienteType}
}
