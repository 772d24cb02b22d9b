package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dao"
	"github.com/jipp1987/PruebaRestService/internal/dbexec"
	"github.com/jipp1987/PruebaRestService/internal/entities"
	"github.com/jipp1987/PruebaRestService/internal/middleware"
	"github.com/jipp1987/PruebaRestService/internal/model"
	"github.com/jipp1987/PruebaRestService/internal/naming"
	"github.com/jipp1987/PruebaRestService/internal/service"
)

type testAPI struct {
	handler  *Handler
	txm      *dbexec.TxManager
	mock     sqlmock.Sqlmock
	tipos    string
	clientes string
	routes   http.Handler
}

func newTestAPI(t *testing.T, opts ...Option) *testAPI {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := dbexec.NewTxManager(db)
	h := NewHandler(naming.Default(), opts...)
	api := &testAPI{handler: h, txm: txm, mock: mock}
	api.tipos = h.Register(service.New(txm, dao.New[*entities.TipoCliente](txm)))
	api.clientes = h.Register(service.New(txm, dao.New[*entities.Cliente](txm)))
	api.routes = h.Routes()
	return api
}

type decodedResponse struct {
	Message        string          `json:"message"`
	Success        bool            `json:"success"`
	StatusCode     int             `json:"status_code"`
	ResponseObject json.RawMessage `json:"response_object"`
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp decodedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, rec.Code, resp.StatusCode)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec, resp
}

func TestResources(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, "tipo_clientes", api.tipos)
	assert.Equal(t, "clientes", api.clientes)
	assert.Equal(t, []string{"clientes", "tipo_clientes"}, api.handler.Resources())
}

func TestCreateReturnsGeneratedID(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectExec("INSERT INTO `tiposcliente`").WillReturnResult(sqlmock.NewResult(7, 1))
	api.mock.ExpectCommit()

	rec, resp := serve(t, api.routes, http.MethodPost, "/api/"+api.tipos,
		`{"action":1,"request_object":{"codigo":"VIP","descripcion":"Very important"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)

	var created entities.TipoCliente
	require.NoError(t, json.Unmarshal(resp.ResponseObject, &created))
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "VIP", created.Codigo)
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestUpdateWithNestedRelation(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectExec("UPDATE `clientes` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	api.mock.ExpectCommit()

	rec, resp := serve(t, api.routes, http.MethodPost, "/api/"+api.clientes,
		`{"action":2,"request_object":{"id":3,"codigo":"0003","nombre":"Ana","tipo_cliente":{"id":1}}}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Contains(t, resp.Message, "update")
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestSelectEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectQuery(regexp.QuoteMeta("`tiposcliente`.`codigo` LIKE ?")).
		WithArgs("%V%").
		WillReturnRows(sqlmock.NewRows([]string{"tiposcliente$$id", "tiposcliente$$codigo"}).
			AddRow(int64(1), []byte("VIP")))
	api.mock.ExpectCommit()

	rec, resp := serve(t, api.routes, http.MethodPost, "/api/"+api.tipos+"/select",
		`{"fields":[{"field_name":"id"},{"field_name":"codigo"}],
		  "filters":[{"field_name":"codigo","filter_type":"LIKE","object_to_compare":"V"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	var found []entities.TipoCliente
	require.NoError(t, json.Unmarshal(resp.ResponseObject, &found))
	assert.Equal(t, []entities.TipoCliente{{ID: 1, Codigo: "VIP"}}, found)
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestSelectThroughActionEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectQuery("FROM `tiposcliente`").
		WillReturnRows(sqlmock.NewRows([]string{"tiposcliente$$id"}).AddRow(int64(2)))
	api.mock.ExpectCommit()

	rec, resp := serve(t, api.routes, http.MethodPost, "/api/"+api.tipos,
		`{"action":4,"request_object":{"fields":[{"field_name":"id"}]}}`)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	assert.Equal(t, "1 TipoCliente found", resp.Message)
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestFindByID(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectQuery(regexp.QuoteMeta("WHERE `clientes`.`id` = ? LIMIT 1")).
		WithArgs("3").
		WillReturnRows(sqlmock.NewRows([]string{
			"clientes$$id", "clientes$$codigo", "clientes$$nombre", "clientes$$apellidos", "clientes$$saldo",
			"tipo_cliente$$id",
		}).AddRow(int64(3), []byte("0003"), []byte("Ana"), []byte("Ruiz"), []byte("150.00"), int64(1)))
	api.mock.ExpectCommit()

	rec, resp := serve(t, api.routes, http.MethodGet, "/api/"+api.clientes+"/3", "")
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)

	var got entities.Cliente
	require.NoError(t, json.Unmarshal(resp.ResponseObject, &got))
	assert.Equal(t, "Ana", got.Nombre)
	assert.Equal(t, 150.0, got.Saldo)
	assert.Equal(t, &entities.TipoCliente{ID: 1}, got.TipoCliente)
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestFaultMapping(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    func(*testAPI) string
		body    string
		expect  func(sqlmock.Sqlmock)
		status  int
		message string
	}{
		{
			name:   "unknown resource",
			method: http.MethodPost,
			path:   func(*testAPI) string { return "/api/facturas" },
			body:   `{"action":1,"request_object":{}}`,
			expect: func(sqlmock.Sqlmock) {},
			status: http.StatusNotFound, message: `unknown resource "facturas"`,
		},
		{
			name:   "unsupported action",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":9,"request_object":{}}`,
			expect: func(sqlmock.Sqlmock) {},
			status: http.StatusBadRequest, message: "unsupported action Action(9)",
		},
		{
			name:   "unknown entity field",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":1,"request_object":{"nope":1}}`,
			expect: func(sqlmock.Sqlmock) {},
			status: http.StatusBadRequest, message: `unknown field "nope"`,
		},
		{
			name:   "missing request object",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":3}`,
			expect: func(sqlmock.Sqlmock) {},
			status: http.StatusBadRequest, message: "request_object is required",
		},
		{
			name:   "translation fault",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.clientes + "/select" },
			body:   `{"fields":[{"field_name":"tipo_cliente.nope"}]}`,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectRollback()
			},
			status: http.StatusBadRequest, message: "nope",
		},
		{
			name:   "known statement fault",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":1,"request_object":{"codigo":"VIP","descripcion":"dup"}}`,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec("INSERT INTO").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
				m.ExpectRollback()
			},
			status: http.StatusBadRequest, message: "A record with the same unique value already exists.",
		},
		{
			name:   "connection fault",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":3,"request_object":{"id":1}}`,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec("DELETE FROM").WillReturnError(&mysql.MySQLError{Number: 2013, Message: "Lost connection"})
				m.ExpectRollback()
			},
			status: http.StatusServiceUnavailable, message: "The database is unavailable. Please try again later.",
		},
		{
			name:   "unclassified statement fault",
			method: http.MethodPost,
			path:   func(a *testAPI) string { return "/api/" + a.tipos },
			body:   `{"action":3,"request_object":{"id":1}}`,
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectExec("DELETE FROM").WillReturnError(errors.New("boom"))
				m.ExpectRollback()
			},
			status: http.StatusInternalServerError, message: "internal server error",
		},
		{
			name:   "not found",
			method: http.MethodGet,
			path:   func(a *testAPI) string { return "/api/" + a.clientes + "/99" },
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectBegin()
				m.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"clientes$$id"}))
				m.ExpectCommit()
			},
			status: http.StatusNotFound, message: "entity not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			tt.expect(api.mock)

			rec, resp := serve(t, api.routes, tt.method, tt.path(api), tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tt.message)
			assert.Empty(t, resp.ResponseObject)
			require.NoError(t, api.mock.ExpectationsWereMet())
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	api := newTestAPI(t, WithMaxBodyBytes(16))

	rec, resp := serve(t, api.routes, http.MethodPost, "/api/"+api.tipos,
		`{"action":1,"request_object":{"codigo":"VIP","descripcion":"too long for the limit"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "exceeds 16 bytes")
}

func TestTransactionMiddlewareSpansRequest(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectExec("INSERT INTO `tiposcliente`").WillReturnResult(sqlmock.NewResult(1, 1))
	api.mock.ExpectCommit()

	wrapped := middleware.TransactionMiddleware(api.txm, WriteError, http.MethodPost)(api.routes)
	rec, _ := serve(t, wrapped, http.MethodPost, "/api/"+api.tipos,
		`{"action":1,"request_object":{"codigo":"STD","descripcion":"Standard"}}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.ExecutionIDHeader))
	assert.Equal(t, 0, api.txm.Len())
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestTransactionMiddlewareRollsBackRejectedRequest(t *testing.T) {
	api := newTestAPI(t)
	api.mock.ExpectBegin()
	api.mock.ExpectExec("INSERT INTO").WillReturnError(&mysql.MySQLError{Number: 1452, Message: "fk"})
	api.mock.ExpectRollback()

	wrapped := middleware.TransactionMiddleware(api.txm, WriteError, http.MethodPost)(api.routes)
	rec, resp := serve(t, wrapped, http.MethodPost, "/api/"+api.clientes,
		`{"action":1,"request_object":{"codigo":"X","nombre":"Y","tipo_cliente":{"id":42}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "does not exist")
	require.NoError(t, api.mock.ExpectationsWereMet())
}

func TestTransactionMiddlewareReportsCommitFailure(t *testing.T) {
	tests := []struct {
		name        string
		commitErr   error
		wantStatus  int
		wantMessage string
	}{
		{name: "unclassified", commitErr: errors.New("lost connection"), wantStatus: http.StatusInternalServerError, wantMessage: "internal server error"},
		{name: "server gone", commitErr: &mysql.MySQLError{Number: 2006, Message: "gone away"}, wantStatus: http.StatusServiceUnavailable, wantMessage: "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.mock.ExpectBegin()
			api.mock.ExpectExec("INSERT INTO `tiposcliente`").WillReturnResult(sqlmock.NewResult(1, 1))
			api.mock.ExpectCommit().WillReturnError(tt.commitErr)

			wrapped := middleware.TransactionMiddleware(api.txm, WriteError, http.MethodPost)(api.routes)
			rec, resp := serve(t, wrapped, http.MethodPost, "/api/"+api.tipos,
				`{"action":1,"request_object":{"codigo":"STD","descripcion":"Standard"}}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Message, tt.wantMessage)
			assert.Empty(t, resp.ResponseObject)
			assert.Equal(t, 0, api.txm.Len())
			require.NoError(t, api.mock.ExpectationsWereMet())
		})
	}
}

type stubService struct {
	et *model.EntityType
}

func (s stubService) EntityType() *model.EntityType { return s.et }

func (stubService) ApplyEntity(context.Context, service.Action, model.Entity) error { return nil }

func (stubService) SelectEntities(context.Context, clause.Query) ([]model.Entity, error) {
	return nil, nil
}

func (stubService) FindEntity(context.Context, any) (model.Entity, error) { return nil, nil }

func TestRegisterResolvesCollisions(t *testing.T) {
	h := NewHandler(nil)
	et := (*entities.Usuario)(nil).EntityType()
	assert.Equal(t, "usuarios", h.Register(stubService{et: et}))
	assert.Equal(t, "usuarios2", h.Register(stubService{et: et}))
}
