package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"commerce-api/internal/middleware"
	"commerce-api/internal/model"
	"commerce-api/internal/ref"
	"commerce-api/internal/telemetry"
	"commerce-api/pkg/config"
	"commerce-api/pkg/database"
	"commerce-api/prometheus"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupServer builds a full router over a fresh in-memory database.
func setupServer(t *testing.T) *echo.Echo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	database.Set(db)

	cfg := &config.Config{}
	cfg.Metrics.Prefix = "commerce_test"
	cfg.Audit.SystemIdentity = "test-suite"
	cfg.Query.MaxExpansionDepth = 5
	prometheus.InitMetrics(cfg)

	log := zap.NewNop()
	deps := &Deps{
		Config:  cfg,
		Tracker: telemetry.NewTracker(log),
		Events:  telemetry.NewPublisher(cfg, log),
		Resolver: ref.NewResolver(
			"customers", "addresses", "phones",
			"orders", "products", "productbrands"),
	}

	e := echo.New()
	e.Validator = NewValidator()
	e.Pre(middleware.ODataPathMiddleware)

	api := e.Group("")
	NewCustomerResource(deps).Register(api)
	NewAddressResource(deps).Register(api)
	NewPhoneResource(deps).Register(api)
	NewOrderResource(deps).Register(api)
	NewProductResource(deps).Register(api)
	NewProductBrandResource(deps).Register(api)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func newCustomer(t *testing.T, e *echo.Echo, email string) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, e, http.MethodPost, "/customers", map[string]interface{}{
		"first_name":    "Jane",
		"last_name":     "Smith",
		"email_address": email,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	return body
}

func TestCustomerLifecycle(t *testing.T) {
	e := setupServer(t)

	created := newCustomer(t, e, "jane@example.com")
	assert.EqualValues(t, 1, created["id"])
	assert.NotEmpty(t, created["inserted_datetime"])
	assert.NotEmpty(t, created["last_updated_datetime"])
	// Identity columns stay server-side
	assert.NotContains(t, created, "inserted_by")
	assert.NotContains(t, created, "last_updated_by")

	rec := doJSON(t, e, http.MethodGet, "/customers/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	decode(t, rec, &got)
	assert.Equal(t, "jane@example.com", got["email_address"])

	// Key-in-parentheses spelling hits the same route
	rec = doJSON(t, e, http.MethodGet, "/customers(1)", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, e, http.MethodDelete, "/customers/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/customers/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateValidation(t *testing.T) {
	e := setupServer(t)

	rec := doJSON(t, e, http.MethodPost, "/customers", map[string]interface{}{
		"first_name": "Jane",
		"last_name":  "Smith",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, e, http.MethodPost, "/customers", map[string]interface{}{
		"first_name":    "Jane",
		"last_name":     "Smith",
		"email_address": "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateDuplicateConflicts(t *testing.T) {
	e := setupServer(t)
	newCustomer(t, e, "jane@example.com")

	rec := doJSON(t, e, http.MethodPost, "/customers", map[string]interface{}{
		"first_name":    "Janet",
		"last_name":     "Smythe",
		"email_address": "jane@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The composite street key guards addresses
	address := map[string]interface{}{
		"street_address_1": "1 Main St",
		"street_address_2": "Suite 4",
		"city":             "Springfield",
		"state_province":   "IL",
		"postal_code":      "62701",
	}
	rec = doJSON(t, e, http.MethodPost, "/addresses", address)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, e, http.MethodPost, "/addresses", address)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A different suite at the same street is a new address
	address["street_address_2"] = "Suite 5"
	rec = doJSON(t, e, http.MethodPost, "/addresses", address)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListEmptyIsNotFound(t *testing.T) {
	e := setupServer(t)

	rec := doJSON(t, e, http.MethodGet, "/customers", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	newCustomer(t, e, "jane@example.com")
	rec = doJSON(t, e, http.MethodGet, "/customers?%24filter=first_name+eq+%27Nobody%27", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListQueryOptions(t *testing.T) {
	e := setupServer(t)
	for i := 1; i <= 5; i++ {
		newCustomer(t, e, fmt.Sprintf("c%d@example.com", i))
	}

	t.Run("filter", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodGet, "/customers?%24filter=email_address+eq+%27c3%40example.com%27", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var items []map[string]interface{}
		decode(t, rec, &items)
		require.Len(t, items, 1)
		assert.EqualValues(t, 3, items[0]["id"])
	})

	t.Run("orderby top skip", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodGet, "/customers?%24orderby=id+desc&%24top=2&%24skip=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var items []map[string]interface{}
		decode(t, rec, &items)
		require.Len(t, items, 2)
		assert.EqualValues(t, 4, items[0]["id"])
		assert.EqualValues(t, 3, items[1]["id"])
	})

	t.Run("select projects fields", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodGet, "/customers?%24select=email_address", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var items []map[string]interface{}
		decode(t, rec, &items)
		require.NotEmpty(t, items)
		assert.NotEmpty(t, items[0]["email_address"])
		assert.Empty(t, items[0]["first_name"])
	})

	t.Run("count envelope", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodGet, "/customers?%24count=true&%24top=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var envelope struct {
			Count int                      `json:"count"`
			Value []map[string]interface{} `json:"value"`
		}
		decode(t, rec, &envelope)
		assert.Equal(t, 5, envelope.Count)
		assert.Len(t, envelope.Value, 2)
	})

	t.Run("malformed option fails", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodGet, "/customers?%24top=many", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, e, http.MethodGet, "/customers?%24search=jane", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPatch(t *testing.T) {
	e := setupServer(t)
	created := newCustomer(t, e, "jane@example.com")
	insertedAt := created["inserted_datetime"].(string)

	time.Sleep(5 * time.Millisecond)

	t.Run("partial update", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPatch, "/customers/1", map[string]interface{}{
			"last_name": "Jones",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, "Jones", body["last_name"])
		assert.Equal(t, "Jane", body["first_name"])
		assert.Equal(t, insertedAt, body["inserted_datetime"])
		assert.NotEqual(t, insertedAt, body["last_updated_datetime"])
	})

	t.Run("merge verb behaves like patch", func(t *testing.T) {
		rec := doJSON(t, e, "MERGE", "/customers/1", map[string]interface{}{
			"suffix": "Jr",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, "Jr", body["suffix"])
	})

	t.Run("empty delta still advances the stamp", func(t *testing.T) {
		before := doJSON(t, e, http.MethodGet, "/customers/1", nil)
		var prev map[string]interface{}
		decode(t, before, &prev)

		time.Sleep(5 * time.Millisecond)
		rec := doJSON(t, e, http.MethodPatch, "/customers/1", map[string]interface{}{})
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		decode(t, rec, &body)
		assert.Equal(t, prev["inserted_datetime"], body["inserted_datetime"])
		assert.NotEqual(t, prev["last_updated_datetime"], body["last_updated_datetime"])
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPatch, "/customers/1", map[string]interface{}{
			"nickname": "JJ",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("immutable field rejected", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPatch, "/customers/1", map[string]interface{}{
			"id": 99,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing target", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPatch, "/customers/42", map[string]interface{}{
			"last_name": "Jones",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPut(t *testing.T) {
	e := setupServer(t)
	created := newCustomer(t, e, "jane@example.com")
	insertedAt := created["inserted_datetime"].(string)

	time.Sleep(5 * time.Millisecond)

	rec := doJSON(t, e, http.MethodPut, "/customers/1", map[string]interface{}{
		"first_name":    "Janet",
		"last_name":     "Jones",
		"email_address": "janet@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "Janet", body["first_name"])
	assert.Equal(t, "janet@example.com", body["email_address"])
	assert.Equal(t, insertedAt, body["inserted_datetime"])
	assert.NotEqual(t, insertedAt, body["last_updated_datetime"])

	rec = doJSON(t, e, http.MethodPut, "/customers/42", map[string]interface{}{
		"first_name":    "Janet",
		"last_name":     "Jones",
		"email_address": "other@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMissing(t *testing.T) {
	e := setupServer(t)
	rec := doJSON(t, e, http.MethodDelete, "/customers/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefLinking(t *testing.T) {
	e := setupServer(t)
	newCustomer(t, e, "jane@example.com")

	rec := doJSON(t, e, http.MethodPost, "/addresses", map[string]interface{}{
		"street_address_1": "1 Main St",
		"city":             "Springfield",
		"state_province":   "IL",
		"postal_code":      "62701",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("link address", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/customers/1/addresses/$ref", map[string]interface{}{
			"@odata.id": "http://localhost:8080/addresses(1)",
		})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, e, http.MethodGet, "/customers/1?%24expand=addresses", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Addresses []map[string]interface{} `json:"addresses"`
		}
		decode(t, rec, &body)
		require.Len(t, body.Addresses, 1)
		assert.Equal(t, "1 Main St", body.Addresses[0]["street_address_1"])
	})

	t.Run("unlink address removes the row", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodDelete, "/customers/1/addresses/1/$ref", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, e, http.MethodGet, "/addresses/1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("relation as query parameter", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/phones", map[string]interface{}{
			"phone_number": "+1-555-0100",
			"phone_type":   "mobile",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, e, http.MethodPut, "/customers(1)/$ref?relation=phones", map[string]interface{}{
			"@odata.id": "/phones(1)",
		})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, e, http.MethodDelete, "/customers(1)/$ref?relation=phones&relatedKey=1", nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, e, http.MethodGet, "/phones/1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("link order reassigns ownership", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/orders", map[string]interface{}{
			"customer_id":  1,
			"order_number": "ORD-100",
			"order_status": 1,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		newCustomer(t, e, "other@example.com")
		rec = doJSON(t, e, http.MethodPost, "/customers/2/orders/$ref", map[string]interface{}{
			"@odata.id": "/orders(1)",
		})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, e, http.MethodGet, "/orders/1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var order map[string]interface{}
		decode(t, rec, &order)
		assert.EqualValues(t, 2, order["customer_id"])
	})

	t.Run("unlink order is not implemented", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodDelete, "/customers/2/orders/1/$ref", nil)
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("unknown relation is not implemented", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/customers/1/pets/$ref", map[string]interface{}{
			"@odata.id": "/pets(1)",
		})
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("invalid reference uri", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/customers/1/phones/$ref", map[string]interface{}{
			"@odata.id": "not a reference",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("link target missing", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/customers/1/phones/$ref", map[string]interface{}{
			"@odata.id": "/phones(99)",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner missing", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/customers/99/phones/$ref", map[string]interface{}{
			"@odata.id": "/phones(1)",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUnlinkRequiresExistingLink(t *testing.T) {
	e := setupServer(t)
	newCustomer(t, e, "jane@example.com")
	newCustomer(t, e, "john@example.com")

	rec := doJSON(t, e, http.MethodPost, "/addresses", map[string]interface{}{
		"street_address_1": "1 Main St",
		"city":             "Springfield",
		"state_province":   "IL",
		"postal_code":      "62701",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// The address belongs to customer 2 only
	rec = doJSON(t, e, http.MethodPost, "/customers/2/addresses/$ref", map[string]interface{}{
		"@odata.id": "/addresses(1)",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Unlinking through a customer that never held the link must not
	// touch the shared row
	rec = doJSON(t, e, http.MethodDelete, "/customers/1/addresses/1/$ref", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/addresses/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A phone that exists but was never linked behaves the same
	rec = doJSON(t, e, http.MethodPost, "/phones", map[string]interface{}{
		"phone_number": "+1-555-0101",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, e, http.MethodDelete, "/customers/1/phones/1/$ref", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, e, http.MethodGet, "/phones/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The customer actually holding the link can still remove it
	rec = doJSON(t, e, http.MethodDelete, "/customers/2/addresses/1/$ref", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, e, http.MethodGet, "/addresses/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateIgnoresClientKey(t *testing.T) {
	e := setupServer(t)

	rec := doJSON(t, e, http.MethodPost, "/customers", map[string]interface{}{
		"id":            42,
		"first_name":    "Jane",
		"last_name":     "Smith",
		"email_address": "jane@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.EqualValues(t, 1, body["id"])

	rec = doJSON(t, e, http.MethodGet, "/customers/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, e, http.MethodGet, "/customers/42", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpandNestedOrders(t *testing.T) {
	e := setupServer(t)
	newCustomer(t, e, "jane@example.com")

	rec := doJSON(t, e, http.MethodPost, "/orders", map[string]interface{}{
		"customer_id":  1,
		"order_number": "ORD-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, e, http.MethodGet, "/customers?%24expand=orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []struct {
		Orders []map[string]interface{} `json:"orders"`
	}
	decode(t, rec, &items)
	require.Len(t, items, 1)
	require.Len(t, items[0].Orders, 1)
	assert.Equal(t, "ORD-1", items[0].Orders[0]["order_number"])

	rec = doJSON(t, e, http.MethodGet, "/customers?%24expand=pets", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
