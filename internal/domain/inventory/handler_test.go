package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *memStore, *echo.Echo) {
	svc, store := newTestService()
	return NewHandler(svc), store, echo.New()
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func assertHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T: %v", err, err)
	}
	if httpErr.Code != code {
		t.Fatalf("expected status %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
	return httpErr
}

func TestHandler_CreateMedicine(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"name":"Aspirin","barcode":"12345678","category":"Analgesic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medicines", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec.Body.Bytes())
	if env["success"] != true {
		t.Error("expected success envelope")
	}
	if env["message"] != "Medicine created successfully" {
		t.Errorf("unexpected message: %v", env["message"])
	}
	data := env["data"].(map[string]interface{})
	if data["barcode"] != "12345678" {
		t.Errorf("expected barcode in response, got %v", data["barcode"])
	}
}

func TestHandler_CreateMedicine_Duplicate(t *testing.T) {
	h, _, e := newTestHandler()
	mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	body := `{"name":"Ibuprofen","barcode":"12345678","category":"Analgesic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medicines", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	httpErr := assertHTTPError(t, h.CreateMedicine(c), http.StatusBadRequest)
	if httpErr.Message != "Medicine with this barcode already exists" {
		t.Errorf("unexpected message: %v", httpErr.Message)
	}
}

func TestHandler_CreateMedicine_Validation(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"name":"A","barcode":"12345678","category":"Analgesic"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medicines", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assertHTTPError(t, h.CreateMedicine(c), http.StatusBadRequest)
}

func TestHandler_ListMedicines(t *testing.T) {
	h, store, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")
	addBatchDirect(store, m.ID, 7, daysFromToday(90))

	req := httptest.NewRequest(http.MethodGet, "/api/medicines", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListMedicines(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env["count"] != float64(1) {
		t.Errorf("expected count 1, got %v", env["count"])
	}
	data := env["data"].([]interface{})
	item := data[0].(map[string]interface{})
	if item["total_stock"] != float64(7) {
		t.Errorf("expected total_stock 7, got %v", item["total_stock"])
	}
}

func TestHandler_GetMedicine(t *testing.T) {
	h, store, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")
	addBatchDirect(store, m.ID, 5, daysFromToday(60))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.GetMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	batches := data["batches"].([]interface{})
	if len(batches) != 1 {
		t.Errorf("expected 1 batch in detail, got %d", len(batches))
	}
}

func TestHandler_GetMedicine_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	httpErr := assertHTTPError(t, h.GetMedicine(c), http.StatusNotFound)
	if httpErr.Message != "Medicine not found" {
		t.Errorf("unexpected message: %v", httpErr.Message)
	}
}

func TestHandler_GetMedicine_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	assertHTTPError(t, h.GetMedicine(c), http.StatusBadRequest)
}

func TestHandler_GetMedicineByBarcode(t *testing.T) {
	h, _, e := newTestHandler()
	mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("barcode")
	c.SetParamValues("12345678")

	if err := h.GetMedicineByBarcode(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	if data["name"] != "Aspirin" {
		t.Errorf("expected Aspirin, got %v", data["name"])
	}
}

func TestHandler_GetMedicineByBarcode_NotFound(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("barcode")
	c.SetParamValues("00000000")

	httpErr := assertHTTPError(t, h.GetMedicineByBarcode(c), http.StatusNotFound)
	if httpErr.Message != "Medicine not found with this barcode" {
		t.Errorf("unexpected message: %v", httpErr.Message)
	}
}

func TestHandler_UpdateMedicine_BarcodeIgnored(t *testing.T) {
	h, _, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	body := `{"name":"Aspirin Forte","barcode":"99999999","category":"Analgesic"}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.UpdateMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	if data["name"] != "Aspirin Forte" {
		t.Errorf("expected updated name, got %v", data["name"])
	}
	if data["barcode"] != "12345678" {
		t.Errorf("expected original barcode, got %v", data["barcode"])
	}
}

func TestHandler_AddBatch(t *testing.T) {
	h, _, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	expiry := daysFromToday(180).Format("2006-01-02")
	body := `{"batch_number":"B-100","quantity":25,"expiry_date":"` + expiry + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.AddBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env["message"] != "Batch added successfully" {
		t.Errorf("unexpected message: %v", env["message"])
	}
}

func TestHandler_AddBatch_MedicineNotFound(t *testing.T) {
	h, _, e := newTestHandler()

	expiry := daysFromToday(180).Format("2006-01-02")
	body := `{"batch_number":"B-100","quantity":25,"expiry_date":"` + expiry + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	httpErr := assertHTTPError(t, h.AddBatch(c), http.StatusNotFound)
	if httpErr.Message != "Medicine not found" {
		t.Errorf("unexpected message: %v", httpErr.Message)
	}
}

func TestHandler_AddBatch_BadPayload(t *testing.T) {
	h, _, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	tests := []struct {
		name string
		body string
	}{
		{"missing quantity", `{"batch_number":"B-100","expiry_date":"2099-01-01"}`},
		{"bad expiry", `{"batch_number":"B-100","quantity":5,"expiry_date":"tomorrow"}`},
		{"past expiry", `{"batch_number":"B-100","quantity":5,"expiry_date":"2001-01-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(m.ID.String())

			assertHTTPError(t, h.AddBatch(c), http.StatusBadRequest)
		})
	}
}

func TestHandler_UpdateBatch(t *testing.T) {
	h, store, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")
	b := addBatchDirect(store, m.ID, 10, daysFromToday(90))

	body := `{"quantity":3}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "batchId")
	c.SetParamValues(m.ID.String(), b.ID.String())

	if err := h.UpdateBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})
	if data["quantity"] != float64(3) {
		t.Errorf("expected quantity 3, got %v", data["quantity"])
	}
}

func TestHandler_UpdateBatch_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")

	body := `{"quantity":3}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "batchId")
	c.SetParamValues(m.ID.String(), uuid.New().String())

	httpErr := assertHTTPError(t, h.UpdateBatch(c), http.StatusNotFound)
	if httpErr.Message != "Batch not found" {
		t.Errorf("unexpected message: %v", httpErr.Message)
	}
}

func TestHandler_DeleteBatch(t *testing.T) {
	h, store, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")
	b := addBatchDirect(store, m.ID, 10, daysFromToday(90))

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "batchId")
	c.SetParamValues(m.ID.String(), b.ID.String())

	if err := h.DeleteBatch(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batches, _ := h.svc.ListBatches(context.Background(), m.ID)
	if len(batches) != 0 {
		t.Errorf("expected no batches after delete, got %d", len(batches))
	}
}

func TestHandler_DeleteMedicine(t *testing.T) {
	h, store, e := newTestHandler()
	m := mustCreateMedicine(t, h.svc, "Aspirin", "12345678")
	addBatchDirect(store, m.ID, 10, daysFromToday(90))

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(m.ID.String())

	if err := h.DeleteMedicine(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env["message"] != "Medicine deleted successfully" {
		t.Errorf("unexpected message: %v", env["message"])
	}
	if len(store.batches) != 0 {
		t.Errorf("expected cascade delete of batches, got %d left", len(store.batches))
	}
}

func TestHandler_GetAlerts(t *testing.T) {
	h, store, e := newTestHandler()
	low := mustCreateMedicine(t, h.svc, "Aspirin", "11111111")
	exp := mustCreateMedicine(t, h.svc, "Ibuprofen", "22222222")
	addBatchDirect(store, low.ID, 2, daysFromToday(365))
	addBatchDirect(store, exp.ID, 40, daysFromToday(15))

	req := httptest.NewRequest(http.MethodGet, "/api/medicines/alerts", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetAlerts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	data := env["data"].(map[string]interface{})

	stockAlerts := data["stock_alerts"].([]interface{})
	expiryAlerts := data["expiry_alerts"].([]interface{})
	expiringBatches := data["expiring_batches"].([]interface{})
	summary := data["summary"].(map[string]interface{})

	if len(stockAlerts) != 1 || len(expiryAlerts) != 1 || len(expiringBatches) != 1 {
		t.Errorf("unexpected alert partition sizes: %d/%d/%d",
			len(stockAlerts), len(expiryAlerts), len(expiringBatches))
	}
	if summary["total_alerts"] != float64(2) {
		t.Errorf("expected 2 total alerts, got %v", summary["total_alerts"])
	}
}
