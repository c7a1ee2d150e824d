package inventory

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the medicine routes. The alerts and barcode routes
// are registered ahead of the id routes so they are not captured by :id.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListMedicines)
	g.GET("/alerts", h.GetAlerts)
	g.GET("/barcode/:barcode", h.GetMedicineByBarcode)
	g.GET("/:id", h.GetMedicine)
	g.POST("", h.CreateMedicine)
	g.PUT("/:id", h.UpdateMedicine)
	g.POST("/:id/batches", h.AddBatch)
	g.PUT("/:id/batches/:batchId", h.UpdateBatch)
	g.DELETE("/:id/batches/:batchId", h.DeleteBatch)
	g.DELETE("/:id", h.DeleteMedicine)
}

// -- Response envelope --

func respondData(c echo.Context, code int, data interface{}) error {
	return c.JSON(code, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func respondMessage(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// translate maps domain errors onto HTTP errors with stable client-facing
// messages. Unknown errors become a 500 with the internal cause attached for
// the error handler to log.
func translate(err error, notFoundMsg, internalMsg string) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDuplicateBarcode):
		return echo.NewHTTPError(http.StatusBadRequest, "Medicine with this barcode already exists")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, internalMsg).SetInternal(err)
	}
}

// -- Request payloads --

type medicinePayload struct {
	Name         string  `json:"name"`
	Barcode      string  `json:"barcode"`
	Description  *string `json:"description"`
	Category     string  `json:"category"`
	Manufacturer *string `json:"manufacturer"`
}

type batchPayload struct {
	BatchNumber  string   `json:"batch_number"`
	Quantity     *int     `json:"quantity"`
	ExpiryDate   string   `json:"expiry_date"`
	CostPrice    *float64 `json:"cost_price"`
	SellingPrice *float64 `json:"selling_price"`
}

type quantityPayload struct {
	Quantity *int `json:"quantity"`
}

// medicineDetail is a medicine with aggregates plus its batches.
type medicineDetail struct {
	*MedicineStock
	Batches []*Batch `json:"batches"`
}

func parseExpiryDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, validationErr("expiry_date must be a valid date")
}

// -- Handlers --

func (h *Handler) ListMedicines(c echo.Context) error {
	medicines, err := h.svc.ListMedicines(c.Request().Context())
	if err != nil {
		return translate(err, "", "Failed to fetch medicines")
	}
	if medicines == nil {
		medicines = []*MedicineStock{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(medicines),
		"data":    medicines,
	})
}

func (h *Handler) GetMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	m, batches, err := h.svc.GetMedicine(c.Request().Context(), id)
	if err != nil {
		return translate(err, "Medicine not found", "Failed to fetch medicine")
	}
	if batches == nil {
		batches = []*Batch{}
	}
	return respondData(c, http.StatusOK, medicineDetail{MedicineStock: m, Batches: batches})
}

func (h *Handler) GetMedicineByBarcode(c echo.Context) error {
	m, batches, err := h.svc.GetMedicineByBarcode(c.Request().Context(), c.Param("barcode"))
	if err != nil {
		return translate(err, "Medicine not found with this barcode", "Failed to search medicine by barcode")
	}
	if batches == nil {
		batches = []*Batch{}
	}
	return respondData(c, http.StatusOK, medicineDetail{MedicineStock: m, Batches: batches})
}

func (h *Handler) CreateMedicine(c echo.Context) error {
	var req medicinePayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := Medicine{
		Name:         req.Name,
		Barcode:      req.Barcode,
		Description:  req.Description,
		Category:     req.Category,
		Manufacturer: req.Manufacturer,
	}
	if err := h.svc.CreateMedicine(c.Request().Context(), &m); err != nil {
		return translate(err, "", "Failed to create medicine")
	}
	return respondMessage(c, http.StatusCreated, "Medicine created successfully", m)
}

func (h *Handler) UpdateMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	var req medicinePayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := Medicine{
		ID:           id,
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		Manufacturer: req.Manufacturer,
	}
	updated, err := h.svc.UpdateMedicine(c.Request().Context(), &m)
	if err != nil {
		return translate(err, "Medicine not found", "Failed to update medicine")
	}
	return respondMessage(c, http.StatusOK, "Medicine updated successfully", updated)
}

func (h *Handler) DeleteMedicine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	deleted, err := h.svc.DeleteMedicine(c.Request().Context(), id)
	if err != nil {
		return translate(err, "Medicine not found", "Failed to delete medicine")
	}
	return respondMessage(c, http.StatusOK, "Medicine deleted successfully", deleted)
}

func (h *Handler) AddBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	var req batchPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	expiry, err := parseExpiryDate(req.ExpiryDate)
	if err != nil {
		return translate(err, "", "Failed to add batch")
	}
	if req.Quantity == nil {
		return translate(validationErr("quantity is required"), "", "Failed to add batch")
	}
	b := Batch{
		BatchNumber:  req.BatchNumber,
		Quantity:     *req.Quantity,
		ExpiryDate:   expiry,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
	}
	if err := h.svc.AddBatch(c.Request().Context(), id, &b); err != nil {
		return translate(err, "Medicine not found", "Failed to add batch")
	}
	return respondMessage(c, http.StatusCreated, "Batch added successfully", b)
}

func (h *Handler) UpdateBatch(c echo.Context) error {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	var req quantityPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == nil {
		return translate(validationErr("quantity is required"), "", "Failed to update batch")
	}
	b, err := h.svc.UpdateBatchQuantity(c.Request().Context(), batchID, *req.Quantity)
	if err != nil {
		return translate(err, "Batch not found", "Failed to update batch")
	}
	return respondMessage(c, http.StatusOK, "Batch updated successfully", b)
}

func (h *Handler) DeleteBatch(c echo.Context) error {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medicine id")
	}
	batchID, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batch id")
	}
	b, err := h.svc.DeleteBatch(c.Request().Context(), batchID)
	if err != nil {
		return translate(err, "Batch not found", "Failed to delete batch")
	}
	return respondMessage(c, http.StatusOK, "Batch deleted successfully", b)
}

func (h *Handler) GetAlerts(c echo.Context) error {
	report, err := h.svc.AlertView(c.Request().Context())
	if err != nil {
		return translate(err, "", "Failed to fetch stock alerts")
	}
	return respondData(c, http.StatusOK, report)
}
