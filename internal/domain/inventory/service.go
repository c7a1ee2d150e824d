package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Service struct {
	medicines MedicineRepository
	batches   BatchRepository

	lowStockThreshold int
	expiryWindowDays  int
}

func NewService(medicines MedicineRepository, batches BatchRepository, lowStockThreshold, expiryWindowDays int) *Service {
	return &Service{
		medicines:         medicines,
		batches:           batches,
		lowStockThreshold: lowStockThreshold,
		expiryWindowDays:  expiryWindowDays,
	}
}

// ExpiryWindowDays returns the configured expiring-soon window.
func (s *Service) ExpiryWindowDays() int { return s.expiryWindowDays }

// -- Validation --

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Length limits count characters, not bytes, so multibyte names near the
// upper bound are not rejected early.
func validateMedicine(m *Medicine) error {
	if l := utf8.RuneCountInString(m.Name); l < 2 || l > 100 {
		return validationErr("name must be between 2 and 100 characters")
	}
	if m.Description != nil && utf8.RuneCountInString(*m.Description) > 500 {
		return validationErr("description must not exceed 500 characters")
	}
	if l := utf8.RuneCountInString(m.Category); l < 2 || l > 50 {
		return validationErr("category must be between 2 and 50 characters")
	}
	if m.Manufacturer != nil {
		if l := utf8.RuneCountInString(*m.Manufacturer); l < 2 || l > 100 {
			return validationErr("manufacturer must be between 2 and 100 characters")
		}
	}
	return nil
}

func validateBarcode(barcode string) error {
	if l := utf8.RuneCountInString(barcode); l < 8 || l > 50 {
		return validationErr("barcode must be between 8 and 50 characters")
	}
	return nil
}

func validateBatch(b *Batch) error {
	if l := utf8.RuneCountInString(b.BatchNumber); l < 1 || l > 50 {
		return validationErr("batch_number must be between 1 and 50 characters")
	}
	if b.Quantity < 0 {
		return validationErr("quantity must not be negative")
	}
	if b.ExpiryDate == nil {
		return validationErr("expiry_date is required")
	}
	if !b.ExpiryDate.After(time.Now()) {
		return validationErr("expiry_date must be in the future")
	}
	if b.CostPrice != nil && *b.CostPrice < 0 {
		return validationErr("cost_price must not be negative")
	}
	if b.SellingPrice != nil && *b.SellingPrice < 0 {
		return validationErr("selling_price must not be negative")
	}
	return nil
}

// -- Medicine --

// CreateMedicine validates the medicine, normalizes its barcode and rejects a
// barcode already in use. The pre-check is racy on purpose; the storage
// unique constraint is the backstop and surfaces as ErrDuplicateBarcode.
func (s *Service) CreateMedicine(ctx context.Context, m *Medicine) error {
	m.Barcode = strings.TrimSpace(m.Barcode)
	if err := validateBarcode(m.Barcode); err != nil {
		return err
	}
	if err := validateMedicine(m); err != nil {
		return err
	}

	existing, err := s.medicines.GetByBarcode(ctx, m.Barcode)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return ErrDuplicateBarcode
	}

	return s.medicines.Create(ctx, m)
}

func (s *Service) ListMedicines(ctx context.Context) ([]*MedicineStock, error) {
	return s.medicines.ListWithStock(ctx)
}

// GetMedicine returns a medicine with aggregates plus its batches ordered by
// expiry date.
func (s *Service) GetMedicine(ctx context.Context, id uuid.UUID) (*MedicineStock, []*Batch, error) {
	m, err := s.medicines.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	batches, err := s.batches.ListByMedicine(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	return m, batches, nil
}

func (s *Service) GetMedicineByBarcode(ctx context.Context, barcode string) (*MedicineStock, []*Batch, error) {
	m, err := s.medicines.GetByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, nil, err
	}
	batches, err := s.batches.ListByMedicine(ctx, m.ID)
	if err != nil {
		return nil, nil, err
	}
	return m, batches, nil
}

// UpdateMedicine updates the mutable fields. The barcode is immutable after
// create and is ignored here.
func (s *Service) UpdateMedicine(ctx context.Context, m *Medicine) (*Medicine, error) {
	if err := validateMedicine(m); err != nil {
		return nil, err
	}
	return s.medicines.Update(ctx, m)
}

func (s *Service) DeleteMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return s.medicines.Delete(ctx, id)
}

// -- Batch --

// AddBatch attaches a batch to an existing medicine. Validation runs before
// the medicine lookup, so a malformed payload is rejected even when the
// medicine is missing; the lookup between validation and create doubles as
// the 404 check.
func (s *Service) AddBatch(ctx context.Context, medicineID uuid.UUID, b *Batch) error {
	b.MedicineID = medicineID
	if err := validateBatch(b); err != nil {
		return err
	}
	if _, err := s.medicines.GetByID(ctx, medicineID); err != nil {
		return err
	}
	return s.batches.Create(ctx, b)
}

func (s *Service) ListBatches(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	return s.batches.ListByMedicine(ctx, medicineID)
}

func (s *Service) UpdateBatchQuantity(ctx context.Context, id uuid.UUID, quantity int) (*Batch, error) {
	if quantity < 0 {
		return nil, validationErr("quantity must not be negative")
	}
	return s.batches.UpdateQuantity(ctx, id, quantity)
}

func (s *Service) DeleteBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return s.batches.Delete(ctx, id)
}

func (s *Service) ExpiringBatches(ctx context.Context) ([]*ExpiringBatch, error) {
	return s.batches.ListExpiring(ctx, s.expiryWindowDays)
}

// -- Alert engine --

// StockAlerts combines the low-stock and expiring-soon alert sets, ordered by
// alert type and then ascending stock. Expiring-soon rows carry the single
// batch's quantity and are emitted even for empty batches; the expiring
// batches report below filters those out.
func (s *Service) StockAlerts(ctx context.Context) ([]*StockAlert, error) {
	lows, err := s.medicines.ListLowStock(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, err
	}
	exps, err := s.batches.ListExpiringSoon(ctx, s.expiryWindowDays)
	if err != nil {
		return nil, err
	}

	alerts := make([]*StockAlert, 0, len(lows)+len(exps))
	alerts = append(alerts, lows...)
	alerts = append(alerts, exps...)

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].AlertType != alerts[j].AlertType {
			return alerts[i].AlertType < alerts[j].AlertType
		}
		return alerts[i].TotalStock < alerts[j].TotalStock
	})

	return alerts, nil
}

// AlertView builds the combined alert report: the alert sets partitioned by
// type, the expiring batches with stock, and summary counts.
func (s *Service) AlertView(ctx context.Context) (*AlertReport, error) {
	alerts, err := s.StockAlerts(ctx)
	if err != nil {
		return nil, err
	}
	expiring, err := s.batches.ListExpiring(ctx, s.expiryWindowDays)
	if err != nil {
		return nil, err
	}

	report := &AlertReport{
		StockAlerts:     []*StockAlert{},
		ExpiryAlerts:    []*StockAlert{},
		ExpiringBatches: expiring,
	}
	if report.ExpiringBatches == nil {
		report.ExpiringBatches = []*ExpiringBatch{}
	}
	for _, a := range alerts {
		switch a.AlertType {
		case AlertLowStock:
			report.StockAlerts = append(report.StockAlerts, a)
		case AlertExpiringSoon:
			report.ExpiryAlerts = append(report.ExpiryAlerts, a)
		}
	}
	report.Summary = AlertSummary{
		LowStockCount:     len(report.StockAlerts),
		ExpiringSoonCount: len(report.ExpiryAlerts),
		TotalAlerts:       len(alerts),
	}
	return report, nil
}
