package inventory

import (
	"context"

	"github.com/google/uuid"
)

// MedicineRepository is the storage contract for the medicine catalog. Both
// backends return ErrNotFound for missing rows and ErrDuplicateBarcode when
// the barcode unique constraint fires.
type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	ListWithStock(ctx context.Context) ([]*MedicineStock, error)
	GetByID(ctx context.Context, id uuid.UUID) (*MedicineStock, error)
	GetByBarcode(ctx context.Context, barcode string) (*MedicineStock, error)
	Update(ctx context.Context, m *Medicine) (*Medicine, error)
	Delete(ctx context.Context, id uuid.UUID) (*Medicine, error)
	// ListLowStock returns one low_stock alert per medicine whose aggregate
	// stock is below threshold, zero-batch medicines included.
	ListLowStock(ctx context.Context, threshold int) ([]*StockAlert, error)
}

type BatchRepository interface {
	Create(ctx context.Context, b *Batch) error
	ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*Batch, error)
	Delete(ctx context.Context, id uuid.UUID) (*Batch, error)
	// ListExpiringSoon returns one expiring_soon alert per batch whose expiry
	// falls inside (today, today+days], regardless of quantity.
	ListExpiringSoon(ctx context.Context, days int) ([]*StockAlert, error)
	// ListExpiring returns the batches expiring inside the same window that
	// still hold stock, joined with their medicine.
	ListExpiring(ctx context.Context, days int) ([]*ExpiringBatch, error)
}
