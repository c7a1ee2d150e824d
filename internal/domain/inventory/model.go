package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Medicine maps to the medicines table. Barcode is immutable after create and
// unique across the catalog.
type Medicine struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Barcode      string    `db:"barcode" json:"barcode"`
	Description  *string   `db:"description" json:"description,omitempty"`
	Category     string    `db:"category" json:"category"`
	Manufacturer *string   `db:"manufacturer" json:"manufacturer,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MedicineStock is a Medicine with its batch aggregates: total stock is the
// sum of batch quantities, nearest expiry the MIN over batch expiry dates.
// A medicine with no batches has zero stock and no nearest expiry.
type MedicineStock struct {
	Medicine
	TotalStock    int        `db:"total_stock" json:"total_stock"`
	BatchCount    int        `db:"batch_count" json:"batch_count"`
	NearestExpiry *time.Time `db:"nearest_expiry" json:"nearest_expiry"`
}

// Batch maps to the batches table. A batch belongs to exactly one medicine
// and is removed when the medicine is deleted.
type Batch struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	MedicineID   uuid.UUID  `db:"medicine_id" json:"medicine_id"`
	BatchNumber  string     `db:"batch_number" json:"batch_number"`
	Quantity     int        `db:"quantity" json:"quantity"`
	ExpiryDate   *time.Time `db:"expiry_date" json:"expiry_date"`
	CostPrice    *float64   `db:"cost_price" json:"cost_price,omitempty"`
	SellingPrice *float64   `db:"selling_price" json:"selling_price,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// ExpiringBatch is a batch joined with its owning medicine for the expiry report.
type ExpiringBatch struct {
	Batch
	MedicineName string `db:"medicine_name" json:"medicine_name"`
	Barcode      string `db:"barcode" json:"barcode"`
}

// Alert types, ordered lexicographically in the combined alert listing.
const (
	AlertExpiringSoon = "expiring_soon"
	AlertLowStock     = "low_stock"
)

// StockAlert is a derived row, never persisted. For low_stock rows TotalStock
// is the medicine's aggregate stock; for expiring_soon rows it is the
// quantity of the single batch that triggered the alert.
type StockAlert struct {
	Name       string `db:"name" json:"name"`
	Barcode    string `db:"barcode" json:"barcode"`
	Category   string `db:"category" json:"category"`
	TotalStock int    `db:"total_stock" json:"total_stock"`
	AlertType  string `db:"alert_type" json:"alert_type"`
}

// AlertSummary counts the alerts in an AlertReport.
type AlertSummary struct {
	LowStockCount     int `json:"low_stock_count"`
	ExpiringSoonCount int `json:"expiring_soon_count"`
	TotalAlerts       int `json:"total_alerts"`
}

// AlertReport is the combined alert view served by the alerts endpoint.
type AlertReport struct {
	StockAlerts     []*StockAlert    `json:"stock_alerts"`
	ExpiryAlerts    []*StockAlert    `json:"expiry_alerts"`
	ExpiringBatches []*ExpiringBatch `json:"expiring_batches"`
	Summary         AlertSummary     `json:"summary"`
}
