package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func translateSQLiteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateBarcode
	}
	return err
}

// Dates are stored as ISO strings so they sort and compare correctly against
// sqlite's date() function.
const sqliteDateLayout = "2006-01-02"

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(sqliteDateLayout)
	return &s
}

// parseDate handles the layouts sqlite hands back for untyped (aggregate)
// columns, where the driver cannot use the declared column type.
func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	for _, layout := range []string{sqliteDateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("parse date %q", *s)
}

// =========== Medicine Repository ===========

type medicineRepoSQLite struct{ conn *sqlx.DB }

func NewMedicineRepoSQLite(conn *sqlx.DB) MedicineRepository {
	return &medicineRepoSQLite{conn: conn}
}

// medicineStockRow carries the aggregation result before the nearest expiry
// string is parsed.
type medicineStockRow struct {
	Medicine
	TotalStock    int     `db:"total_stock"`
	BatchCount    int     `db:"batch_count"`
	NearestExpiry *string `db:"nearest_expiry"`
}

func (row *medicineStockRow) toStock() (*MedicineStock, error) {
	nearest, err := parseDate(row.NearestExpiry)
	if err != nil {
		return nil, err
	}
	return &MedicineStock{
		Medicine:      row.Medicine,
		TotalStock:    row.TotalStock,
		BatchCount:    row.BatchCount,
		NearestExpiry: nearest,
	}, nil
}

const sqliteMedicineStockQuery = `
	SELECT m.id, m.name, m.barcode, m.description, m.category, m.manufacturer,
		m.created_at, m.updated_at,
		COALESCE(SUM(b.quantity), 0) AS total_stock,
		COUNT(b.id) AS batch_count,
		MIN(b.expiry_date) AS nearest_expiry
	FROM medicines m
	LEFT JOIN batches b ON m.id = b.medicine_id`

func (r *medicineRepoSQLite) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO medicines (id, name, barcode, description, category, manufacturer)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Barcode, m.Description, m.Category, m.Manufacturer)
	if err != nil {
		return translateSQLiteError(err)
	}
	var created Medicine
	if err := r.conn.GetContext(ctx, &created,
		`SELECT id, name, barcode, description, category, manufacturer, created_at, updated_at
		 FROM medicines WHERE id = ?`, m.ID); err != nil {
		return translateSQLiteError(err)
	}
	*m = created
	return nil
}

func (r *medicineRepoSQLite) ListWithStock(ctx context.Context) ([]*MedicineStock, error) {
	var rows []medicineStockRow
	if err := r.conn.SelectContext(ctx, &rows, sqliteMedicineStockQuery+`
		GROUP BY m.id
		ORDER BY m.name`); err != nil {
		return nil, err
	}
	items := make([]*MedicineStock, 0, len(rows))
	for i := range rows {
		ms, err := rows[i].toStock()
		if err != nil {
			return nil, err
		}
		items = append(items, ms)
	}
	return items, nil
}

func (r *medicineRepoSQLite) getStock(ctx context.Context, where string, arg interface{}) (*MedicineStock, error) {
	var row medicineStockRow
	err := r.conn.GetContext(ctx, &row, sqliteMedicineStockQuery+`
		WHERE `+where+`
		GROUP BY m.id`, arg)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	return row.toStock()
}

func (r *medicineRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*MedicineStock, error) {
	return r.getStock(ctx, "m.id = ?", id)
}

func (r *medicineRepoSQLite) GetByBarcode(ctx context.Context, barcode string) (*MedicineStock, error) {
	return r.getStock(ctx, "m.barcode = ?", barcode)
}

func (r *medicineRepoSQLite) Update(ctx context.Context, m *Medicine) (*Medicine, error) {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE medicines
		SET name = ?, description = ?, category = ?, manufacturer = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		m.Name, m.Description, m.Category, m.Manufacturer, m.ID)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	var updated Medicine
	if err := r.conn.GetContext(ctx, &updated,
		`SELECT id, name, barcode, description, category, manufacturer, created_at, updated_at
		 FROM medicines WHERE id = ?`, m.ID); err != nil {
		return nil, translateSQLiteError(err)
	}
	return &updated, nil
}

func (r *medicineRepoSQLite) Delete(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	var m Medicine
	if err := r.conn.GetContext(ctx, &m,
		`SELECT id, name, barcode, description, category, manufacturer, created_at, updated_at
		 FROM medicines WHERE id = ?`, id); err != nil {
		return nil, translateSQLiteError(err)
	}
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM medicines WHERE id = ?`, id); err != nil {
		return nil, translateSQLiteError(err)
	}
	return &m, nil
}

func (r *medicineRepoSQLite) ListLowStock(ctx context.Context, threshold int) ([]*StockAlert, error) {
	var alerts []*StockAlert
	err := r.conn.SelectContext(ctx, &alerts, `
		SELECT m.name, m.barcode, m.category,
			COALESCE(SUM(b.quantity), 0) AS total_stock,
			'low_stock' AS alert_type
		FROM medicines m
		LEFT JOIN batches b ON m.id = b.medicine_id
		GROUP BY m.id, m.name, m.barcode, m.category
		HAVING COALESCE(SUM(b.quantity), 0) < ?`, threshold)
	return alerts, err
}

// =========== Batch Repository ===========

type batchRepoSQLite struct{ conn *sqlx.DB }

func NewBatchRepoSQLite(conn *sqlx.DB) BatchRepository {
	return &batchRepoSQLite{conn: conn}
}

const sqliteBatchCols = `id, medicine_id, batch_number, quantity, expiry_date,
	cost_price, selling_price, created_at, updated_at`

func (r *batchRepoSQLite) Create(ctx context.Context, b *Batch) error {
	b.ID = uuid.New()
	_, err := r.conn.ExecContext(ctx, `
		INSERT INTO batches (id, medicine_id, batch_number, quantity, expiry_date, cost_price, selling_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.MedicineID, b.BatchNumber, b.Quantity, formatDate(b.ExpiryDate), b.CostPrice, b.SellingPrice)
	if err != nil {
		return translateSQLiteError(err)
	}
	var created Batch
	if err := r.conn.GetContext(ctx, &created,
		`SELECT `+sqliteBatchCols+` FROM batches WHERE id = ?`, b.ID); err != nil {
		return translateSQLiteError(err)
	}
	*b = created
	return nil
}

func (r *batchRepoSQLite) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	var items []*Batch
	err := r.conn.SelectContext(ctx, &items, `
		SELECT `+sqliteBatchCols+` FROM batches
		WHERE medicine_id = ?
		ORDER BY expiry_date ASC`, medicineID)
	return items, err
}

func (r *batchRepoSQLite) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*Batch, error) {
	res, err := r.conn.ExecContext(ctx, `
		UPDATE batches
		SET quantity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, quantity, id)
	if err != nil {
		return nil, translateSQLiteError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}
	var b Batch
	if err := r.conn.GetContext(ctx, &b,
		`SELECT `+sqliteBatchCols+` FROM batches WHERE id = ?`, id); err != nil {
		return nil, translateSQLiteError(err)
	}
	return &b, nil
}

func (r *batchRepoSQLite) Delete(ctx context.Context, id uuid.UUID) (*Batch, error) {
	var b Batch
	if err := r.conn.GetContext(ctx, &b,
		`SELECT `+sqliteBatchCols+` FROM batches WHERE id = ?`, id); err != nil {
		return nil, translateSQLiteError(err)
	}
	if _, err := r.conn.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, id); err != nil {
		return nil, translateSQLiteError(err)
	}
	return &b, nil
}

func (r *batchRepoSQLite) ListExpiringSoon(ctx context.Context, days int) ([]*StockAlert, error) {
	var alerts []*StockAlert
	err := r.conn.SelectContext(ctx, &alerts, fmt.Sprintf(`
		SELECT m.name, m.barcode, m.category,
			b.quantity AS total_stock,
			'expiring_soon' AS alert_type
		FROM medicines m
		JOIN batches b ON m.id = b.medicine_id
		WHERE b.expiry_date <= date('now', '+%d days')
			AND b.expiry_date > date('now')`, days))
	return alerts, err
}

func (r *batchRepoSQLite) ListExpiring(ctx context.Context, days int) ([]*ExpiringBatch, error) {
	var items []*ExpiringBatch
	err := r.conn.SelectContext(ctx, &items, fmt.Sprintf(`
		SELECT b.id, b.medicine_id, b.batch_number, b.quantity, b.expiry_date,
			b.cost_price, b.selling_price, b.created_at, b.updated_at,
			m.name AS medicine_name, m.barcode
		FROM batches b
		JOIN medicines m ON b.medicine_id = m.id
		WHERE b.expiry_date <= date('now', '+%d days')
			AND b.expiry_date > date('now')
			AND b.quantity > 0
		ORDER BY b.expiry_date ASC`, days))
	return items, err
}
