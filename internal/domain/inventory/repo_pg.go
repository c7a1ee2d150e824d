package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

const pgUniqueViolation = "23505"

func translatePgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateBarcode
	}
	return err
}

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository {
	return &medicineRepoPG{pool: pool}
}

func (r *medicineRepoPG) conn() queryable { return r.pool }

const medicineCols = `id, name, barcode, description, category, manufacturer, created_at, updated_at`

// Aggregated medicine columns: every medicine column plus the batch rollup.
// LEFT JOIN keeps zero-batch medicines with stock 0 and a null nearest expiry.
const medicineStockQuery = `
	SELECT m.id, m.name, m.barcode, m.description, m.category, m.manufacturer,
		m.created_at, m.updated_at,
		COALESCE(SUM(b.quantity), 0) AS total_stock,
		COUNT(b.id) AS batch_count,
		MIN(b.expiry_date) AS nearest_expiry
	FROM medicines m
	LEFT JOIN batches b ON m.id = b.medicine_id`

func (r *medicineRepoPG) scanMedicine(row pgx.Row) (*Medicine, error) {
	var m Medicine
	err := row.Scan(&m.ID, &m.Name, &m.Barcode, &m.Description, &m.Category,
		&m.Manufacturer, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, translatePgError(err)
	}
	return &m, nil
}

func (r *medicineRepoPG) scanStock(row pgx.Row) (*MedicineStock, error) {
	var ms MedicineStock
	err := row.Scan(&ms.ID, &ms.Name, &ms.Barcode, &ms.Description, &ms.Category,
		&ms.Manufacturer, &ms.CreatedAt, &ms.UpdatedAt,
		&ms.TotalStock, &ms.BatchCount, &ms.NearestExpiry)
	if err != nil {
		return nil, translatePgError(err)
	}
	return &ms, nil
}

func (r *medicineRepoPG) Create(ctx context.Context, m *Medicine) error {
	m.ID = uuid.New()
	err := r.conn().QueryRow(ctx, `
		INSERT INTO medicines (id, name, barcode, description, category, manufacturer)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		m.ID, m.Name, m.Barcode, m.Description, m.Category, m.Manufacturer).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return translatePgError(err)
	}
	return nil
}

func (r *medicineRepoPG) ListWithStock(ctx context.Context) ([]*MedicineStock, error) {
	rows, err := r.conn().Query(ctx, medicineStockQuery+`
		GROUP BY m.id
		ORDER BY m.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicineStock
	for rows.Next() {
		ms, err := r.scanStock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ms)
	}
	return items, rows.Err()
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicineStock, error) {
	return r.scanStock(r.conn().QueryRow(ctx, medicineStockQuery+`
		WHERE m.id = $1
		GROUP BY m.id`, id))
}

func (r *medicineRepoPG) GetByBarcode(ctx context.Context, barcode string) (*MedicineStock, error) {
	return r.scanStock(r.conn().QueryRow(ctx, medicineStockQuery+`
		WHERE m.barcode = $1
		GROUP BY m.id`, barcode))
}

func (r *medicineRepoPG) Update(ctx context.Context, m *Medicine) (*Medicine, error) {
	return r.scanMedicine(r.conn().QueryRow(ctx, `
		UPDATE medicines
		SET name=$2, description=$3, category=$4, manufacturer=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING `+medicineCols,
		m.ID, m.Name, m.Description, m.Category, m.Manufacturer))
}

func (r *medicineRepoPG) Delete(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	return r.scanMedicine(r.conn().QueryRow(ctx,
		`DELETE FROM medicines WHERE id = $1 RETURNING `+medicineCols, id))
}

func (r *medicineRepoPG) ListLowStock(ctx context.Context, threshold int) ([]*StockAlert, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT m.name, m.barcode, m.category,
			COALESCE(SUM(b.quantity), 0) AS total_stock
		FROM medicines m
		LEFT JOIN batches b ON m.id = b.medicine_id
		GROUP BY m.id, m.name, m.barcode, m.category
		HAVING COALESCE(SUM(b.quantity), 0) < $1`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []*StockAlert
	for rows.Next() {
		a := StockAlert{AlertType: AlertLowStock}
		if err := rows.Scan(&a.Name, &a.Barcode, &a.Category, &a.TotalStock); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// =========== Batch Repository ===========

type batchRepoPG struct{ pool *pgxpool.Pool }

func NewBatchRepoPG(pool *pgxpool.Pool) BatchRepository {
	return &batchRepoPG{pool: pool}
}

func (r *batchRepoPG) conn() queryable { return r.pool }

const batchCols = `id, medicine_id, batch_number, quantity, expiry_date,
	cost_price, selling_price, created_at, updated_at`

func (r *batchRepoPG) scanBatch(row pgx.Row) (*Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.MedicineID, &b.BatchNumber, &b.Quantity, &b.ExpiryDate,
		&b.CostPrice, &b.SellingPrice, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, translatePgError(err)
	}
	return &b, nil
}

func (r *batchRepoPG) Create(ctx context.Context, b *Batch) error {
	b.ID = uuid.New()
	err := r.conn().QueryRow(ctx, `
		INSERT INTO batches (id, medicine_id, batch_number, quantity, expiry_date, cost_price, selling_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		b.ID, b.MedicineID, b.BatchNumber, b.Quantity, b.ExpiryDate, b.CostPrice, b.SellingPrice).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return translatePgError(err)
	}
	return nil
}

func (r *batchRepoPG) ListByMedicine(ctx context.Context, medicineID uuid.UUID) ([]*Batch, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT `+batchCols+` FROM batches
		WHERE medicine_id = $1
		ORDER BY expiry_date ASC`, medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Batch
	for rows.Next() {
		b, err := r.scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *batchRepoPG) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (*Batch, error) {
	return r.scanBatch(r.conn().QueryRow(ctx, `
		UPDATE batches
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+batchCols, id, quantity))
}

func (r *batchRepoPG) Delete(ctx context.Context, id uuid.UUID) (*Batch, error) {
	return r.scanBatch(r.conn().QueryRow(ctx,
		`DELETE FROM batches WHERE id = $1 RETURNING `+batchCols, id))
}

func (r *batchRepoPG) ListExpiringSoon(ctx context.Context, days int) ([]*StockAlert, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT m.name, m.barcode, m.category, b.quantity AS total_stock
		FROM medicines m
		JOIN batches b ON m.id = b.medicine_id
		WHERE b.expiry_date <= CURRENT_DATE + make_interval(days => $1)
			AND b.expiry_date > CURRENT_DATE`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var alerts []*StockAlert
	for rows.Next() {
		a := StockAlert{AlertType: AlertExpiringSoon}
		if err := rows.Scan(&a.Name, &a.Barcode, &a.Category, &a.TotalStock); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (r *batchRepoPG) ListExpiring(ctx context.Context, days int) ([]*ExpiringBatch, error) {
	rows, err := r.conn().Query(ctx, `
		SELECT b.id, b.medicine_id, b.batch_number, b.quantity, b.expiry_date,
			b.cost_price, b.selling_price, b.created_at, b.updated_at,
			m.name AS medicine_name, m.barcode
		FROM batches b
		JOIN medicines m ON b.medicine_id = m.id
		WHERE b.expiry_date <= CURRENT_DATE + make_interval(days => $1)
			AND b.expiry_date > CURRENT_DATE
			AND b.quantity > 0
		ORDER BY b.expiry_date ASC`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ExpiringBatch
	for rows.Next() {
		var eb ExpiringBatch
		if err := rows.Scan(&eb.ID, &eb.MedicineID, &eb.BatchNumber, &eb.Quantity, &eb.ExpiryDate,
			&eb.CostPrice, &eb.SellingPrice, &eb.CreatedAt, &eb.UpdatedAt,
			&eb.MedicineName, &eb.Barcode); err != nil {
			return nil, err
		}
		items = append(items, &eb)
	}
	return items, rows.Err()
}
