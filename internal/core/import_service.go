package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ImportService manages supplier receipts. It mirrors OrderService with the
// stock arithmetic inverted: creating an import increments stock, and
// reversing one decrements it. Reversals clamp at zero because the received
// units may already have been sold.
type ImportService interface {
	Create(ctx context.Context, input ImportInput) (*Import, error)
	Update(ctx context.Context, importID int, upd ImportUpdate) (*Import, error)
	Delete(ctx context.Context, importID int) error
	Get(ctx context.Context, importID int) (*Import, error)
	List(ctx context.Context, filter ImportFilter) ([]Import, error)
}

// ImportFilter narrows List results. Nil fields match everything.
type ImportFilter struct {
	StaffID    *int
	SupplierID *int
	DateFrom   *string // YYYY-MM-DD inclusive
	DateTo     *string // YYYY-MM-DD inclusive
}

type importService struct {
	pool   *pgxpool.Pool
	ledger StockLedger
	log    *logrus.Logger
}

func NewImportService(pool *pgxpool.Pool, ledger StockLedger, log *logrus.Logger) ImportService {
	return &importService{pool: pool, ledger: ledger, log: log}
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (s *importService) Create(ctx context.Context, input ImportInput) (*Import, error) {
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}
	impDate, err := time.Parse("2006-01-02", input.ImpDate)
	if err != nil {
		return nil, fmt.Errorf("invalid import date %q: %w", input.ImpDate, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	supplierName, err := resolveSupplierName(ctx, tx, input.SupplierID)
	if err != nil {
		return nil, err
	}
	reference := input.Reference
	if reference == "" {
		reference = importReference(supplierName, impDate)
	}

	products, err := s.ledger.LockProducts(ctx, tx, lineProductIDs(input.Lines))
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, line := range input.Lines {
		if err := s.ledger.Increment(ctx, tx, line.ProductID, line.Qty); err != nil {
			return nil, err
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}

	importNumber, err := nextDocumentNumber(ctx, tx, numberKindImport, impDate.Year())
	if err != nil {
		return nil, err
	}

	var importID int
	err = tx.QueryRow(ctx, `
		INSERT INTO imports (import_number, imp_date, staff_id, supplier_id, reference, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, importNumber, input.ImpDate, input.StaffID, input.SupplierID, reference, total).Scan(&importID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert import: %w", err)
	}

	if err := insertImportLines(ctx, tx, importID, input.Lines, products); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit import create: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"import_id":     importID,
		"import_number": importNumber,
		"total":         total.StringFixed(2),
		"lines":         len(input.Lines),
	}).Info("import created")

	return s.Get(ctx, importID)
}

func (s *importService) Update(ctx context.Context, importID int, upd ImportUpdate) (*Import, error) {
	if upd.Lines != nil {
		if err := validateLines(upd.Lines); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	imp, err := lockImportRow(ctx, tx, importID)
	if err != nil {
		return nil, err
	}

	impDate := imp.ImpDate
	if upd.ImpDate != nil {
		if _, err := time.Parse("2006-01-02", *upd.ImpDate); err != nil {
			return nil, fmt.Errorf("invalid import date %q: %w", *upd.ImpDate, err)
		}
		impDate = *upd.ImpDate
	}
	staffID := imp.StaffID
	if upd.StaffID != nil {
		staffID = *upd.StaffID
	}
	supplierID := imp.SupplierID
	if upd.SupplierID != nil {
		supplierID = *upd.SupplierID
		if _, err := resolveSupplierName(ctx, tx, supplierID); err != nil {
			return nil, err
		}
	}

	total := imp.Total
	if upd.Lines != nil {
		oldLines, err := fetchImportLines(ctx, tx, importID)
		if err != nil {
			return nil, err
		}

		ids := lineProductIDs(upd.Lines)
		for _, ol := range oldLines {
			ids = append(ids, ol.ProductID)
		}
		products, err := s.ledger.LockProducts(ctx, tx, ids)
		if err != nil {
			return nil, err
		}
		for _, ol := range oldLines {
			if err := s.ledger.DecrementClamped(ctx, tx, products[ol.ProductID], ol.Qty); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(ctx, "DELETE FROM import_lines WHERE import_id = $1", importID); err != nil {
			return nil, fmt.Errorf("failed to clear import lines: %w", err)
		}

		total = decimal.Zero
		for _, line := range upd.Lines {
			if err := s.ledger.Increment(ctx, tx, line.ProductID, line.Qty); err != nil {
				return nil, err
			}
			total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
		}
		if err := insertImportLines(ctx, tx, importID, upd.Lines, products); err != nil {
			return nil, err
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE imports
		SET imp_date = $1, staff_id = $2, supplier_id = $3, total = $4, updated_at = NOW()
		WHERE id = $5
	`, impDate, staffID, supplierID, total, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to update import %d: %w", importID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit import update: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"import_id": importID,
		"total":     total.StringFixed(2),
	}).Info("import updated")

	return s.Get(ctx, importID)
}

func (s *importService) Delete(ctx context.Context, importID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockImportRow(ctx, tx, importID); err != nil {
		return err
	}

	lines, err := fetchImportLines(ctx, tx, importID)
	if err != nil {
		return err
	}
	if len(lines) > 0 {
		ids := make([]int, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.ProductID)
		}
		products, err := s.ledger.LockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.ledger.DecrementClamped(ctx, tx, products[line.ProductID], line.Qty); err != nil {
				return err
			}
		}
	}

	// Lines cascade.
	if _, err := tx.Exec(ctx, "DELETE FROM imports WHERE id = $1", importID); err != nil {
		return fmt.Errorf("failed to delete import %d: %w", importID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import delete: %w", err)
	}

	s.log.WithField("import_id", importID).Info("import deleted")
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *importService) Get(ctx context.Context, importID int) (*Import, error) {
	var imp Import
	err := s.pool.QueryRow(ctx, `
		SELECT i.id, i.import_number, i.imp_date::text, i.staff_id, st.full_name,
		       i.supplier_id, sp.name, i.reference, i.total, i.created_at
		FROM imports i
		JOIN staff st ON st.id = i.staff_id
		JOIN suppliers sp ON sp.id = i.supplier_id
		WHERE i.id = $1
	`, importID).Scan(
		&imp.ID, &imp.ImportNumber, &imp.ImpDate, &imp.StaffID, &imp.StaffName,
		&imp.SupplierID, &imp.SupplierName, &imp.Reference, &imp.Total, &imp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "import", ID: importID}
		}
		return nil, fmt.Errorf("failed to fetch import %d: %w", importID, err)
	}

	lines, err := fetchImportLines(ctx, s.pool, importID)
	if err != nil {
		return nil, err
	}
	imp.Lines = lines
	return &imp, nil
}

func (s *importService) List(ctx context.Context, filter ImportFilter) ([]Import, error) {
	query := `
		SELECT i.id, i.import_number, i.imp_date::text, i.staff_id, st.full_name,
		       i.supplier_id, sp.name, i.reference, i.total, i.created_at
		FROM imports i
		JOIN staff st ON st.id = i.staff_id
		JOIN suppliers sp ON sp.id = i.supplier_id
		WHERE 1=1
	`
	var args []any
	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		query += fmt.Sprintf(" AND i.staff_id = $%d", len(args))
	}
	if filter.SupplierID != nil {
		args = append(args, *filter.SupplierID)
		query += fmt.Sprintf(" AND i.supplier_id = $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += fmt.Sprintf(" AND i.imp_date >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += fmt.Sprintf(" AND i.imp_date <= $%d", len(args))
	}
	query += " ORDER BY i.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var imports []Import
	for rows.Next() {
		var imp Import
		if err := rows.Scan(
			&imp.ID, &imp.ImportNumber, &imp.ImpDate, &imp.StaffID, &imp.StaffName,
			&imp.SupplierID, &imp.SupplierName, &imp.Reference, &imp.Total, &imp.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func lockImportRow(ctx context.Context, tx pgx.Tx, importID int) (*Import, error) {
	var imp Import
	err := tx.QueryRow(ctx, `
		SELECT id, import_number, imp_date::text, staff_id, supplier_id, reference, total, created_at
		FROM imports
		WHERE id = $1
		FOR UPDATE
	`, importID).Scan(&imp.ID, &imp.ImportNumber, &imp.ImpDate, &imp.StaffID, &imp.SupplierID,
		&imp.Reference, &imp.Total, &imp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "import", ID: importID}
		}
		if lockContention(err) {
			return nil, &ConcurrentModificationError{Err: err}
		}
		return nil, fmt.Errorf("failed to lock import %d: %w", importID, err)
	}
	return &imp, nil
}

func resolveSupplierName(ctx context.Context, tx pgx.Tx, supplierID int) (string, error) {
	var name string
	err := tx.QueryRow(ctx, "SELECT name FROM suppliers WHERE id = $1", supplierID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &NotFoundError{Kind: "supplier", ID: supplierID}
		}
		return "", fmt.Errorf("failed to resolve supplier %d: %w", supplierID, err)
	}
	return name, nil
}

// importReference derives a default receipt label from the supplier name and
// the receipt month, e.g. "ACME SUPPLY/2026-08".
func importReference(supplierName string, impDate time.Time) string {
	return fmt.Sprintf("%s/%s", strings.ToUpper(supplierName), impDate.Format("2006-01"))
}

func insertImportLines(ctx context.Context, tx pgx.Tx, importID int, lines []LineInput, products map[int]Product) error {
	for i, line := range lines {
		amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty)))
		var batch *string
		if line.BatchNumber != "" {
			batch = &line.BatchNumber
		}
		var expiration *string
		if line.ExpirationDate != "" {
			if _, err := time.Parse("2006-01-02", line.ExpirationDate); err != nil {
				return fmt.Errorf("line %d: invalid expiration date %q: %w", i+1, line.ExpirationDate, err)
			}
			expiration = &line.ExpirationDate
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO import_lines (import_id, product_id, product_name, qty, unit_price, amount, batch_number, expiration_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, importID, line.ProductID, products[line.ProductID].Name, line.Qty, line.UnitPrice, amount, batch, expiration)
		if err != nil {
			return fmt.Errorf("failed to insert import line %d: %w", i+1, err)
		}
	}
	return nil
}

func fetchImportLines(ctx context.Context, q rowQuerier, importID int) ([]ImportLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, import_id, product_id, product_name, qty, unit_price, amount,
		       batch_number, expiration_date::text
		FROM import_lines
		WHERE import_id = $1
		ORDER BY id
	`, importID)
	if err != nil {
		return nil, fmt.Errorf("failed to query import lines: %w", err)
	}
	defer rows.Close()

	var lines []ImportLine
	for rows.Next() {
		var l ImportLine
		if err := rows.Scan(&l.ID, &l.ImportID, &l.ProductID, &l.ProductName, &l.Qty,
			&l.UnitPrice, &l.Amount, &l.BatchNumber, &l.ExpirationDate); err != nil {
			return nil, fmt.Errorf("failed to scan import line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
