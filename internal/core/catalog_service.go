package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogService manages the master data the transaction services reference:
// products, staff, customers and suppliers. Product quantity is owned by the
// StockLedger; UpdateProduct deliberately cannot touch it.
type CatalogService interface {
	CreateProduct(ctx context.Context, name string, unitPrice decimal.Decimal, initialQty, reorderPoint int) (*Product, error)
	UpdateProduct(ctx context.Context, productID int, name *string, unitPrice *decimal.Decimal, reorderPoint *int, isActive *bool) (*Product, error)
	// DeleteProduct refuses while any order or import line references the
	// product; deactivate instead to retire it from new documents.
	DeleteProduct(ctx context.Context, productID int) error
	GetProduct(ctx context.Context, productID int) (*Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)

	CreateStaff(ctx context.Context, fullName, role, phone string) (*Staff, error)
	ListStaff(ctx context.Context) ([]Staff, error)

	CreateCustomer(ctx context.Context, name, phone, address string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	CreateSupplier(ctx context.Context, name, phone, address string) (*Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

// ── Products ─────────────────────────────────────────────────────────────────

func (s *catalogService) CreateProduct(ctx context.Context, name string, unitPrice decimal.Decimal, initialQty, reorderPoint int) (*Product, error) {
	if name == "" {
		return nil, errors.New("product name is required")
	}
	if unitPrice.IsNegative() {
		return nil, errors.New("unit price cannot be negative")
	}
	if initialQty < 0 || reorderPoint < 0 {
		return nil, errors.New("quantities cannot be negative")
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, unit_price, quantity, reorder_point)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, unitPrice, initialQty, reorderPoint).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID int, name *string, unitPrice *decimal.Decimal, reorderPoint *int, isActive *bool) (*Product, error) {
	cur, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		cur.Name = *name
	}
	if unitPrice != nil {
		if unitPrice.IsNegative() {
			return nil, errors.New("unit price cannot be negative")
		}
		cur.UnitPrice = *unitPrice
	}
	if reorderPoint != nil {
		cur.ReorderPoint = *reorderPoint
	}
	if isActive != nil {
		cur.IsActive = *isActive
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE products
		SET name = $1, unit_price = $2, reorder_point = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5
	`, cur.Name, cur.UnitPrice, cur.ReorderPoint, cur.IsActive, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID int) error {
	var refs int
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM order_lines WHERE product_id = $1)
		     + (SELECT COUNT(*) FROM import_lines WHERE product_id = $1)
	`, productID).Scan(&refs)
	if err != nil {
		return fmt.Errorf("failed to count product references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("product %d is referenced by %d document line(s); deactivate it instead", productID, refs)
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Kind: "product", ID: productID}
	}
	return nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, unit_price, quantity, reorder_point, is_active, created_at
		FROM products
		WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Quantity, &p.ReorderPoint, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Kind: "product", ID: productID}
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return &p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := `
		SELECT id, name, unit_price, quantity, reorder_point, is_active, created_at
		FROM products
	`
	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Quantity, &p.ReorderPoint, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ── Staff ────────────────────────────────────────────────────────────────────

func (s *catalogService) CreateStaff(ctx context.Context, fullName, role, phone string) (*Staff, error) {
	if fullName == "" {
		return nil, errors.New("staff name is required")
	}
	if role == "" {
		role = "staff"
	}
	var st Staff
	err := s.pool.QueryRow(ctx, `
		INSERT INTO staff (full_name, role, phone)
		VALUES ($1, $2, $3)
		RETURNING id, full_name, role, phone, is_active, created_at
	`, fullName, role, phone).Scan(&st.ID, &st.FullName, &st.Role, &st.Phone, &st.IsActive, &st.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert staff: %w", err)
	}
	return &st, nil
}

func (s *catalogService) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, role, phone, is_active, created_at
		FROM staff
		ORDER BY full_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		var st Staff
		if err := rows.Scan(&st.ID, &st.FullName, &st.Role, &st.Phone, &st.IsActive, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

// ── Customers ────────────────────────────────────────────────────────────────

func (s *catalogService) CreateCustomer(ctx context.Context, name, phone, address string) (*Customer, error) {
	if name == "" {
		return nil, errors.New("customer name is required")
	}
	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, address)
		VALUES ($1, $2, $3)
		RETURNING id, name, phone, address, created_at
	`, name, phone, address).Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return &c, nil
}

func (s *catalogService) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, phone, address, created_at
		FROM customers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ── Suppliers ────────────────────────────────────────────────────────────────

func (s *catalogService) CreateSupplier(ctx context.Context, name, phone, address string) (*Supplier, error) {
	if name == "" {
		return nil, errors.New("supplier name is required")
	}
	var sp Supplier
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, phone, address)
		VALUES ($1, $2, $3)
		RETURNING id, name, phone, address, created_at
	`, name, phone, address).Scan(&sp.ID, &sp.Name, &sp.Phone, &sp.Address, &sp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return &sp, nil
}

func (s *catalogService) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, phone, address, created_at
		FROM suppliers
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Phone, &sp.Address, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sp)
	}
	return suppliers, rows.Err()
}
