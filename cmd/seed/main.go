// seed is a one-shot tool to load demo master data into an empty database.
// Each table is seeded only when it has no rows, so re-running is safe.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"

	"stockdesk/internal/config"
	"stockdesk/internal/db"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Seeding staff...")
	_, err = tx.Exec(ctx, `
		INSERT INTO staff (full_name, role, phone)
		SELECT v.full_name, v.role, v.phone
		FROM (VALUES
		    ('Dana Reyes',  'manager', '555-0101'),
		    ('Kim Soto',    'clerk',   '555-0102'),
		    ('Lee Navarro', 'clerk',   '555-0103')
		) AS v(full_name, role, phone)
		WHERE NOT EXISTS (SELECT 1 FROM staff);
	`)
	if err != nil {
		log.Fatalf("Failed to seed staff: %v", err)
	}

	log.Println("Seeding customers...")
	_, err = tx.Exec(ctx, `
		INSERT INTO customers (name, phone, address)
		SELECT v.name, v.phone, v.address
		FROM (VALUES
		    ('Acme Corp',    '555-0201', '12 Market St'),
		    ('Beta Goods',   '555-0202', '48 Harbor Rd'),
		    ('Cedar Retail', '555-0203', '7 Elm Ave')
		) AS v(name, phone, address)
		WHERE NOT EXISTS (SELECT 1 FROM customers);
	`)
	if err != nil {
		log.Fatalf("Failed to seed customers: %v", err)
	}

	log.Println("Seeding suppliers...")
	_, err = tx.Exec(ctx, `
		INSERT INTO suppliers (name, phone, address)
		SELECT v.name, v.phone, v.address
		FROM (VALUES
		    ('Acme Supply',    '555-0301', '90 Depot Way'),
		    ('Northern Goods', '555-0302', '15 Mill Ln')
		) AS v(name, phone, address)
		WHERE NOT EXISTS (SELECT 1 FROM suppliers);
	`)
	if err != nil {
		log.Fatalf("Failed to seed suppliers: %v", err)
	}

	log.Println("Seeding products...")
	_, err = tx.Exec(ctx, `
		INSERT INTO products (name, unit_price, quantity, reorder_point)
		SELECT v.name, v.unit_price, v.quantity, v.reorder_point
		FROM (VALUES
		    ('Widget A',        10.00, 100, 10),
		    ('Widget B',        25.00,  50,  5),
		    ('Widget C',         4.00,  30,  5),
		    ('Premium Bracket', 18.50,  40,  8),
		    ('Filter Element',   7.25,  60, 12)
		) AS v(name, unit_price, quantity, reorder_point)
		WHERE NOT EXISTS (SELECT 1 FROM products);
	`)
	if err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seed complete.")
}
