package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Document numbers are gapless per kind and year: ORD-2026-00001,
// IMP-2026-00001. The counter row is upserted and bumped in one statement so
// concurrent creators serialize on the row lock and never skip a value.
// Numbers are drawn inside the caller's transaction; a rollback returns the
// value to the sequence.

const (
	numberKindOrder  = "ORD"
	numberKindImport = "IMP"
)

func nextDocumentNumber(ctx context.Context, tx pgx.Tx, kind string, year int) (string, error) {
	var n int
	err := tx.QueryRow(ctx, `
		INSERT INTO number_sequences (kind, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (kind, year)
		DO UPDATE SET last_number = number_sequences.last_number + 1
		RETURNING last_number
	`, kind, year).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to draw %s number for %d: %w", kind, year, err)
	}
	return fmt.Sprintf("%s-%d-%05d", kind, year, n), nil
}
