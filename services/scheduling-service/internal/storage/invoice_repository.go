package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/libs/db"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type InvoiceRepository struct {
	pool *db.Pool
}

func NewInvoiceRepository(pool *db.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// Create writes the invoice and its item snapshot inside the caller's
// transaction. Names and unit prices are frozen at this point; later
// catalog edits never touch an existing invoice.
func (r *InvoiceRepository) Create(ctx context.Context, tx pgx.Tx, inv *model.Invoice) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO invoices (id, company_id, client_id, booking_id, amount, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, inv.CompanyID, inv.ClientID, inv.BookingID, inv.Amount.String(), inv.PaymentMethod)
	if err != nil {
		return "", err
	}
	for pos, item := range inv.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, kind, name, parent_service_name, unit_price, item_count, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.NewString(), id, item.Kind, item.Name, item.ParentServiceName, item.UnitPrice.String(), item.Count, pos); err != nil {
			return "", err
		}
	}
	return id, nil
}

func (r *InvoiceRepository) Get(ctx context.Context, companyID, invoiceID string) (model.Invoice, error) {
	var inv model.Invoice
	var amountText string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, company_id::text, client_id::text, booking_id::text, amount::text, payment_method, created_at
		FROM invoices
		WHERE company_id = $1 AND id = $2
	`, companyID, invoiceID).Scan(&inv.ID, &inv.CompanyID, &inv.ClientID, &inv.BookingID, &amountText, &inv.PaymentMethod, &inv.CreatedAt)
	if err != nil {
		return model.Invoice{}, err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return model.Invoice{}, err
	}
	inv.Amount = amount

	items, err := r.items(ctx, inv.ID)
	if err != nil {
		return model.Invoice{}, err
	}
	inv.Items = items
	return inv, nil
}

func (r *InvoiceRepository) items(ctx context.Context, invoiceID string) ([]model.InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, invoice_id::text, kind, name, COALESCE(parent_service_name, ''),
			unit_price::text, item_count, position
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position ASC
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.InvoiceItem
	for rows.Next() {
		var item model.InvoiceItem
		var priceText string
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Kind, &item.Name, &item.ParentServiceName,
			&priceText, &item.Count, &item.Position); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(priceText)
		if err != nil {
			return nil, err
		}
		item.UnitPrice = price
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *InvoiceRepository) ListByCompany(ctx context.Context, companyID string, from, to time.Time, limit int) ([]model.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, company_id::text, client_id::text, booking_id::text, amount::text, payment_method, created_at
		FROM invoices
		WHERE company_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, companyID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var amountText string
		if err := rows.Scan(&inv.ID, &inv.CompanyID, &inv.ClientID, &inv.BookingID, &amountText, &inv.PaymentMethod, &inv.CreatedAt); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, err
		}
		inv.Amount = amount
		out = append(out, inv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
