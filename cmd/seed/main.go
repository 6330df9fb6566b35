package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/hubdesk-platform/api/internal/auth"
	"github.com/hubdesk-platform/api/internal/importer"
)

// Seeds the catalog a fresh coworking tenant starts with: the standard
// plans and a demo customer. Also prints a generated API token when
// API_TOKEN is unset so local setups have something to put in .env.
func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("begin tx: %v", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	// Ids come from the importer's label normalization so a spreadsheet
	// carrying these plans upserts onto the curated rows instead of
	// creating zero-price duplicates beside them.
	plans := []struct {
		label string
		price decimal.Decimal
	}{
		{"Sala Privativa", decimal.NewFromInt(1890)},
		{"Estação Flex", decimal.NewFromInt(590)},
		{"Estação Fixa", decimal.NewFromInt(790)},
		{"Endereço Fiscal", decimal.NewFromInt(149)},
	}
	for _, plan := range plans {
		id := importer.ServiceID(plan.label)
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, label, category, price, updated_at)
			VALUES ($1, $2, 'plan', $3, $4)
			ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, price = EXCLUDED.price, updated_at = EXCLUDED.updated_at
		`, id, plan.label, plan.price, now); err != nil {
			log.Fatalf("upsert service %s: %v", id, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO customers (id, name, doc_number, email, updated_at)
		VALUES ('cust_00000000000191', 'Demo Coworking Ltda', '00.000.000/0001-91', 'demo@hubdesk.local', $1)
		ON CONFLICT (id) DO NOTHING
	`, now); err != nil {
		log.Fatalf("insert demo customer: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("commit: %v", err)
	}

	if os.Getenv("API_TOKEN") == "" {
		token, err := auth.GenerateToken()
		if err != nil {
			log.Fatalf("generate token: %v", err)
		}
		fmt.Printf("API_TOKEN=%s\n", token)
	}
	fmt.Println("seed complete")
}
