package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"civic-polls/config"
	"civic-polls/internal/services"
	"civic-polls/pkg/database"
)

const usage = `
Civic Polls - Database CLI Tool

Usage:
  migrate [flags] [command]

Commands:
  up           Create or update the schema
  status       Show database connection status and table counts
  grant-admin  Give the admin role to the profile with -phone (created if missing)
  seed-dev     Grant admin to -phone and add approved sample polls

Flags:
  -phone string  Phone number in international format, e.g. +15551234567
  -name string   Full name for a profile created by grant-admin (default "Administrator")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go -phone=+15551234567 grant-admin
  go run cmd/migrate/main.go -phone=+15551234567 seed-dev
`

func main() {
	phone := flag.String("phone", "", "Phone number of the admin")
	name := flag.String("name", "Administrator", "Full name for a new admin profile")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus(ctx)
	case "grant-admin":
		runGrantAdmin(ctx, *phone, *name)
	case "seed-dev":
		runSeedDevelopment(ctx, *phone)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("🚀 Running migrations UP...")

	if err := database.RunMigrations(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(ctx context.Context) {
	log.Println("🔍 Checking database status...")

	if err := database.Ping(); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	for _, table := range database.CoreTables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(table)
			log.Printf("✅ Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-20s does not exist", table)
		}
	}

	if err := database.HealthCheck(ctx); err != nil {
		log.Printf("⚠️  Health check warning: %v", err)
	} else {
		log.Println("✅ Health check: PASSED")
	}
}

func requirePhone(raw string) string {
	phone, err := services.NormalizePhone(raw)
	if err != nil {
		log.Fatalf("❌ -phone: %v", err)
	}
	return phone
}

func runGrantAdmin(ctx context.Context, rawPhone, name string) {
	phone := requirePhone(rawPhone)
	log.Printf("🔑 Granting admin to %s...", phone)

	p, err := database.GrantAdmin(ctx, phone, name)
	if err != nil {
		log.Fatalf("❌ Grant failed: %v", err)
	}

	log.Printf("✅ %s (ID: %s) is an admin", phone, p.ID)
}

func runSeedDevelopment(ctx context.Context, rawPhone string) {
	phone := requirePhone(rawPhone)
	log.Println("🌱 Seeding database (development mode)...")

	created, err := database.SeedDevelopment(ctx, phone)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	log.Printf("   - Admin: %s", phone)
	log.Printf("   - Approved polls: %d", created)
	log.Println("✅ Development seeding completed!")
}
