// Command-line tool to clean the database by dropping all tables in the public schema.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"AOTF-backend/internal/config"
	"AOTF-backend/internal/database"
)

func main() {
	fmt.Println("WARNING: This command will DROP ALL TABLES in the 'public' schema of your database.")
	fmt.Println("Postings, applications, archive entries and notifications are lost for good.")
	fmt.Print("Do you want to continue? (yes/no): ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if strings.TrimSpace(strings.ToLower(input)) != "yes" {
		fmt.Println("Operation cancelled.")
		return
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("Invalid database config: %v", err)
	}
	db, err := database.NewDBInstance(dbCfg, zap.NewNop())
	if err != nil {
		log.Fatalf("Database failed to initialize: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.DropAllTables(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("All tables dropped successfully.")
}
