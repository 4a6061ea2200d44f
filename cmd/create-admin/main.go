// Command-line tool that generates an admin account with random credentials.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"AOTF-backend/internal/config"
	"AOTF-backend/internal/database"
	"AOTF-backend/internal/model"
	"AOTF-backend/internal/utilities"
)

// generateRandomString creates a random hex string of 2n characters
func generateRandomString(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal(err)
	}
	return hex.EncodeToString(bytes)
}

// generateUniqueUsername tries until a unique username is found
func generateUniqueUsername(db *gorm.DB) (string, error) {
	for {
		username := "admin_" + generateRandomString(4)
		var count int64
		if err := db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return username, nil
		}
	}
}

func main() {
	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("Invalid database config: %v", err)
	}

	db, err := database.NewDBInstance(dbCfg, zap.NewNop())
	if err != nil {
		log.Fatalf("Database failed to initialize: %v", err)
	}
	defer func() { _ = db.Close() }()

	username, err := generateUniqueUsername(db.DB)
	if err != nil {
		log.Fatalf("Failed to pick a username: %v", err)
	}
	password := generateRandomString(8)

	admin, err := utilities.CreateAdmin(password, username, db.DB)
	if err != nil {
		log.Fatal(err)
	}

	// Print credentials (only show plain password here!)
	fmt.Println("Admin credentials generated successfully!")
	fmt.Println("======================================")
	fmt.Printf("Username: %s\n", admin.Username)
	fmt.Printf("Password: %s\n", password)
	fmt.Println("======================================")
}
