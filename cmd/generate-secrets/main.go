package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gatepass/checkout-backend/internal/services"
	"github.com/gatepass/checkout-backend/internal/utils"
)

func main() {
	password := flag.String("password", "", "HR account password to hash (optional)")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("Secret Generator for the checkout backend")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)

	if *password != "" {
		hash, err := services.HashPassword(*password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		fmt.Println()
		fmt.Println("Store this in auth_users.password_hash:")
		fmt.Println()
		fmt.Println(hash)
	}

	fmt.Println()
	fmt.Println("⚠️  IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
