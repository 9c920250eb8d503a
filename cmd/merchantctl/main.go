// merchantctl provisions merchant credentials for the guarantee service:
// operator logins for the dashboard and machine API keys for booking
// integrations.  It talks to the same database as the server and is meant
// to be run by platform staff, not exposed over HTTP.
//
//	merchantctl operator   -merchant 42 -login ops@example.com -password '...'
//	merchantctl apikey     -merchant 42 -label "booking widget"
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tablekeep/guarantee-service/internal/config"
	"github.com/tablekeep/guarantee-service/internal/database"
	"github.com/tablekeep/guarantee-service/internal/repository"
	"github.com/tablekeep/guarantee-service/internal/utils"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	merchants := repository.NewMerchantRepo(db)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "operator":
		fs := flag.NewFlagSet("operator", flag.ExitOnError)
		merchantID := fs.Uint64("merchant", 0, "merchant id")
		login := fs.String("login", "", "operator login")
		password := fs.String("password", "", "operator password")
		_ = fs.Parse(os.Args[2:])
		if *merchantID == 0 || *login == "" || *password == "" {
			fs.Usage()
			os.Exit(2)
		}
		hash, err := utils.HashPassword(*password, cfg.BcryptCost)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		if err := merchants.CreateOperator(ctx, *merchantID, *login, hash); err != nil {
			log.Fatalf("create operator: %v", err)
		}
		fmt.Printf("operator %s created for merchant %d\n", *login, *merchantID)

	case "apikey":
		fs := flag.NewFlagSet("apikey", flag.ExitOnError)
		merchantID := fs.Uint64("merchant", 0, "merchant id")
		label := fs.String("label", "", "key label shown in the dashboard")
		_ = fs.Parse(os.Args[2:])
		if *merchantID == 0 {
			fs.Usage()
			os.Exit(2)
		}
		raw, hash, err := utils.NewAPIKey()
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		if err := merchants.CreateAPIKey(ctx, *merchantID, hash, *label); err != nil {
			log.Fatalf("store key: %v", err)
		}
		// Printed once; only the hash is stored.
		fmt.Printf("api key for merchant %d: %s\n", *merchantID, raw)

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: merchantctl <operator|apikey> [flags]")
	os.Exit(2)
}
