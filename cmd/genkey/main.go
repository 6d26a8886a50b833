// Package main is a development utility for generating an API key with its
// bcrypt hash pre-computed. It prints the raw key and a ready-to-run SQL
// INSERT so developers can seed a usable key in a local database without
// running the full server flow. Do not use generated keys in production — the
// server issues webhook keys itself and admin keys should be created through
// controlled tooling.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/alertdesk/alertdesk/internal/auth"
)

func main() {
	tenant := flag.String("tenant", "dev", "tenant id the key belongs to")
	role := flag.String("role", "admin", "key role: admin, webhook, or reader")
	reference := flag.String("reference", "dev-key", "stable reference id, unique per tenant")
	prefix := flag.String("prefix", "adk_", "key prefix, must match auth.api_keys.prefix")
	flag.Parse()

	keyID := uuid.NewString()
	rawKey, hash, err := auth.GenerateAPIKey(*prefix, keyID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("API Key Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nFull Key: %s\n", rawKey)
	fmt.Printf("\nKey ID:   %s\n", keyID)
	fmt.Println("\n==========================================================")
	fmt.Println("SQL Insert:")
	fmt.Println("==========================================================")
	fmt.Printf(`
INSERT INTO api_keys (id, tenant_id, reference_id, key_hash, role, created_by)
VALUES ('%s', '%s', '%s', '%s', '%s', 'genkey');
`, keyID, *tenant, *reference, hash, *role)
}
