package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"strategy-core/pkg/crypto"
)

// seal_secret prints the sealed form of a credential for .env or
// settings files.
//
// Usage:
//
//	go run ./scripts/seal_secret -genkey        # print a new MASTER_ENCRYPTION_KEY
//	echo -n "$SECRET" | go run ./scripts/seal_secret
//
// The sealed value is opened at startup with MASTER_ENCRYPTION_KEY.
func main() {
	if len(os.Args) > 1 && os.Args[1] == "-genkey" {
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("generate key error: %v", err)
		}
		fmt.Println(key)
		return
	}

	sealer, err := crypto.SealerFromEnv()
	if err != nil {
		log.Fatalf("master key error: %v (run with -genkey first)", err)
	}

	in := bufio.NewScanner(os.Stdin)
	if !in.Scan() {
		log.Fatalf("expected the plaintext on stdin")
	}
	plaintext := strings.TrimSpace(in.Text())
	if plaintext == "" {
		log.Fatalf("empty plaintext")
	}

	sealed, err := sealer.Seal(plaintext)
	if err != nil {
		log.Fatalf("seal error: %v", err)
	}
	fmt.Println(sealed)
}
