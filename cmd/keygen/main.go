// Command keygen generates an RSA key pair for a browser extension and
// optionally registers the public half in the gateway's extension
// registry. The private key is written to stdout exactly once; the
// gateway never sees it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/store/drivers/sqlite"
	"github.com/uitrace/gateway/pkg/idx"
	"github.com/uitrace/gateway/pkg/keypair"
)

func main() {
	_ = godotenv.Load()

	var (
		extensionID = flag.String("extension-id", "", "extension identifier to register (skip registration if empty)")
		label       = flag.String("label", "", "human-readable label for the registry entry")
		dbFile      = flag.String("db", envOrDefault("GATEWAY_DATABASE_FILE", "gateway.db"), "path to the gateway registry database")
	)
	flag.Parse()

	kp, err := keypair.Generate()
	if err != nil {
		log.Fatalf("generate key pair: %v", err)
	}

	if *extensionID != "" {
		if err := register(*dbFile, *extensionID, *label, kp.PublicKey); err != nil {
			log.Fatalf("register extension: %v", err)
		}
		fmt.Fprintf(os.Stderr, "registered extension %q in %s\n", *extensionID, *dbFile)
	}

	fmt.Println("Public key:")
	fmt.Println(string(kp.PublicKey))
	fmt.Println("Private key (store this in the extension, it is not kept anywhere):")
	fmt.Println(string(kp.PrivateKey))
}

func register(dbFile, extensionID, label string, publicKey []byte) error {
	st, err := sqlite.NewStore(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", dbFile))
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ApplyMigrations(); err != nil {
		return err
	}

	return st.Extensions().Create(context.Background(), domain.Extension{
		ID:          idx.New().String(),
		ExtensionID: extensionID,
		PublicKey:   publicKey,
		Label:       label,
		CreatedAt:   time.Now().UTC(),
	})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
