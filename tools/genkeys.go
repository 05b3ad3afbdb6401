// Command genkeys generates a fresh ed25519 key pair for journal
// signing and writes the hex-encoded files the runner expects.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"snapci/internal/journal"
)

func main() {
	dir := flag.String("dir", ".snapci/keys", "directory to write journal.pub and journal.key")
	flag.Parse()

	pub, priv, err := journal.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen error: %v\n", err)
		os.Exit(2)
	}
	if err := os.MkdirAll(*dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(2)
	}

	pubPath := filepath.Join(*dir, "journal.pub")
	privPath := filepath.Join(*dir, "journal.key")
	if err := journal.SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
		fmt.Fprintf(os.Stderr, "save keys: %v\n", err)
		os.Exit(2)
	}
	fmt.Printf("wrote %s and %s\n", pubPath, privPath)
}
