// Generates a random hex secret for the SECRET_KEY setting. The same
// key signs access tokens and derives card number tokens, so losing it
// invalidates every stored card lookup: generate once, keep it safe.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

const minKeyBytesLen = 32

func main() {
	length := pflag.IntP("bytes", "n", minKeyBytesLen, "Secret key length in bytes")
	pflag.Parse()

	if *length < minKeyBytesLen {
		fmt.Printf("secret key must be at least %d bytes long, got %d\n", minKeyBytesLen, *length)
		os.Exit(1)
	}

	b := make([]byte, *length)
	if _, err := rand.Read(b); err != nil {
		fmt.Printf("error while generating secret key: %v", err)
		os.Exit(1)
	}

	fmt.Println(hex.EncodeToString(b))
}
