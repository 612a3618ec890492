// Package main generates a random API key suitable for the API_KEY
// environment variable.
package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
)

func main() {
	// Character set: uppercase letters, lowercase letters, and numbers
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const keyLength = 32

	// Calculate charset length and rejection sampling threshold
	charsetLen := len(charset)
	// Use rejection sampling to avoid modulo bias
	// Calculate the largest multiple of charsetLen that fits in a byte (0-255)
	// This ensures uniform distribution across all characters
	maxValidByte := byte((255 / charsetLen) * charsetLen)

	// Build the API key by selecting random characters from the charset
	apiKeyBytes := make([]byte, keyLength)
	randomByte := make([]byte, 1)
	for i := range apiKeyBytes {
		// Use rejection sampling: keep generating until we get a value < maxValidByte
		for {
			if _, err := rand.Read(randomByte); err != nil {
				slog.Error("Failed to generate random API key", "error", err)
				os.Exit(1)
			}
			if randomByte[0] < maxValidByte {
				apiKeyBytes[i] = charset[int(randomByte[0])%charsetLen]
				break
			}
		}
	}

	apiKey := string(apiKeyBytes)

	fmt.Println("✓ API key ready!")
	fmt.Println()
	fmt.Println("API Key (set this as API_KEY):", apiKey)
	fmt.Println()
	fmt.Println("Example curl commands:")
	fmt.Println()
	fmt.Printf("# Ask a question\n")
	fmt.Printf("curl -X POST -H \"Authorization: Bearer %s\" -H \"Content-Type: application/json\" \\\n", apiKey)
	fmt.Printf("  -d '{\"query\":\"How do I reset my password?\"}' \\\n")
	fmt.Printf("  http://localhost:8080/v1/answers\n")
	fmt.Println()
	fmt.Printf("# Rebuild the knowledge-base index\n")
	fmt.Printf("curl -X POST -H \"Authorization: Bearer %s\" http://localhost:8080/v1/index/rebuild\n", apiKey)
}
