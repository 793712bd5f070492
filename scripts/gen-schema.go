//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/pellucid-labs/craftpilot/pkg/catalog"
)

func main() {
	data, err := catalog.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/catalog-v1.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/catalog-v1.json")
}
