// Command demosite serves a small bookshop site with known accessibility
// defects, for trying out a11yscan.
// Usage: go run ./cmd/demosite [port]
// Default port: 9999
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/raysh454/a11yscan/internal/demosite"
)

func main() {
	cfg := demosite.DefaultConfig()

	// Optional: custom port from command line
	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port < 1 || port > 65535 {
			log.Fatalf("Invalid port: %s", os.Args[1])
		}
		cfg.Port = port
	}

	fmt.Println("===========================================")
	fmt.Println("   a11yscan Demo Site")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Version 1 of every page carries known defects:")
	fmt.Println("  - Images without alt text")
	fmt.Println("  - Low contrast text")
	fmt.Println("  - Unlabelled form fields")
	fmt.Println("  - Skipped heading levels and a missing skip link")
	fmt.Println("  - Buttons with the focus outline removed")
	fmt.Println()
	fmt.Printf("Scan it:        a11yscan scan http://localhost:%d/\n", cfg.Port)
	fmt.Printf("Serve fixed v2: curl -X POST 'http://localhost:%d/demo/set-version?v=2'\n", cfg.Port)
	fmt.Println()

	site := demosite.New(cfg)
	if err := site.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
