// cmd/pinboard/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/pinboard/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", bootstrap.Hooks.Name, err)
		os.Exit(1)
	}
}
