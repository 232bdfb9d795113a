package main

import (
	"context"

	"github.com/shipquote/backend/cmd/quotectl/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
