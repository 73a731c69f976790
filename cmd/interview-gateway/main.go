// Command interview-gateway serves live interview sessions and carries the
// operational subcommands that go with them.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultGatewayDeps()))
}
