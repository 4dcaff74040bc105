// Command admintoken mints a bearer token for the admin API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/example/multiplayer-trader/internal/auth"
	"github.com/example/multiplayer-trader/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	subject := flag.String("sub", "operator", "Token subject")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	conf, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	token, err := auth.NewAdminConfig(conf.AdminJWTSecret).NewToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
