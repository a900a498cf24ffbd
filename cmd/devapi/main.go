// Command devapi serves the in-memory backend so the console can be run
// without the real service.
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/blood-bank-console/internal/devapi"
	"github.com/jrsteele09/blood-bank-console/users"
)

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	adminUser := flag.String("admin-user", "admin", "username of the seeded admin")
	adminPassword := flag.String("admin-password", "adminpassword", "password of the seeded admin")
	accessTTL := flag.Duration("access-ttl", 5*time.Minute, "access token lifetime")
	refreshTTL := flag.Duration("refresh-ttl", 24*time.Hour, "refresh token lifetime")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	opts := []devapi.Option{devapi.WithTokenExpiry(*accessTTL, *refreshTTL)}
	if secret := os.Getenv("DEVAPI_SECRET"); secret != "" {
		opts = append(opts, devapi.WithSecret(secret))
	}
	api := devapi.New(opts...)

	admin, err := api.SeedUser(users.User{Username: *adminUser, Role: users.RoleAdmin, IsActiveAccount: true}, *adminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed admin user")
	}
	log.Info().Str("username", admin.Username).Msg("Seeded admin user")

	mux := http.NewServeMux()
	mux.Handle(devapi.BasePath+"/", api)
	log.Info().Str("addr", *addr).Str("base", devapi.BasePath).Msg("devapi listening")
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatal().Err(err).Msg("http.ListenAndServe")
	}
}
