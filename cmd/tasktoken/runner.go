package main

import (
	"fmt"
	"io"

	"task-tracker/internal/config"
	"task-tracker/internal/services"

	"github.com/jessevdk/go-flags"
)

// Run mints a bearer token with the server's token settings. Only the
// signing secret can be overridden.
func Run(args []string, out io.Writer) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	secret := cfg.Auth.JWTSecret
	if options.Secret != "" {
		secret = options.Secret
	}
	token, err := services.NewJWTTokenService(secret, cfg.Auth.AccessTokenTTL).Issue(options.UserID)
	if err != nil {
		return err
	}

	if options.Header {
		_, err = fmt.Fprintf(out, "Authorization: Bearer %s\n", token)
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
