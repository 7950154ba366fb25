package main

// Options has no lifetime flag: every minted token uses ACCESS_TOKEN_TTL,
// the same fixed policy the server applies.
type Options struct {
	UserID string `short:"u" long:"user" description:"identity to embed in the token" required:"true"`
	Secret string `short:"s" long:"secret" description:"HS256 signing secret (defaults to JWT_SECRET)"`
	Header bool   `long:"header" description:"print a ready-to-use Authorization header"`
}
