package core

import "strings"

// Codes that collide with non-redirect routes. Fixed at startup; checked
// case-insensitively for custom aliases and generated codes alike.
var reservedCodes = map[string]struct{}{
	"api":         {},
	"metrics":     {},
	"healthz":     {},
	"readyz":      {},
	"error":       {},
	"favicon":     {},
	"favicon.ico": {},
}

// IsReserved reports whether code may not be used as a short code.
func IsReserved(code string) bool {
	_, ok := reservedCodes[strings.ToLower(code)]
	return ok
}
