package idempotency

import (
	"net/http"
	"strings"
)

const Header = "Idempotency-Key"

// MaxKeyLen bounds what we will store in the request ledger.
const MaxKeyLen = 128

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

func Valid(key string) bool {
	return key != "" && len(key) <= MaxKeyLen
}
