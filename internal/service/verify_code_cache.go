package service

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/craftauth/yggdrasil/internal/cache"
	"github.com/craftauth/yggdrasil/internal/security"
)

// VerifyCodeCache holds outstanding registration codes keyed by email.
// Entries expire after the configured timeout; the embedded sweeper only
// runs while the cache is under sustained load.
type VerifyCodeCache struct {
	codes   *cache.CleanerCache[string, string]
	timeout time.Duration
	length  int
}

func NewVerifyCodeCache(timeout time.Duration, length int, logger *slog.Logger) *VerifyCodeCache {
	if length < security.HexLength {
		length = security.HexLength
	}
	return &VerifyCodeCache{
		codes:   cache.NewCleanerCache[string, string]("verify_codes", timeout, logger),
		timeout: timeout,
		length:  length,
	}
}

// Issue returns the outstanding code for the address, minting and
// storing a fresh one only when none is live. The fresh flag tells the
// caller whether a new code was created, so repeat requests inside the
// expiry window keep the code already delivered.
func (c *VerifyCodeCache) Issue(email string) (code string, fresh bool) {
	if stored, expired, ok := c.codes.Peek(email); ok && !expired {
		return stored, false
	}
	code = security.RandomHex(c.length)
	c.codes.Put(email, code, c.timeout)
	return code, true
}

// Check consumes the code for the address. A stale entry found on the way
// is evicted even when the sweeper has not run yet.
func (c *VerifyCodeCache) Check(email, code string) bool {
	stored, expired, ok := c.codes.Peek(email)
	if !ok {
		return false
	}
	if expired {
		c.codes.Remove(email)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false
	}
	c.codes.Remove(email)
	return true
}

// Drop discards the outstanding code for the address, if any.
func (c *VerifyCodeCache) Drop(email string) {
	c.codes.Remove(email)
}

func (c *VerifyCodeCache) Close() error { return c.codes.Close() }
