package middleware

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/argon2"
)

// encodeArgon2id собирает хеш в том же формате, что scripts/generate_hash.go.
func encodeArgon2id(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		memory      uint32 = 65536
		iterations  uint32 = 3
		parallelism uint8  = 2
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func TestAdminAuth(t *testing.T) {
	encoded := encodeArgon2id("s3cret")
	handler := AdminAuth(encoded)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("верный пароль пропускается", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
		req.Header.Set("X-Admin-Password", "s3cret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("неверный пароль отклоняется", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
		req.Header.Set("X-Admin-Password", "wrong")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("пустой заголовок отклоняется", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/statistics", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestVerifyArgon2idMalformed(t *testing.T) {
	assert.False(t, verifyArgon2id("s3cret", "не хеш вовсе"))
	assert.False(t, verifyArgon2id("s3cret", "$argon2i$v=19$m=65536,t=3,p=2$abc$def"))
	assert.False(t, verifyArgon2id("s3cret", "$argon2id$v=19$m=65536,t=3,p=2$@@@$def"))
}
