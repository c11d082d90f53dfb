package httpserver

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// ServiceTokenHeader carries the shared secret of the calling backend.
const ServiceTokenHeader = "X-Service-Token"

// Argon2Params defines parameters for Argon2id token hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params are used by `aictl token hash`.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashToken creates an Argon2id hash of the token
func HashToken(token string, params Argon2Params) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", domain.ErrInvalidArgument)
	}
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)

	// Format: argon2id$iterations$memory$parallelism$salt$hash (base64 encoded)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyToken checks a token against its Argon2id hash in constant time.
func VerifyToken(token, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}

	var par uint8
	if par64 > math.MaxUint8 {
		par = math.MaxUint8
	} else {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(token), salt, iters, mem, par, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// ServiceTokenGuard rejects requests whose X-Service-Token does not verify
// against encodedHash. An empty hash disables the guard.
func ServiceTokenGuard(encodedHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if encodedHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := r.Header.Get(ServiceTokenHeader)
			if tok == "" || !VerifyToken(tok, encodedHash) {
				LoggerFrom(r).Warn("service token rejected", "path", r.URL.Path, "present", tok != "")
				writeError(w, r, fmt.Errorf("%w: invalid or missing %s", domain.ErrUnauthorized, ServiceTokenHeader), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
