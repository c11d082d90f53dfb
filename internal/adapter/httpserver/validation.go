package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() {
		vld = validator.New(validator.WithRequiredStructEnabled())
		// report json names instead of Go field names
		vld.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return vld
}

// decodeJSON reads a size-capped JSON body into dst and validates it.
// The returned details map is non-nil for field-level validation failures.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) (map[string]string, error) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "application/json") {
		return nil, fmt.Errorf("%w: content-type must be application/json", domain.ErrInvalidArgument)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return map[string]string{"max_bytes": fmt.Sprint(maxBodyBytes)}, fmt.Errorf("%w: request body too large", domain.ErrInvalidArgument)
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument)
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				verrs[fieldPath(fe)] = fe.Tag()
			}
		}
		return verrs, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument)
	}
	return nil, nil
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// requireText rejects fields whose content sniffs as something other than text.
func requireText(fields map[string]string) (map[string]string, error) {
	bad := map[string]string{}
	for name, v := range fields {
		if v == "" {
			continue
		}
		mt := mimetype.Detect([]byte(v))
		if !isTextual(mt) {
			bad[name] = mt.String()
		}
	}
	if len(bad) > 0 {
		return bad, fmt.Errorf("%w: binary content in text field", domain.ErrInvalidArgument)
	}
	return nil, nil
}

func isTextual(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
