// AngelaMos | 2026
// validation.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const maxJSONBody = 1 << 20

// NewValidator reports field errors under their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty request body: %w", ErrInvalidInput)
		}
		return fmt.Errorf("decode body: %w", ErrInvalidInput)
	}
	return nil
}

// DecodeAndValidate writes the 400 response itself and reports whether the
// handler may continue.
func DecodeAndValidate(
	w http.ResponseWriter,
	r *http.Request,
	v *validator.Validate,
	dst any,
) bool {
	if err := DecodeJSON(r, dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}

	if err := v.Struct(dst); err != nil {
		ValidationFailed(w, FromValidator(err))
		return false
	}

	return true
}

func QueryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return n
}

// QueryBool returns nil when the parameter is absent or unparseable.
func QueryBool(r *http.Request, key string) *bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}

	b, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}

	return &b
}

func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
