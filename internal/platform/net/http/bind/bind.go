// Package bind decodes and validates inbound JSON request bodies
package bind

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	perr "alertrecon/internal/platform/errors"
)

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

func initValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	trans, _ = uni.GetTranslator("en")
	_ = entrans.RegisterDefaultTranslations(validate, trans)
}

// Validator returns the process-wide validator instance
func Validator() *validator.Validate {
	once.Do(initValidator)
	return validate
}

// Struct validates v against its `validate` tags
func Struct(v any) error {
	once.Do(initValidator)
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return perr.WithField(perr.Validationf("%s", fe.Translate(trans)), fe.Field())
		}
		return perr.Validationf("%s", err.Error())
	}
	return nil
}

// ParseJSON decodes the request body into dst and validates it
func ParseJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return perr.JSONErrf("missing request body")
	}
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "invalid JSON body")
	}
	return Struct(dst)
}
