package bind

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-documind-backend/internal/http/response"
)

var (
	setupOnce sync.Once
	validate  *validator.Validate
	trans     ut.Translator
)

// engine returns gin's validator, configured once with English messages,
// JSON/form tag names as field names and the notblank rule.
func engine() (*validator.Validate, ut.Translator) {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			v = validator.New()
			v.SetTagName("binding")
		}

		v.RegisterTagNameFunc(fieldName)

		if err := v.RegisterValidation("notblank", notBlank); err != nil {
			log.Warn().Err(err).Msg("notblank rule not registered")
		}

		english := en.New()
		t, _ := ut.New(english, english).GetTranslator("en")
		if err := entrans.RegisterDefaultTranslations(v, t); err != nil {
			log.Warn().Err(err).Msg("validator translations not registered")
		}
		registerMessage(v, t, "notblank", "{0} is required")
		registerMessage(v, t, "required", "{0} is required")

		validate, trans = v, t
	})
	return validate, trans
}

// fieldName prefers the json tag, then the form tag, then the Go name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() == reflect.String {
		return strings.TrimSpace(f.String()) != ""
	}
	return !f.IsZero()
}

func registerMessage(v *validator.Validate, t ut.Translator, tag, text string) {
	err := v.RegisterTranslation(tag, t,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		})
	if err != nil {
		log.Warn().Err(err).Str("tag", tag).Msg("translation not registered")
	}
}

// reason renders one validator failure as a human message.
func reason(fe validator.FieldError) string {
	_, t := engine()
	return fe.Translate(t)
}

// toFieldErrors converts validator output to response field errors, in the
// order the validator collected them.
func toFieldErrors(errs validator.ValidationErrors) []response.FieldError {
	out := make([]response.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, response.FieldError{Field: fe.Field(), Reason: reason(fe)})
	}
	return out
}
