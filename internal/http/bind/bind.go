package bind

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Setup configures gin's validator. It is idempotent and also runs lazily on
// first use; routers call it so the first request does not pay for it.
func Setup() { engine() }

// JSON decodes the request body into dst and validates it.
func JSON(c *gin.Context, dst any) error {
	engine()
	return classifyBody(c.ShouldBindWith(dst, binding.JSON))
}

// Form binds a url-encoded or multipart form into dst and validates it.
func Form(c *gin.Context, dst any) error {
	engine()
	return classifyBody(c.ShouldBind(dst))
}

func classifyBody(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Fields: toFieldErrors(verrs)}
	}
	if tooLarge := asTooLarge(err); tooLarge != nil {
		return tooLarge
	}
	return &UnreadableBodyError{Cause: err}
}

func asTooLarge(err error) *PayloadTooLargeError {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &PayloadTooLargeError{Limit: mbe.Limit}
	}
	return nil
}

// Query returns the required query parameter name.
func Query(c *gin.Context, name string) (string, error) {
	v, ok := c.GetQuery(name)
	if !ok {
		return "", &MissingParamError{Name: name}
	}
	return v, nil
}

// QueryInt returns the required query parameter name as an int.
func QueryInt(c *gin.Context, name string) (int, error) {
	raw, err := Query(c, name)
	if err != nil {
		return 0, err
	}
	return toInt(name, raw)
}

// QueryIntDefault returns the optional query parameter name as an int, or def
// when it is absent or empty. A present but malformed value is an error.
func QueryIntDefault(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	return toInt(name, raw)
}

// Param returns the path parameter name; an empty value counts as missing.
func Param(c *gin.Context, name string) (string, error) {
	v := c.Param(name)
	if v == "" {
		return "", &MissingParamError{Name: name}
	}
	return v, nil
}

func toInt(name, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &TypeMismatchError{Name: name, Value: raw, Type: "int", Cause: err}
	}
	return n, nil
}

// File returns the uploaded multipart file under field.
func File(c *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	switch {
	case err == nil:
		return fh, nil
	case errors.Is(err, http.ErrMissingFile):
		return nil, &MissingParamError{Name: field}
	}
	if tooLarge := asTooLarge(err); tooLarge != nil {
		return nil, tooLarge
	}
	return nil, &UnreadableBodyError{Cause: err}
}

// Checker accumulates parameter constraint checks for one operation and
// reports them together.
//
//	chk := bind.Check("listDocuments")
//	chk.Var("page", page, "min=1")
//	chk.Var("page_size", size, "min=1,max=100")
//	if err := chk.Err(); err != nil { ... }
type Checker struct {
	op         string
	violations []Violation
}

// Check starts a Checker for the named operation.
func Check(op string) *Checker { return &Checker{op: op} }

// Var validates value against validator tags (e.g. "min=1").
func (k *Checker) Var(name string, value any, tags string) *Checker {
	v, _ := engine()
	err := v.Var(value, tags)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return k
	}
	for _, fe := range verrs {
		// Var has no field name, so the translated text starts with the rule.
		msg := name + " " + strings.TrimSpace(reason(fe))
		k.violations = append(k.violations, Violation{Path: k.op + "." + name, Message: msg})
	}
	return k
}

// Err returns a *ConstraintViolationError when any check failed.
func (k *Checker) Err() error {
	if len(k.violations) == 0 {
		return nil
	}
	out := make([]Violation, len(k.violations))
	copy(out, k.violations)
	return &ConstraintViolationError{Violations: out}
}
