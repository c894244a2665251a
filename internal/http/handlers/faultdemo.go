// Fault demonstration endpoints.
//
// Each endpoint fails in one specific way so that every row of the failure
// table can be exercised by hand or by tests. The API twin lives under
// {apiBase}/test/exception and answers with JSON envelopes; the view twin
// lives under /test/exception and answers with pages or redirects.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-documind-backend/internal/http/bind"
	"github.com/tbourn/go-documind-backend/internal/http/faults"
	"github.com/tbourn/go-documind-backend/internal/http/response"
	"github.com/tbourn/go-documind-backend/internal/http/views"
)

// DemoForm is the payload validated by the method-argument-not-valid
// endpoints.
type DemoForm struct {
	Name string `json:"name" form:"name" binding:"notblank" example:"Ada"`
	Age  int    `json:"age" form:"age" binding:"min=1" example:"36"`
}

// demoPayload has the same shape as DemoForm but no rules; only decoding
// can fail.
type demoPayload struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// RegisterFaultDemoAPI mounts the JSON demo endpoints on g.
func (h *Handlers) RegisterFaultDemoAPI(g *gin.RouterGroup) {
	g.POST("/method-argument-not-valid", h.demoInvalidBody)
	g.GET("/constraint-violation", demoConstraint(demoOK))
	g.POST("/http-message-not-readable", h.demoUnreadable)
	g.GET("/missing-param", demoMissingParam(demoOK))
	g.GET("/type-mismatch", demoTypeMismatch(demoOK))
	for path, err := range demoBusiness() {
		g.GET(path, raise(err))
	}
}

// RegisterFaultDemoView mounts the demo page and its view endpoints on g.
func (h *Handlers) RegisterFaultDemoView(g *gin.RouterGroup) {
	g.GET("", h.demoPage)
	v := g.Group("/view")
	v.POST("/method-argument-not-valid", h.demoInvalidForm)
	v.GET("/constraint-violation", demoConstraint(h.demoPage))
	v.GET("/missing-param", demoMissingParam(h.demoPage))
	v.GET("/type-mismatch", demoTypeMismatch(h.demoPage))
	for path, err := range demoBusiness() {
		v.GET(path, raise(err))
	}
}

func demoBusiness() map[string]error {
	return map[string]error{
		"/bad-request":    errDemoBadRequest,
		"/unauthorized":   errDemoUnauthorized,
		"/forbidden":      errDemoForbidden,
		"/not-found":      errDemoNotFound,
		"/conflict":       errDemoConflict,
		"/internal-error": errDemoInternal,
	}
}

func raise(err error) gin.HandlerFunc {
	return func(c *gin.Context) { fail(c, err) }
}

// demoInvalidBody godoc
// @ID          demoInvalidBody
// @Summary     Fail body validation
// @Tags        Fault demo
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.DemoForm  true  "name must not be blank, age must be >= 1"
// @Success     200  {object}  response.Envelope[response.Empty]
// @Failure     400  {object}  response.Envelope[response.Empty]
// @Router      /test/exception/method-argument-not-valid [post]
func (h *Handlers) demoInvalidBody(c *gin.Context) {
	var form DemoForm
	if err := bind.JSON(c, &form); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, response.OKEmpty())
}

func (h *Handlers) demoUnreadable(c *gin.Context) {
	var p demoPayload
	if err := bind.JSON(c, &p); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, response.OKEmpty())
}

// The parameter demos are shared by both trees; done answers a successful
// call in the style of the tree.

func demoConstraint(done gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := bind.QueryInt(c, "value")
		if err != nil {
			fail(c, err)
			return
		}
		if err := bind.Check("constraintViolation").Var("value", value, "min=1").Err(); err != nil {
			fail(c, err)
			return
		}
		done(c)
	}
}

func demoMissingParam(done gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := bind.Query(c, "requiredParam"); err != nil {
			fail(c, err)
			return
		}
		done(c)
	}
}

func demoTypeMismatch(done gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := bind.QueryInt(c, "number"); err != nil {
			fail(c, err)
			return
		}
		done(c)
	}
}

func (h *Handlers) demoInvalidForm(c *gin.Context) {
	var form DemoForm
	if err := bind.Form(c, &form); err != nil {
		fail(c, err)
		return
	}
	h.demoPage(c)
}

func (h *Handlers) demoPage(c *gin.Context) {
	c.HTML(http.StatusOK, views.FaultDemo, gin.H{
		faults.FlashErrorMessage: views.PopFlash(c, faults.FlashErrorMessage),
	})
}

func demoOK(c *gin.Context) { ok(c, http.StatusOK, response.OKEmpty()) }
