package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/use-agent/fetchgate/models"
)

var registerOnce sync.Once

// MustRegisterValidators installs the custom validation rules on gin's
// validator and reports fields by their JSON names. Safe to call repeatedly.
func MustRegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			panic("handler: gin validator is not go-playground/validator")
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("selector_state", func(fl validator.FieldLevel) bool {
			return slices.Contains(models.SelectorStates, fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("handler: register selector_state: %v", err))
		}
	})
}

// bindJSON decodes and validates the request body into obj. On failure it
// writes a 422 response listing every offending field and returns false.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, models.ErrorResponse{
		Detail: fieldErrors(err),
	})
	return false
}

// fieldErrors converts binding failures into the client-facing error list.
func fieldErrors(err error) []models.FieldError {
	var (
		verrs     validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		out := make([]models.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg, typ := describe(fe)
			out = append(out, models.FieldError{
				Loc:  []string{"body", fe.Field()},
				Msg:  msg,
				Type: typ,
			})
		}
		return out
	case errors.As(err, &typeErr):
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return []models.FieldError{{
			Loc:  loc,
			Msg:  fmt.Sprintf("Input should be a valid %s", typeErr.Type.Kind()),
			Type: typeErr.Type.Kind().String() + "_type",
		}}
	case errors.As(err, &syntaxErr):
		return []models.FieldError{{
			Loc:  []string{"body", fmt.Sprint(syntaxErr.Offset)},
			Msg:  "JSON decode error",
			Type: "json_invalid",
		}}
	case errors.Is(err, io.EOF):
		return []models.FieldError{{
			Loc:  []string{"body"},
			Msg:  "Field required",
			Type: "missing",
		}}
	default:
		return []models.FieldError{{
			Loc:  []string{"body"},
			Msg:  err.Error(),
			Type: "value_error",
		}}
	}
}

func describe(fe validator.FieldError) (msg, typ string) {
	switch fe.Tag() {
	case "required":
		return "Field required", "missing"
	case "gte":
		return "Input should be greater than or equal to " + fe.Param(), "greater_than_equal"
	case "selector_state":
		return "Input should be 'attached', 'detached', 'visible' or 'hidden'", "literal_error"
	default:
		return fe.Error(), fe.Tag()
	}
}
