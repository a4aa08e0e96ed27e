package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"conference/internal/livestream"
	"conference/internal/outcome"
)

const (
	genderTag   = "gender"
	genderText  = "{0} must be one of male, female or others"
	youtubeTag  = "youtube"
	youtubeText = "{0} must be a YouTube link"
	notBlankTag = "notblank"
	notBlankTxt = "{0} cannot be blank"
)

var (
	translator ut.Translator
	setupOnce  sync.Once
)

// setupValidator registers translations and custom rules on gin's validator engine.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_en := en.New()
		uni := ut.New(_en, _en)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation(genderTag, func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "male", "female", "others":
				return true
			}
			return false
		})
		_ = v.RegisterValidation(youtubeTag, func(fl validator.FieldLevel) bool {
			return livestream.ValidURL(fl.Field().String())
		})
		_ = v.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		registerTranslation(v, genderTag, genderText)
		registerTranslation(v, youtubeTag, youtubeText)
		registerTranslation(v, notBlankTag, notBlankTxt)
	})
}

// validateVar checks a single value against tag with gin's validator engine.
func validateVar(value any, tag string) error {
	setupValidator()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.Var(value, tag)
}

func registerTranslation(v *validator.Validate, tag, text string) {
	_ = v.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

type fieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// bindError answers 400 for a failed ShouldBind call.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			msg := fe.Error()
			if translator != nil {
				msg = fe.Translate(translator)
			}
			fields = append(fields, fieldError{Field: fe.Field(), Error: msg})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// internalError logs err and answers 500 without details.
func (a *api) internalError(c *gin.Context, err error) {
	a.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	errorJSON(c, http.StatusInternalServerError, "internal server error")
}

// outcomeStatus maps a service outcome to the HTTP status it is reported with.
// AlreadyRecorded is informational and answered with 200.
func outcomeStatus(o outcome.Outcome) int {
	switch o {
	case outcome.Ok, outcome.AlreadyRecorded:
		return http.StatusOK
	case outcome.NotFound:
		return http.StatusNotFound
	case outcome.InvalidInput:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
