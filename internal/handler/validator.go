package handler

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tickerPattern accepts exchange symbols as providers expect them:
// US-style letters with optional class/exchange suffixes (BRK.B, 0700.HK)
// and six-digit A-share codes (600519, 000858.SZ).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}(\.[A-Z]{1,4})?$`)

// RegisterValidators installs the custom binding validators. Called once
// at startup before any routes are registered.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
			return tickerPattern.MatchString(fl.Field().String())
		})
	}
}
