package authentication

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidations adds the `refreshtoken` tag to gin's validator so a
// structurally invalid token fails request binding.
func registerValidations() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		err = v.RegisterValidation("refreshtoken", func(fl validator.FieldLevel) bool {
			return checkRefreshSecret(fl.Field().String()) == nil
		})
	})
	return err
}
