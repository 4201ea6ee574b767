package notification

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/vintalabs/notification-store/internal/model"
)

// RegisterValidations installs the notificationtype binding rule on gin's
// validator engine so malformed channel values are rejected at bind time.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	return v.RegisterValidation("notificationtype", func(fl validator.FieldLevel) bool {
		return model.KnownNotificationType(model.NotificationType(fl.Field().String()))
	})
}
