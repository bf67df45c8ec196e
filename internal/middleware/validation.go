package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/care-portal/internal/model"
)

var registerOnce sync.Once

// RegisterValidators installs the enum tags used in request bindings on gin's
// validator and reports fields by their JSON names.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		for tag, fn := range map[string]validator.Func{
			"appointment_type":   enumValidator(func(s string) error { _, err := model.ParseAppointmentType(s); return err }),
			"appointment_status": enumValidator(func(s string) error { _, err := model.ParseAppointmentStatus(s); return err }),
			"doctor_status":      enumValidator(func(s string) error { _, err := model.ParseDoctorStatus(s); return err }),
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
}

func enumValidator(parse func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return parse(fl.Field().String()) == nil
	}
}
