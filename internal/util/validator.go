package util

import (
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 为 gin 的 binding 引擎注册排期字段校验
//   - isodate: 2006-01-02
//   - hhmm:    15:04
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("isodate", layoutValidator(DateFormat)); err != nil {
		return err
	}
	return v.RegisterValidation("hhmm", layoutValidator("15:04"))
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := time.Parse(layout, s)
		return err == nil
	}
}
