// Package validate holds the process-wide struct validator.
package validate

import (
	"reflect"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	onceValidate sync.Once
)

// Get returns the shared validator. decimal.Decimal fields validate as
// float64, so numeric tags like gt=0 apply to stakes and prices.
func Get() *validator.Validate {
	onceValidate.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	})
	return validate
}

func Struct(s interface{}) error { return Get().Struct(s) }

func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
