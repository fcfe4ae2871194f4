package configmanager

import (
	"fmt"
	"reflect"

	mapstructure "github.com/go-viper/mapstructure/v2"
)

// valueSetter is implemented by enum types that satisfy pflag.Value.
type valueSetter interface {
	Set(value string) error
}

// enumDecodeHook decodes strings into types whose pointer has a Set method,
// so enum values are checked and normalized the same way as flags.
func enumDecodeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}

		raw, ok := data.(string)
		if !ok || raw == "" {
			return data, nil
		}

		target := reflect.New(to)

		setter, ok := target.Interface().(valueSetter)
		if !ok {
			return data, nil
		}

		err := setter.Set(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", to.Name(), err)
		}

		return target.Elem().Interface(), nil
	}
}
