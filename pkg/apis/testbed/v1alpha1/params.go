package v1alpha1

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
	"github.com/jinzhu/copier"
)

// Strings deep-copies the params and weakly decodes every value to a
// string. Nested maps and lists are rejected with ErrInvalidAppParams.
func (p AppParams) Strings() (map[string]string, error) {
	flat := map[string]string{}

	if len(p) == 0 {
		return flat, nil
	}

	copied := map[string]any{}

	err := copier.CopyWithOption(&copied, map[string]any(p), copier.Option{DeepCopy: true})
	if err != nil {
		return nil, fmt.Errorf("%w: copy: %w", ErrInvalidAppParams, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       boolToString,
		Result:           &flat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAppParams, err)
	}

	err = decoder.Decode(copied)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAppParams, err)
	}

	return flat, nil
}

// boolToString keeps booleans readable; weak decoding alone renders them as 1 and 0.
func boolToString(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.Bool && to.Kind() == reflect.String {
		value, _ := data.(bool)

		return strconv.FormatBool(value), nil
	}

	return data, nil
}
