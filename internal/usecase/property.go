package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/arklim/identity-adapter/internal/core/domain"
)

// SetProperty applies value to entity through the descriptor registered under propType.
// An unknown type is a programming error and is reported as domain.ErrUnknownProperty.
func SetProperty[E any](ctx context.Context, list domain.PropertyList[E], entity *E, propType, value string) (domain.Result, error) {
	prop, ok := list.Find(propType)
	if !ok || prop.Set == nil {
		return domain.Result{}, fmt.Errorf("%w: %s", domain.ErrUnknownProperty, propType)
	}
	return prop.Set(ctx, entity, value)
}

// GetProperty reads prop from entity. The descriptor must belong to list.
func GetProperty[E any](ctx context.Context, list domain.PropertyList[E], entity *E, prop domain.PropertyMetadata[E]) (string, error) {
	registered, ok := list.Find(prop.Type)
	if !ok || registered.Get == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownProperty, prop.Type)
	}
	return registered.Get(ctx, entity)
}

// propertyValues reads every descriptor of list into wire values.
func propertyValues[E any](ctx context.Context, list domain.PropertyList[E], entity *E) ([]domain.PropertyValue, error) {
	values := make([]domain.PropertyValue, 0, len(list))
	for _, prop := range list {
		value, err := GetProperty(ctx, list, entity, prop)
		if err != nil {
			return nil, fmt.Errorf("read property %s: %w", prop.Type, err)
		}
		values = append(values, domain.PropertyValue{Type: prop.Type, Value: value})
	}
	return values, nil
}

// PropertyValidator checks submitted values against a descriptor's data type before
// they reach a setter.
type PropertyValidator struct {
	validate *validator.Validate
}

// NewPropertyValidator constructs a PropertyValidator.
func NewPropertyValidator() *PropertyValidator {
	return &PropertyValidator{validate: validator.New()}
}

var dataTypeRules = map[domain.PropertyDataType]struct {
	tag     string
	message string
}{
	domain.PropertyDataTypeEmail:   {tag: "email", message: "%s must be a valid email address."},
	domain.PropertyDataTypeURL:     {tag: "url", message: "%s must be a valid URL."},
	domain.PropertyDataTypeBoolean: {tag: "boolean", message: "%s must be true or false."},
	domain.PropertyDataTypeNumber:  {tag: "numeric", message: "%s must be a number."},
}

// Check validates value for a descriptor with the given display name and data type.
// Blank values are only rejected when required is set.
func (v *PropertyValidator) Check(name string, dataType domain.PropertyDataType, required bool, value string) domain.Result {
	if name == "" {
		name = "Value"
	}
	if strings.TrimSpace(value) == "" {
		if required {
			return domain.Failure(name + " is required.")
		}
		return domain.Success()
	}

	rule, ok := dataTypeRules[dataType]
	if !ok {
		return domain.Success()
	}
	if err := v.validate.Var(value, rule.tag); err != nil {
		return domain.Failure(fmt.Sprintf(rule.message, name))
	}
	return domain.Success()
}

func checkDescriptor[E any](v *PropertyValidator, list domain.PropertyList[E], propType, value string) domain.Result {
	prop, ok := list.Find(propType)
	if !ok || v == nil {
		return domain.Success()
	}
	return v.Check(prop.Name, prop.DataType, prop.Required, value)
}
