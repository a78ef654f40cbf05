package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type parameterDefinition struct {
	Name     string    `validate:"required"`
	Role     Role      `validate:"oneof=goal independent"`
	Type     ParamType `validate:"oneof=boolean class numeric"`
	ClassMin *int      `validate:"required_if=Type class"`
	ClassMax *int      `validate:"required_if=Type class"`
}

var fieldNames = map[string]string{
	"Name":     "name",
	"Role":     "role",
	"Type":     "type",
	"ClassMin": "class_min",
	"ClassMax": "class_max",
}

// ValidateParameterDefinition checks a parameter definition and returns the
// normalized Parameter. Bounds are dropped for non-class types.
func ValidateParameterDefinition(name string, role Role, typ ParamType, classMin, classMax *int) (Parameter, error) {
	def := parameterDefinition{
		Name:     strings.TrimSpace(name),
		Role:     role,
		Type:     typ,
		ClassMin: classMin,
		ClassMax: classMax,
	}
	if err := validate.Struct(def); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return Parameter{}, &ValidationError{Field: fieldNames[fe.StructField()], Reason: describeTag(fe)}
		}
		return Parameter{}, err
	}

	p := Parameter{Name: def.Name, Role: def.Role, Type: def.Type}
	if def.Type == TypeClass {
		if *def.ClassMax < *def.ClassMin {
			return Parameter{}, &ValidationError{
				Field:  "class_max",
				Reason: fmt.Sprintf("must be at least the minimum %d", *def.ClassMin),
			}
		}
		lo, hi := *def.ClassMin, *def.ClassMax
		p.ClassMin, p.ClassMax = &lo, &hi
	}
	return p, nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

// ParseRole maps user input to a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleGoal, RoleIndependent:
		return r, nil
	}
	return "", &ValidationError{Field: "role", Reason: "must be one of: goal, independent"}
}

// ParseType maps user input to a ParamType.
func ParseType(s string) (ParamType, error) {
	switch t := ParamType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeBoolean, TypeClass, TypeNumeric:
		return t, nil
	}
	return "", &ValidationError{Field: "type", Reason: "must be one of: boolean, class, numeric"}
}

// ParseClassBound parses an integer class bound typed by the user.
func ParseClassBound(field, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ValidationError{Field: field, Reason: "send an integer"}
	}
	return n, nil
}

// ValidateValue parses raw against the parameter's type.
func ValidateValue(p Parameter, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch p.Type {
	case TypeBoolean:
		switch raw {
		case "+":
			return BoolValue(true), nil
		case "-":
			return BoolValue(false), nil
		}
		return Value{}, &ValidationError{Field: p.Name, Reason: "send + or -"}

	case TypeClass:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, &ValidationError{Field: p.Name, Reason: "send an integer"}
		}
		if p.ClassMin != nil && n < *p.ClassMin {
			return Value{}, &ValidationError{Field: p.Name, Reason: fmt.Sprintf("value must be at least %d", *p.ClassMin)}
		}
		if p.ClassMax != nil && n > *p.ClassMax {
			return Value{}, &ValidationError{Field: p.Name, Reason: fmt.Sprintf("value must be at most %d", *p.ClassMax)}
		}
		return ClassValue(n), nil

	case TypeNumeric:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &ValidationError{Field: p.Name, Reason: "send a number"}
		}
		return NumericValue(f), nil
	}
	return Value{}, fmt.Errorf("parameter %q has unknown type %q", p.Name, p.Type)
}
