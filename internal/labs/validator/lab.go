package validator

import (
	"errors"

	"labbook/pkg/logger"
	"labbook/pkg/model"
	"labbook/pkg/timeslot"
	"labbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type LabValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLabValidator(log *logger.Logger) *LabValidator {
	v := validation.New(log)

	log.Info("Lab validator initialized successfully")

	return &LabValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks a complete lab, as created or after an update was merged.
func (v *LabValidator) Validate(lab *model.Lab) error {
	var errs validation.ValidationErrors
	if err := validation.Struct(v.validate, lab); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}

	if len(errs) == 0 {
		errs = append(errs, v.validateBusinessRules(lab)...)
	}

	if len(errs) > 0 {
		v.logger.Debug("Lab validation failed", "code", lab.Code, "errors", errs.Error())
		return errs
	}
	return nil
}

// ValidateUpdate checks only the fields present in the patch.
func (v *LabValidator) ValidateUpdate(update *model.LabUpdate) error {
	if err := validation.Struct(v.validate, update); err != nil {
		return err
	}
	return nil
}

// ValidateEquipment checks a single equipment entry.
func (v *LabValidator) ValidateEquipment(item *model.Equipment) error {
	return validation.Struct(v.validate, item)
}

// ValidateEquipmentUpdate checks the fields present in an equipment patch.
func (v *LabValidator) ValidateEquipmentUpdate(update *model.EquipmentUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *LabValidator) validateBusinessRules(lab *model.Lab) validation.ValidationErrors {
	var errs validation.ValidationErrors

	if _, err := timeslot.ParseRange(lab.OperatingHours.Open, lab.OperatingHours.Close); err != nil {
		errs = append(errs, validation.ValidationError{
			Field:   "operating_hours",
			Message: "Opening time must be before closing time",
		})
	}

	names := make(map[string]struct{}, len(lab.Equipment))
	for _, e := range lab.Equipment {
		if _, dup := names[e.Name]; dup {
			errs = append(errs, validation.ValidationError{
				Field:   "equipment",
				Message: "Equipment names must be unique: " + e.Name,
			})
			break
		}
		names[e.Name] = struct{}{}
	}

	return errs
}
