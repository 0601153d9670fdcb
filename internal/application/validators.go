package application

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
)

var engineName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// RegisterTournamentValidators adds the custom struct tags used by
// TournamentConfig to v.
func RegisterTournamentValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("engine", validateEngine); err != nil {
		return fmt.Errorf("failed to register engine validator: %w", err)
	}
	if err := v.RegisterValidation("severity", validateSeverity); err != nil {
		return fmt.Errorf("failed to register severity validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(fl.Field().String()+" end", "%d.%d.%d %s", &major, &minor, &patch, &rest)
	return n == 4 && rest == "end" && major >= 0 && minor >= 0 && patch >= 0
}

// validateEngine checks the engine name format. Whether the engine is
// actually served is checked against the engine table during semantic
// validation.
func validateEngine(fl validator.FieldLevel) bool {
	return engineName.MatchString(fl.Field().String())
}

func validateSeverity(fl validator.FieldLevel) bool {
	return slices.Contains(Severities, Severity(fl.Field().String()))
}
