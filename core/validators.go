package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	pkMobileTag   = "pkmobile"
	pkMobileText  = "enter a valid phone number (03XXXXXXXXX)"
	pkMobileRegex = regexp.MustCompile(`^03\d{9}$`)

	cnicTag   = "cnic"
	cnicText  = "enter a valid 13-digit CNIC (no dashes)"
	cnicRegex = regexp.MustCompile(`^\d{13}$`)

	instituteIDTag   = "instituteid"
	instituteIDText  = "enter a valid institutional ID (4-6 digits)"
	instituteIDRegex = regexp.MustCompile(`^\d{4,6}$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(pkMobileTag, pkMobileValidation)
	RegisterCustomTranslation(validate, translator, pkMobileTag, pkMobileText)

	_ = validate.RegisterValidation(cnicTag, cnicValidation)
	RegisterCustomTranslation(validate, translator, cnicTag, cnicText)

	_ = validate.RegisterValidation(instituteIDTag, instituteIDValidation)
	RegisterCustomTranslation(validate, translator, instituteIDTag, instituteIDText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// pkMobileValidation allows Pakistani mobile numbers; dashes and spaces are
// stripped before matching.
func pkMobileValidation(fl validator.FieldLevel) bool {
	return pkMobileRegex.MatchString(StripSeparators(fl.Field().String()))
}

// cnicValidation allows 13-digit national ID numbers without dashes.
func cnicValidation(fl validator.FieldLevel) bool {
	return cnicRegex.MatchString(StripSeparators(fl.Field().String()))
}

// instituteIDValidation allows 4 to 6 digit campus ERP IDs.
func instituteIDValidation(fl validator.FieldLevel) bool {
	return instituteIDRegex.MatchString(StripSeparators(fl.Field().String()))
}
