package validation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"llnd-portal/internal/domain"
)

const dateLayout = "2006-01-02"

var formMessages = Messages{
	"personal.givenNames":          "Please enter your given names",
	"personal.surname":             "Please enter your surname",
	"personal.dateOfBirth":         "Please enter your date of birth",
	"personal.dateOfBirth:minage":  "You must be at least {param} years old to enrol",
	"personal.email":               MsgEmailInvalid,
	"personal.mobile":              "Please enter your mobile number",
	"address.street":               "Please enter your street address",
	"address.suburb":               "Please enter your suburb",
	"address.state":                "Please choose your state or territory",
	"address.postcode":             "Postcode must be 4 digits",
	"emergency.name":               "Please enter an emergency contact name",
	"emergency.relationship":       "Please enter the relationship to your emergency contact",
	"emergency.phone":              "Please enter an emergency contact phone number",
	"education.highestSchoolLevel": "Please choose your highest completed school level",
	"education.yearCompleted":      "Please enter the year you completed school",
	"employment.status":            "Please choose your employment status",
	"diversity.countryOfBirth":     "Please enter your country of birth",
	"diversity.languageAtHome":     "Please enter the main language spoken at home",
	"diversity.englishProficiency": "Please rate how well you speak English",
	"diversity.indigenousStatus":   "Please answer the Indigenous status question",
	"disability.types":             "Please select at least one disability type",
	"usi":                          "Please enter a valid 10-character USI",
	"consent.privacyNotice":        "You must accept the privacy notice",
	"consent.studentHandbook":      "You must confirm you have read the student handbook",
	"consent.signature":            "Please sign the declaration",
	"consent.signedOn":             "Please enter the date of signing",
}

// registerFormLevel adds the cross-field rules of the enrollment form.
func registerFormLevel(v *validator.Validate) {
	v.RegisterStructValidationCtx(func(ctx context.Context, sl validator.StructLevel) {
		ed := sl.Current().Interface().(domain.EducationHistory)
		if ed.StillAtSchool {
			return
		}
		if !pastYear(ed.YearCompleted, nowFrom(ctx)) {
			sl.ReportError(ed.YearCompleted, "yearCompleted", "YearCompleted", "pastyear", "")
		}
	}, domain.EducationHistory{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(domain.LanguageDiversity)
		lang := strings.TrimSpace(d.LanguageAtHome)
		if lang != "" && !strings.EqualFold(lang, "english") && strings.TrimSpace(d.EnglishProficiency) == "" {
			sl.ReportError(d.EnglishProficiency, "englishProficiency", "EnglishProficiency", "required_unless", "english")
		}
	}, domain.LanguageDiversity{})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(domain.DisabilityDetails)
		if d.HasDisability && len(d.Types) == 0 {
			sl.ReportError(d.Types, "types", "Types", "required_if", "hasDisability")
		}
	}, domain.DisabilityDetails{})
}

// EnrollmentForm validates every section of the form and reports all failures at once.
func EnrollmentForm(f domain.EnrollmentForm, now time.Time) error {
	var c Collector
	c.Struct(WithNow(context.Background(), now), f, formMessages)
	return c.Err()
}

func pastYear(s string, now time.Time) bool {
	year, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && year >= 1900 && year <= now.Year()
}

func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
