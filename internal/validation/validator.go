package validation

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

// Messages maps a field path to the message shown for it. A "field:tag" key
// overrides the plain "field" key for one failing rule. "{param}" in a
// message is replaced by the rule's parameter.
type Messages map[string]string

const msgFallback = "Please check this field"

func (m Messages) lookup(field, tag, param string) string {
	msg, ok := m[field+":"+tag]
	if !ok {
		msg, ok = m[field]
	}
	if !ok {
		msg = msgFallback
	}
	return strings.ReplaceAll(msg, "{param}", param)
}

type nowKey struct{}

// WithNow carries the clock used by the date-sensitive rules.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, now)
}

func nowFrom(ctx context.Context) time.Time {
	if now, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return now
	}
	return time.Now()
}

var (
	validate = newValidator()

	usiPattern       = regexp.MustCompile(`^[2-9A-HJ-NP-Z]{10}$`)
	australianStates = map[string]struct{}{
		"ACT": {}, "NSW": {}, "NT": {}, "QLD": {}, "SA": {}, "TAS": {}, "VIC": {}, "WA": {},
	}
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}))
	must(v.RegisterValidation("usi", func(fl validator.FieldLevel) bool {
		return usiPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	}))
	must(v.RegisterValidation("austate", func(fl validator.FieldLevel) bool {
		_, ok := australianStates[strings.ToUpper(strings.TrimSpace(fl.Field().String()))]
		return ok
	}))
	must(v.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
		digits, ok := CardDigits(fl.Field().String())
		return ok && len(digits) >= 13 && len(digits) <= 19 && Luhn(digits)
	}))
	must(v.RegisterValidation("mmyy", func(fl validator.FieldLevel) bool {
		_, _, err := ParseExpiry(fl.Field().String())
		return err == nil
	}))
	must(v.RegisterValidationCtx("notexpired", func(ctx context.Context, fl validator.FieldLevel) bool {
		month, year, err := ParseExpiry(fl.Field().String())
		return err == nil && !Expired(month, year, nowFrom(ctx))
	}))
	must(v.RegisterValidationCtx("minage", func(ctx context.Context, fl validator.FieldLevel) bool {
		dob, err := time.Parse(dateLayout, strings.TrimSpace(fl.Field().String()))
		if err != nil {
			return false
		}
		years, err := strconv.Atoi(fl.Param())
		return err == nil && ageOn(dob, nowFrom(ctx)) >= years
	}))
	must(v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(dateLayout, strings.TrimSpace(fl.Field().String()))
		return err == nil
	}))

	v.RegisterStructValidation(cardLevel, Card{})
	registerFormLevel(v)
	return v
}

// cardLevel checks the CVV length against the detected network.
func cardLevel(sl validator.StructLevel) {
	card := sl.Current().Interface().(Card)
	want := 3
	if digits, ok := CardDigits(card.Number); ok && Luhn(digits) {
		want = CVVLength(digits)
	}
	cvv := strings.TrimSpace(card.CVV)
	if !allDigits(cvv) || len(cvv) != want {
		sl.ReportError(card.CVV, "cvv", "CVV", "cvvlen", strconv.Itoa(want))
	}
}

// Struct runs the tagged rules on v and records a field error per failure,
// worded by msgs. Field paths drop the top-level type name.
func (c *Collector) Struct(ctx context.Context, v any, msgs Messages) {
	c.record(validate.StructCtx(ctx, v), "", msgs)
}

// Var runs tag against a single value reported under field.
func (c *Collector) Var(ctx context.Context, field string, value any, tag string, msgs Messages) {
	c.record(validate.VarCtx(ctx, value, tag), field, msgs)
}

func (c *Collector) record(err error, field string, msgs Messages) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.merr = multierror.Append(c.merr, err)
		return
	}
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fieldPath(fe.Namespace())
		}
		c.Add(name, msgs.lookup(name, fe.Tag(), fe.Param()))
	}
}

func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
