package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/tipjar/internal/types"
	"github.com/shopspring/decimal"
)

var (
	validate       = validator.New(validator.WithRequiredStructEnabled())
	usernameRegexp = regexp.MustCompile(`^[a-z0-9_]+$`)
)

func init() {
	// handle: lowercase letters, digits and underscore only
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegexp.MatchString(fl.Field().String())
	})
}

// messages maps "Field.tag" to the user-facing text for that failure. Unlisted
// combinations fall back to a generic per-tag message.
var messages = map[string]string{
	"Username.required":        "Please choose a username",
	"Username.min":             "Username must be at least 3 characters",
	"Username.max":             "Username must be at most 30 characters",
	"Username.username":        "Username may only contain lowercase letters, numbers and underscores",
	"Email.required":           "Please enter an email address",
	"Email.email":              "Please enter a valid email address",
	"Name.max":                 "Name must be at most 100 characters",
	"Subject.required":         "Please enter a subject",
	"Subject.max":              "Subject must be at most 200 characters",
	"Content.required":         "Please enter a message",
	"Content.max":              "Message must be at most 2000 characters",
	"Title.required":           "Please enter a title",
	"Title.max":                "Title must be at most 100 characters",
	"Bio.max":                  "Bio must be at most 500 characters",
	"Website.url":              "Please enter a valid website URL",
	"Website.max":              "Website must be at most 200 characters",
	"Location.max":             "Location must be at most 100 characters",
	"Currency.oneof":           "Unsupported currency",
	"SupporterName.max":        "Supporter name must be at most 100 characters",
	"SupporterMessage.max":     "Supporter message must be at most 500 characters",
	"Description.max":          "Description must be at most 500 characters",
	"PaymentProvider.required": "Please select a payment method",
	"PaymentProvider.oneof":    "Unsupported payment method",
}

// Struct validates v and returns a field-tied CustomError for the first
// failing rule, or nil when v passes.
func Struct(v interface{}) *types.CustomError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &types.CustomError{
			Code:    fiber.StatusBadRequest,
			Message: err.Error(),
			Type:    "validation",
		}
	}

	fe := verrs[0]
	msg, ok := messages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = fmt.Sprintf("Invalid value for %s", strings.ToLower(fe.Field()))
	}

	return &types.CustomError{
		Code:    fiber.StatusBadRequest,
		Message: msg,
		Type:    "validation",
		Field:   lowerFirst(fe.Field()),
	}
}

// Amount bounds shared by donation creation and goal targets.
var (
	minAmount = decimal.NewFromInt(1)
	maxAmount = decimal.NewFromInt(1000000)
)

// Amount validates a monetary amount against the platform bounds [1, 1000000].
func Amount(amount decimal.Decimal, field string) *types.CustomError {
	if amount.LessThan(minAmount) {
		return &types.CustomError{
			Code:    fiber.StatusBadRequest,
			Message: "Amount must be at least 1",
			Type:    "validation",
			Field:   field,
		}
	}
	if amount.GreaterThan(maxAmount) {
		return &types.CustomError{
			Code:    fiber.StatusBadRequest,
			Message: "Amount must be at most 1,000,000",
			Type:    "validation",
			Field:   field,
		}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
