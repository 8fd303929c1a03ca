package errors

import (
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is a database or infrastructure error translated for clients.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

type constraintRule struct {
	needles []string
	info    ErrorInfo
}

// duplicate-key rules, matched against postgres and sqlite messages
var duplicateRules = []constraintRule{
	{[]string{"users.email", "idx_users_email"}, ErrorInfo{http.StatusConflict, AuthEmailAlreadyExists, "Email is already registered"}},
	{[]string{"categories.slug", "idx_categories_slug"}, ErrorInfo{http.StatusConflict, CategorySlugConflict, "A category with this slug already exists"}},
	{[]string{"idx_cart_user_product"}, ErrorInfo{http.StatusConflict, ResourceConflict, "Cart line already exists"}},
}

// ParseError translates err into a client-safe code and message. what names
// the entity being handled ("product", "order", ...) and picks the wording.
func ParseError(err error, what string) ErrorInfo {
	if err == nil {
		return ErrorInfo{http.StatusInternalServerError, InternalServerError, "Something went wrong"}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint"):
		for _, rule := range duplicateRules {
			if containsAny(msg, rule.needles) {
				return rule.info
			}
		}
		return ErrorInfo{http.StatusConflict, ResourceAlreadyExists, "This " + entity(what) + " already exists"}

	case strings.Contains(msg, "foreign key constraint"):
		if strings.Contains(msg, "still referenced") {
			return ErrorInfo{http.StatusConflict, ResourceConflict, "This " + entity(what) + " is still in use and cannot be deleted"}
		}
		return ErrorInfo{http.StatusNotFound, ResourceNotFound, "A referenced record does not exist"}

	case strings.Contains(msg, "not-null constraint"), strings.Contains(msg, "not null constraint"):
		return ErrorInfo{http.StatusBadRequest, ValidationRequired, "A required field is missing"}

	case strings.Contains(msg, "check constraint"):
		return ErrorInfo{http.StatusBadRequest, ValidationInvalidRange, "A value is out of range"}

	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "timeout"):
		return ErrorInfo{http.StatusServiceUnavailable, InternalExternalAPI, "A backing service is unavailable. Please try again later"}
	}

	return ErrorInfo{http.StatusInternalServerError, InternalServerError, "Something went wrong. Please try again later"}
}

func notFound(what string) ErrorInfo {
	code := ResourceNotFound
	switch strings.ToLower(what) {
	case "product":
		code = ProductNotFound
	case "category":
		code = CategoryNotFound
	case "order":
		code = OrderNotFound
	case "cart item":
		code = CartItemNotFound
	}
	return ErrorInfo{http.StatusNotFound, code, strings.ToUpper(entity(what)[:1]) + entity(what)[1:] + " not found"}
}

func entity(what string) string {
	if what == "" {
		return "record"
	}
	return strings.ToLower(what)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// ParseAndRespond writes the translated error as the response body.
func ParseAndRespond(c interface{ JSON(int, interface{}) }, err error, what string) {
	info := ParseError(err, what)
	c.JSON(info.Status, ErrorResponse{
		Error:   info.Code,
		Message: info.Message,
	})
}
