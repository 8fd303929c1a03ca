package errors

// API error codes. Format: AREA_DETAIL. Clients map these to their own
// wording; the message field is a human-readable fallback.
const (
	// auth
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"
	AuthWeakPassword       = "AUTH_WEAK_PASSWORD"

	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"
	ValidationRequired     = "VALIDATION_REQUIRED"

	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	ResourceConflict      = "RESOURCE_CONFLICT"

	// catalog
	ProductNotFound      = "PRODUCT_NOT_FOUND"
	ProductInUse         = "PRODUCT_IN_USE"
	ProductOutOfStock    = "PRODUCT_OUT_OF_STOCK"
	CategoryNotFound     = "CATEGORY_NOT_FOUND"
	CategoryNotEmpty     = "CATEGORY_NOT_EMPTY"
	CategorySlugConflict = "CATEGORY_SLUG_EXISTS"

	// cart
	CartItemNotFound    = "CART_ITEM_NOT_FOUND"
	CartInvalidQuantity = "CART_INVALID_QUANTITY"
	CartEmpty           = "CART_EMPTY"

	// orders
	OrderNotFound          = "ORDER_NOT_FOUND"
	OrderInvalidStatus     = "ORDER_INVALID_STATUS"
	OrderInvalidTransition = "ORDER_INVALID_TRANSITION"
	OrderInvalidPayment    = "ORDER_INVALID_PAYMENT_METHOD"

	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadUnavailable     = "UPLOAD_UNAVAILABLE"

	InternalServerError = "INTERNAL_SERVER_ERROR"
	InternalDatabase    = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI = "INTERNAL_EXTERNAL_API_ERROR"
)
