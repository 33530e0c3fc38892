package middleware

import (
	"math/rand"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// ValidatorConfig holds validation configuration for planning inputs.
type ValidatorConfig struct {
	MaxBodySize       int64    // Maximum request body size in bytes
	AllowedStrategies []string // Allowed scenario strategy keys
	MaxNoteLength     int      // Maximum length of a free-text note/reason field
	MaxEmployeeIDLen  int      // Maximum length of a worker employee id
}

// DefaultValidatorConfig returns safe defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxBodySize:       1 << 20, // 1MB
		AllowedStrategies: []string{"meet_deadlines", "minimize_cost", "balanced"},
		MaxNoteLength:     2048,
		MaxEmployeeIDLen:  64,
	}
}

// employeeIDPattern restricts employee ids to a conservative charset; it
// guards against anything that could confuse a downstream report export.
var employeeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validator performs request validation for the planning API.
type Validator struct {
	config ValidatorConfig
}

// NewValidator creates a new validator with the given config.
func NewValidator(config ValidatorConfig) *Validator {
	return &Validator{config: config}
}

// ValidateStrategy checks that a scenario strategy key is one of the three
// the strategy layer knows how to apply.
func (v *Validator) ValidateStrategy(strategy string) error {
	for _, allowed := range v.config.AllowedStrategies {
		if strategy == allowed {
			return nil
		}
	}
	return &ValidationError{
		Field:   "strategy",
		Message: "unknown scheduling strategy",
	}
}

// ValidateEmployeeID checks a worker employee id field.
func (v *Validator) ValidateEmployeeID(id string) error {
	if len(id) == 0 {
		return &ValidationError{
			Field:   "employee_id",
			Message: "employee_id is required",
		}
	}
	if len(id) > v.config.MaxEmployeeIDLen {
		return &ValidationError{
			Field:   "employee_id",
			Message: "employee_id exceeds maximum length",
		}
	}
	if !employeeIDPattern.MatchString(id) {
		return &ValidationError{
			Field:   "employee_id",
			Message: "employee_id contains unsupported characters",
		}
	}
	return nil
}

// ValidateQuantity checks a demand entry quantity is a usable positive count.
func (v *Validator) ValidateQuantity(qty int) error {
	if qty <= 0 {
		return &ValidationError{
			Field:   "quantity",
			Message: "quantity must be positive",
		}
	}
	return nil
}

// ValidateNote checks a free-text note/reason field (e.g. a replan
// justification or proficiency override reason).
func (v *Validator) ValidateNote(note string) error {
	if len(note) > v.config.MaxNoteLength {
		return &ValidationError{
			Field:   "note",
			Message: "note exceeds maximum length",
		}
	}
	return nil
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// BodySizeLimitMiddleware limits request body size.
func BodySizeLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeadersMiddleware adds security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}

// RequestIDMiddleware adds a request ID for tracing.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// generateRequestID creates a simple request ID.
func generateRequestID() string {
	return "req-" + randomString(16)
}

// randomString generates a random alphanumeric string.
func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}
