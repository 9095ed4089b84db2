// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/amirphl/likebounty/app/dto"
	"github.com/amirphl/likebounty/app/middleware"
	businessflow "github.com/amirphl/likebounty/business_flow"
	"github.com/amirphl/likebounty/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// baseHandler carries what every handler needs to answer a request
type baseHandler struct {
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func newBaseHandler(logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{
		validator: validator.New(),
		logger:    logger,
		now:       utils.UTCNow,
	}
}

// WithClock replaces the clock used to stamp campaign operations
func (h *baseHandler) WithClock(now func() time.Time) {
	h.now = now
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// BusinessErrorResponse answers with the status matching err's kind
func (h *baseHandler) BusinessErrorResponse(c fiber.Ctx, err error, operation string) error {
	status := statusForKind(businessflow.KindOf(err))
	message := "Request failed"
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}

	if status == fiber.StatusInternalServerError {
		h.logger.Error(operation+" failed",
			zap.Error(err),
			zap.String("request_id", requestID(c)),
			zap.String("path", c.Path()),
		)
		message = operation + " failed"
	}
	return h.ErrorResponse(c, status, message, businessflow.CodeOf(err), nil)
}

// statusForKind maps error categories to HTTP statuses
func statusForKind(kind businessflow.ErrorKind) int {
	switch kind {
	case businessflow.KindValidation:
		return fiber.StatusBadRequest
	case businessflow.KindAuthorization:
		return fiber.StatusForbidden
	case businessflow.KindNotFound:
		return fiber.StatusNotFound
	case businessflow.KindConflict:
		return fiber.StatusConflict
	case businessflow.KindState, businessflow.KindWindow:
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// bindAndValidate parses the JSON body into req and runs its validate tags.
// It writes the error response itself and reports whether the caller may go on.
func (h *baseHandler) bindAndValidate(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		var validationErrors []string
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

// createRequestContext creates a context with a timeout and request-scoped values
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)

	ctx = context.WithValue(ctx, businessflow.RequestIDContextKey, requestID(c))
	ctx = context.WithValue(ctx, businessflow.EndpointContextKey, endpoint)

	return ctx, cancel
}

func requestID(c fiber.Ctx) string {
	if id := requestid.FromContext(c); id != "" {
		return id
	}
	return c.Get(businessflow.RequestIDKey)
}

func callerIdentity(c fiber.Ctx) string {
	return middleware.Identity(c)
}

func campaignIDParam(c fiber.Ctx) (uint64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid campaign id %q", raw)
	}
	return id, nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		if err.Kind() != reflect.String {
			return err.Field() + " must be at least " + err.Param()
		}
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		if err.Kind() != reflect.String {
			return err.Field() + " must be at most " + err.Param()
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
