package http

import (
	"errors"

	"github.com/computor-org/computor/pkg"
	"github.com/gofiber/fiber/v2"
)

// Pagination is a struct designed to encapsulate pagination request data.
type Pagination struct {
	Limit     int    `json:"limit" query:"limit"`
	Page      int    `json:"page" query:"page"`
	SortOrder string `json:"sortOrder" query:"sort_order"`
}

// Normalize applies defaults and bounds to the pagination fields.
func (p *Pagination) Normalize() {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}

	if p.Page <= 0 {
		p.Page = 1
	}

	if p.SortOrder != "asc" && p.SortOrder != "desc" {
		p.SortOrder = "desc"
	}
}

// ResponseError is a struct used to return errors to the client.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error returns the message of the ResponseError.
func (r ResponseError) Error() string {
	return r.Message
}

// OK sends a 200 response with the given payload.
func OK(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

// Created sends a 201 response with the given payload.
func Created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(payload)
}

// WithError maps a business error to its HTTP status and response body.
// Cache-layer errors never reach this function; they are swallowed below the
// repositories. Permission errors intentionally carry no hint of whether the
// target entity exists.
func WithError(c *fiber.Ctx, err error) error {
	var (
		notFound     pkg.EntityNotFoundError
		validation   pkg.ValidationError
		conflict     pkg.EntityConflictError
		unauthorized pkg.UnauthorizedError
		forbidden    pkg.ForbiddenError
		unproc       pkg.UnprocessableOperationError
		rateLimited  pkg.RateLimitedError
		unavailable  pkg.StoreUnavailableError
		internal     pkg.InternalServerError
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(ResponseError{
			Code: notFound.Code, Title: notFound.Title, Message: notFound.Error(),
		})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(ResponseError{
			Code: validation.Code, Title: validation.Title, Message: validation.Message,
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusConflict).JSON(ResponseError{
			Code: conflict.Code, Title: conflict.Title, Message: conflict.Error(),
		})
	case errors.As(err, &unauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(ResponseError{
			Code: unauthorized.Code, Title: unauthorized.Title, Message: unauthorized.Message,
		})
	case errors.As(err, &forbidden):
		return c.Status(fiber.StatusForbidden).JSON(ResponseError{
			Code: forbidden.Code, Title: forbidden.Title, Message: forbidden.Message,
		})
	case errors.As(err, &unproc):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ResponseError{
			Code: unproc.Code, Title: unproc.Title, Message: unproc.Message,
		})
	case errors.As(err, &rateLimited):
		c.Set(fiber.HeaderRetryAfter, "60")

		return c.Status(fiber.StatusTooManyRequests).JSON(ResponseError{
			Code: rateLimited.Code, Title: rateLimited.Title, Message: rateLimited.Message,
		})
	case errors.As(err, &unavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ResponseError{
			Code: unavailable.Code, Title: unavailable.Title, Message: unavailable.Message,
		})
	case errors.As(err, &internal):
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{
			Code: internal.Code, Title: internal.Title, Message: internal.Message,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{
			Title:   "Internal Server Error",
			Message: "The server encountered an unexpected error. Please try again later.",
		})
	}
}

// Ping returns HTTP Status 200 with response "healthy".
func Ping(c *fiber.Ctx) error {
	return c.SendString("healthy")
}
