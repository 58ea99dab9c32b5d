package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
)

// Response is the JSON envelope of every analytics endpoint
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorBody  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *PageMeta   `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PageMeta describes one page of a snapshot view or batch listing
type PageMeta struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

func newPageMeta(page, perPage, totalItems int) *PageMeta {
	totalPages := 0
	if perPage > 0 {
		totalPages = (totalItems + perPage - 1) / perPage
	}
	return &PageMeta{Page: page, PerPage: perPage, TotalPages: totalPages, TotalItems: totalItems}
}

func respond(c *gin.Context, statusCode int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

func RespondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, &Response{Data: data})
}

func RespondCreated(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, &Response{Data: data})
}

// RespondAccepted is used when a snapshot refresh was queued
func RespondAccepted(c *gin.Context, data interface{}) {
	respond(c, http.StatusAccepted, &Response{Data: data})
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// RespondPage sends one page of results with its paging metadata
func RespondPage(c *gin.Context, data interface{}, page, perPage, totalItems int) {
	respond(c, http.StatusOK, &Response{Data: data, Meta: newPageMeta(page, perPage, totalItems)})
}

func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	respond(c, statusCode, &Response{Error: &ErrorBody{Code: code, Message: message}})
}

func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

func RespondUnauthorized(c *gin.Context, message string) {
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// RespondUnavailable sends a 503 when a snapshot refresh or dependency is busy
func RespondUnavailable(c *gin.Context, code, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, code, message)
}

func RespondNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
