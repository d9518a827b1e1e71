package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the platform's error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes data as-is with 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created writes data as-is with 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Error writes the error envelope with the given status.
func Error(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// ErrorWithDetail appends the underlying error text to the message.
func ErrorWithDetail(c *gin.Context, statusCode int, message string, err error) {
	if err != nil {
		message = message + ": " + err.Error()
	}
	c.JSON(statusCode, ErrorResponse{Error: message})
}
