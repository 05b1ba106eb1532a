package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Artflow/internal/repo"
)

// ErrorCode это код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidGraph  ErrorCode = "INVALID_GRAPH"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeBackend       ErrorCode = "BACKEND_ERROR"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
)

// HTTP-статус для каждого кода ошибки.
var codeStatus = map[ErrorCode]int{
	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidGraph:  http.StatusBadRequest,
	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeConflict:      http.StatusConflict,
	ErrCodeInvalidState:  http.StatusUnprocessableEntity,
	ErrCodeInternalError: http.StatusInternalServerError,
	ErrCodeBackend:       http.StatusBadGateway,
	ErrCodeUnavailable:   http.StatusServiceUnavailable,
}

// ErrorResponse это тело ответа с ошибкой: {"error": {"code", "message"}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail это детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse это тело ответа с одним объектом.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse это тело ответа со списком. Total это размер страницы.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет 200 с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет 201 с созданным ресурсом.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет список.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ошибку со статусом, соответствующим коду.
func Error(w http.ResponseWriter, code ErrorCode, message string) {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, ErrCodeBadRequest, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Error(w, ErrCodeNotFound, message)
}

func Conflict(w http.ResponseWriter, message string) {
	Error(w, ErrCodeConflict, message)
}

func InvalidState(w http.ResponseWriter, message string) {
	Error(w, ErrCodeInvalidState, message)
}

// InvalidGraph отправляет 400 для графа, не прошедшего валидацию.
func InvalidGraph(w http.ResponseWriter, err error) {
	Error(w, ErrCodeInvalidGraph, err.Error())
}

// BadGateway отправляет 502 при сбое внешнего сервиса.
func BadGateway(w http.ResponseWriter, message string) {
	Error(w, ErrCodeBackend, message)
}

func Unavailable(w http.ResponseWriter, message string) {
	Error(w, ErrCodeUnavailable, message)
}

// InternalError логирует причину и отправляет 500 без деталей.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, ErrCodeInternalError, "internal server error")
}

// repoErrorCodes сопоставляет ошибки репозитория с кодами API.
var repoErrorCodes = []struct {
	err  error
	code ErrorCode
}{
	{repo.ErrNotFound, ErrCodeNotFound},
	{repo.ErrAlreadyExists, ErrCodeConflict},
	{repo.ErrInvalidState, ErrCodeInvalidState},
}

// HandleRepoError отправляет ответ для ошибки репозитория.
// Возвращает false, если err == nil и ответ не отправлен.
//
// notFoundMsg заменяет текст ошибки для ErrNotFound, если не пустой.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	for _, m := range repoErrorCodes {
		if !errors.Is(err, m.err) {
			continue
		}
		msg := err.Error()
		if m.code == ErrCodeNotFound && notFoundMsg != "" {
			msg = notFoundMsg
		}
		Error(w, m.code, msg)
		return true
	}

	InternalError(w, logger, err)
	return true
}
