package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrBackend: ошибка транспорта или API бэкенда.
	ErrBackend = errors.New("backend error")

	// ErrUnsupportedModel: идентификатор модели не распознан.
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrMissingCredential: нет ключа для семейства модели.
	ErrMissingCredential = errors.New("missing credential")

	// ErrNoImageGenerated: бэкенд ответил без изображений.
	ErrNoImageGenerated = errors.New("no image generated by Gemini")
)

// UnsupportedModelError содержит нераспознанный идентификатор модели.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return "Unsupported model: " + e.Model
}

func (e *UnsupportedModelError) Is(target error) bool {
	return target == ErrUnsupportedModel
}

// MissingCredentialError сообщает, ключ какого семейства не задан.
type MissingCredentialError struct {
	Family Family
}

func (e *MissingCredentialError) Error() string {
	return e.Family.Label() + " API key is missing"
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// BackendError оборачивает ошибку SDK или транспорта.
type BackendError struct {
	Family  Family
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s API Error: %s", e.Family.Label(), e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func newBackendError(f Family, err error) *BackendError {
	return &BackendError{Family: f, Message: err.Error(), Err: err}
}
