package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind 错误类别
// Every failure the service reports belongs to exactly one kind, which in turn
// decides the HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindDuplicateFile
	KindNotFound
	KindStorage
	KindMetadataStore
	KindParse
)

var kindNames = map[Kind]string{
	KindInternal:      "InternalError",
	KindValidation:    "ValidationError",
	KindDuplicateFile: "DuplicateFileError",
	KindNotFound:      "NotFoundError",
	KindStorage:       "StorageError",
	KindMetadataStore: "MetadataStoreError",
	KindParse:         "ParseError",
}

// String returns the name rendered in the "error" field of error bodies.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// HTTPStatus maps a kind onto its response status.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindDuplicateFile:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// 错误码
const (
	CodeInternal          = "error.internal.server"
	CodeFilenameAbsent    = "error.filename.is.absent"
	CodeFileNotFound      = "error.file.not.found.or.access.denied"
	CodeSameFile          = "error.same.file"
	CodeFileUpload        = "error.file.upload"
	CodeDeleteFromStorage = "error.delete.from.storage"
	CodeDeleteFromDB      = "error.delete.from.db"
	CodeParseValidation   = "error.parse.validation"
	CodeParseURI          = "error.parse.uri"
	CodeParseURL          = "error.parse.url"
	CodeParseConfig       = "error.parse.config"
	CodeStorageConnection = "error.storage.connection"
	CodeStorageSecurity   = "error.storage.security"
	CodeStorageUnexpected = "error.storage.unexpected"
	CodeMetadataStore     = "error.metadata.store"
	CodeFileAbsent        = "error.file.absent"
	CodeInvalidJSON       = "error.invalid.json"
	CodeValidationFailed  = "error.validation.failed"
	CodeParamAbsent       = "error.request.param.absent"
	CodeMultipartParsing  = "error.multipart.parsing"
)

// Fixed messages shared between callers.
const (
	MsgFileNotFound = "file not found or user has no access to the file"
	MsgSameFilename = "The filename already exists"
	MsgSameContent  = "The file content already exists"
	MsgInternal     = "Internal server error"
)

// AppError 应用错误
type AppError struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details carries structured extra information, e.g. field errors.
	Details interface{} `json:"details,omitempty"`
	// OriginalError is logged but never sent to clients.
	OriginalError error `json:"-"`
}

func (e *AppError) Error() string {
	if e.OriginalError != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.OriginalError)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// Status is shorthand for HTTPStatus(e.Kind).
func (e *AppError) Status() int {
	return HTTPStatus(e.Kind)
}

// WithDetails 添加详细错误信息
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// New 创建新的应用错误
func New(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

// Wrap 包装原始错误
func Wrap(kind Kind, code, message string, err error) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message, OriginalError: err}
}

// GetAppError extracts an *AppError anywhere in err's chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Kind == kind
}

// Validation builds a 400 error for malformed input.
func Validation(code, message string) *AppError {
	return New(KindValidation, code, message)
}

// NotFound is the single error returned for both missing files and files owned
// by someone else, so callers cannot probe for other users' file ids.
func NotFound() *AppError {
	return New(KindNotFound, CodeFileNotFound, MsgFileNotFound)
}

// Reasons accepted by DuplicateFile.
const (
	DuplicateFilename = "filename"
	DuplicateContent  = "content"
)

// DuplicateFile reports an upload that collides with an existing file of the
// same owner. The message names what collided.
func DuplicateFile(reason string) *AppError {
	msg := MsgSameFilename
	if reason == DuplicateContent {
		msg = MsgSameContent
	}
	return Wrap(KindDuplicateFile, CodeSameFile, msg, fmt.Errorf("duplicate %s", reason))
}

func Storage(code, message string, err error) *AppError {
	return Wrap(KindStorage, code, message, err)
}

func MetadataStore(code, message string, err error) *AppError {
	return Wrap(KindMetadataStore, code, message, err)
}

func Internal(err error) *AppError {
	return Wrap(KindInternal, CodeInternal, MsgInternal, err)
}
