package types

import "errors"

var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrDownloadFailure  = errors.New("download failure")
	ErrRenameFailure    = errors.New("rename failure")
	ErrUploadFailure    = errors.New("upload failure")
	ErrTransportFailure = errors.New("transport failure")
	ErrServiceError     = errors.New("inference service error")
	ErrResultNotFound   = errors.New("prediction result not found")
	ErrParseFailure     = errors.New("parse failure")
)
