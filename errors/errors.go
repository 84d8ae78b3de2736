package errors

/*
* Error codes are intended to convey detailed errors internally and to clients.
* These should be combined with the appropriate HTTP status code, but are not
* intended to supercede correct HTTP responses.
*
* Error codes are grouped under HTTP status code. These should be returned
* with HTTP 400 unless otherwise stated.
 */

const (

	// HTTP 400 Bad Request.
	// Content does not match Content-Type or unmarshalling error.
	InvalidContent ErrCode = 1
	// A parameter was not of the expected type.
	UnexpectedType ErrCode = 2
	// A payload failed entity validation.
	ValidationFailed ErrCode = 3

	// HTTP 404 Not Found.
	// The named store is not registered.
	StoreNotFound ErrCode = 4
	// The item does not exist in the store or the underlying table.
	ItemNotFound ErrCode = 5

	// HTTP 405 Method Not Allowed.
	// The operation is disabled for this store (read-only or partial
	// mirrors of externally managed collections).
	OperationNotAllowed ErrCode = 6

	// HTTP 500 Internal Server Error.
	// The database, cache or notification channel is unreachable.
	StorageUnavailable ErrCode = 7
)

// StoreError implements the Error interface.
type StoreError struct {
	Function     string  `json:"-"`
	ErrorCode    ErrCode `json:"errorCode"`
	ErrorMessage string  `json:"errorDetail"`
}

type ErrCode uint8

func (e StoreError) Error() string {
	return e.ErrorMessage
}

func New(function string, errCode ErrCode, errMessage string) error {
	return &StoreError{
		Function:     function,
		ErrorCode:    errCode,
		ErrorMessage: errMessage,
	}
}
