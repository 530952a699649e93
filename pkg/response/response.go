package response

type APIResponseCode int

const (
	APIResponseCodeOK         APIResponseCode = 0
	APIResponseCodeBadRequest APIResponseCode = 40000
	APIResponseCodeNotFound   APIResponseCode = 40400
	APIResponseCodeError      APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:         "ok",
	APIResponseCodeBadRequest: "bad request",
	APIResponseCodeNotFound:   "not found",
	APIResponseCodeError:      "unexpected error",
}

// APIResponse is the generic envelope used by the admin and access APIs.
// The provider-facing webhook endpoint has its own envelope; see the
// webhook service.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with code and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}
