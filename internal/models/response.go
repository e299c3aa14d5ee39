package models

// Response is the envelope wrapping every JSON payload.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// OK wraps data in a success envelope.
func OK(data any) Response {
	return Response{Code: CodeSuccess, Message: "success", Data: data}
}

// Fail renders an *AppError as an envelope. Details travel in data.
func Fail(err *AppError) Response {
	var data any
	if len(err.Details) > 0 {
		data = err.Details
	}
	return Response{Code: err.Code, Message: err.Message, Data: data}
}

// BatchResult reports how many rows a bulk operation touched.
type BatchResult struct {
	Affected int64 `json:"affected"`
}
