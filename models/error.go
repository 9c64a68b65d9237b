package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// ChatRequestResponse is the body returned by the chat session request route
type ChatRequestResponse struct {
	Result string `json:"result"`
}
