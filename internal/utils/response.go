package utils

import "time"

// APIResponse is the JSON envelope both services wrap their responses in.
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{Success: true, Message: message, Data: data, Timestamp: time.Now()}
}

func ErrorResponse(message, errorDetail string) APIResponse {
	return APIResponse{Message: message, Error: errorDetail, Timestamp: time.Now()}
}
