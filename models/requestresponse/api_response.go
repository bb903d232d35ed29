package requestresponse

// APIResponseDTO es el sobre estándar que devuelven todos los endpoints.
type APIResponseDTO struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// NewSuccess construye una respuesta exitosa.
func NewSuccess(message string, data interface{}) APIResponseDTO {
	if message == "" {
		message = "OK"
	}
	return APIResponseDTO{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewError construye una respuesta de error. kind es el código estable del tipo de error.
func NewError(message, kind string, fields map[string][]string) APIResponseDTO {
	if message == "" {
		message = "Error"
	}
	return APIResponseDTO{
		Success: false,
		Message: message,
		Errors:  fields,
		Error:   kind,
	}
}
