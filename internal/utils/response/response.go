package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Response is the JSON body used for every error and confirmation message.
type Response struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func Error(message string) Response {
	return Response{Message: message}
}

func GeneralError(err error) Response {
	return Response{Message: err.Error()}
}

func OK(message string) Response {
	return Response{Message: message}
}

// ValidationError renders validator failures into a message naming the
// offending fields.
func ValidationError(errs validator.ValidationErrors) Response {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "min":
			if fe.Kind() == reflect.String {
				parts = append(parts, fmt.Sprintf("%s must be at least %s characters long", field, fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
			}
		case "max":
			if fe.Kind() == reflect.String {
				parts = append(parts, fmt.Sprintf("%s must be at most %s characters long", field, fe.Param()))
			} else {
				parts = append(parts, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
			}
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email address", field))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", field))
		}
	}

	return Response{Message: strings.Join(parts, "; ")}
}
