package auth

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderError is a rejection returned by the identity provider.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider rejected request (%d): %s", e.Status, e.Message)
}

// providerError extracts a readable message from the several error shapes the
// provider uses.
func providerError(status int, body []byte) *ProviderError {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := ""
	for _, v := range []string{payload.ErrorDescription, payload.Msg, payload.Message, payload.Error} {
		if strings.TrimSpace(v) != "" {
			msg = strings.TrimSpace(v)
			break
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = "request rejected"
	}

	return &ProviderError{Status: status, Message: msg}
}
