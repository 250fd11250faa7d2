package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// DefaultErrorMessage é usado quando o backend não deu nenhuma mensagem útil.
const DefaultErrorMessage = "Request failed"

const maxRawMessage = 512

var (
	// ErrSessionInvalidated marca falhas em que o refresh não foi possível e a
	// sessão local foi descartada. O usuário precisa autenticar de novo.
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrNilRequest         = errors.New("nil request")
	ErrInvalidBaseURL     = errors.New("base url must be absolute")
	ErrNoAccessToken      = errors.New("refresh response has no access token")
)

// NormalizedError é o único formato de erro que sai do Client.
type NormalizedError struct {
	// Message é o texto para exibir (ver Normalize para a ordem de preferência).
	Message string
	// LocalizedMessage é o "messageVi" do backend, quando existe.
	LocalizedMessage string
	// StatusCode é 0 quando o pedido falhou antes de haver resposta.
	StatusCode int

	Method    string
	URL       string
	RequestID string

	Cause error
}

func (e *NormalizedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(e.Method)
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, "http %d: ", e.StatusCode)
	}
	b.WriteString(e.Message)
	if e.Cause != nil && e.StatusCode == 0 {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *NormalizedError) Unwrap() error { return e.Cause }

// DisplayMessage prefere a mensagem localizada quando pedida e disponível.
func (e *NormalizedError) DisplayMessage(localized bool) string {
	if localized && e.LocalizedMessage != "" {
		return e.LocalizedMessage
	}
	return e.Message
}

// ResponseError é a causa registrada para respostas não-2xx.
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// AsNormalized extrai *NormalizedError.
func AsNormalized(err error) (*NormalizedError, bool) {
	var ne *NormalizedError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

func IsStatus(err error, code int) bool {
	ne, ok := AsNormalized(err)
	return ok && ne.StatusCode == code
}

func IsSessionInvalidated(err error) bool {
	return errors.Is(err, ErrSessionInvalidated)
}

// Normalize converte (status, corpo, causa) em *NormalizedError.
//
// A mensagem segue a ordem: "message", "messageVi", "error" do corpo JSON;
// corpo como string crua; DefaultErrorMessage. A função é pura: a mesma
// entrada produz sempre o mesmo resultado, com a mesma causa.
func Normalize(status int, body []byte, cause error) *NormalizedError {
	msg, localized := extractMessages(body)
	if msg == "" {
		msg = DefaultErrorMessage
	}
	e := &NormalizedError{
		Message:          msg,
		LocalizedMessage: localized,
		Cause:            cause,
	}
	if status > 0 {
		e.StatusCode = status
	}
	return e
}

func extractMessages(body []byte) (message, localized string) {
	b := bytes.TrimSpace(body)
	if len(b) == 0 {
		return "", ""
	}

	var obj map[string]any
	if err := json.Unmarshal(b, &obj); err == nil {
		m := stringField(obj, "message")
		vi := stringField(obj, "messageVi")
		switch {
		case m != "":
			return m, vi
		case vi != "":
			return vi, vi
		}
		return stringField(obj, "error"), ""
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return strings.TrimSpace(s), ""
	}

	// arrays/números JSON não são mensagem
	if json.Valid(b) || !utf8.Valid(b) {
		return "", ""
	}
	raw := string(b)
	if len(raw) > maxRawMessage {
		raw = strings.ToValidUTF8(raw[:maxRawMessage], "")
	}
	return raw, ""
}

func stringField(obj map[string]any, key string) string {
	v, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
