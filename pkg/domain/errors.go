// Package domain concentra os tipos compartilhados entre o motor de jornadas,
// o registro de backends e a camada HTTP. Hoje isso se resume à taxonomia de
// erros: cada falha relevante carrega um Kind e um status HTTP, e a conversão
// para resposta acontece apenas na fronteira de transporte.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifica a categoria de um erro do stubber.
type Kind string

const (
	KindUnknownBackend        Kind = "UnknownBackend"
	KindNoBackendMatched      Kind = "NoBackendMatched"
	KindJourneyAlreadyExists  Kind = "JourneyAlreadyExists"
	KindJourneyNotFound       Kind = "JourneyNotFound"
	KindManifestCorrupt       Kind = "ManifestCorrupt"
	KindUpstreamRequestFailed Kind = "UpstreamRequestFailed"
	KindNoRecordedMatch       Kind = "NoRecordedMatch"
	KindArtifactReadFailed    Kind = "ArtifactReadFailed"
	KindArtifactWriteFailed   Kind = "ArtifactWriteFailed"
	KindInvalidJourneyName    Kind = "InvalidJourneyName"
	KindNotFound              Kind = "NotFound"
)

// Sentinelas para uso com errors.Is. A comparação é feita pelo Kind, então
// qualquer *Error do mesmo tipo casa com a sentinela correspondente.
var (
	ErrUnknownBackend        = &Error{Kind: KindUnknownBackend}
	ErrNoBackendMatched      = &Error{Kind: KindNoBackendMatched}
	ErrJourneyAlreadyExists  = &Error{Kind: KindJourneyAlreadyExists}
	ErrJourneyNotFound       = &Error{Kind: KindJourneyNotFound}
	ErrManifestCorrupt       = &Error{Kind: KindManifestCorrupt}
	ErrUpstreamRequestFailed = &Error{Kind: KindUpstreamRequestFailed}
	ErrNoRecordedMatch       = &Error{Kind: KindNoRecordedMatch}
	ErrArtifactReadFailed    = &Error{Kind: KindArtifactReadFailed}
	ErrArtifactWriteFailed   = &Error{Kind: KindArtifactWriteFailed}
	ErrInvalidJourneyName    = &Error{Kind: KindInvalidJourneyName}
	ErrNotFound              = &Error{Kind: KindNotFound}
)

// Error é o erro tipado do stubber.
type Error struct {
	// Kind é a categoria do erro (ex: NoRecordedMatch).
	Kind Kind
	// Message é o texto exposto ao cliente HTTP.
	Message string
	// Err é a causa original, quando existir.
	Err error
}

// New cria um erro do tipo informado com mensagem formatada.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap cria um erro do tipo informado encapsulando a causa original.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara pelo Kind, permitindo errors.Is(err, domain.ErrNoRecordedMatch).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode devolve o status HTTP associado ao Kind.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidJourneyName:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extrai o Kind de qualquer erro da cadeia. Erros desconhecidos são
// tratados como falha interna.
func KindOf(err error) (Kind, int) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, de.StatusCode()
	}
	return "InternalError", http.StatusInternalServerError
}
