package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ConfigValidator struct {
	validate *validator.Validate
}

// NewValidator cria uma nova instância do validador
func NewValidator() *ConfigValidator {
	return &ConfigValidator{
		validate: validator.New(),
	}
}

// Validate realiza validações estruturais (tags) e semânticas (lógica)
func (cv *ConfigValidator) Validate(cfg *StubberConfig) error {
	// 1. Validação Estrutural (Tags do struct: required, oneof, etc)
	if err := cv.validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMsgs []string
			for _, e := range validationErrors {
				errMsgs = append(errMsgs, fmt.Sprintf("Campo '%s' falhou na regra '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("erros de validação estrutural:\n- %s", strings.Join(errMsgs, "\n- "))
		}
		return fmt.Errorf("erro de validação estrutural: %w", err)
	}

	// 2. Validação Semântica
	if err := cv.validateSemantics(cfg); err != nil {
		return fmt.Errorf("erro de validação semântica: %w", err)
	}

	return nil
}

func (cv *ConfigValidator) validateSemantics(cfg *StubberConfig) error {
	// 1. Nomes de backend únicos
	seen := make(map[string]bool)
	for _, b := range cfg.Backends {
		if seen[b.Name] {
			return fmt.Errorf("backend duplicado detectado: '%s'", b.Name)
		}
		seen[b.Name] = true

		// 2. Regras de reescrita precisam compilar em RE2
		for _, rule := range append(append([]RewriteRule{}, b.ParseURL...), b.ParseBody...) {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("backend '%s': regra de reescrita inválida '%s': %w", b.Name, rule.Pattern, err)
			}
		}
	}

	// 3. Nomes permitidos não podem repetir
	allowed := make(map[string]bool)
	for _, name := range cfg.Service.Backends {
		if allowed[name] {
			return fmt.Errorf("backend permitido listado duas vezes: '%s'", name)
		}
		allowed[name] = true
	}

	return nil
}
