package injector

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
)

// Regex para capturar padrões ${tipo.chave}
// Ex: ${env.PROXY_URL}, ${ssm./stubber/client_key}, ${secret.stubber/mtls#key}
var pattern = regexp.MustCompile(`\$\{(env|ssm|secret)\.([^}]+)\}`)

// SecretSource é a origem dos valores ${ssm.*} e ${secret.*}.
type SecretSource interface {
	Parameter(ctx context.Context, path string) (string, error)
	Secret(ctx context.Context, ref string) (string, error)
}

type Injector struct {
	source SecretSource
}

// New cria um injector. Sem source, apenas ${env.*} é resolvido e as demais
// referências resultam em erro.
func New(source SecretSource) *Injector {
	return &Injector{source: source}
}

// Inject percorre a struct apontada por target interpolando todas as strings.
func (i *Injector) Inject(ctx context.Context, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target deve ser um ponteiro para struct não nulo")
	}
	return i.injectRecursive(ctx, v.Elem())
}

func (i *Injector) injectRecursive(ctx context.Context, v reflect.Value) error {
	switch v.Kind() {
	case reflect.Struct:
		for k := 0; k < v.NumField(); k++ {
			if err := i.injectRecursive(ctx, v.Field(k)); err != nil {
				return err
			}
		}

	case reflect.String:
		if !v.CanSet() {
			return nil
		}
		newValue, err := i.interpolateString(ctx, v.String())
		if err != nil {
			return err
		}
		v.SetString(newValue)

	case reflect.Ptr:
		if !v.IsNil() {
			return i.injectRecursive(ctx, v.Elem())
		}

	case reflect.Slice:
		for j := 0; j < v.Len(); j++ {
			if err := i.injectRecursive(ctx, v.Index(j)); err != nil {
				return err
			}
		}
	}
	return nil
}

// interpolateString realiza a substituição baseada em Regex
func (i *Injector) interpolateString(ctx context.Context, input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var firstErr error
	result := pattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := pattern.FindStringSubmatch(match)
		val, err := i.fetchValue(ctx, groups[1], groups[2])
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("falha ao resolver %s: %w", match, err)
			}
			return match
		}
		return val
	})

	return result, firstErr
}

// fetchValue centraliza a busca de dados
func (i *Injector) fetchValue(ctx context.Context, sourceType, key string) (string, error) {
	switch sourceType {
	case "env":
		// Variável não encontrada retorna vazio
		return os.Getenv(key), nil
	case "ssm":
		if i.source == nil {
			return "", fmt.Errorf("nenhuma fonte de segredos configurada")
		}
		return i.source.Parameter(ctx, key)
	case "secret":
		if i.source == nil {
			return "", fmt.Errorf("nenhuma fonte de segredos configurada")
		}
		return i.source.Secret(ctx, key)
	}
	return "", fmt.Errorf("tipo de referência desconhecido: %s", sourceType)
}
