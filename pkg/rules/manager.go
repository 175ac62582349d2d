package rules

import (
	"fmt"
	"net/url"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// RuleManager gerencia a compilação e avaliação de expressões CEL usadas na
// seleção automática de backends.
type RuleManager struct {
	env *cel.Env
}

// Predicate é uma expressão booleana já compilada.
type Predicate struct {
	expr string
	prg  cel.Program
}

// NewRuleManager inicializa o ambiente CEL com as variáveis expostas às regras.
func NewRuleManager() (*RuleManager, error) {
	env, err := cel.NewEnv(
		cel.StdLib(),
		cel.Declarations(
			decls.NewVar("request", decls.Dyn), // url, path, query, host
		),
	)
	if err != nil {
		return nil, fmt.Errorf("erro fatal CEL init: %w", err)
	}

	return &RuleManager{env: env}, nil
}

// CompilePredicate compila uma expressão que deve resultar em booleano.
func (rm *RuleManager) CompilePredicate(expr string) (*Predicate, error) {
	ast, issues := rm.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("erro compilação CEL '%s': %w", expr, issues.Err())
	}
	if t := ast.OutputType().String(); t != "bool" && t != "dyn" {
		return nil, fmt.Errorf("expressão CEL '%s' não retorna booleano", expr)
	}
	prg, err := rm.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("erro programa CEL: %w", err)
	}
	return &Predicate{expr: expr, prg: prg}, nil
}

// Eval executa o predicado com as variáveis informadas.
func (p *Predicate) Eval(vars map[string]interface{}) (bool, error) {
	out, _, err := p.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("erro execução CEL '%s': %w", p.expr, err)
	}
	if val, ok := out.Value().(bool); ok {
		return val, nil
	}
	return false, fmt.Errorf("resultado de '%s' não é booleano", p.expr)
}

// String devolve a expressão original.
func (p *Predicate) String() string {
	return p.expr
}

// RequestVars monta as variáveis CEL a partir da URL da requisição
// (caminho + query, como recebido pelo servidor).
func RequestVars(requestURL string) map[string]interface{} {
	req := map[string]interface{}{
		"url":   requestURL,
		"path":  requestURL,
		"query": map[string]interface{}{},
		"host":  "",
	}

	u, err := url.Parse(requestURL)
	if err != nil {
		return map[string]interface{}{"request": req}
	}

	query := make(map[string]interface{})
	for k, v := range u.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	req["path"] = u.Path
	req["query"] = query
	req["host"] = u.Host

	return map[string]interface{}{"request": req}
}
