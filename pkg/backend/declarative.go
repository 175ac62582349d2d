package backend

import (
	"fmt"
	"regexp"

	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/rules"
	"github.com/rs/zerolog/log"
)

type rewrite struct {
	re      *regexp.Regexp
	replace string
}

// FromConfig monta as Capabilities de um backend declarado no YAML.
//
// O campo match é uma expressão CEL sobre a variável request (url, path,
// query, host). As regras parse_url e parse_body são aplicadas em ordem com
// regexp.ReplaceAllString, então "$1" na substituição referencia grupos.
func FromConfig(conf config.BackendConf, rm *rules.RuleManager) (Capabilities, error) {
	baseURL := conf.URL
	caps := Capabilities{
		GetURL: func() (string, error) { return baseURL, nil },
	}

	if conf.Match != "" {
		if rm == nil {
			return Capabilities{}, fmt.Errorf("backend '%s': match exige um RuleManager", conf.Name)
		}
		pred, err := rm.CompilePredicate(conf.Match)
		if err != nil {
			return Capabilities{}, fmt.Errorf("backend '%s': %w", conf.Name, err)
		}
		name := conf.Name
		caps.Match = func(requestURL string) bool {
			ok, err := pred.Eval(rules.RequestVars(requestURL))
			if err != nil {
				log.Warn().Err(err).Str("backend", name).Msg("Erro avaliando match; backend ignorado")
				return false
			}
			return ok
		}
	}

	urlRules, err := compileRules(conf.Name, conf.ParseURL)
	if err != nil {
		return Capabilities{}, err
	}
	if len(urlRules) > 0 {
		caps.ParseURL = func(pattern string) string {
			for _, r := range urlRules {
				pattern = r.re.ReplaceAllString(pattern, r.replace)
			}
			return pattern
		}
	}

	bodyRules, err := compileRules(conf.Name, conf.ParseBody)
	if err != nil {
		return Capabilities{}, err
	}
	if len(bodyRules) > 0 {
		caps.ParseBody = func(body []byte) []byte {
			for _, r := range bodyRules {
				body = r.re.ReplaceAll(body, []byte(r.replace))
			}
			return body
		}
	}

	return caps, nil
}

func compileRules(name string, list []config.RewriteRule) ([]rewrite, error) {
	out := make([]rewrite, 0, len(list))
	for _, rule := range list {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("backend '%s': regra inválida '%s': %w", name, rule.Pattern, err)
		}
		out = append(out, rewrite{re: re, replace: rule.Replace})
	}
	return out, nil
}
