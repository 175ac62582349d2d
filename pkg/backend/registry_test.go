package backend

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/raywall/fast-service-stubber/pkg/config"
	"github.com/raywall/fast-service-stubber/pkg/domain"
	"github.com/raywall/fast-service-stubber/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticURL(u string) func() (string, error) {
	return func() (string, error) { return u, nil }
}

func TestRegister_Defaults(t *testing.T) {
	reg := NewRegistry()
	b := reg.Register("api", Capabilities{GetURL: staticURL("http://up.example/")})

	assert.True(t, b.Match("/qualquer"))
	assert.Equal(t, `^/items/1$`, b.ParseURL(`^/items/1$`))
	assert.Equal(t, []byte("abc"), b.ParseBody([]byte("abc")))

	u, err := b.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://up.example/", u)
}

func TestURL_Invalid(t *testing.T) {
	reg := NewRegistry()

	noURL := reg.Register("sem-url", Capabilities{})
	_, err := noURL.URL()
	assert.ErrorContains(t, err, "getUrl")

	relative := reg.Register("relativa", Capabilities{GetURL: staticURL("/api")})
	_, err = relative.URL()
	assert.Error(t, err)

	failing := reg.Register("falha", Capabilities{GetURL: func() (string, error) {
		return "", errors.New("sem config")
	}})
	_, err = failing.URL()
	assert.ErrorContains(t, err, "sem config")
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("api", Capabilities{GetURL: staticURL("http://a/")})

	b, err := reg.Resolve("api")
	require.NoError(t, err)
	assert.Equal(t, "api", b.Name())

	_, err = reg.Resolve("outro")
	assert.ErrorIs(t, err, domain.ErrUnknownBackend)
}

func TestAutoMatch_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register("users", Capabilities{
		GetURL: staticURL("http://u/"),
		Match:  func(u string) bool { return strings.HasPrefix(u, "/users") },
	})
	reg.Register("catchall", Capabilities{GetURL: staticURL("http://c/")})
	reg.Register("tardio", Capabilities{GetURL: staticURL("http://t/")})

	b, err := reg.AutoMatch("/users/1")
	require.NoError(t, err)
	assert.Equal(t, "users", b.Name())

	b, err = reg.AutoMatch("/posts/1")
	require.NoError(t, err)
	assert.Equal(t, "catchall", b.Name())

	// Re-registro mantém a posição original
	reg.Register("users", Capabilities{GetURL: staticURL("http://u2/"), Match: func(string) bool { return true }})
	assert.Equal(t, []string{"users", "catchall", "tardio"}, reg.Names())
	b, _ = reg.AutoMatch("/posts/1")
	assert.Equal(t, "users", b.Name())
}

func TestAutoMatch_NoneMatches(t *testing.T) {
	reg := NewRegistry()
	reg.Register("nunca", Capabilities{GetURL: staticURL("http://n/"), Match: func(string) bool { return false }})

	_, err := reg.AutoMatch("/x")
	assert.ErrorIs(t, err, domain.ErrNoBackendMatched)
	assert.Equal(t, "No backend found to match your request", err.Error())
}

func TestFromConfig(t *testing.T) {
	rm, err := rules.NewRuleManager()
	require.NoError(t, err)

	caps, err := FromConfig(config.BackendConf{
		Name:  "items",
		URL:   "http://up.example/",
		Match: "request.path.startsWith('/items')",
		ParseURL: []config.RewriteRule{
			{Pattern: `/[0-9]+`, Replace: `/[0-9]+`},
		},
		ParseBody: []config.RewriteRule{
			{Pattern: `"token":"[^"]*"`, Replace: `"token":"x"`},
		},
	}, rm)
	require.NoError(t, err)

	reg := NewRegistry()
	b := reg.Register("items", caps)

	assert.True(t, b.Match("/items/42"))
	assert.False(t, b.Match("/users/42"))

	pattern := b.ParseURL("^" + regexp.QuoteMeta("/items/42") + "$")
	assert.Equal(t, `^/items/[0-9]+$`, pattern)
	assert.Regexp(t, regexp.MustCompile(pattern), "/items/7")

	assert.Equal(t, `{"token":"x"}`, string(b.ParseBody([]byte(`{"token":"abc"}`))))

	u, err := b.URL()
	require.NoError(t, err)
	assert.Equal(t, "http://up.example/", u)
}

func TestFromConfig_InvalidRules(t *testing.T) {
	rm, _ := rules.NewRuleManager()

	_, err := FromConfig(config.BackendConf{Name: "a", URL: "http://a/", ParseURL: []config.RewriteRule{{Pattern: "("}}}, rm)
	assert.Error(t, err)

	_, err = FromConfig(config.BackendConf{Name: "a", URL: "http://a/", Match: "request.path +"}, rm)
	assert.Error(t, err)

	_, err = FromConfig(config.BackendConf{Name: "a", URL: "http://a/", Match: "true"}, nil)
	assert.Error(t, err)
}
