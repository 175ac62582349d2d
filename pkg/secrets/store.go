package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Interfaces para abstrair o SDK da AWS (Permite Mocking)
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver busca valores no Parameter Store e no Secrets Manager. Os clientes
// reais são criados na primeira chamada.
type Resolver struct {
	region  string
	once    sync.Once
	initErr error
	ssm     SSMClient
	secrets SecretsClient
}

// NewResolver cria um resolver para a região informada (vazio = região do ambiente).
func NewResolver(region string) *Resolver {
	return &Resolver{region: region}
}

// NewResolverWithClients é usado em testes para injetar mocks.
func NewResolverWithClients(ssmClient SSMClient, secretsClient SecretsClient) *Resolver {
	r := &Resolver{ssm: ssmClient, secrets: secretsClient}
	r.once.Do(func() {})
	return r
}

func (r *Resolver) init(ctx context.Context) error {
	r.once.Do(func() {
		cfg, err := GetAWSConfig(ctx, r.region)
		if err != nil {
			r.initErr = fmt.Errorf("erro ao carregar config AWS: %w", err)
			return
		}
		r.ssm = ssm.NewFromConfig(cfg)
		r.secrets = secretsmanager.NewFromConfig(cfg)
	})
	return r.initErr
}

// Parameter lê um parâmetro do SSM, sempre com decriptação.
func (r *Resolver) Parameter(ctx context.Context, path string) (string, error) {
	if err := r.init(ctx); err != nil {
		return "", err
	}
	out, err := r.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("erro no SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parâmetro SSM '%s' sem valor", path)
	}
	return *out.Parameter.Value, nil
}

// Secret lê um segredo do Secrets Manager. O formato "id#campo" extrai um
// campo de um segredo armazenado como objeto JSON.
func (r *Resolver) Secret(ctx context.Context, ref string) (string, error) {
	if err := r.init(ctx); err != nil {
		return "", err
	}

	secretID, field, hasField := strings.Cut(ref, "#")

	out, err := r.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return "", fmt.Errorf("erro no SecretsManager: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("segredo '%s' sem SecretString", secretID)
	}

	val := *out.SecretString
	if !hasField {
		return val, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return "", fmt.Errorf("segredo '%s' não é um objeto JSON: %w", secretID, err)
	}
	v, ok := data[field]
	if !ok {
		return "", fmt.Errorf("campo '%s' ausente no segredo '%s'", field, secretID)
	}
	return fmt.Sprintf("%v", v), nil
}
