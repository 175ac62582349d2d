package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SQSClient define a interface necessária para o controle remoto (permite Mocking)
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Command é o corpo esperado das mensagens, ex: {"action":"play","journey":"j1"}.
type Command struct {
	Action  string `json:"action"`
	Journey string `json:"journey"`
	Backend string `json:"backend,omitempty"`
}

// SQSController troca a jornada ativa a partir de mensagens de uma fila.
type SQSController struct {
	client     SQSClient
	queueUrl   string
	ctrl       Controller
	readOnly   bool
	retryDelay time.Duration
	logger     zerolog.Logger
}

func NewSQSController(client SQSClient, queueUrl string, ctrl Controller, readOnly bool) *SQSController {
	return &SQSController{
		client:     client,
		queueUrl:   queueUrl,
		ctrl:       ctrl,
		readOnly:   readOnly,
		retryDelay: 5 * time.Second,
		logger:     log.With().Str("component", "sqs_control").Logger(),
	}
}

// Start inicia o monitoramento (bloqueante). Retorna nil quando o contexto acaba.
func (s *SQSController) Start(ctx context.Context) error {
	if s.queueUrl == "" {
		s.logger.Warn().Msg("URL da fila SQS não configurada. Controle remoto desativado.")
		return nil
	}

	s.logger.Info().Str("queue", s.queueUrl).Msg("📡 Monitorando fila SQS de controle")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Parando monitoramento SQS")
			return nil
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(s.queueUrl),
			MaxNumberOfMessages: 1,
			WaitTimeSeconds:     20, // Long polling
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Dur("retry_in", s.retryDelay).Msg("Erro no SQS. Retentando...")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}

		for _, msg := range out.Messages {
			if err := s.Handle(ctx, aws.ToString(msg.Body)); err != nil {
				s.logger.Error().Err(err).Msg("❌ Comando remoto falhou")
			}

			// Mensagens inválidas também saem da fila
			_, _ = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(s.queueUrl),
				ReceiptHandle: msg.ReceiptHandle,
			})
		}
	}
}

// Handle interpreta e executa um comando.
func (s *SQSController) Handle(ctx context.Context, body string) error {
	var cmd Command
	if err := json.Unmarshal([]byte(body), &cmd); err != nil {
		return fmt.Errorf("mensagem inválida: %w", err)
	}

	ctx = s.logger.WithContext(ctx)
	switch cmd.Action {
	case "record":
		if s.readOnly {
			return fmt.Errorf("gravação desabilitada (read_only)")
		}
		if _, err := s.ctrl.StartRecording(ctx, cmd.Journey, cmd.Backend); err != nil {
			return err
		}
	case "play":
		if _, err := s.ctrl.StartPlaying(ctx, cmd.Journey); err != nil {
			return err
		}
	default:
		return fmt.Errorf("ação desconhecida: %q", cmd.Action)
	}

	s.logger.Info().Str("action", cmd.Action).Str("journey", cmd.Journey).Msg("✅ Comando remoto aplicado")
	return nil
}
