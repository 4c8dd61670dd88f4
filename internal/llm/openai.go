package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Epistemic-Technology/rental-check/internal/apperr"
	"github.com/Epistemic-Technology/rental-check/internal/logger"
	"github.com/Epistemic-Technology/rental-check/internal/schema"
	"github.com/Epistemic-Technology/rental-check/models"
)

const DefaultModel = "gpt-4o-2024-08-06"

// Config configures a Client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds a call whose context has no deadline. Zero disables it.
	Timeout time.Duration
	// TokensPerMinute paces requests. Zero disables pacing.
	TokensPerMinute int
}

// Client issues schema-constrained requests to the OpenAI Responses API.
// Each Invoke sends exactly one request; the SDK's automatic retries are off.
type Client struct {
	client   openai.Client
	model    string
	timeout  time.Duration
	throttle *Throttle
	log      logger.Logger
}

// NewClient returns a ConfigurationError when no API key is configured, so
// a missing credential never reaches the network.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.Configuration("OPENAI_API_KEY environment variable is not set")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:   openai.NewClient(opts...),
		model:    model,
		timeout:  cfg.Timeout,
		throttle: NewThrottle(cfg.TokensPerMinute),
		log:      log,
	}, nil
}

// Model returns the model name sent with every request.
func (c *Client) Model() string {
	return c.model
}

// Invoke sends the prompts with s as the required output format and decodes
// the response into out. Provider and transport failures are UpstreamErrors;
// output that is empty, not JSON, off-schema or fails out's own Validate
// method is a ValidationError. Nothing is returned on failure.
func (c *Client) Invoke(ctx context.Context, systemPrompt, userPrompt string, s *schema.Schema, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	estimated := EstimateTokens(systemPrompt, userPrompt) + maxOutputTokens
	if err := c.throttle.Wait(ctx, estimated); err != nil {
		return err
	}

	format := responses.ResponseFormatTextConfigParamOfJSONSchema(s.Name, s.Document)
	format.OfJSONSchema.Strict = openai.Bool(true)

	c.log.Debug("Calling OpenAI API (model %s, ~%d tokens, schema %s)", c.model, estimated, s.Name)
	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				message(systemPrompt, "system"),
				message(userPrompt, "user"),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	})
	if err != nil {
		c.log.Error("OpenAI call failed: %v", err)
		return apperr.Upstream(c.model, describe(err))
	}

	c.log.Info("OpenAI call completed (status %s, %d input / %d output tokens)",
		response.Status, response.Usage.InputTokens, response.Usage.OutputTokens)

	outputText := response.OutputText()
	if strings.TrimSpace(outputText) == "" {
		return apperr.Validation(fmt.Sprintf("model returned no output (status %s)", response.Status), nil)
	}
	if err := s.Validate([]byte(outputText)); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(outputText), out); err != nil {
		return apperr.Validation("failed to decode response", err)
	}
	if v, ok := out.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExtractAnswers invokes the model with the answer schema.
func (c *Client) ExtractAnswers(ctx context.Context, systemPrompt, userPrompt string) (models.Answers, error) {
	var answers models.Answers
	if err := c.Invoke(ctx, systemPrompt, userPrompt, schema.AnswersSchema, &answers); err != nil {
		return models.Answers{}, err
	}
	return answers, nil
}

func message(text string, role responses.EasyInputMessageRole) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemParamOfMessage(
		responses.ResponseInputMessageContentListParam{
			responses.ResponseInputContentParamOfInputText(text),
		},
		role,
	)
}

// describe keeps the provider's status code and message in front of the
// wrapped cause.
func describe(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.StatusCode, err)
	}
	return err
}
