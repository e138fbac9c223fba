// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/expensit/extract"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Extractor implements extract.Extractor using an OpenAI-compatible
// multimodal chat API. One Extract call makes exactly one service
// request; wrap it in an extract.Client for retry.
type Extractor struct {
	client llms.Model
	logger *slog.Logger
}

var _ extract.Extractor = (*Extractor)(nil)

// NewExtractor creates a receipt extractor from the provided
// configuration.
func NewExtractor(config *extract.Config) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		client: client,
		logger: slog.Default().With("component", "openai-extractor"),
	}, nil
}

// Extract sends the receipt image with the instruction prompt and
// validates the model's JSON answer.
func (e *Extractor) Extract(ctx context.Context, image []byte, contentType string) (*extract.Result, error) {
	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(contentType, image),
				llms.TextPart(receiptPrompt),
			},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		e.logger.Error("extraction request failed", "err", err)
		return nil, classifyCallError(err)
	}

	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: no choices returned", extract.ErrMalformedResponse)
	}

	result, err := parseResponse(response.Choices[0].Content)
	if err != nil {
		e.logger.Warn("error parsing extraction response",
			"response", response.Choices[0].Content,
			"err", err)
		return nil, err
	}

	e.logger.Debug("extracted receipt fields",
		"date", result.Date,
		"vendor", result.Vendor,
		"hasAmount", result.HasAmount,
		"confidence", result.Confidence)
	return result, nil
}
