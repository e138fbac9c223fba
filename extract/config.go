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


package extract

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for extraction service providers.
type Config struct {
	// Host is the base URL of the OpenAI-compatible analysis endpoint.
	// Defaults to Gemini's compatibility endpoint; any service speaking
	// the same protocol (Ollama, vLLM, OpenAI itself) works.
	Host string

	// Model is the multimodal model identifier.
	Model string

	// APIKey authenticates against the service. Local services that skip
	// authentication accept any non-empty value.
	APIKey string

	// AttemptTimeout bounds each individual analysis call.
	AttemptTimeout time.Duration

	// MaxAttempts is the retry budget applied by the Client wrapper.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the analysis endpoint base URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the multimodal model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the service credential.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTimeout bounds each individual analysis call.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.AttemptTimeout = d
	}
}

// WithMaxAttempts sets the retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// DefaultConfig returns a Config targeting Gemini through its
// OpenAI-compatible endpoint.
func DefaultConfig() *Config {
	return &Config{
		Host:           "https://generativelanguage.googleapis.com/v1beta/openai/",
		Model:          "gemini-2.5-flash",
		AttemptTimeout: DefaultAttemptTimeout,
		MaxAttempts:    3,
		BaseDelay:      time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the
// provided options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
func (c *Config) Normalize() {
	c.Host = strings.TrimSpace(c.Host)
	c.Model = strings.TrimSpace(c.Model)
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("extract config: Host is required")
	}
	if c.Model == "" {
		return errors.New("extract config: Model is required")
	}
	if c.APIKey == "" {
		return errors.New("extract config: APIKey is required")
	}
	return nil
}

// Backoff derives the Client retry policy from the config.
func (c *Config) Backoff() Backoff {
	b := DefaultBackoff()
	b.MaxAttempts = c.MaxAttempts
	b.BaseDelay = c.BaseDelay
	return b
}
