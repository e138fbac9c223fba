// Package openai implements extract.Extractor against any
// OpenAI-compatible multimodal chat endpoint. The default configuration
// targets Gemini through its compatibility layer, which is what the
// production deployment uses for receipt OCR.
package openai
