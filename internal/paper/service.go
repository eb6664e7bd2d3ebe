// Package paper turns raw OCR text into a structured exam paper by prompting
// a chat-completion model and parsing its JSON reply.
package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"examai/internal/logger"
	"examai/pkg/models"
)

// Service defines the paper-generation gateway.
type Service interface {
	// Generate produces a structured exam paper from extracted document text.
	Generate(ctx context.Context, extractedText string) (*models.ExamPaper, error)
}

// GenerationConfig configures the OpenAI-backed generation service.
type GenerationConfig struct {
	Model       string        // chat model name
	Temperature float32       // sampling temperature
	MaxTokens   int           // reply token budget
	Timeout     time.Duration // upper bound on the provider round trip
}

// DefaultGenerationConfig returns the configuration observed to work well
// for exam-length documents.
func DefaultGenerationConfig(model string, temperature float32) GenerationConfig {
	return GenerationConfig{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
	}
}

// OpenAIService implements Service using a chat-completion client.
type OpenAIService struct {
	client *openai.Client
	config GenerationConfig
	log    zerolog.Logger
}

// NewOpenAIService creates a generation service with an API key.
func NewOpenAIService(apiKey string, config GenerationConfig) *OpenAIService {
	return NewOpenAIServiceWithClient(openai.NewClient(apiKey), config)
}

// NewOpenAIServiceWithClient creates a generation service with an explicit
// client (for testing).
func NewOpenAIServiceWithClient(client *openai.Client, config GenerationConfig) *OpenAIService {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	return &OpenAIService{
		client: client,
		config: config,
		log:    logger.WithComponent("paper-generation"),
	}
}

// Generate produces a structured exam paper from extracted document text.
func (s *OpenAIService) Generate(ctx context.Context, extractedText string) (*models.ExamPaper, error) {
	const op = "Generate"

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	s.log.Debug().
		Int("text_length", len(extractedText)).
		Str("model", s.config.Model).
		Msg("Sending generation request")

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(extractedText),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no response choices", op, ErrUpstream)
	}

	content := resp.Choices[0].Message.Content
	examPaper, err := ParseExamPaper(content)
	if err != nil {
		s.log.Warn().
			Err(err).
			Str("response", content).
			Msg("Model reply did not parse as an exam paper")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("subject", examPaper.InfrontPage.Subject).
		Int("total_marks", examPaper.InfrontPage.TotalMarks).
		Int("sections", len(examPaper.QuestionsData.Sections)).
		Msg("Exam paper generated")

	return examPaper, nil
}

// ParseExamPaper strips any surrounding code-fence markup from a model reply
// and parses the remainder as an exam-paper document. Each section's
// declared child count must match its question map.
func ParseExamPaper(reply string) (*models.ExamPaper, error) {
	cleaned := StripCodeFence(reply)

	var examPaper models.ExamPaper
	if err := json.Unmarshal([]byte(cleaned), &examPaper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeneration, err)
	}
	if len(examPaper.QuestionsData.Sections) == 0 {
		return nil, fmt.Errorf("%w: no question sections", ErrInvalidGeneration)
	}
	for _, key := range examPaper.QuestionsData.SectionKeys() {
		section := examPaper.QuestionsData.Sections[key]
		if section.Child != len(section.Questions) {
			return nil, fmt.Errorf("%w: %s declares %d questions but contains %d",
				ErrInvalidGeneration, key, section.Child, len(section.Questions))
		}
	}
	return &examPaper, nil
}

// StripCodeFence removes markdown-style ``` or ```json fences around a reply.
func StripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}

func buildPrompt(extractedText string) string {
	return fmt.Sprintf(`Create a university/school-like exam/test question paper for 50 marks using the provided information to help me master these topics:

---
Provided Information:
%s
---

Please structure the paper clearly with different question types (e.g., multiple choice, short answer, essay).
Include a clear marking scheme.`, extractedText)
}

const systemPrompt = `You are an industry and academic specialist lecturer with 20 years of experience in teaching students aged 8 to 30.

When generating an exam paper, structure your response exactly in this JSON format:

` + "```json" + `
{
  "infront_page": {
    "title": "University of Alathur",
    "subject": "Subject Name",
    "total_marks": 50,
    "exam_time": "02:00",
    "description": "Please answer ALL THREE Questions.",
    "secondary_description": "Use a SEPARATE answerbook for each SECTION."
  },
  "questions_data": {
    "num_of_section": 2,
    "section_a": {
      "title": "Section A",
      "child": 3,
      "questions": {
        "1": "Define AI and explain its importance.",
        "2": "What are the types of machine learning?",
        "3": "List any two applications of AI."
      }
    },
    "section_b": {
      "title": "Section B",
      "child": 2,
      "questions": {
        "1": "Explain supervised vs unsupervised learning with examples.",
        "2": "Design a flowchart for a recommendation system."
      }
    }
  }
}
` + "```" + `
Return only valid JSON, enclosed in triple backticks with ` + "```json" + `.`
