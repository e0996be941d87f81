package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const extractModel = "gemini-2.0-flash"

const maxExtractChars = 8000

const priceSystemPrompt = `You are a price extraction assistant. Given text from a local service provider's website or email reply, extract the price for the specified service.

Rules:
- Return ONLY a JSON object: {"price": <number or null>, "currency": "<3-letter code or null>"}
- Match SEMANTICALLY, not just literally. "chain replacement" matches "chain fitting", "oil change" matches "oil & filter change", "screen repair" matches "display fix".
- If multiple prices match, return the most specific one for the service. For ranges, return the lowest/base price.
- If you truly cannot find any price related to the requested service, return {"price": null, "currency": null}.
- Do NOT guess or estimate. Only extract prices explicitly stated in the text.`

const condensePrompt = `You are a service-type naming assistant. Given a user's free-text search query, extract a short, canonical service-type name (2-6 words). Remove filler words like "I need", "looking for", "can someone". Keep specific product/model identifiers.

Examples:
  "I need a new screen for my iphone 16 pro max" -> "Screen Repair iPhone 16 Pro Max"
  "looking for someone to change oil in my car" -> "Car Oil Change"
  "can someone fix my leaky kitchen faucet" -> "Kitchen Faucet Repair"

Reply with ONLY the service-type name, nothing else.`

const draftPrompt = `You are writing a brief, professional email on behalf of a potential customer to a local service provider. The email should:
1. Be polite and concise (3-5 sentences)
2. Mention the specific service the customer needs
3. Ask for their pricing / a quote and ask them to reply to this email with their rates
4. Sign off with ONLY the first name provided — no contact information whatsoever

Do NOT include a subject line. Do NOT use placeholder brackets like [Name].`

// PriceHit is a confident extraction result.
type PriceHit struct {
	Price    float64
	Currency string
}

// Extractor wraps the Gemini generative model for the structured text
// understanding the discovery cascade and the inquiry lifecycle need.
type Extractor struct {
	client *genai.Client
}

func NewExtractor(ctx context.Context, apiKey string) (*Extractor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Extractor{client: client}, nil
}

func (x *Extractor) Close() error {
	return x.client.Close()
}

func (x *Extractor) jsonModel(system string) *genai.GenerativeModel {
	m := x.client.GenerativeModel(extractModel)
	m.SetTemperature(0)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	return m
}

// ExtractPrice asks the model for a price matching the service description.
// Returns (nil, nil) when no confident match is found; the caller treats
// errors as not-found, never as fatal.
func (x *Extractor) ExtractPrice(ctx context.Context, text, serviceDesc string) (*PriceHit, error) {
	if len(text) > maxExtractChars {
		text = text[:maxExtractChars]
	}
	prompt := fmt.Sprintf("Service: %s\n\nText:\n%s", serviceDesc, text)

	resp, err := x.jsonModel(priceSystemPrompt).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Price    *float64 `json:"price"`
		Currency *string  `json:"currency"`
	}
	if err := json.Unmarshal([]byte(firstText(resp)), &parsed); err != nil {
		slog.DebugContext(ctx, "unparseable extraction response", "error", err)
		return nil, nil
	}
	if parsed.Price == nil || *parsed.Price <= 0 {
		return nil, nil
	}

	currency := "INR"
	if parsed.Currency != nil && *parsed.Currency != "" {
		currency = strings.ToUpper(*parsed.Currency)
	}
	return &PriceHit{Price: *parsed.Price, Currency: currency}, nil
}

// CondenseQuery turns a verbose user query into a short service-type name.
// Falls back to the title-cased query on any failure.
func (x *Extractor) CondenseQuery(ctx context.Context, query string) string {
	m := x.client.GenerativeModel(extractModel)
	m.SetTemperature(0)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(condensePrompt)}}

	resp, err := m.GenerateContent(ctx, genai.Text(query))
	if err != nil {
		slog.WarnContext(ctx, "query condensation failed, using raw query", "error", err)
		return titleCase(query)
	}
	name := strings.Trim(strings.TrimSpace(firstText(resp)), `"`)
	if name == "" {
		return titleCase(query)
	}
	slog.InfoContext(ctx, "condensed query", "query", query, "name", name)
	return name
}

// DraftInquiry writes the inquiry email body. Falls back to a fixed
// template when the model is unavailable.
func (x *Extractor) DraftInquiry(ctx context.Context, providerName, serviceName, senderName string) string {
	context := fmt.Sprintf("Provider: %s\nService needed: %s\nCustomer first name: %s",
		providerName, serviceName, senderName)

	m := x.client.GenerativeModel(extractModel)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(draftPrompt)}}

	resp, err := m.GenerateContent(ctx, genai.Text(context))
	if err != nil {
		slog.WarnContext(ctx, "inquiry drafting failed, using template", "error", err)
		return TemplateInquiryBody(providerName, serviceName, senderName)
	}
	body := strings.TrimSpace(firstText(resp))
	if body == "" {
		return TemplateInquiryBody(providerName, serviceName, senderName)
	}
	return body
}

// TemplateInquiryBody is the non-LLM fallback inquiry text.
func TemplateInquiryBody(providerName, serviceName, senderName string) string {
	return fmt.Sprintf(
		"Dear %s,\n\nI am looking for %s and came across your business. "+
			"Could you please let me know your pricing for this service?\n\n"+
			"I would appreciate it if you could reply to this email with your rates.\n\n"+
			"Thank you for your time.\n\nBest regards,\n%s",
		providerName, serviceName, senderName)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func titleCase(q string) string {
	words := strings.Fields(strings.TrimSpace(q))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
