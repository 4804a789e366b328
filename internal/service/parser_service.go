package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"kaikei/internal/models"

	"go.uber.org/zap"
)

// Retriever supplies similar historical receipt texts for prompt context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// labelPatterns groups the bilingual (English/Japanese) label matching used
// by the deterministic fallback. Target receipts are Japanese convenience
// store slips as often as English ones, so both label sets are first-class.
// Additional locales extend this table rather than the extraction code.
type labelPatterns struct {
	vendor        *regexp.Regexp
	date          *regexp.Regexp
	total         *regexp.Regexp
	lineItem      *regexp.Regexp
	phone         *regexp.Regexp
	payment       *regexp.Regexp
	receiptNumber *regexp.Regexp
}

func defaultLabelPatterns() labelPatterns {
	return labelPatterns{
		vendor: regexp.MustCompile(`(?i)LAWSON|ローソン`),
		date:   regexp.MustCompile(`(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
		// 合計 is the Japanese "total" label
		total:         regexp.MustCompile(`合計\s*¥?(\d+)`),
		lineItem:      regexp.MustCompile(`^(.*?)\s+(\d+(?:\.\d+)?)\s*¥?(-?\d+(?:\.\d+)?)-?`),
		phone:         regexp.MustCompile(`\b\d{2,4}-\d{1,4}-\d{3,4}\b`),
		payment:       regexp.MustCompile(`(?i)VISA|MasterCard|American Express|AMEX|Credit Card`),
		receiptNumber: regexp.MustCompile(`(?i)(?:Receipt|レシート)\s*#?\s*([A-Za-z0-9\-]+)`),
	}
}

// ParserService is the field-extraction stage: cleaned OCR text in, draft
// transaction out. The primary path is an LLM call enriched with retrieved
// similar receipts; a deterministic regex extractor backs it up, and also
// fills any contact/payment fields the model left blank.
type ParserService struct {
	generator TextGenerator
	retriever Retriever
	patterns  labelPatterns
	topK      int
	logger    *zap.Logger
}

func NewParserService(generator TextGenerator, retriever Retriever, topK int, logger *zap.Logger) *ParserService {
	return &ParserService{
		generator: generator,
		retriever: retriever,
		patterns:  defaultLabelPatterns(),
		topK:      topK,
		logger:    logger,
	}
}

// llmDraft is the strict JSON schema requested from the model.
type llmDraft struct {
	Vendor        string            `json:"vendor"`
	ShopName      string            `json:"shop_name"`
	Date          string            `json:"date"`
	Items         []models.LineItem `json:"items"`
	Subtotal      float64           `json:"subtotal"`
	Tax           float64           `json:"tax"`
	TaxPercentage int               `json:"tax_percentage"`
	Total         float64           `json:"total"`
	Currency      string            `json:"currency"`
	Address       string            `json:"address"`
	PhoneNumber   string            `json:"phone_number"`
	PaymentMethod string            `json:"payment_method"`
	ReceiptNumber string            `json:"receipt_number"`
}

// Parse converts a raw extraction into a draft transaction. It never fails:
// when the LLM path breaks down the deterministic extractor takes over.
func (s *ParserService) Parse(ctx context.Context, extraction *models.RawExtraction) *models.DraftTransaction {
	text := extraction.Text()

	draft, err := s.parseWithLLM(ctx, text)
	if err != nil {
		s.logger.Warn("LLM field extraction failed, using deterministic fallback", zap.Error(err))
		return s.deterministicParse(text)
	}
	return draft
}

func (s *ParserService) parseWithLLM(ctx context.Context, text string) (*models.DraftTransaction, error) {
	contextStr := s.retrievalContext(ctx, text)

	prompt := contextStr + "Parse the receipt text below into JSON with keys:\n" +
		"vendor (string), shop_name (string), date (YYYY-MM-DD), items (list of {description: string, quantity: number, unit_price: number}),\n" +
		"subtotal (number), tax (number), tax_percentage (integer), total (number), currency (string), address (string),\n" +
		"phone_number (string), payment_method (string), receipt_number (string).\n" +
		"Return only the JSON object without extra text.\n" +
		"Receipt Text:\n" + text

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed llmDraft
	if err := json.Unmarshal([]byte(extractJSONValue(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM reply as JSON: %w", err)
	}

	draft := &models.DraftTransaction{
		Vendor:        parsed.Vendor,
		ShopName:      parsed.ShopName,
		Date:          parsed.Date,
		Items:         parsed.Items,
		Subtotal:      parsed.Subtotal,
		Tax:           parsed.Tax,
		TaxPercentage: parsed.TaxPercentage,
		Total:         parsed.Total,
		Currency:      parsed.Currency,
		Address:       parsed.Address,
		PhoneNumber:   parsed.PhoneNumber,
		PaymentMethod: parsed.PaymentMethod,
		ReceiptNumber: parsed.ReceiptNumber,
	}

	// Fields the model omitted are filled from the deterministic pass,
	// never the reverse: LLM output wins on conflict.
	if draft.ShopName == "" {
		draft.ShopName = s.shopNameFallback(text)
	}
	if draft.PhoneNumber == "" {
		draft.PhoneNumber = firstMatch(s.patterns.phone, text)
	}
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = firstMatch(s.patterns.payment, text)
	}
	if draft.ReceiptNumber == "" {
		draft.ReceiptNumber = firstSubmatch(s.patterns.receiptNumber, text)
	}

	return draft, nil
}

func (s *ParserService) retrievalContext(ctx context.Context, text string) string {
	if s.retriever == nil {
		return ""
	}
	retrieved, err := s.retriever.Retrieve(ctx, text, s.topK)
	if err != nil {
		s.logger.Warn("retrieval failed, parsing without context", zap.Error(err))
		return ""
	}
	if len(retrieved) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString("Context from similar receipts:\n")
	for _, r := range retrieved {
		builder.WriteString("- " + r + "\n")
	}
	builder.WriteString("\n")
	return builder.String()
}

// deterministicParse extracts what it can with the bilingual pattern table.
// It computes the subtotal from parsed items and flags the draft for review
// when subtotal + tax does not reach the printed total.
func (s *ParserService) deterministicParse(text string) *models.DraftTransaction {
	lines := strings.Split(text, "\n")

	var items []models.LineItem
	for _, line := range lines {
		m := s.patterns.lineItem.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		qty, err1 := strconv.ParseFloat(m[2], 64)
		price, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		// A trailing dash marks a discount line on Japanese receipts
		if strings.HasSuffix(strings.TrimSpace(line), "-") {
			price = -math.Abs(price)
		}
		items = append(items, models.LineItem{
			Description: strings.TrimSpace(m[1]),
			Quantity:    qty,
			UnitPrice:   price,
		})
	}

	var subtotal float64
	for _, item := range items {
		subtotal += item.Quantity * item.UnitPrice
	}

	total := subtotal
	if m := s.patterns.total.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			total = v
		}
	}

	date := firstSubmatch(s.patterns.date, text)
	date = strings.ReplaceAll(date, "/", "-")

	tax := 0.0
	draft := &models.DraftTransaction{
		Vendor:        firstMatch(s.patterns.vendor, text),
		ShopName:      s.shopNameFallback(text),
		Date:          date,
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		TaxPercentage: 8,
		Total:         total,
		Currency:      "JPY",
		PhoneNumber:   firstMatch(s.patterns.phone, text),
		PaymentMethod: firstMatch(s.patterns.payment, text),
		ReceiptNumber: firstSubmatch(s.patterns.receiptNumber, text),
	}

	if math.Abs(subtotal+tax-total) > 1e-9 {
		draft.AddIssue(fmt.Sprintf("Computed subtotal %.2f plus tax %.2f does not match total %.2f", subtotal, tax, total))
	}

	return draft
}

// shopNameFallback picks the first non-empty line that is not the vendor
// banner itself.
func (s *ParserService) shopNameFallback(text string) string {
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i == 0 && s.patterns.vendor.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

func firstMatch(re *regexp.Regexp, text string) string {
	return re.FindString(text)
}

func firstSubmatch(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return ""
}
