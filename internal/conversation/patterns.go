package conversation

import (
	"regexp"
	"strconv"
	"strings"
)

// patternRule is one regex rule in the ordered fast-path list. Confidence is
// fixed per rule family; the first matching rule wins.
type patternRule struct {
	intent     Intent
	confidence float64
	re         *regexp.Regexp
	extract    func(message string, matches []string, entities *Entities)
}

// defaultSkipWords are single tokens that are never treated as a bare product
// search. The list is deliberately partial; deployments extend it via
// WithSkipWords.
var defaultSkipWords = []string{
	"yes", "no", "ok", "okay", "yeah", "yep", "nope", "sure",
	"thanks", "thank", "thx", "please", "help", "hmm", "maybe",
	"what", "why", "how", "when", "where", "who", "which",
	"cool", "nice", "great", "good", "bad", "wow",
	"stop", "start", "test", "testing", "bye", "goodbye",
}

// categoryVocabulary are product-category tokens recognized by the
// category-token rule.
var categoryVocabulary = []string{
	"shoes", "sneakers", "boots", "sandals", "heels",
	"shirt", "shirts", "tshirt", "t-shirt", "tee", "blouse", "top", "tops",
	"dress", "dresses", "skirt", "skirts", "pants", "jeans", "shorts", "leggings",
	"jacket", "jackets", "coat", "coats", "hoodie", "hoodies", "sweater", "sweaters",
	"hat", "hats", "cap", "beanie", "scarf", "gloves", "socks", "belt",
	"bag", "bags", "backpack", "wallet", "purse",
	"watch", "watches", "sunglasses", "jewelry", "necklace", "earrings", "ring",
}

// PatternMatcher is the synchronous fast path of the classifier. It never
// suspends and never errors; absence of a match returns nil.
type PatternMatcher struct {
	rules      []patternRule
	skipWords  map[string]struct{}
	categories map[string]struct{}
}

// PatternOption configures the matcher.
type PatternOption func(*PatternMatcher)

// WithSkipWords replaces the default bare-token skip list.
func WithSkipWords(words ...string) PatternOption {
	return func(m *PatternMatcher) {
		m.skipWords = make(map[string]struct{}, len(words))
		for _, w := range words {
			m.skipWords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithExtraCategories extends the category vocabulary for merchants with
// unusual catalogs.
func WithExtraCategories(categories ...string) PatternOption {
	return func(m *PatternMatcher) {
		for _, c := range categories {
			m.categories[strings.ToLower(c)] = struct{}{}
		}
	}
}

var (
	reGreeting = regexp.MustCompile(`(?i)^\s*(hi|hiya|hello|hey|howdy|yo|sup|good\s+(morning|afternoon|evening))[\s!.,]*$`)

	// Cart rules: add and remove MUST be evaluated before view so phrases
	// like "add this to cart" never route as a cart view.
	reCartAdd    = regexp.MustCompile(`(?i)\b(?:add|put|throw|stick)\s+(.+?)\s+(?:in|into|to)\s+(?:my\s+|the\s+)?(?:cart|basket|bag)\b`)
	reCartRemove = regexp.MustCompile(`(?i)\b(?:remove|take|delete|drop)\s+(.+?)\s+(?:from|out\s+of)\s+(?:my\s+|the\s+)?(?:cart|basket|bag)\b`)
	reCartClear  = regexp.MustCompile(`(?i)\b(?:clear|empty|reset|wipe)\b.{0,20}\b(?:cart|basket|bag)\b`)
	reCartView   = regexp.MustCompile(`(?i)(?:\b(?:what'?s\s+in|show|view|see|check|open)\b.{0,20}\b(?:cart|basket|bag)\b)|(?:^\s*(?:my\s+)?cart\s*\??\s*$)`)

	reCheckout = regexp.MustCompile(`(?i)\b(?:check\s?out|buy\s+now|purchase|pay\s+now|place\s+(?:my\s+|the\s+)?order|complete\s+(?:my\s+)?(?:order|purchase)|ready\s+to\s+(?:buy|pay))\b`)

	reOrderTracking = regexp.MustCompile(`(?i)(?:\b(?:track|tracking|where(?:'s|\s+is)|status\s+of)\b.{0,30}\b(?:order|package|delivery|shipment)\b)|(?:\border\b.{0,10}#?\s*(\d{3,}))`)
	reOrderNumber   = regexp.MustCompile(`#?\s*(\d{3,})`)

	reHandoff = regexp.MustCompile(`(?i)\b(?:(?:talk|speak|chat)\s+(?:to|with)\s+(?:a\s+|an\s+)?(?:human|person|agent|representative|rep|someone)|real\s+person|live\s+agent|human\s+(?:please|support|help)|customer\s+service)\b`)

	rePriceBound = regexp.MustCompile(`(?i)^(.*?)\s*(?:under|below|less\s+than|at\s+most|max(?:imum)?\s+of|cheaper\s+than)\s*\$?\s*(\d+(?:\.\d{1,2})?)\s*(?:dollars|bucks|usd)?\s*\??$`)

	reSuperlative = regexp.MustCompile(`(?i)\b(cheapest|least\s+expensive|most\s+expensive|priciest)\b\s*(.*)$`)

	reRecommendation = regexp.MustCompile(`(?i)\b(?:recommend|suggest|what\s+should\s+i\s+(?:get|buy|wear))\b\s*(.*)$`)

	reGenericSearch = regexp.MustCompile(`(?i)\b(?:show\s+me|looking\s+for|do\s+you\s+have|i\s+(?:need|want)|find\s+me|search\s+for|shopping\s+for|browse)\b\s*(.*)$`)

	reForget = regexp.MustCompile(`(?i)(?:\b(?:forget|delete|clear|erase|reset)\b.{0,30}\b(?:preferences|my\s+data|my\s+info(?:rmation)?|about\s+me|history)\b)|(?:\bforget\s+me\b)`)

	reSingleWord = regexp.MustCompile(`^\s*([a-zA-Z][a-zA-Z'-]*)\s*\??\s*$`)
)

// NewPatternMatcher builds the ordered rule list.
func NewPatternMatcher(opts ...PatternOption) *PatternMatcher {
	m := &PatternMatcher{
		skipWords:  make(map[string]struct{}, len(defaultSkipWords)),
		categories: make(map[string]struct{}, len(categoryVocabulary)),
	}
	for _, w := range defaultSkipWords {
		m.skipWords[w] = struct{}{}
	}
	for _, c := range categoryVocabulary {
		m.categories[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}

	m.rules = []patternRule{
		{intent: IntentGreeting, confidence: 0.95, re: reGreeting},
		{intent: IntentCartAdd, confidence: 0.95, re: reCartAdd, extract: func(message string, matches []string, e *Entities) {
			e.ProductRef = cleanProductRef(matches[1])
		}},
		{intent: IntentCartRemove, confidence: 0.95, re: reCartRemove, extract: func(message string, matches []string, e *Entities) {
			e.ProductRef = cleanProductRef(matches[1])
		}},
		{intent: IntentCartClear, confidence: 0.95, re: reCartClear},
		{intent: IntentCartView, confidence: 0.90, re: reCartView},
		{intent: IntentCheckout, confidence: 0.95, re: reCheckout},
		{intent: IntentOrderTracking, confidence: 0.92, re: reOrderTracking, extract: func(message string, matches []string, e *Entities) {
			if m := reOrderNumber.FindStringSubmatch(message); m != nil {
				e.OrderNumber = m[1]
			}
		}},
		{intent: IntentHumanHandoff, confidence: 0.95, re: reHandoff},
		{intent: IntentProductSearch, confidence: 0.95, re: rePriceBound, extract: func(message string, matches []string, e *Entities) {
			e.Keywords = stripSearchPrefix(matches[1])
			if budget, err := strconv.ParseFloat(matches[2], 64); err == nil {
				e.Budget = budget
			}
		}},
		{intent: IntentProductSearch, confidence: 0.90, re: reSuperlative, extract: func(message string, matches []string, e *Entities) {
			if strings.HasPrefix(strings.ToLower(matches[1]), "cheapest") || strings.Contains(strings.ToLower(matches[1]), "least") {
				e.SortBy = "price_asc"
			} else {
				e.SortBy = "price_desc"
			}
			e.Keywords = strings.TrimSpace(matches[2])
		}},
		{intent: IntentProductSearch, confidence: 0.85, re: reRecommendation, extract: func(message string, matches []string, e *Entities) {
			e.Keywords = strings.TrimSpace(matches[1])
		}},
		{intent: IntentProductSearch, confidence: 0.88, re: reGenericSearch, extract: func(message string, matches []string, e *Entities) {
			e.Keywords = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(matches[1]), "?"))
		}},
		{intent: IntentForgetPreferences, confidence: 0.95, re: reForget},
	}

	return m
}

// Classify runs the ordered rule list and returns the first match, or nil to
// signal escalation to the LLM classifier. Pure function: no side effects,
// no error path.
func (m *PatternMatcher) Classify(message string) *ClassificationResult {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	for _, rule := range m.rules {
		matches := rule.re.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}
		result := &ClassificationResult{
			Intent:     rule.intent,
			Confidence: rule.confidence,
			RawMessage: message,
			Provider:   "pattern",
		}
		if rule.extract != nil {
			rule.extract(trimmed, matches, &result.Entities)
		}
		m.fillCategory(&result.Entities)
		return result
	}

	// Category-token and bare single-token searches run after the regex
	// rules so multi-intent phrasings are not shadowed.
	if result := m.classifyTokens(trimmed, message); result != nil {
		return result
	}

	return nil
}

// classifyTokens handles short category phrases ("blue running shoes") and
// bare single tokens ("shoes"). Single tokens on the skip list are not
// product searches.
func (m *PatternMatcher) classifyTokens(trimmed, original string) *ClassificationResult {
	if matches := reSingleWord.FindStringSubmatch(trimmed); matches != nil {
		token := strings.ToLower(matches[1])
		if _, skip := m.skipWords[token]; skip {
			return nil
		}
		result := &ClassificationResult{
			Intent:     IntentProductSearch,
			Confidence: 0.80,
			RawMessage: original,
			Provider:   "pattern",
			Entities:   Entities{Keywords: token},
		}
		m.fillCategory(&result.Entities)
		return result
	}

	words := strings.Fields(trimmed)
	if len(words) > 4 {
		return nil
	}
	for _, word := range words {
		token := strings.ToLower(strings.Trim(word, "?!.,"))
		if _, ok := m.categories[token]; ok {
			result := &ClassificationResult{
				Intent:     IntentProductSearch,
				Confidence: 0.85,
				RawMessage: original,
				Provider:   "pattern",
				Entities:   Entities{Keywords: trimmed, Category: token},
			}
			return result
		}
	}
	return nil
}

// fillCategory promotes a recognized category token found in the keywords.
func (m *PatternMatcher) fillCategory(e *Entities) {
	if e.Category != "" || e.Keywords == "" {
		return
	}
	for _, word := range strings.Fields(e.Keywords) {
		token := strings.ToLower(strings.Trim(word, "?!.,"))
		if _, ok := m.categories[token]; ok {
			e.Category = token
			return
		}
	}
}

// stripSearchPrefix removes leading search phrasing ("show me", "i want")
// from extracted keywords.
func stripSearchPrefix(raw string) string {
	keywords := strings.TrimSpace(raw)
	if loc := reGenericSearch.FindStringSubmatchIndex(keywords); loc != nil && loc[0] == 0 {
		keywords = strings.TrimSpace(keywords[loc[2]:])
	}
	return keywords
}

// cleanProductRef strips demonstratives so "this", "that one", "it" collapse
// to an empty ref, which handlers treat as "use the last shown product".
func cleanProductRef(raw string) string {
	ref := strings.TrimSpace(raw)
	lower := strings.ToLower(ref)
	for _, demonstrative := range []string{"this one", "that one", "this", "that", "it", "them", "these", "those"} {
		if lower == demonstrative {
			return ""
		}
	}
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lower, article) {
			ref = ref[len(article):]
			break
		}
	}
	return strings.TrimSpace(ref)
}
