package security

import "regexp"

// Detection category names. Precedence when multiple match is the order of
// the checks in Validate: instruction override, price manipulation, data
// exfiltration, business rule, rate limit.
const (
	CategoryPromptInjection   = "prompt_injection"
	CategoryPriceManipulation = "price_manipulation"
	CategoryDataExfiltration  = "data_exfiltration"
	CategoryBusinessRule      = "business_rule"
	CategoryRateLimit         = "rate_limit"
)

type pattern struct {
	name string
	re   *regexp.Regexp
}

var overridePatterns = []pattern{
	{"instruction_override", regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`)},
	{"instruction_override", regexp.MustCompile(`(?i)disregard\s+(your|the|all)\s+(instructions?|rules?|guidelines?|system\s+prompt)`)},
	{"instruction_override", regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(you|instructions?|rules?)`)},
	{"role_play", regexp.MustCompile(`(?i)(you\s+are\s+now|pretend\s+(you\s+are|to\s+be)|act\s+as)\s+(a|an|the)?\s*(admin|administrator|root|developer|dan|jailbreak|unrestricted)`)},
	{"system_prompt_probe", regexp.MustCompile(`(?i)(reveal|show|print|repeat)\s+(your|the)\s+(system\s+prompt|instructions|initial\s+prompt)`)},
	{"encoded_payload", regexp.MustCompile(`(?:[A-Za-z0-9+/]{40,}={0,2})`)},
	{"encoded_payload", regexp.MustCompile(`(?:%[0-9a-fA-F]{2}){8,}`)},
	{"encoded_payload", regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4}){4,}`)},
}

var sqlMetaPattern = pattern{
	"sql_meta", regexp.MustCompile(`(?i)('\s*;|--\s*$|;\s*--|\b(drop|truncate|delete)\s+(table|from|database)\b|\bunion\s+select\b|\bor\s+1\s*=\s*1\b)`),
}

var pricePatterns = []pattern{
	{"price_override", regexp.MustCompile(`(?i)(set|change|make|override|update)\s+(the\s+)?price\s+(to|=|at)`)},
	{"zero_price", regexp.MustCompile(`(?i)(for|price\s+of|costs?)\s+(\$|€|£)?\s*(0+(\.0+)?|zero)\s*(dollars|euros?|pounds)?\b`)},
	{"negative_price", regexp.MustCompile(`(?i)(\$|€|£)\s*-\s*\d|price\s+(to|of)\s+-\s*\d`)},
	{"free_shipping_override", regexp.MustCompile(`(?i)(make|set|give\s+me)\s+(the\s+)?shipping\s+(free|to\s+(\$|€|£)?\s*0)`)},
	{"suspicious_coupon", regexp.MustCompile(`(?i)(admin|test|debug|internal|staff)[-_]?(coupon|code|discount)`)},
}

var discountPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(off|discount)|discount\s+of\s+(\d{1,3})\s*%`)

var exfilPatterns = []pattern{
	{"bulk_customer_data", regexp.MustCompile(`(?i)(list|dump|export|give\s+me|show\s+me)\s+(all|every)\s+(customers?|users?|accounts?|orders?|emails?)`)},
	{"credential_request", regexp.MustCompile(`(?i)(password|credential|secret\s+key|api[-_\s]?key|access\s+token)s?\b.*\b(show|give|list|reveal|what)`)},
	{"credential_request", regexp.MustCompile(`(?i)(show|give|list|reveal|tell)\b.*\b(passwords?|credentials?|secret\s+keys?|api[-_\s]?keys?|tokens?)`)},
	{"database_dump", regexp.MustCompile(`(?i)(dump|export|copy)\s+(the\s+)?(database|db|schema|tables?)`)},
}

// Leak patterns are applied to outbound text as well, to catch secrets the
// model or a tool echoed back.
var leakPatterns = []pattern{
	{"card_number", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"api_key", regexp.MustCompile(`\b(sk|pk|rk)[-_](live|test)?[-_]?[A-Za-z0-9]{16,}\b`)},
	{"api_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"internal_marker", regexp.MustCompile(`\[(INTERNAL|DEBUG|SYSTEM)[^\]]*\]`)},
}

// outboundPrice matches a whole currency-prefixed amount; the filter decides
// per match whether the value is actually zero, so $0.99 survives intact.
var outboundPrice = regexp.MustCompile(`(\$|€|£)\s*(\d+(?:\.\d+)?)`)

var (
	scriptTags      = regexp.MustCompile(`(?is)<\s*/?\s*(script|iframe|object|embed)[^>]*>`)
	sqlMetaStripper = regexp.MustCompile(`(?i)('\s*;|;\s*--|--\s*$|\bunion\s+select\b)`)
	multiWhitespace = regexp.MustCompile(`\s+`)
)

// quantityPatterns extract requested unit counts for the business-rule check.
var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d[\d,]{0,8})\s*(?:units?|pcs|pieces|items?|boxes|cases)\b`),
	regexp.MustCompile(`(?i)\b(?:need|order|buy|want|purchase|get|quote\s+for)\s+(\d[\d,]{0,8})\b`),
	regexp.MustCompile(`(?i)\b(\d[\d,]{0,8})\s*x\s+\w`),
	regexp.MustCompile(`(?i)\b(\d[\d,]{0,8})\s+(?:[a-z]+\s+){0,2}(?:laptops?|phones?|monitors?|keyboards?|chairs?|desks?|printers?|tablets?|products?)\b`),
}
