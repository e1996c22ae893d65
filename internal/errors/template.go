package errors

// UserFacing is the safe rendering of an unrecovered error: natural language
// text plus suggested next actions, never technical detail.
type UserFacing struct {
	Text        string
	Suggestions []string
	Retryable   bool
}

type template struct {
	text        string
	suggestions []string
}

var categoryTemplates = map[Category]template{
	CategoryValidation: {
		text:        "I couldn't understand part of that request. Could you rephrase it?",
		suggestions: []string{"Rephrase your request", "Try a simpler search"},
	},
	CategoryAuthentication: {
		text:        "You need to sign in before I can do that.",
		suggestions: []string{"Sign in to your account", "Continue browsing as a guest"},
	},
	CategoryAuthorization: {
		text:        "That action isn't available on your account.",
		suggestions: []string{"Contact support", "Try a different action"},
	},
	CategoryNetwork: {
		text:        "I'm having trouble reaching the store right now.",
		suggestions: []string{"Try again in a moment"},
	},
	CategoryTimeout: {
		text:        "That took longer than expected, so I stopped waiting.",
		suggestions: []string{"Try again", "Try a narrower request"},
	},
	CategoryRateLimit: {
		text:        "You're sending messages a little too quickly. Give me a moment to catch up.",
		suggestions: []string{"Wait a few seconds and try again"},
	},
	CategoryIntegration: {
		text:        "The store system didn't respond properly. Your cart is unchanged.",
		suggestions: []string{"Try again shortly", "Check your cart"},
	},
	CategoryModel: {
		text:        "I had trouble putting together a response. Let's try that again.",
		suggestions: []string{"Repeat your request", "Try simpler wording"},
	},
	CategoryBusinessRule: {
		text:        "I can't do that with the current order settings.",
		suggestions: []string{"Adjust the quantity", "Review your cart"},
	},
	CategoryWorkflow: {
		text:        "Something went wrong while handling your request. Nothing was changed.",
		suggestions: []string{"Try the request again", "Contact support if it keeps happening"},
	},
	CategoryState: {
		text:        "Your session got into an unexpected spot. I've reset the last step.",
		suggestions: []string{"Repeat your last request"},
	},
	CategoryNotFound: {
		text:        "I couldn't find what you were looking for.",
		suggestions: []string{"Try different search terms", "Browse popular products"},
	},
	CategoryConflict: {
		text:        "Your cart changed while I was working on it. Please check it and try again.",
		suggestions: []string{"Review your cart", "Retry the action"},
	},
	CategoryDataIntegrity: {
		text:        "I found an inconsistency and stopped to keep your order safe.",
		suggestions: []string{"Contact support", "Start a new session"},
	},
}

// codeOverrides take precedence over the category template for exact codes.
var codeOverrides = map[string]template{
	"QUANTITY_LIMIT_EXCEEDED": {
		text:        "That quantity is above the limit for your account type.",
		suggestions: []string{"Lower the quantity", "Switch to a business account for bulk orders"},
	},
	"CART_EMPTY": {
		text:        "Your cart is empty, so there's nothing to check out yet.",
		suggestions: []string{"Search for products", "Add an item to your cart"},
	},
	"THREAT_BLOCKED": {
		text:        "I can't help with that request.",
		suggestions: []string{"Ask about our products", "Search the catalog"},
	},
}

const maxSuggestions = 3

// ToUserFacing renders err for end users. Technical detail is appended only
// when includeTechnical is set and the severity warrants it; it never leaks
// into Text.
func ToUserFacing(err error, willRetry bool, includeTechnical bool) UserFacing {
	e := From(err)
	if e == nil {
		return UserFacing{Text: "Done."}
	}

	tpl, ok := codeOverrides[e.Code]
	if !ok {
		tpl, ok = categoryTemplates[e.Category]
		if !ok {
			tpl = template{
				text:        "Something unexpected happened. Please try again.",
				suggestions: []string{"Try again"},
			}
		}
	}

	out := UserFacing{
		Text:      tpl.text,
		Retryable: e.Retryable,
	}
	if willRetry && e.Retryable {
		out.Text += " The system will retry automatically."
	}

	suggestions := tpl.suggestions
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	out.Suggestions = append(out.Suggestions, suggestions...)

	if includeTechnical && e.Technical != "" &&
		(e.Severity == SeverityHigh || e.Severity == SeverityCritical) {
		out.Suggestions = append(out.Suggestions, "Reference: "+e.Code)
	}

	return out
}
