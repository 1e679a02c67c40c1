package validation

import "strings"

// PhoneRule — правило форматов телефона. Какие формы принимаются —
// вопрос конфигурации развёртывания (NANP, E.164, "человеческое"
// форматирование вроде скобок и дефисов).
type PhoneRule struct {
	AllowNANP       bool
	AllowE164       bool
	AllowFormatting bool
}

const phoneFormattingChars = " ()-._"

func (r PhoneRule) IsValid(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if r.AllowFormatting {
		value = r.Clean(value)
	} else if strings.ContainsAny(value, phoneFormattingChars) {
		return false
	}

	if r.AllowE164 && isE164(value) {
		return true
	}
	if r.AllowNANP && isNANP(value) {
		return true
	}
	return false
}

// Clean — убираем форматирование, оставляем только цифры и ведущий "+".
// Одна и та же нормализация применяется к присланному и сохранённому
// значению перед сравнением на mismatch.
func (r PhoneRule) Clean(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for i, c := range value {
		if c == '+' && i == 0 {
			b.WriteRune(c)
			continue
		}
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// isE164 — "+" и 8..15 цифр, первая не ноль.
func isE164(value string) bool {
	if !strings.HasPrefix(value, "+") {
		return false
	}
	digits := value[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return false
	}
	if digits[0] == '0' {
		return false
	}
	return allDigits(digits)
}

// isNANP — 10 цифр (допускается ведущая "1"), код зоны начинается с 2..9.
func isNANP(value string) bool {
	if len(value) == 11 && value[0] == '1' {
		value = value[1:]
	}
	if len(value) != 10 || !allDigits(value) {
		return false
	}
	return value[0] >= '2' && value[3] >= '2'
}

func allDigits(value string) bool {
	for _, c := range value {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(value) > 0
}
