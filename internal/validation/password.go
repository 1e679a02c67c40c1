package validation

// PasswordRule — подключаемое правило силы пароля. Validate возвращает
// код причины (попадает в поле password ответа 422) либо пустую строку.
type PasswordRule struct {
	MinLength int
	MaxLength int
}

const (
	PasswordErrorMinLength = "min_length"
	PasswordErrorMaxLength = "max_length"
)

func (r PasswordRule) Validate(value string) string {
	if r.MinLength > 0 && len(value) < r.MinLength {
		return PasswordErrorMinLength
	}
	if r.MaxLength > 0 && len(value) > r.MaxLength {
		return PasswordErrorMaxLength
	}
	return ""
}
