package telegram

import "regexp"

// escapeMarkdownV2 用于转义 MarkdownV2 格式中的特殊字符
func escapeMarkdownV2(input string) string {
	specialChars := []struct {
		char   string
		escape string
	}{
		{"\\", "\\\\"},
		{"*", "\\*"},
		{"_", "\\_"},
		{"`", "\\`"},
		{"{", "\\{"},
		{"}", "\\}"},
		{"[", "\\["},
		{"]", "\\]"},
		{"(", "\\("},
		{")", "\\)"},
		{"~", "\\~"},
		{">", "\\>"},
		{"#", "\\#"},
		{"+", "\\+"},
		{"-", "\\-"},
		{"=", "\\="},
		{"|", "\\|"},
		{".", "\\."},
	}

	for _, sc := range specialChars {
		re := regexp.MustCompile(regexp.QuoteMeta(sc.char))
		input = re.ReplaceAllString(input, sc.escape)
	}

	return input
}
