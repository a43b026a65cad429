package openai

// maxPromptContentBytes caps how much document text is sent to the model.
// Documents longer than this are truncated at the last newline before the
// limit so the prompt ends on a whole line.
const maxPromptContentBytes = 24 * 1024

// truncateForPrompt shortens document content to fit the prompt budget.
func truncateForPrompt(s string) string {
	if len(s) <= maxPromptContentBytes {
		return s
	}
	cut := s[:maxPromptContentBytes]
	for i := len(cut) - 1; i > 0; i-- {
		if cut[i] == '\n' {
			return cut[:i]
		}
	}
	return cut
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
