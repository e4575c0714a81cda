package translate

// System prompts follow the original operator wording: interpreter role,
// keep nuance and register, output the translation only.

const (
	promptKoToThNative = "역할: 한→태 통역사.\n" +
		"원문의 뉘앙스/존댓말/반말을 유지하되, 태국 현지인이 쓰는 자연스러운 구어체로 번역해.\n" +
		"불필요한 설명·따옴표 금지. 번역문만."

	promptThToKoNative = "역할: 태→한 통역사.\n" +
		"원문의 뉘앙스/존댓말/반말을 유지하되, 한국인이 쓰는 자연스러운 구어체로 번역해.\n" +
		"불필요한 설명·따옴표 금지. 번역문만."

	promptNeutral = "입력 문장을 자연스럽고 정확하게 번역해. 번역문만."

	// promptStrictSuffix is appended on the guard retry: the first output
	// had an implausible length, so push the model back to a faithful,
	// length-preserving translation.
	promptStrictSuffix = "\n주의: 원문의 의미와 분량을 그대로 보존해. " +
		"요약하거나 덧붙이지 말고, 마지막 입력 문장의 번역문만 출력해."
)

// SystemPrompt builds the role instruction for a direction.
func SystemPrompt(d Direction, nativeTone bool) string {
	if !nativeTone {
		return promptNeutral
	}
	if d == ThaiToKorean {
		return promptThToKoNative
	}
	return promptKoToThNative
}

// StrictSystemPrompt is the augmented instruction used for the single guard
// retry.
func StrictSystemPrompt(d Direction, nativeTone bool) string {
	return SystemPrompt(d, nativeTone) + promptStrictSuffix
}
