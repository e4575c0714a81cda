package line

import (
	"fmt"
	"strings"

	"linebridge/internal/translate"
	"log/slog"
)

const helpMessage = "번역봇 설정 명령어:\n" +
	"• !mode auto | !mode ko2th | !mode th2ko\n" +
	"• !prefix <문자열>  (예: !prefix @tr)\n" +
	"• !native on|off    (현지 구어체 톤)\n" +
	"• !help"

// handleCommand interprets the in-chat settings commands. Returns the reply
// text and whether the message was a command at all.
func (h *WebhookHandler) handleCommand(id translate.ConversationID, text string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	switch t {
	case "!mode auto", "!auto":
		return h.applySetting(id, "번역 모드: 자동(한국어↔태국어 인식)으로 설정되었습니다.", func(s *translate.Settings) {
			s.Mode = translate.ModeAuto
		}), true
	case "!mode ko2th", "!ko2th":
		return h.applySetting(id, "번역 모드: 한국어 → 태국어 고정.", func(s *translate.Settings) {
			s.Mode = translate.ModeKoToTh
		}), true
	case "!mode th2ko", "!th2ko":
		return h.applySetting(id, "번역 모드: 태국어 → 한국어 고정.", func(s *translate.Settings) {
			s.Mode = translate.ModeThToKo
		}), true
	case "!native on":
		return h.applySetting(id, "현지 구어체 톤: ON", func(s *translate.Settings) {
			s.NativeTone = true
		}), true
	case "!native off":
		return h.applySetting(id, "현지 구어체 톤: OFF", func(s *translate.Settings) {
			s.NativeTone = false
		}), true
	case "!help", "/help":
		return helpMessage, true
	}

	if strings.HasPrefix(t, "!prefix ") {
		prefix := strings.TrimSpace(strings.TrimPrefix(t, "!prefix "))
		reply := fmt.Sprintf("번역 트리거 접두사(prefix): '%s' 로 설정되었습니다. (빈 문자열이면 항상 번역)", prefix)
		return h.applySetting(id, reply, func(s *translate.Settings) {
			s.Prefix = prefix
		}), true
	}

	return "", false
}

func (h *WebhookHandler) applySetting(id translate.ConversationID, reply string, apply func(*translate.Settings)) string {
	if err := h.translator.UpdateSettings(id, apply); err != nil {
		h.logger.Error("update settings failed",
			slog.String("conversation", string(id)),
			slog.String("error", err.Error()))
		return "설정 저장에 실패했습니다. 잠시 후 다시 시도해주세요."
	}
	return reply
}
