package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
)

// Message текст уведомления о событии
type Message struct {
	Title string
	Body  string
}

// Text заголовок и тело одной строкой
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n\n" + m.Body
}

// Formatter готовит тексты уведомлений в часовом поясе пользователей
type Formatter struct {
	loc *time.Location
}

func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{loc: loc}
}

// FormatDateTime форматирует дату и время
func (f Formatter) FormatDateTime(t time.Time) string {
	return t.In(f.loc).Format("02.01.2006 15:04")
}

// FormatTimeRange форматирует интервал занятия
func (f Formatter) FormatTimeRange(start, end time.Time) string {
	start, end = start.In(f.loc), end.In(f.loc)
	if start.YearDay() == end.YearDay() && start.Year() == end.Year() {
		return fmt.Sprintf("%s %s-%s", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("02.01.2006 15:04"), end.Format("02.01.2006 15:04"))
}

// KindDisplay вид запроса по-русски
func KindDisplay(kind string) string {
	switch model.RequestKind(kind) {
	case model.RequestKindTrial:
		return "пробное занятие"
	case model.RequestKindSession:
		return "платное занятие"
	default:
		return kind
	}
}

// Format текст уведомления; для служебных событий пустой заголовок
func (f Formatter) Format(event model.Event) Message {
	p := payload(event.Payload)

	switch event.Type {
	// Запросы
	case model.EventRequestCreated:
		return Message{"📝 Запрос создан", fmt.Sprintf("📚 Предмет: %s\n🏷 Вид: %s\n\nОжидаем ответа репетитора.", p.str("subject"), KindDisplay(p.str("kind")))}
	case model.EventRequestAccepted:
		return Message{"✅ Запрос принят", fmt.Sprintf("📚 Предмет: %s\n\nРепетитор принял запрос, чат открыт.", p.str("subject"))}
	case model.EventRequestCancelled:
		return Message{"❌ Запрос отменён", ""}
	case model.EventRequestExtended:
		return Message{"⏳ Запрос продлён", "Новый срок: " + f.when(p, "expires_at")}
	case model.EventRequestExpired:
		return Message{"⌛️ Срок запроса истёк", "Никто из репетиторов не принял запрос. Можно создать новый."}

	// Интервью
	case model.EventSlotBooked:
		return Message{"📅 Интервью забронировано", "🕐 Начало: " + f.when(p, "start_time")}
	case model.EventSlotCancelled:
		body := fmt.Sprintf("🕐 Было назначено на: %s\n💬 Причина: %s", f.when(p, "start_time"), p.str("reason"))
		if p.flag("reschedule_required") {
			body += "\n\nВыберите новое время интервью."
		}
		return Message{"🚫 Интервью отменено", body}
	case model.EventSlotCompleted:
		return Message{"✔️ Интервью завершено", ""}

	// Предложения
	case model.EventProposalCreated, model.EventProposalCounterProposed:
		title := "📨 Новое предложение занятия"
		if event.Type == model.EventProposalCounterProposed {
			title = "🔄 Встречное предложение"
		}
		return Message{title, fmt.Sprintf("📚 Предмет: %s\n🕐 Когда: %s\n⏳ Ответить до: %s",
			p.str("subject"), f.interval(p), f.when(p, "expires_at"))}
	case model.EventProposalAccepted:
		return Message{"✅ Предложение принято", fmt.Sprintf("📚 %s\n🕐 Занятие запланировано: %s", p.str("subject"), f.interval(p))}
	case model.EventProposalRejected:
		return Message{"🚫 Предложение отклонено", "🕐 " + f.interval(p)}
	case model.EventProposalExpired:
		return Message{"⌛️ Предложение истекло", "На предложение не ответили вовремя: " + f.interval(p)}
	case model.EventProposalCancelled:
		return Message{"❌ Предложение отменено", withReason("🕐 "+f.interval(p), p.str("reason"))}

	// Занятия
	case model.EventSessionCancelled:
		return Message{"❌ Занятие отменено", withReason(fmt.Sprintf("📚 %s\n🕐 %s", p.str("subject"), f.interval(p)), p.str("reason"))}
	case model.EventSessionCompleted:
		return Message{"🎓 Занятие завершено", fmt.Sprintf("📚 %s\n\nТеперь можно оставить отзыв.", p.str("subject"))}
	case model.EventSessionNoShow:
		return Message{"🙈 Неявка на занятие", fmt.Sprintf("📚 %s\n🕐 %s", p.str("subject"), f.interval(p))}
	}

	return Message{}
}

func (f Formatter) when(p payload, key string) string {
	t, ok := p.timeAt(key)
	if !ok {
		return "—"
	}
	return f.FormatDateTime(t)
}

func (f Formatter) interval(p payload) string {
	start, ok1 := p.timeAt("start_time")
	end, ok2 := p.timeAt("end_time")
	switch {
	case ok1 && ok2:
		return f.FormatTimeRange(start, end)
	case ok1:
		return f.FormatDateTime(start)
	default:
		return "—"
	}
}

func withReason(body, reason string) string {
	if strings.TrimSpace(reason) == "" {
		return body
	}
	return body + "\n💬 Причина: " + reason
}

// payload значения события; после JSON из outbox время приходит строкой
type payload map[string]any

func (p payload) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (p payload) flag(key string) bool {
	b, _ := p[key].(bool)
	return b
}

func (p payload) timeAt(key string) (time.Time, bool) {
	switch v := p[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}
