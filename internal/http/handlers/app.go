package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/powerbackus/powerback-sub000/internal/compliance"
	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/settlement"
)

// App bundles the handler dependencies.
type App struct {
	Celebrations domain.CelebrationRepository
	Inbox        domain.SettlementInbox
	Coordinator  *settlement.Coordinator
	Calculator   *compliance.Calculator
	Logger       zerolog.Logger

	printer *message.Printer
}

// NewApp wires an App container.
func NewApp(cels domain.CelebrationRepository, inbox domain.SettlementInbox, coord *settlement.Coordinator, calc *compliance.Calculator, logger zerolog.Logger) *App {
	return &App{
		Celebrations: cels,
		Inbox:        inbox,
		Coordinator:  coord,
		Calculator:   calc,
		Logger:       logger,
		printer:      message.NewPrinter(language.AmericanEnglish),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, map[string]any{"error": code, "message": msg})
}

// dollars renders cents as a grouped US dollar figure for user guidance.
func (a *App) dollars(cents int64) string {
	return a.printer.Sprintf("$%.2f", float64(cents)/100)
}
