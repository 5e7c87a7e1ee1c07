package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"refinery/internal/bignum"
	"refinery/internal/catalog"
	"refinery/internal/config"
	"refinery/internal/currency"
	"refinery/internal/game"
)

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	game *game.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, gameSvc *game.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		game: gameSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/boosts", s.handleBoosts)
		r.Get("/formulas", s.handleFormulas)
		r.Get("/formulas/{upgrade}", s.handleFormula)
		r.Post("/numbers/eval", s.handleNumbersEval)

		r.Route("/players/{id}", func(r chi.Router) {
			r.Post("/", s.handleEnsurePlayer)
			r.Get("/wallet", s.handleWallet)
			r.Post("/droplets", s.handleDroplets)
			r.Post("/droplets/preview", s.handleDropletsPreview)
			r.Post("/upgrades/{name}/buy", s.handleBuyUpgrade)
		})
	})
}

// apiKeyMiddleware requires the configured key as a bearer token. An empty
// key leaves the API open.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	want := []byte(s.cfg.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(want) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			writeError(w, http.StatusUnauthorized, game.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type catalogView struct {
	Upgrades []game.FormulaView `json:"upgrades"`
	Furnaces []furnaceView      `json:"furnaces"`
	Softcaps []softcapView      `json:"softcaps"`
	Events   []eventView        `json:"events"`
}

type furnaceView struct {
	ID              string   `json:"id"`
	DropletValue    any      `json:"droplet_value"`
	Nerf            string   `json:"nerf"`
	IncludeGlobal   bool     `json:"include_global"`
	IncludeUpgrades bool     `json:"include_upgrades"`
	Boosts          []string `json:"boosts,omitempty"`
}

type softcapView struct {
	Currency  string `json:"currency"`
	Threshold string `json:"threshold"`
	Policy    string `json:"policy"`
}

type eventView struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Duration string `json:"duration"`
	Kind     string `json:"kind"`
	Value    any    `json:"value"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.game.Catalog()
	out := catalogView{Upgrades: s.game.Formulas()}
	for _, id := range cat.FurnaceIDs() {
		f, _ := cat.Furnace(id)
		fv := furnaceView{
			ID:              f.ID,
			DropletValue:    f.DropletValue,
			Nerf:            f.Nerf.String(),
			IncludeGlobal:   f.IncludeGlobal,
			IncludeUpgrades: f.IncludeUpgrades,
		}
		for _, b := range f.Boosts {
			fv.Boosts = append(fv.Boosts, b.Label())
		}
		out.Furnaces = append(out.Furnaces, fv)
	}
	for _, cur := range currency.All() {
		rule, ok := cat.Softcaps.Rule(cur)
		if !ok {
			continue
		}
		out.Softcaps = append(out.Softcaps, softcapView{
			Currency:  cur.String(),
			Threshold: rule.Threshold.String(),
			Policy:    rule.Policy.Name(),
		})
	}
	for _, ev := range cat.Events() {
		out.Events = append(out.Events, eventView{
			Name:     ev.Name,
			Schedule: ev.Spec,
			Duration: ev.Duration.String(),
			Kind:     ev.Modifier.Kind.String(),
			Value:    ev.Modifier.Value,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBoosts(w http.ResponseWriter, _ *http.Request) {
	snap := s.game.Boosts()
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  snap.Version,
		"taken_at": snap.TakenAt,
		"sources":  snap.Len(),
		"globals":  snap.Globals(),
	})
}

func (s *Server) handleFormulas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"formulas": s.game.Formulas()})
}

func (s *Server) handleFormula(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Formula(chi.URLParam(r, "upgrade"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type evalRequest struct {
	Op string        `json:"op"`
	A  bignum.Number `json:"a"`
	B  bignum.Number `json:"b"`
}

type evalResponse struct {
	Result     bignum.Number `json:"result"`
	Scientific string        `json:"scientific"`
	Suffix     string        `json:"suffix"`
	Layer      int           `json:"layer"`
}

func (s *Server) handleNumbersEval(w http.ResponseWriter, r *http.Request) {
	var in evalRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := evalNumbers(in.Op, in.A, in.B)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evalResponse{
		Result:     res,
		Scientific: res.Text(bignum.Scientific),
		Suffix:     res.Text(bignum.Suffix),
		Layer:      res.Layer(),
	})
}

// evalNumbers applies op to a and b. Unary ops ignore b.
func evalNumbers(op string, a, b bignum.Number) (bignum.Number, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "add":
		return a.Add(b), nil
	case "sub":
		return a.Sub(b), nil
	case "mul":
		return a.Mul(b), nil
	case "div":
		return a.Div(b), nil
	case "pow":
		return a.Pow(b), nil
	case "sqrt":
		return a.Sqrt(), nil
	case "log10":
		return a.Log10()
	case "ln":
		return a.Ln()
	case "log":
		return a.Log(b)
	case "max":
		return bignum.Max(a, b), nil
	case "min":
		return bignum.Min(a, b), nil
	case "cmp":
		return bignum.FromInt(int64(a.Cmp(b))), nil
	}
	return bignum.Zero, fmt.Errorf("unknown op %q", op)
}

func (s *Server) handleEnsurePlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.game.EnsurePlayer(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.game.Wallet(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	out, err := s.game.Wallet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dropletInput(r *http.Request) (game.DropletInput, error) {
	var in game.DropletInput
	if err := decodeJSON(r, &in); err != nil {
		return in, err
	}
	in.PlayerID = chi.URLParam(r, "id")
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		in.IdempotencyKey = idempotencyKey(r)
	}
	return in, nil
}

func (s *Server) handleDroplets(w http.ResponseWriter, r *http.Request) {
	in, err := s.dropletInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.ProcessDroplets(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDropletsPreview(w http.ResponseWriter, r *http.Request) {
	in, err := s.dropletInput(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.game.PreviewDroplets(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	var in game.BuyUpgradeInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	in.PlayerID = chi.URLParam(r, "id")
	in.Upgrade = chi.URLParam(r, "name")
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		in.IdempotencyKey = idempotencyKey(r)
	}
	out, err := s.game.BuyUpgrade(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrDuplicateIdempotency), errors.Is(err, game.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrInsufficientFunds), errors.Is(err, game.ErrUpgradeMaxed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, game.ErrInvalidPlayer), errors.Is(err, game.ErrInvalidDroplets):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, catalog.ErrUnknownFurnace),
		errors.Is(err, catalog.ErrUnknownUpgrade),
		errors.Is(err, game.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
