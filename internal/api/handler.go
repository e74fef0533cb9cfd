package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	interf "github.com/glkeru/projxchange/internal/interfaces"
	models "github.com/glkeru/projxchange/internal/models"
	services "github.com/glkeru/projxchange/internal/services"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type EntitlementHandler struct {
	router   *mux.Router
	registry *Registry
	catalog  interf.ProjectCatalog
	logger   *zap.Logger
}

type BadgeResponse struct {
	AvailableCredits int  `json:"available_credits"`
	Loaded           bool `json:"loaded"`
}

type RefreshResponse struct {
	Balance   services.BalanceState  `json:"balance"`
	Referrals services.ReferralState `json:"referrals"`
}

type ActionResponse struct {
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// catalog может быть nil: тогда данные проекта берутся из параметров запроса
func NewHandler(registry *Registry, catalog interf.ProjectCatalog, logger *zap.Logger) *EntitlementHandler {
	router := mux.NewRouter()
	handler := &EntitlementHandler{router, registry, catalog, logger}
	router.Use(MiddlewareLog(logger))
	router.HandleFunc("/credits/balance", handler.BalanceHandler).Methods(http.MethodGet)
	router.HandleFunc("/credits/badge", handler.BadgeHandler).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/affordance", handler.AffordanceHandler).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/actions/{action}", handler.ActionHandler).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/download", handler.DownloadHandler).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}/files", handler.PurchasedHandler).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}/wishlist", handler.WishlistHandler).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}/views", handler.ViewStartHandler).Methods(http.MethodPost)
	router.HandleFunc("/views/{id}", handler.ViewStopHandler).Methods(http.MethodDelete)
	router.HandleFunc("/refresh", handler.RefreshHandler).Methods(http.MethodPost)
	router.HandleFunc("/referrals", handler.ReferralsHandler).Methods(http.MethodGet)
	router.HandleFunc("/logout", handler.LogoutHandler).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return handler
}

func (h *EntitlementHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.router.ServeHTTP(w, req)
}

func (h *EntitlementHandler) Log(msg string, service string, err error) {
	h.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

// Баланс; первый запрос пользователя загружает его
func (h *EntitlementHandler) BalanceHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	err := client.Balance.Sync(req.Context())
	if err != nil {
		h.Log("Sync balance", "BalanceHandler", err)
	}
	writeJSON(w, http.StatusOK, client.Balance.State())
}

// Бейдж: только сохраненное значение, без запроса к API
func (h *EntitlementHandler) BadgeHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	resp := BadgeResponse{}
	if balance := client.Balance.Peek(req.Context()); balance != nil {
		resp.AvailableCredits = balance.AvailableCredits
		resp.Loaded = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// Вариант доступа к проекту
func (h *EntitlementHandler) AffordanceHandler(w http.ResponseWriter, req *http.Request) {
	project, ok := h.project(w, req)
	if !ok {
		return
	}

	// гостю тоже отвечаем: requires-login
	client, err := h.registry.ForToken(bearer(req))
	if err != nil {
		writeJSON(w, http.StatusOK, services.Decide(services.DecisionInput{Project: project}))
		return
	}
	err = client.Balance.Sync(req.Context())
	if err != nil {
		h.Log("Sync balance", "AffordanceHandler", err)
	}
	evidence := h.evidence(req.Context(), req, client.Session.UserID(), project)
	writeJSON(w, http.StatusOK, client.Affordance(project, evidence))
}

// Доступно ли действие для проекта (отзыв, вишлист, корзина)
func (h *EntitlementHandler) ActionHandler(w http.ResponseWriter, req *http.Request) {
	project, ok := h.project(w, req)
	if !ok {
		return
	}
	action := models.ProjectAction(mux.Vars(req)["action"])
	err := services.GuardDemoAction(project, action)
	if err != nil {
		writeJSON(w, http.StatusOK, ActionResponse{Allowed: false, Message: services.DemoActionMessage(action)})
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Allowed: true})
}

// Скачивание за кредит: файл идет в теле ответа, ошибки - JSON
func (h *EntitlementHandler) DownloadHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	err := client.Balance.Sync(req.Context())
	if err != nil {
		h.Log("Sync balance", "DownloadHandler", err)
	}
	saver := h.saver(w, client)
	outcome, err := client.Downloader.AttemptTo(req.Context(), mux.Vars(req)["id"], saver)
	if err != nil {
		h.Log("Attempt", "DownloadHandler", err)
	}
	h.deliver(w, saver, outcome)
}

// Скачивание купленного
func (h *EntitlementHandler) PurchasedHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	saver := h.saver(w, client)
	outcome, err := client.Downloader.DownloadPurchasedTo(req.Context(), mux.Vars(req)["id"], saver)
	if err != nil {
		h.Log("DownloadPurchased", "PurchasedHandler", err)
	}
	h.deliver(w, saver, outcome)
}

// saver запроса; без источника файлов Downloader вернет ошибку
func (h *EntitlementHandler) saver(w http.ResponseWriter, client *services.Client) interf.FileSaver {
	if client.Files == nil {
		return nil
	}
	return newResponseSaver(w, client.Files)
}

func (h *EntitlementHandler) deliver(w http.ResponseWriter, saver interf.FileSaver, outcome services.Outcome) {
	rs, ok := saver.(*responseSaver)
	if !ok || !rs.started {
		writeJSON(w, outcomeStatus(outcome.Kind), outcome)
		return
	}
	// тело уже отправлено, остается только итог в трейлерах
	if outcome.Kind != services.OutcomeSaved {
		h.logger.Warn("Download interrupted",
			zap.String("service", "deliver"),
			zap.String("kind", string(outcome.Kind)),
		)
	}
	rs.finish(outcome)
}

func (h *EntitlementHandler) WishlistHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	project, ok := h.project(w, req)
	if !ok {
		return
	}
	err := client.AddToWishlist(req.Context(), project)
	if errors.Is(err, models.ErrDemoActionDisabled) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "demo-action-disabled",
			Message: services.DemoActionMessage(models.ActionWishlist),
		})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Начало просмотра страницы проекта
func (h *EntitlementHandler) ViewStartHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	client.Tracker.Track(mux.Vars(req)["id"])
	w.WriteHeader(http.StatusAccepted)
}

// Уход со страницы проекта
func (h *EntitlementHandler) ViewStopHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	if current, found := client.Tracker.Current(); found && current == mux.Vars(req)["id"] {
		client.Tracker.Stop()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntitlementHandler) RefreshHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	client.Coordinator.RefreshAll(req.Context())
	writeJSON(w, http.StatusOK, RefreshResponse{
		Balance:   client.Balance.State(),
		Referrals: client.Referrals.State(),
	})
}

// Дашборд рефералов
func (h *EntitlementHandler) ReferralsHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	err := client.Referrals.Load(req.Context())
	if err != nil {
		h.Log("Load referrals", "ReferralsHandler", err)
	}
	writeJSON(w, http.StatusOK, client.Referrals.State())
}

func (h *EntitlementHandler) LogoutHandler(w http.ResponseWriter, req *http.Request) {
	client, ok := h.client(w, req)
	if !ok {
		return
	}
	h.registry.Logout(client.Session.UserID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntitlementHandler) client(w http.ResponseWriter, req *http.Request) (*services.Client, bool) {
	client, err := h.registry.ForToken(bearer(req))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   string(models.KindUnauthorized),
			Message: "Please log in to continue.",
		})
		return nil, false
	}
	return client, true
}

// Проект из каталога или из параметров запроса
func (h *EntitlementHandler) project(w http.ResponseWriter, req *http.Request) (models.Project, bool) {
	id := mux.Vars(req)["id"]
	if h.catalog == nil {
		return projectFromQuery(id, req), true
	}
	project, err := h.catalog.GetProject(req.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, models.NewCreditError(models.KindProjectNotFound, http.StatusNotFound, err))
		return project, false
	}
	if err != nil {
		h.Log("Get project", "project", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return project, false
	}
	return project, true
}

func (h *EntitlementHandler) evidence(ctx context.Context, req *http.Request, userID string, project models.Project) models.PurchaseEvidence {
	evidence := models.PurchaseEvidence{
		Flag:   req.URL.Query().Get("purchased") == "true",
		UserID: userID,
		Buyers: project.Buyers,
	}
	if h.catalog == nil || evidence.Flag {
		return evidence
	}
	status, err := h.catalog.GetUserStatus(ctx, userID, project.ID)
	if err != nil {
		h.Log("User status", "evidence", err)
		return evidence
	}
	evidence.UserStatus = status
	return evidence
}

func projectFromQuery(id string, req *http.Request) models.Project {
	q := req.URL.Query()
	project := models.Project{ID: id, IsDemo: q.Get("demo") == "true"}
	if p, err := strconv.ParseFloat(q.Get("price"), 64); err == nil {
		project.Pricing.SalePrice = &p
	}
	return project
}

func bearer(req *http.Request) string {
	auth := req.Header.Get("Authorization")
	if token, found := strings.CutPrefix(auth, "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return ""
}

func outcomeStatus(kind services.OutcomeKind) int {
	switch kind {
	case services.OutcomeSaved:
		return http.StatusOK
	case services.OutcomeAuthRequired:
		return http.StatusUnauthorized
	case services.OutcomeUnlockRequired:
		return http.StatusPaymentRequired
	case services.OutcomeNotFound:
		return http.StatusNotFound
	case services.OutcomeInProgress:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

var kindStatus = map[models.ErrorKind]int{
	models.KindInsufficientCredits: http.StatusPaymentRequired,
	models.KindPriceLimitExceeded:  http.StatusForbidden,
	models.KindUnauthorized:        http.StatusUnauthorized,
	models.KindProjectNotFound:     http.StatusNotFound,
}

func writeError(w http.ResponseWriter, err error) {
	ce := &models.CreditError{}
	if !errors.As(err, &ce) {
		ce = models.NewCreditError(models.KindUnknown, 0, err)
	}
	status, ok := kindStatus[ce.Kind]
	if !ok {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, ErrorResponse{
		Error:     string(ce.Kind),
		Message:   ce.Message,
		Retryable: ce.Retryable,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(j)
}
