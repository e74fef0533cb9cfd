package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	neturl "net/url"
	"path"
	"strings"
	"time"

	classifier "github.com/glkeru/projxchange/internal/classifier"
	models "github.com/glkeru/projxchange/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Источник bearer-токена и обработчик 401
type Auth interface {
	Token() string
	Unauthorized() bool
}

// Gateway - HTTP клиент API ProjXchange для кредитных операций
type Gateway struct {
	baseURL    string
	auth       Auth
	client     *http.Client
	fileClient *http.Client
	logger     *zap.Logger
}

func NewGateway(baseURL string, auth Auth, logger *zap.Logger) *Gateway {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Gateway{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		auth:    auth,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		// файлы большие, время ограничивает контекст
		fileClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

type projectRequest struct {
	ProjectID string `json:"project_id"`
}

type viewRequest struct {
	ProjectID       string `json:"project_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Баланс
func (g *Gateway) FetchBalance(ctx context.Context) (*models.CreditBalance, error) {
	status, data, err := g.doRequest(ctx, "balance", http.MethodGet, "/credits/balance", nil)
	if err != nil {
		return nil, models.NewCreditError(models.KindBalanceFetchFailed, 0, err)
	}
	if !ok(status) {
		return nil, models.NewCreditError(models.KindBalanceFetchFailed, status, bodyError(status, data))
	}
	balance := &models.CreditBalance{}
	err = json.Unmarshal(data, balance)
	if err != nil {
		return nil, models.NewCreditError(models.KindBalanceFetchFailed, status, err)
	}
	balance.Normalize()
	return balance, nil
}

// Списание кредита за скачивание
func (g *Gateway) ConsumeCredit(ctx context.Context, projectID string) (*models.ConsumeResult, error) {
	status, data, err := g.doRequest(ctx, "consume", http.MethodPost, "/downloads/consume-credit", projectRequest{projectID})
	if err != nil {
		ce := classifier.Classify(err)
		if ce.Kind == models.KindAPI || ce.Kind == models.KindUnknown {
			return nil, models.NewCreditError(models.KindDownloadFailed, 0, err)
		}
		return nil, ce
	}
	if !ok(status) {
		cause := bodyError(status, data)
		switch {
		case status == http.StatusBadRequest && strings.Contains(strings.ToLower(cause.Error()), "insufficient"):
			return nil, models.NewCreditError(models.KindInsufficientCredits, status, cause)
		case status == http.StatusPaymentRequired:
			return nil, models.NewCreditError(models.KindInsufficientCredits, status, cause)
		case status == http.StatusNotFound:
			return nil, models.NewCreditError(models.KindProjectNotFound, status, cause)
		case status == http.StatusUnauthorized:
			return nil, models.NewCreditError(models.KindUnauthorized, status, cause)
		case status == http.StatusBadRequest || status == http.StatusForbidden:
			// лимит цены проверяется сервером
			if kind, found := classifier.Match(cause.Error()); found && kind == models.KindPriceLimitExceeded {
				return nil, models.NewCreditError(kind, status, cause)
			}
		}
		return nil, models.NewCreditError(models.KindDownloadFailed, status, cause)
	}

	result := &models.ConsumeResult{}
	err = json.Unmarshal(data, result)
	if err != nil {
		return nil, models.NewCreditError(models.KindDownloadFailed, status, err)
	}
	if !result.Success || result.DownloadURL == "" {
		return nil, models.NewCreditError(models.KindDownloadFailed, status, fmt.Errorf("consume rejected: %s", result.Message))
	}
	if result.RemainingCredits < 0 {
		result.RemainingCredits = 0
	}
	return result, nil
}

// Статус рефералов
func (g *Gateway) FetchReferralStatus(ctx context.Context) ([]models.Referral, error) {
	status, data, err := g.doRequest(ctx, "referrals", http.MethodGet, "/referrals/status", nil)
	if err != nil {
		return nil, models.NewCreditError(models.KindReferralFetchFailed, 0, err)
	}
	if !ok(status) {
		return nil, models.NewCreditError(models.KindReferralFetchFailed, status, bodyError(status, data))
	}
	resp := &models.ReferralStatusResponse{}
	err = json.Unmarshal(data, resp)
	if err != nil {
		return nil, models.NewCreditError(models.KindReferralFetchFailed, status, err)
	}
	return resp.Referrals, nil
}

// Просмотр проекта: ошибки только логируются
func (g *Gateway) ReportProjectView(ctx context.Context, projectID string, seconds int) {
	status, data, err := g.doRequest(ctx, "tracking", http.MethodPost, "/tracking/project-view", viewRequest{projectID, seconds})
	if err == nil && !ok(status) {
		err = bodyError(status, data)
	}
	if err != nil {
		ce := models.NewCreditError(models.KindTrackingFailed, status, err)
		g.logger.Warn("Project view",
			zap.String("service", "ReportProjectView"),
			zap.String("project", projectID),
			zap.Error(ce),
		)
	}
}

// Подтверждение реферала через вишлист
func (g *Gateway) ConfirmWishlist(ctx context.Context, projectID string) error {
	status, data, err := g.doRequest(ctx, "wishlist", http.MethodPost, "/referrals/confirm-wishlist", projectRequest{projectID})
	if err != nil {
		return classifier.Classify(err)
	}
	if !ok(status) {
		return statusError(status, bodyError(status, data))
	}
	return nil
}

// Скачивание файла по подписанной ссылке
func (g *Gateway) FetchFile(ctx context.Context, url string) (*models.FilePayload, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = g.baseURL + "/" + strings.TrimPrefix(url, "/")
	}
	resp, err := g.stream(ctx, "file", http.MethodGet, url, nil)
	if err != nil {
		return nil, models.NewCreditError(models.KindDownloadFailed, 0, err)
	}
	if !ok(resp.StatusCode) {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		ce := statusError(resp.StatusCode, bodyError(resp.StatusCode, data))
		if ce.Kind != models.KindUnauthorized {
			return nil, models.NewCreditError(models.KindDownloadFailed, resp.StatusCode, ce)
		}
		return nil, ce
	}
	return &models.FilePayload{
		Name:        fileName(resp, path.Base(resp.Request.URL.Path)),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// Скачивание купленного проекта
func (g *Gateway) DownloadProject(ctx context.Context, projectID string) (*models.FilePayload, error) {
	resp, err := g.stream(ctx, "project_download", http.MethodPost, g.baseURL+"/projects/"+neturl.PathEscape(projectID)+"/download", nil)
	if err != nil {
		return nil, models.NewCreditError(models.KindDownloadFailed, 0, err)
	}
	if !ok(resp.StatusCode) {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		ce := statusError(resp.StatusCode, bodyError(resp.StatusCode, data))
		if ce.Kind == models.KindAPI {
			return nil, models.NewCreditError(models.KindDownloadFailed, resp.StatusCode, ce)
		}
		return nil, ce
	}
	return &models.FilePayload{
		Name:        fileName(resp, projectID+".zip"),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

func (g *Gateway) newRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		j, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(j)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := g.auth.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// JSON запрос к API
func (g *Gateway) doRequest(ctx context.Context, operation, method, uri string, body any) (int, []byte, error) {
	req, err := g.newRequest(ctx, method, g.baseURL+uri, body)
	if err != nil {
		return 0, nil, err
	}
	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		observe(operation, 0, start)
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	observe(operation, resp.StatusCode, start)
	g.checkAuth(resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// Потоковый запрос, тело закрывает вызывающий
func (g *Gateway) stream(ctx context.Context, operation, method, url string, body any) (*http.Response, error) {
	req, err := g.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/octet-stream")
	start := time.Now()
	resp, err := g.fileClient.Do(req)
	if err != nil {
		observe(operation, 0, start)
		return nil, fmt.Errorf("do request: %w", err)
	}
	observe(operation, resp.StatusCode, start)
	g.checkAuth(resp.StatusCode)
	return resp, nil
}

func (g *Gateway) checkAuth(status int) {
	if status != http.StatusUnauthorized {
		return
	}
	if g.auth.Unauthorized() {
		g.logger.Info("Session expired", zap.String("service", "Gateway"))
	}
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// Текст ошибки из тела ответа
func bodyError(status int, data []byte) error {
	body := models.APIErrorBody{}
	if err := json.Unmarshal(data, &body); err == nil && body.Text() != "" {
		return fmt.Errorf("API error %d: %s", status, body.Text())
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Errorf("API error %d: %s", status, text)
}

// Общее сопоставление статуса
func statusError(status int, cause error) *models.CreditError {
	switch status {
	case http.StatusUnauthorized:
		return models.NewCreditError(models.KindUnauthorized, status, cause)
	case http.StatusNotFound:
		return models.NewCreditError(models.KindProjectNotFound, status, cause)
	case http.StatusPaymentRequired:
		return models.NewCreditError(models.KindInsufficientCredits, status, cause)
	}
	if kind, found := classifier.Match(cause.Error()); found {
		return models.NewCreditError(kind, status, cause)
	}
	return models.NewCreditError(models.KindAPI, status, cause)
}

func fileName(resp *http.Response, fallback string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	if fallback == "" || fallback == "/" || fallback == "." {
		return "download.bin"
	}
	return fallback
}
