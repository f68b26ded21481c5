package http

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
)

const (
	headerTimestamp = "X-Slack-Request-Timestamp"
	headerSignature = "X-Slack-Signature"
)

// Verifier проверяет подпись входящих вебхуков Slack.
// Пустой секрет отключает проверку: так сервис можно гонять локально
// без реального приложения Slack.
type Verifier struct {
	secret  string
	maxSkew time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewVerifier создаёт верификатор с окном защиты от повторов.
func NewVerifier(secret string, maxSkew time.Duration, log zerolog.Logger) *Verifier {
	if maxSkew <= 0 {
		maxSkew = 5 * time.Minute
	}
	return &Verifier{secret: secret, maxSkew: maxSkew, now: time.Now, log: log}
}

// Verify сверяет подпись заголовка с HMAC-SHA256 от "v0:{ts}:{body}".
func (v *Verifier) Verify(timestamp, signature string, body []byte) bool {
	if v.secret == "" {
		v.log.Warn().Msg("signature: секрет не задан, проверка подписи отключена")
		return true
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > v.maxSkew {
		return false
	}
	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Middleware читает тело запроса, проверяет подпись и либо пропускает
// запрос дальше с восстановленным телом, либо отвечает 403.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
			return
		}
		_ = r.Body.Close()
		if !v.Verify(r.Header.Get(headerTimestamp), r.Header.Get(headerSignature), body) {
			metrics.SignatureRejectsTotal.Inc()
			v.log.Warn().Str("request_id", RequestID(r)).Msg("signature: подпись недействительна")
			WriteError(w, http.StatusForbidden, fmt.Errorf("invalid signature"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// RequestID возвращает request ID из контекста chi.
func RequestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// ErrorResponse описывает ошибку.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"%s"}`, err.Error())))
}
