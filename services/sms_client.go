package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backend_kredicrm/config"
	"backend_kredicrm/models"
)

// SimulatedRef идентификатор отправки в режиме симуляции
const SimulatedRef = "SIMULATED"

// SMSResult результат отправки через шлюз
type SMSResult struct {
	Code      string `json:"code"`
	Ref       string `json:"ref"`
	Simulated bool   `json:"simulated"`
}

// SMSGateway отправка SMS через внешний шлюз
type SMSGateway interface {
	Send(ctx context.Context, phone, message string) (*SMSResult, error)
}

// GatewayError ошибка, возвращенная шлюзом кодом ответа
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("SMS шлюз вернул код %s: %s", e.Code, e.Message)
}

// Коды ответа шлюза
var (
	gatewaySuccessCodes = map[string]bool{"00": true, "01": true, "02": true}

	gatewayErrorMessages = map[string]string{
		"20": "ошибка в тексте сообщения или превышена длина",
		"30": "неверные учетные данные или нет доступа к API",
		"40": "заголовок отправителя не зарегистрирован",
		"50": "отправка с этого аккаунта запрещена",
		"51": "для аккаунта не задан бренд рассылок",
		"70": "некорректный запрос, отсутствуют параметры",
		"80": "превышен лимит отправки",
		"85": "превышен лимит повторной отправки на номер",
	}
)

// SMSClient HTTP клиент SMS шлюза (GET запрос с параметрами в строке)
type SMSClient struct {
	httpClient *http.Client
	cfg        config.SMSConfig
}

// NewSMSClient создает клиент SMS шлюза
func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMSClient{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
	}
}

// Configured проверяет наличие учетных данных
func (c *SMSClient) Configured() bool {
	return c.cfg.UserCode != "" && c.cfg.Password != ""
}

// Send отправляет SMS. Без учетных данных отправка симулируется
func (c *SMSClient) Send(ctx context.Context, phone, message string) (*SMSResult, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: пустой номер телефона", ErrValidation)
	}

	if !c.Configured() {
		log.Printf("📱 [SMS simulated] %s: %s", phone, message)
		return &SMSResult{Code: "00", Ref: SimulatedRef, Simulated: true}, nil
	}

	params := url.Values{}
	params.Set("usercode", c.cfg.UserCode)
	params.Set("password", c.cfg.Password)
	params.Set("gsmno", phone)
	params.Set("message", message)
	params.Set("msgheader", c.cfg.Header)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования запроса к SMS шлюзу: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordIntegrationError("sms")
		return nil, fmt.Errorf("ошибка запроса к SMS шлюзу: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа SMS шлюза: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		recordIntegrationError("sms")
		return nil, fmt.Errorf("SMS шлюз вернул HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return ParseGatewayResponse(string(body))
}

// ParseGatewayResponse разбирает ответ вида "00 123456789"
func ParseGatewayResponse(body string) (*SMSResult, error) {
	fields := strings.Fields(strings.TrimSpace(body))
	if len(fields) == 0 {
		return nil, &GatewayError{Code: "", Message: "пустой ответ"}
	}

	code := fields[0]
	if gatewaySuccessCodes[code] {
		result := &SMSResult{Code: code}
		if len(fields) > 1 {
			result.Ref = fields[1]
		}
		return result, nil
	}

	msg, ok := gatewayErrorMessages[code]
	if !ok {
		msg = "неизвестный ответ: " + strings.TrimSpace(body)
	}
	return nil, &GatewayError{Code: code, Message: msg}
}

// NormalizePhone приводит номер к виду 5XXXXXXXXX
func NormalizePhone(phone string) string {
	return models.NormalizePhone(phone)
}
