package alert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/powerlog/internal/errors"
)

const (
	// DefaultBaseURL is the Telegram Bot API endpoint. Injectable for
	// tests.
	DefaultBaseURL = "https://api.telegram.org"

	// A hung notification call must not stall the whole invocation.
	defaultTimeout = 10 * time.Second
)

// Messenger sends messages and documents to a single chat via the
// Telegram Bot API.
type Messenger struct {
	BaseURL string
	Token   string
	ChatID  string

	client *http.Client
}

func NewMessenger(token, chatID string) *Messenger {
	return &Messenger{
		BaseURL: DefaultBaseURL,
		Token:   token,
		ChatID:  chatID,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (m *Messenger) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", m.BaseURL, m.Token, method)
}

// SendMessage posts text to the configured chat.
func (m *Messenger) SendMessage(ctx context.Context, text string) error {
	errFactory := errors.New()

	if m.Token == "" || m.ChatID == "" {
		return errFactory.New(ErrMissingCredentials)
	}

	form := url.Values{
		"chat_id": {m.ChatID},
		"text":    {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("sendMessage"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return m.do(req)
}

// SendDocument uploads a file to the configured chat.
func (m *Messenger) SendDocument(ctx context.Context, path string) error {
	errFactory := errors.New()

	if m.Token == "" || m.ChatID == "" {
		return errFactory.New(ErrMissingCredentials)
	}

	f, err := os.Open(path)
	if err != nil {
		return errFactory.Wrap(ErrDocumentOpen, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("chat_id", m.ChatID); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	part, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	if err := mw.Close(); err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("sendDocument"), &body)
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return m.do(req)
}

func (m *Messenger) do(req *http.Request) error {
	errFactory := errors.New()

	resp, err := m.client.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errFactory.WithData(ErrUnexpectedStatus, struct {
			Status int
			Body   string
		}{
			Status: resp.StatusCode,
			Body:   string(detail),
		})
	}

	return nil
}
