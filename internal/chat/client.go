package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultAPIURL = "https://api.telegram.org"

var ErrTelegramRequest = errors.New("telegram request failed")

// Client is a minimal Telegram Bot API client.
type Client struct {
	token  string
	client *resty.Client
}

func NewClient(apiURL, token string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		token: token,
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(apiURL, "/")).
			SetTimeout(30 * time.Second),
	}
}

func call[T any](ctx context.Context, c *Client, method string, body any) (T, error) {
	var result T

	req := c.client.R().SetContext(ctx).SetHeader("Accept", "application/json")
	if body != nil {
		req = req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	res, err := req.Post(fmt.Sprintf("/bot%s/%s", c.token, method))
	if err != nil {
		return result, fmt.Errorf("%s: %w: %w", method, ErrTelegramRequest, err)
	}

	var parsed apiResponse[T]
	if err := json.Unmarshal(res.Body(), &parsed); err != nil {
		return result, fmt.Errorf("%s: %w: error parsing response (status %d): %w", method, ErrTelegramRequest, res.StatusCode(), err)
	}

	if !res.IsSuccess() || !parsed.Ok {
		slog.Error("telegram returned error", "method", method, "status_code", res.StatusCode(), "description", parsed.Description)
		return result, fmt.Errorf("%s: %w: %d %s", method, ErrTelegramRequest, res.StatusCode(), parsed.Description)
	}

	return parsed.Result, nil
}

func (c *Client) GetMe(ctx context.Context) (User, error) {
	return call[User](ctx, c, "getMe", nil)
}

func (c *Client) SetWebhook(ctx context.Context, url string) error {
	_, err := call[bool](ctx, c, "setWebhook", map[string]any{"url": url})
	return err
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	_, err := call[bool](ctx, c, "deleteWebhook", map[string]any{"drop_pending_updates": false})
	return err
}

func (c *Client) GetFile(ctx context.Context, fileId string) (File, error) {
	return call[File](ctx, c, "getFile", map[string]any{"file_id": fileId})
}

func (c *Client) SendMessage(ctx context.Context, chatId int64, text string) error {
	_, err := call[Message](ctx, c, "sendMessage", map[string]any{"chat_id": chatId, "text": text})
	return err
}

// DownloadFile resolves a file id and writes the file into dir, returning the
// local path. The local name keeps the remote extension.
func (c *Client) DownloadFile(ctx context.Context, fileId, dir string) (string, error) {
	file, err := c.GetFile(ctx, fileId)
	if err != nil {
		return "", err
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("getFile: %w: no file_path for %s", ErrTelegramRequest, fileId)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating download dir: %w", err)
	}

	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".jpg"
	}
	localPath := filepath.Join(dir, fileId+ext)

	res, err := c.client.R().
		SetContext(ctx).
		SetOutput(localPath).
		Get(fmt.Sprintf("/file/bot%s/%s", c.token, file.FilePath))
	if err != nil {
		return "", fmt.Errorf("download file: %w: %w", ErrTelegramRequest, err)
	}
	if !res.IsSuccess() {
		os.Remove(localPath)
		return "", fmt.Errorf("download file: %w: status %d", ErrTelegramRequest, res.StatusCode())
	}

	return localPath, nil
}
