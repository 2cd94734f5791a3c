package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httputils "kronik/kronik/utils/http"
	"kronik/kronik/utils/logging"

	"go.uber.org/zap"
)

// w3cElementKey is the element reference key defined by W3C WebDriver.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

var (
	ErrNoSession     = errors.New("no device session")
	ErrNoSuchElement = errors.New("no such element")
)

// WebDriverError is a W3C error payload returned by the automation server.
type WebDriverError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *WebDriverError) Error() string {
	return fmt.Sprintf("webdriver %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *WebDriverError) Is(target error) bool {
	return target == ErrNoSuchElement && e.Code == "no such element"
}

// Capabilities of the Android automation session.
type Capabilities struct {
	PlatformName   string
	AutomationName string
	DeviceName     string
	AppPackage     string
	AppActivity    string
	Language       string
	Locale         string
}

func DefaultCapabilities(deviceName string) Capabilities {
	return Capabilities{
		PlatformName:   "Android",
		AutomationName: "uiautomator2",
		DeviceName:     deviceName,
		AppPackage:     "com.android.settings",
		AppActivity:    ".Settings",
		Language:       "en",
		Locale:         "US",
	}
}

func (c Capabilities) w3c() map[string]interface{} {
	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"platformName":          c.PlatformName,
				"appium:automationName": c.AutomationName,
				"appium:deviceName":     c.DeviceName,
				"appium:appPackage":     c.AppPackage,
				"appium:appActivity":    c.AppActivity,
				"appium:language":       c.Language,
				"appium:locale":         c.Locale,
			},
			"firstMatch": []interface{}{map[string]interface{}{}},
		},
	}
}

// Client talks to an Appium server over the W3C WebDriver HTTP protocol.
type Client struct {
	baseURL   string
	http      *http.Client
	sessionID string
	log       *zap.Logger
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 90 * time.Second},
		log:     logging.Named("device"),
	}
}

func (c *Client) SessionID() string {
	return c.sessionID
}

type envelope struct {
	Value json.RawMessage `json:"value"`
}

// call performs one WebDriver request and decodes the "value" member into out.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var env envelope
	err := httputils.DoJSON(ctx, c.http, method, c.baseURL+path, body, &env)
	if err != nil {
		var se *httputils.StatusError
		if errors.As(err, &se) {
			var errEnv struct {
				Value WebDriverError `json:"value"`
			}
			if json.Unmarshal(se.Body, &errEnv) == nil && errEnv.Value.Code != "" {
				errEnv.Value.StatusCode = se.StatusCode
				return &errEnv.Value
			}
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) sessionPath(suffix string) (string, error) {
	if c.sessionID == "" {
		return "", ErrNoSession
	}
	return "/session/" + c.sessionID + suffix, nil
}

func (c *Client) sessionCall(ctx context.Context, method, suffix string, body interface{}, out interface{}) error {
	path, err := c.sessionPath(suffix)
	if err != nil {
		return err
	}
	return c.call(ctx, method, path, body, out)
}

// Status reports whether the automation server is ready to accept sessions.
func (c *Client) Status(ctx context.Context) (bool, error) {
	var status struct {
		Ready bool `json:"ready"`
	}
	if err := c.call(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return false, err
	}
	return status.Ready, nil
}

// NewSession opens an automation session with caps.
func (c *Client) NewSession(ctx context.Context, caps Capabilities) error {
	defer logging.LogDuration(ctx, "device_new_session")()
	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := c.call(ctx, http.MethodPost, "/session", caps.w3c(), &created); err != nil {
		return fmt.Errorf("failed to create device session: %w", err)
	}
	if created.SessionID == "" {
		return errors.New("failed to create device session: empty session id")
	}
	c.sessionID = created.SessionID
	c.log.Info("device session created", zap.String("session_id", c.sessionID), zap.String("device", caps.DeviceName))
	return nil
}

// Quit closes the automation session if one is open.
func (c *Client) Quit(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	err := c.call(ctx, http.MethodDelete, "/session/"+c.sessionID, nil, nil)
	c.sessionID = ""
	return err
}

// execute runs an Appium "mobile:" extension command.
func (c *Client) execute(ctx context.Context, script string, args map[string]interface{}, out interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	body := map[string]interface{}{
		"script": script,
		"args":   []interface{}{args},
	}
	return c.sessionCall(ctx, http.MethodPost, "/execute/sync", body, out)
}
