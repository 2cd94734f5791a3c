package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fakeAppium serves just enough of the WebDriver protocol for the client.
type fakeAppium struct {
	t          *testing.T
	scripts    []string
	actions    []map[string]interface{}
	elements   map[string]string
	foreground string
}

func (f *fakeAppium) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	write := func(status int, value interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{"value": value})
	}
	var body map[string]interface{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.URL.Path == "/status":
		write(http.StatusOK, map[string]interface{}{"ready": true})
	case r.URL.Path == "/session" && r.Method == http.MethodPost:
		write(http.StatusOK, map[string]interface{}{"sessionId": "abc", "capabilities": map[string]interface{}{}})
	case r.URL.Path == "/session/abc" && r.Method == http.MethodDelete:
		write(http.StatusOK, nil)
	case r.URL.Path == "/session/abc/window/rect":
		write(http.StatusOK, map[string]interface{}{"x": 0, "y": 0, "width": 1080, "height": 2400})
	case r.URL.Path == "/session/abc/actions":
		f.actions = append(f.actions, body)
		write(http.StatusOK, nil)
	case r.URL.Path == "/session/abc/element":
		xpath, _ := body["value"].(string)
		if id, ok := f.elements[xpath]; ok {
			write(http.StatusOK, map[string]string{w3cElementKey: id})
			return
		}
		write(http.StatusNotFound, map[string]string{"error": "no such element", "message": "not found: " + xpath})
	case strings.HasSuffix(r.URL.Path, "/click") || r.URL.Path == "/session/abc/back":
		write(http.StatusOK, nil)
	case r.URL.Path == "/session/abc/screenshot":
		write(http.StatusOK, base64.StdEncoding.EncodeToString([]byte("png")))
	case r.URL.Path == "/session/abc/execute/sync":
		script, _ := body["script"].(string)
		f.scripts = append(f.scripts, script)
		switch script {
		case "mobile: getClipboard":
			write(http.StatusOK, base64.StdEncoding.EncodeToString([]byte("https://vm.tiktok.com/ZMabc/")))
		case "mobile: isAppInstalled":
			write(http.StatusOK, true)
		case "mobile: getCurrentPackage":
			write(http.StatusOK, f.foreground)
		case "mobile: activateApp":
			f.foreground = "com.zhiliaoapp.musically"
			write(http.StatusOK, nil)
		case "mobile: stopMediaProjectionRecording":
			write(http.StatusOK, base64.StdEncoding.EncodeToString([]byte("mp4")))
		default:
			write(http.StatusOK, nil)
		}
	default:
		f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		write(http.StatusNotFound, map[string]string{"error": "unknown command"})
	}
}

func newFakeClient(t *testing.T) (*Client, *fakeAppium) {
	t.Helper()
	fake := &fakeAppium{t: t, elements: map[string]string{"//share": "el-1"}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL + "/")
	if err := c.NewSession(context.Background(), DefaultCapabilities("KronikPixel")); err != nil {
		t.Fatalf("NewSession() failed: %v", err)
	}
	return c, fake
}

func TestClientSessionLifecycle(t *testing.T) {
	c, _ := newFakeClient(t)
	if c.SessionID() != "abc" {
		t.Errorf("SessionID() = %q, want abc", c.SessionID())
	}
	ready, err := c.Status(context.Background())
	if err != nil || !ready {
		t.Errorf("Status() = %v, %v", ready, err)
	}
	if err := c.Quit(context.Background()); err != nil {
		t.Errorf("Quit() failed: %v", err)
	}
	if _, err := c.WindowSize(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("WindowSize() after Quit err = %v, want ErrNoSession", err)
	}
}

func TestClientFindElement(t *testing.T) {
	c, _ := newFakeClient(t)
	ctx := context.Background()

	id, err := c.FindElement(ctx, "//share")
	if err != nil || id != "el-1" {
		t.Errorf("FindElement() = %q, %v", id, err)
	}
	if _, err := c.FindElement(ctx, "//missing"); !errors.Is(err, ErrNoSuchElement) {
		t.Errorf("FindElement(missing) err = %v, want ErrNoSuchElement", err)
	}
}

func TestClientClipboardAndScreenshot(t *testing.T) {
	c, _ := newFakeClient(t)
	ctx := context.Background()

	text, err := c.Clipboard(ctx)
	if err != nil || text != "https://vm.tiktok.com/ZMabc/" {
		t.Errorf("Clipboard() = %q, %v", text, err)
	}
	png, err := c.Screenshot(ctx)
	if err != nil || string(png) != "png" {
		t.Errorf("Screenshot() = %q, %v", png, err)
	}
}

func TestScrollUpGesture(t *testing.T) {
	c, fake := newFakeClient(t)
	if err := ScrollUp(context.Background(), c); err != nil {
		t.Fatalf("ScrollUp() failed: %v", err)
	}
	if len(fake.actions) != 1 {
		t.Fatalf("actions posted = %d, want 1", len(fake.actions))
	}
	chains := fake.actions[0]["actions"].([]interface{})
	steps := chains[0].(map[string]interface{})["actions"].([]interface{})
	start := steps[0].(map[string]interface{})
	end := steps[2].(map[string]interface{})
	if start["x"].(float64) != 540 || start["y"].(float64) != 1800 {
		t.Errorf("swipe start = %v, want (540, 1800)", start)
	}
	if end["y"].(float64) != 600 {
		t.Errorf("swipe end = %v, want y 600", end)
	}
}

func TestScrollDownGesture(t *testing.T) {
	c, fake := newFakeClient(t)
	if err := ScrollDown(context.Background(), c); err != nil {
		t.Fatalf("ScrollDown() failed: %v", err)
	}
	if len(fake.actions) != 1 {
		t.Fatalf("actions posted = %d, want 1", len(fake.actions))
	}
	chains := fake.actions[0]["actions"].([]interface{})
	steps := chains[0].(map[string]interface{})["actions"].([]interface{})
	start := steps[0].(map[string]interface{})
	end := steps[2].(map[string]interface{})
	if start["x"].(float64) != 540 || start["y"].(float64) != 600 {
		t.Errorf("swipe start = %v, want (540, 600)", start)
	}
	if end["y"].(float64) != 1800 {
		t.Errorf("swipe end = %v, want y 1800", end)
	}
}

func TestOpenAppAndRecording(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if missing := MissingApps(ctx, c); len(missing) != 0 {
		t.Errorf("MissingApps() = %v, want none", missing)
	}
	if err := OpenApp(ctx, c, TikTok, time.Second); err != nil {
		t.Fatalf("OpenApp() failed: %v", err)
	}

	opts := DefaultRecordingOptions()
	if err := c.StartRecording(ctx, opts); err != nil {
		t.Fatalf("StartRecording() failed: %v", err)
	}
	encoded, err := c.StopRecording(ctx, opts)
	if err != nil || encoded != base64.StdEncoding.EncodeToString([]byte("mp4")) {
		t.Errorf("StopRecording() = %q, %v", encoded, err)
	}

	want := []string{"mobile: isAppInstalled", "mobile: activateApp", "mobile: getCurrentPackage",
		"mobile: startMediaProjectionRecording", "mobile: stopMediaProjectionRecording"}
	if strings.Join(fake.scripts, ",") != strings.Join(want, ",") {
		t.Errorf("scripts = %v, want %v", fake.scripts, want)
	}
}

func TestMediaProjectionResolution(t *testing.T) {
	tests := map[string]string{
		"720x1280":  "1280x720",
		"1920x1080": "1920x1080",
		"bogus":     "1280x720",
	}
	for in, want := range tests {
		if got := mediaProjectionResolution(in); got != want {
			t.Errorf("mediaProjectionResolution(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHomeAndScreenshotFile(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := Home(ctx, c); err != nil {
		t.Fatalf("Home() failed: %v", err)
	}
	if fake.scripts[len(fake.scripts)-1] != "mobile: pressKey" {
		t.Errorf("Home() should press a key, scripts = %v", fake.scripts)
	}
	path, err := TakeScreenshot(ctx, c, t.TempDir(), time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC))
	if err != nil {
		t.Fatalf("TakeScreenshot() failed: %v", err)
	}
	if !strings.HasSuffix(path, "screenshot_20240506_070809.png") {
		t.Errorf("screenshot path = %q", path)
	}
}
