package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/lanedetect/internal/pipeline"
	"github.com/MeKo-Tech/lanedetect/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

const requestTimeout = 30 * time.Second

func defaultServerConfig() server.Config {
	return server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    50,
		TimeoutSec:     30,
		Pipeline:       pipeline.DefaultConfig(),
		OverlayEnabled: true,
		Version:        "integration",
	}
}

func (testCtx *TestContext) startServer(cfg server.Config) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}
	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.LaneServer = srv
	testCtx.HTTPTestServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) theLaneServerIsRunning() error {
	return testCtx.startServer(defaultServerConfig())
}

func (testCtx *TestContext) theLaneServerIsRunningWithOverlaysDisabled() error {
	cfg := defaultServerConfig()
	cfg.OverlayEnabled = false
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) theLaneServerIsRunningWithRequestLimit(perMinute int) error {
	cfg := defaultServerConfig()
	cfg.RateLimiter = server.NewRateLimiter(perMinute, 0, 0, 0)
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) theLaneServerIsRunningWithUploadLimit(mb int) error {
	cfg := defaultServerConfig()
	cfg.MaxUploadMB = int64(mb)
	return testCtx.startServer(cfg)
}

func (testCtx *TestContext) serverURL(path string) (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.URL + path, nil
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iSendRequest(method, path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(method, url, nil) //nolint:noctx // client has a timeout
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUploadTo posts file as the multipart "image" field.
func (testCtx *TestContext) iUploadTo(file, path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.substitute(file))
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "upload.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, url, &body) //nolint:noctx // client has a timeout
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iPostTheRawBodyTo(file, path string) error {
	url, err := testCtx.serverURL(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.substitute(file))
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data)) //nolint:noctx // client has a timeout
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	return testCtx.do(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders.Get(name); got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

func (testCtx *TestContext) responseResult() (*pipeline.FrameResult, error) {
	var resp server.LaneResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	if !resp.Success || resp.Result == nil {
		return nil, fmt.Errorf("request was not successful: %s", resp.Error)
	}
	return resp.Result, nil
}

func (testCtx *TestContext) theResponseResultShouldHaveSegments(n int) error {
	res, err := testCtx.responseResult()
	if err != nil {
		return err
	}
	return checkSegments(res, n)
}

func (testCtx *TestContext) theResponseResultShouldBeAFallback() error {
	res, err := testCtx.responseResult()
	if err != nil {
		return err
	}
	return checkFallback(res)
}

func (testCtx *TestContext) theResponseResultShouldHaveALaneOnSide(side string) error {
	res, err := testCtx.responseResult()
	if err != nil {
		return err
	}
	return checkSide(res, side)
}

// iSendTheSceneOverTheWebSocket sends one request and waits for its reply.
func (testCtx *TestContext) iSendTheSceneOverTheWebSocket(kind, name string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}
	scene, err := sceneByName(name)
	if err != nil {
		return err
	}

	req := server.WebSocketLaneRequest{Type: kind, RequestID: "scenario-" + name}
	switch kind {
	case "frame":
		req.Frame = scene.BGR()
		req.Width = sceneWidth
		req.Height = sceneHeight
	case "image":
		var buf bytes.Buffer
		if err := png.Encode(&buf, scene.Render()); err != nil {
			return err
		}
		req.Image = buf.Bytes()
	}

	wsURL := "ws" + strings.TrimPrefix(testCtx.HTTPTestServer.URL, "http") + "/ws/lanes"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetWriteDeadline(time.Now().Add(requestTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(requestTimeout))
	var reply server.WebSocketLaneResponse
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	testCtx.LastWSResponse = &reply
	return nil
}

func (testCtx *TestContext) theWebSocketReplyShouldBe(status string) error {
	if testCtx.LastWSResponse == nil {
		return errors.New("no websocket reply received")
	}
	if testCtx.LastWSResponse.Status != status {
		return fmt.Errorf("reply status is %q (%s), want %q",
			testCtx.LastWSResponse.Status, testCtx.LastWSResponse.Error, status)
	}
	return nil
}

func (testCtx *TestContext) theWebSocketReplyShouldHaveSegments(n int) error {
	if testCtx.LastWSResponse == nil || testCtx.LastWSResponse.Result == nil {
		return errors.New("websocket reply carries no result")
	}
	return checkSegments(testCtx.LastWSResponse.Result, n)
}

func (testCtx *TestContext) theWebSocketErrorTypeShouldBe(errType string) error {
	if testCtx.LastWSResponse == nil {
		return errors.New("no websocket reply received")
	}
	if testCtx.LastWSResponse.ErrorType != errType {
		return fmt.Errorf("error type is %q, want %q", testCtx.LastWSResponse.ErrorType, errType)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the lane server is running$`, testCtx.theLaneServerIsRunning)
	sc.Step(`^the lane server is running with overlays disabled$`, testCtx.theLaneServerIsRunningWithOverlaysDisabled)
	sc.Step(`^the lane server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theLaneServerIsRunningWithRequestLimit)
	sc.Step(`^the lane server is running with an upload limit of (\d+) MB$`, testCtx.theLaneServerIsRunningWithUploadLimit)

	sc.Step(`^I send a (GET|DELETE|POST|OPTIONS) request to "([^"]*)"$`, testCtx.iSendRequest)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTo)
	sc.Step(`^I post the raw body of "([^"]*)" to "([^"]*)"$`, testCtx.iPostTheRawBodyTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^the response result should have (\d+) segments?$`, testCtx.theResponseResultShouldHaveSegments)
	sc.Step(`^the response result should be the no-vote fallback$`, testCtx.theResponseResultShouldBeAFallback)
	sc.Step(`^the response result should have a (left|right) lane$`, testCtx.theResponseResultShouldHaveALaneOnSide)

	sc.Step(`^I send the "([^"]*)" scene as an? (image|frame) over the websocket$`,
		func(name, kind string) error { return testCtx.iSendTheSceneOverTheWebSocket(kind, name) })
	sc.Step(`^I send the "([^"]*)" scene as a "([^"]*)" message over the websocket$`,
		func(name, kind string) error { return testCtx.iSendTheSceneOverTheWebSocket(kind, name) })
	sc.Step(`^the websocket reply should be "([^"]*)"$`, testCtx.theWebSocketReplyShouldBe)
	sc.Step(`^the websocket reply should have (\d+) segments?$`, testCtx.theWebSocketReplyShouldHaveSegments)
	sc.Step(`^the websocket error type should be "([^"]*)"$`, testCtx.theWebSocketErrorTypeShouldBe)
}
